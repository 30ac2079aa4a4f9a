//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"caries-demo/internal/domain/entity"
)

// ErrGoCVDisabled бинарник собран без тега gocv.
var ErrGoCVDisabled = errors.New("gocv build tag is not enabled")

type GoCVDetector struct {
	MinAreaRatio          float64
	MaxAreaRatio          float64
	MaxAspectRatio        float64
	MinAspectRatio        float64
	MaxSide               int
	MinImageSide          int
	MinSharpnessEdgeRatio float64
	MaxOverexposedRatio   float64
	DarkRatio             float64
	MinConfidence         float32
}

// NewGoCVDetector создаёт детектор-заглушку (без OpenCV).
func NewGoCVDetector() *GoCVDetector {
	return &GoCVDetector{
		MinAreaRatio:          0.0005,
		MaxAreaRatio:          0.05,
		MinAspectRatio:        0.25,
		MaxAspectRatio:        4.0,
		MaxSide:               1024,
		MinImageSide:          128,
		MinSharpnessEdgeRatio: 0.002,
		MaxOverexposedRatio:   0.6,
		DarkRatio:             0.55,
		MinConfidence:         0.3,
	}
}

func (d *GoCVDetector) Name() string { return "gocv" }

// Ready сообщает, что OpenCV в сборке нет.
func (d *GoCVDetector) Ready() error { return ErrGoCVDisabled }

// Predict возвращает ошибку, если сборка без тега gocv.
func (d *GoCVDetector) Predict(ctx context.Context, img *entity.RGB) (*entity.Prediction, error) {
	_ = ctx
	_ = img
	return nil, ErrGoCVDisabled
}
