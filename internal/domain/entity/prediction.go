package entity

import (
	"errors"
	"image"
)

var (
	ErrEmptyImage             = errors.New("empty image")
	ErrUnsupportedImage       = errors.New("unsupported image")
	ErrPredictorNotConfigured = errors.New("predictor is not configured")
)

// Prediction ответ предиктора: размеченный снимок и строка статуса.
// Фронтенд отдаёт оба значения без изменений.
type Prediction struct {
	Annotated image.Image
	Status    string
}
