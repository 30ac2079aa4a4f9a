//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"caries-demo/internal/domain/entity"
	"caries-demo/internal/infrastructure/detection"
)

const labelCaries = "caries"

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

// NewGoCVDetector создаёт детектор тёмных (рентгенопрозрачных) областей внутри зубов.
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

func (d *GoCVDetector) Ready() error { return nil }

// Predict ищет кариес на снимке и возвращает копию с рамками и статус.
func (d *GoCVDetector) Predict(ctx context.Context, img *entity.RGB) (*entity.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("image to mat: %w", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, entity.ErrEmptyImage
	}
	if err := d.checkImageQuality(mat); err != nil {
		return nil, err
	}

	// Приводим изображение к стандартному размеру для стабильных порогов.
	scale := 1.0
	if mat.Cols() > d.MaxSide || mat.Rows() > d.MaxSide {
		scale = float64(d.MaxSide) / float64(maxInt(mat.Cols(), mat.Rows()))
		newW := int(float64(mat.Cols()) * scale)
		newH := int(float64(mat.Rows()) * scale)
		resized := gocv.NewMat()
		gocv.Resize(mat, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationArea)
		mat.Close()
		mat = resized
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	blur := gocv.NewMat()
	defer blur.Close()
	gocv.GaussianBlur(gray, &blur, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	// Зубы на рентгене светлые: маска по Оцу.
	teeth := gocv.NewMat()
	defer teeth.Close()
	gocv.Threshold(blur, &teeth, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	teethMean := blur.MeanWithMask(teeth).Val1
	if teethMean <= 0 {
		return detection.Result(img, nil), nil
	}

	// Кариес темнее окружающей эмали.
	dark := gocv.NewMat()
	defer dark.Close()
	gocv.Threshold(blur, &dark, float32(teethMean*d.DarkRatio), 255, gocv.ThresholdBinaryInv)

	// Ищем только внутри зубов: закрываем маску, чтобы дыры стали её частью.
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(15, 15))
	defer kernel.Close()
	closedTeeth := gocv.NewMat()
	defer closedTeeth.Close()
	gocv.MorphologyEx(teeth, &closedTeeth, gocv.MorphClose, kernel)

	lesions := gocv.NewMat()
	defer lesions.Close()
	gocv.BitwiseAnd(dark, closedTeeth, &lesions)

	small := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(5, 5))
	defer small.Close()
	gocv.MorphologyEx(lesions, &lesions, gocv.MorphOpen, small)

	contours := gocv.FindContours(lesions, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	total := float64(mat.Cols() * mat.Rows())
	minArea := int(total * d.MinAreaRatio)
	maxArea := int(total * d.MaxAreaRatio)
	dets := make([]entity.Detection, 0, contours.Size())
	for i := 0; i < contours.Size(); i++ {
		rect := gocv.BoundingRect(contours.At(i))
		area := rect.Dx() * rect.Dy()
		if area < minArea || area > maxArea || rect.Dy() == 0 {
			continue
		}
		aspect := float64(rect.Dx()) / float64(rect.Dy())
		if aspect < d.MinAspectRatio || aspect > d.MaxAspectRatio {
			continue
		}

		region := blur.Region(rect)
		inside := region.Mean().Val1
		region.Close()

		confidence := float32(1 - inside/teethMean)
		if confidence < d.MinConfidence {
			continue
		}
		if confidence > 1 {
			confidence = 1
		}

		dets = append(dets, entity.Detection{
			Label:      labelCaries,
			Confidence: confidence,
			X:          int(float64(rect.Min.X) / scale),
			Y:          int(float64(rect.Min.Y) / scale),
			Width:      int(float64(rect.Dx()) / scale),
			Height:     int(float64(rect.Dy()) / scale),
		})
	}

	return detection.Result(img, dets), nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (d *GoCVDetector) checkImageQuality(mat gocv.Mat) error {
	if mat.Empty() {
		return errors.New("quality gate failed: empty image")
	}

	if mat.Cols() < d.MinImageSide || mat.Rows() < d.MinImageSide {
		return fmt.Errorf("quality gate failed: image is too small (%dx%d)", mat.Cols(), mat.Rows())
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 80, 160)
	edgeRatio := ratioOfMask(edges)
	if edgeRatio < d.MinSharpnessEdgeRatio {
		return fmt.Errorf("quality gate failed: image is blurry (edge_ratio=%.4f)", edgeRatio)
	}

	bright := gocv.NewMat()
	defer bright.Close()
	gocv.Threshold(gray, &bright, 250, 255, gocv.ThresholdBinary)
	overexposedRatio := ratioOfMask(bright)
	if overexposedRatio > d.MaxOverexposedRatio {
		return fmt.Errorf("quality gate failed: overexposed image (ratio=%.4f)", overexposedRatio)
	}

	return nil
}

func ratioOfMask(mask gocv.Mat) float64 {
	total := mask.Cols() * mask.Rows()
	if total <= 0 {
		return 0
	}
	return float64(gocv.CountNonZero(mask)) / float64(total)
}
