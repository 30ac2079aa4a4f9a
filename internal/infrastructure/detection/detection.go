package detection

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sort"

	"caries-demo/internal/domain/entity"
)

const (
	StatusNoCaries = "No caries detected"
	boxThickness   = 3
)

var boxColor = color.RGBA{G: 255, A: 255}

// Status формирует строку статуса по найденным областям.
func Status(dets []entity.Detection) string {
	if len(dets) == 0 {
		return StatusNoCaries
	}
	var best float32
	for _, d := range dets {
		if d.Confidence > best {
			best = d.Confidence
		}
	}
	return fmt.Sprintf("Caries detected: %d region(s), max confidence %.2f", len(dets), best)
}

// Filter оставляет находки с уверенностью не ниже minConfidence.
func Filter(dets []entity.Detection, minConfidence float32) []entity.Detection {
	out := make([]entity.Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= minConfidence {
			out = append(out, d)
		}
	}
	return out
}

// IoU отношение площади пересечения к площади объединения двух областей.
func IoU(a, b entity.Detection) float32 {
	ra := image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
	rb := image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
	inter := ra.Intersect(rb)
	if inter.Empty() {
		return 0
	}
	i := inter.Dx() * inter.Dy()
	union := a.Area() + b.Area() - i
	if union <= 0 {
		return 0
	}
	return float32(i) / float32(union)
}

// NMS жадное подавление немаксимумов: область отбрасывается, если она перекрывается
// с уже принятой более уверенной областью того же класса сильнее iouThreshold.
func NMS(dets []entity.Detection, iouThreshold float32) []entity.Detection {
	sorted := make([]entity.Detection, len(dets))
	copy(sorted, dets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	kept := make([]entity.Detection, 0, len(sorted))
	for _, d := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Label == d.Label && IoU(k, d) > iouThreshold {
				suppressed = true
				break
			}
		}
		if !suppressed {
			kept = append(kept, d)
		}
	}
	return kept
}

// FromNormalized переводит нормализованные координаты [0,1] в пиксели снимка w×h.
func FromNormalized(label string, confidence, x1, y1, x2, y2 float32, w, h int) entity.Detection {
	left := clamp(int(x1*float32(w)), 0, w)
	top := clamp(int(y1*float32(h)), 0, h)
	right := clamp(int(x2*float32(w)), 0, w)
	bottom := clamp(int(y2*float32(h)), 0, h)
	return entity.Detection{
		Label:      label,
		Confidence: confidence,
		X:          left,
		Y:          top,
		Width:      right - left,
		Height:     bottom - top,
	}
}

// Annotate возвращает копию снимка с рамками вокруг находок. Без находок копия не отличается от исходника.
func Annotate(img image.Image, dets []entity.Detection) *image.RGBA {
	var out *image.RGBA
	if rgb, ok := img.(*entity.RGB); ok {
		out = rgb.ToRGBA()
	} else {
		out = image.NewRGBA(img.Bounds())
		draw.Draw(out, out.Bounds(), img, img.Bounds().Min, draw.Src)
	}

	for _, d := range dets {
		if d.Area() == 0 {
			continue
		}
		drawRect(out, d.X, d.Y, d.X+d.Width-1, d.Y+d.Height-1, boxColor)
	}
	return out
}

// Result собирает ответ предиктора из снимка и списка находок.
func Result(img image.Image, dets []entity.Detection) *entity.Prediction {
	return &entity.Prediction{
		Annotated: Annotate(img, dets),
		Status:    Status(dets),
	}
}

func drawRect(img *image.RGBA, x1, y1, x2, y2 int, col color.RGBA) {
	bounds := img.Bounds()

	setPixel := func(x, y int) {
		if x >= bounds.Min.X && x < bounds.Max.X && y >= bounds.Min.Y && y < bounds.Max.Y {
			img.SetRGBA(x, y, col)
		}
	}

	for t := 0; t < boxThickness; t++ {
		for x := x1; x <= x2; x++ {
			setPixel(x, y1+t)
			setPixel(x, y2-t)
		}
		for y := y1; y <= y2; y++ {
			setPixel(x1+t, y)
			setPixel(x2-t, y)
		}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
