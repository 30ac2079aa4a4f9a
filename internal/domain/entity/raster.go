package entity

import (
	"image"
	"image/color"
)

// RGB трёхканальный растр: 3 байта на пиксель, без альфа-канала.
// Все снимки перед передачей предиктору приводятся к этому формату.
type RGB struct {
	Pix    []uint8
	Stride int
	Rect   image.Rectangle
}

// NewRGB создаёт чёрный растр заданного размера.
func NewRGB(r image.Rectangle) *RGB {
	w, h := r.Dx(), r.Dy()
	if w < 0 || h < 0 {
		w, h = 0, 0
	}
	return &RGB{
		Pix:    make([]uint8, 3*w*h),
		Stride: 3 * w,
		Rect:   r,
	}
}

func (p *RGB) ColorModel() color.Model { return color.RGBAModel }

func (p *RGB) Bounds() image.Rectangle { return p.Rect }

func (p *RGB) Opaque() bool { return true }

func (p *RGB) At(x, y int) color.Color { return p.RGBAt(x, y) }

// PixOffset индекс первого байта пикселя (x, y) в Pix.
func (p *RGB) PixOffset(x, y int) int {
	return (y-p.Rect.Min.Y)*p.Stride + (x-p.Rect.Min.X)*3
}

func (p *RGB) RGBAt(x, y int) color.RGBA {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return color.RGBA{}
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	return color.RGBA{R: s[0], G: s[1], B: s[2], A: 0xff}
}

func (p *RGB) SetRGB(x, y int, r, g, b uint8) {
	if !(image.Point{X: x, Y: y}.In(p.Rect)) {
		return
	}
	i := p.PixOffset(x, y)
	s := p.Pix[i : i+3 : i+3]
	s[0], s[1], s[2] = r, g, b
}

// Set записывает цвет, отбрасывая альфа-канал.
func (p *RGB) Set(x, y int, c color.Color) {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	p.SetRGB(x, y, n.R, n.G, n.B)
}

// ToRGBA копирует растр в *image.RGBA, например для рисования поверх.
func (p *RGB) ToRGBA() *image.RGBA {
	dst := image.NewRGBA(p.Rect)
	for y := p.Rect.Min.Y; y < p.Rect.Max.Y; y++ {
		src := p.Pix[p.PixOffset(p.Rect.Min.X, y):]
		row := dst.Pix[dst.PixOffset(p.Rect.Min.X, y):]
		for x := 0; x < p.Rect.Dx(); x++ {
			row[4*x] = src[3*x]
			row[4*x+1] = src[3*x+1]
			row[4*x+2] = src[3*x+2]
			row[4*x+3] = 0xff
		}
	}
	return dst
}

// ToRGB приводит произвольный снимок к трёхканальному RGB с началом координат в (0, 0).
// Альфа-канал отбрасывается без смешивания с фоном, оттенки серого и палитра разворачиваются в три канала.
func ToRGB(src image.Image) *RGB {
	b := src.Bounds()
	dst := NewRGB(image.Rect(0, 0, b.Dx(), b.Dy()))

	switch s := src.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			out := dst.Pix[y*dst.Stride:]
			for x := 0; x < b.Dx(); x++ {
				v := row[x]
				out[3*x], out[3*x+1], out[3*x+2] = v, v, v
			}
		}
	case *image.NRGBA:
		for y := 0; y < b.Dy(); y++ {
			row := s.Pix[s.PixOffset(b.Min.X, b.Min.Y+y):]
			out := dst.Pix[y*dst.Stride:]
			for x := 0; x < b.Dx(); x++ {
				out[3*x], out[3*x+1], out[3*x+2] = row[4*x], row[4*x+1], row[4*x+2]
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				dst.Set(x, y, src.At(b.Min.X+x, b.Min.Y+y))
			}
		}
	}

	return dst
}
