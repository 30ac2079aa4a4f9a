package entity

// Detection область снимка, в которой предиктор нашёл кариес
type Detection struct {
	Label      string  `json:"label"`      // класс находки
	Confidence float32 `json:"confidence"` // уверенность модели, 0..1
	X          int     `json:"x"`          // координата X левого верхнего угла
	Y          int     `json:"y"`          // координата Y левого верхнего угла
	Width      int     `json:"width"`      // ширина области в пикселях
	Height     int     `json:"height"`     // высота области в пикселях
}

// Center возвращает координаты центра области
func (d Detection) Center() (x, y int) {
	return d.X + d.Width/2, d.Y + d.Height/2
}

// Area площадь области в пикселях
func (d Detection) Area() int {
	if d.Width <= 0 || d.Height <= 0 {
		return 0
	}
	return d.Width * d.Height
}
