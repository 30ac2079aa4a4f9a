package onnx

// Metadata описание модели, лежит рядом с .onnx файлом.
type Metadata struct {
	InputShape     []int64  `json:"input_shape"`
	OutputShape    []int64  `json:"output_shape"`
	Classes        []string `json:"classes"`
	ImageSize      int      `json:"image_size"`
	InputName      string   `json:"input_name"`
	OutputName     string   `json:"output_name"`
	ScoreThreshold float32  `json:"score_threshold"`
	IOUThreshold   float32  `json:"iou_threshold"`
}

// rowSize длина строки выхода модели: x1, y1, x2, y2, score, class.
const rowSize = 6

func (m *Metadata) setDefaults() {
	if m.InputName == "" {
		m.InputName = "input"
	}
	if m.OutputName == "" {
		m.OutputName = "output"
	}
	if m.ScoreThreshold == 0 {
		m.ScoreThreshold = 0.25
	}
	if m.IOUThreshold == 0 {
		m.IOUThreshold = 0.45
	}
	if len(m.Classes) == 0 {
		m.Classes = []string{"caries"}
	}
}
