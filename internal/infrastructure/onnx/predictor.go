package onnx

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sync"

	"github.com/nfnt/resize"
	ort "github.com/yalue/onnxruntime_go"

	"caries-demo/internal/domain/entity"
	"caries-demo/internal/infrastructure/detection"
)

// Predictor запускает детекционную модель через ONNX Runtime.
type Predictor struct {
	// Тензоры общие для всех запросов, поэтому Run выполняется под мьютексом.
	mu           sync.Mutex
	session      *ort.AdvancedSession
	Metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// LoadMetadata читает и проверяет JSON с описанием модели.
func LoadMetadata(path string) (Metadata, error) {
	var metadata Metadata

	metaFile, err := os.ReadFile(path)
	if err != nil {
		return metadata, fmt.Errorf("failed to read metadata: %w", err)
	}

	if err := json.Unmarshal(metaFile, &metadata); err != nil {
		return metadata, fmt.Errorf("failed to parse metadata: %w", err)
	}

	metadata.setDefaults()

	if len(metadata.InputShape) != 4 || metadata.InputShape[1] != 3 {
		return metadata, fmt.Errorf("unsupported input shape %v, want [N 3 H W]", metadata.InputShape)
	}
	if len(metadata.OutputShape) != 3 || metadata.OutputShape[2] != rowSize {
		return metadata, fmt.Errorf("unsupported output shape %v, want [N rows %d]", metadata.OutputShape, rowSize)
	}
	height, width := metadata.InputShape[2], metadata.InputShape[3]
	if height <= 0 || width <= 0 {
		return metadata, fmt.Errorf("unsupported input shape %v, H and W must be fixed", metadata.InputShape)
	}
	// image_size допустим только для квадратного входа и должен совпадать с ним.
	if metadata.ImageSize > 0 && (height != width || int64(metadata.ImageSize) != height) {
		return metadata, fmt.Errorf("image_size %d does not match input shape %v", metadata.ImageSize, metadata.InputShape)
	}
	if metadata.ImageSize <= 0 && height == width {
		metadata.ImageSize = int(height)
	}

	return metadata, nil
}

// NewPredictor загружает модель. libraryPath может быть пустым, тогда используется путь по умолчанию.
func NewPredictor(modelPath, metadataPath, libraryPath string) (*Predictor, error) {
	metadata, err := LoadMetadata(metadataPath)
	if err != nil {
		return nil, err
	}

	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Predictor{
		session:      session,
		Metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func (p *Predictor) Name() string { return "onnx" }

func (p *Predictor) Predict(ctx context.Context, img *entity.RGB) (*entity.Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if img.Bounds().Empty() {
		return nil, entity.ErrEmptyImage
	}

	input := preprocess(img, int(p.Metadata.InputShape[3]), int(p.Metadata.InputShape[2]))

	p.mu.Lock()
	data := p.inputTensor.GetData()
	if len(data) != len(input) {
		p.mu.Unlock()
		return nil, fmt.Errorf("input tensor holds %d values, preprocessed image has %d", len(data), len(input))
	}
	copy(data, input)
	err := p.session.Run()
	var output []float32
	if err == nil {
		output = append(output, p.outputTensor.GetData()...)
	}
	p.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	b := img.Bounds()
	dets := decodeOutput(output, p.Metadata.Classes, b.Dx(), b.Dy())
	dets = detection.Filter(dets, p.Metadata.ScoreThreshold)
	dets = detection.NMS(dets, p.Metadata.IOUThreshold)

	return detection.Result(img, dets), nil
}

func (p *Predictor) Close() {
	if p.inputTensor != nil {
		p.inputTensor.Destroy()
	}
	if p.outputTensor != nil {
		p.outputTensor.Destroy()
	}
	if p.session != nil {
		p.session.Destroy()
	}
	ort.DestroyEnvironment()
}

// preprocess масштабирует снимок до width×height и раскладывает его в CHW float32 в диапазоне [0, 1].
func preprocess(img image.Image, width, height int) []float32 {
	resized := resize.Resize(uint(width), uint(height), img, resize.Lanczos3)

	bounds := resized.Bounds()
	width, height = bounds.Dx(), bounds.Dy()
	plane := width * height

	inputData := make([]float32, 3*plane)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()

			pixelIndex := y*width + x
			inputData[pixelIndex] = float32(r) / 65535.0
			inputData[plane+pixelIndex] = float32(g) / 65535.0
			inputData[2*plane+pixelIndex] = float32(b) / 65535.0
		}
	}

	return inputData
}

// decodeOutput разбирает строки [x1, y1, x2, y2, score, class] с нормализованными координатами.
// Строки с нулевой уверенностью считаются пустыми слотами.
func decodeOutput(output []float32, classes []string, w, h int) []entity.Detection {
	dets := make([]entity.Detection, 0)
	for i := 0; i+rowSize <= len(output); i += rowSize {
		row := output[i : i+rowSize]
		score := row[4]
		if score <= 0 {
			continue
		}

		classID := int(row[5])
		label := fmt.Sprintf("class_%d", classID)
		if classID >= 0 && classID < len(classes) {
			label = classes[classID]
		}

		d := detection.FromNormalized(label, score, row[0], row[1], row[2], row[3], w, h)
		if d.Area() == 0 {
			continue
		}
		dets = append(dets, d)
	}
	return dets
}
