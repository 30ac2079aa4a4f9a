package onnx

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"caries-demo/internal/domain/entity"
)

func TestPreprocess_LayoutAndRange(t *testing.T) {
	img := entity.NewRGB(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetRGB(x, y, 255, 0, 0)
		}
	}

	data := preprocess(img, 2, 2)
	require.Len(t, data, 3*2*2)
	for i := 0; i < 4; i++ {
		require.InDelta(t, 1.0, data[i], 0.01)
		require.InDelta(t, 0.0, data[4+i], 0.01)
		require.InDelta(t, 0.0, data[8+i], 0.01)
	}
}

func TestDecodeOutput(t *testing.T) {
	output := []float32{
		0.1, 0.1, 0.3, 0.3, 0.9, 0,
		0, 0, 0, 0, 0, 0,
		0.5, 0.5, 0.5, 0.6, 0.8, 0,
		0.6, 0.6, 0.8, 0.8, 0.7, 4,
	}

	dets := decodeOutput(output, []string{"caries"}, 100, 100)
	require.Len(t, dets, 2)
	require.Equal(t, entity.Detection{Label: "caries", Confidence: 0.9, X: 10, Y: 10, Width: 20, Height: 20}, dets[0])
	require.Equal(t, "class_4", dets[1].Label)
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "meta.json")
	content := `{"input_shape":[1,3,320,320],"output_shape":[1,100,6],"classes":["caries"]}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	meta, err := LoadMetadata(path)
	require.NoError(t, err)
	require.Equal(t, 320, meta.ImageSize)
	require.Equal(t, "input", meta.InputName)
	require.Equal(t, "output", meta.OutputName)
	require.Equal(t, float32(0.25), meta.ScoreThreshold)
	require.Equal(t, float32(0.45), meta.IOUThreshold)
}

func TestLoadMetadata_BadShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meta.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"input_shape":[1,224,224],"output_shape":[1,7]}`), 0o644))

	_, err := LoadMetadata(path)
	require.Error(t, err)

	_, err = LoadMetadata(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestPreprocess_NonSquare(t *testing.T) {
	img := entity.NewRGB(image.Rect(0, 0, 8, 8))

	data := preprocess(img, 4, 2)
	require.Len(t, data, 3*4*2)
}

func TestLoadMetadata_ShapeMismatch(t *testing.T) {
	dir := t.TempDir()

	nonSquare := filepath.Join(dir, "non_square.json")
	require.NoError(t, os.WriteFile(nonSquare, []byte(`{"input_shape":[1,3,640,480],"output_shape":[1,100,6],"image_size":640}`), 0o644))
	_, err := LoadMetadata(nonSquare)
	require.Error(t, err)

	wrongSize := filepath.Join(dir, "wrong_size.json")
	require.NoError(t, os.WriteFile(wrongSize, []byte(`{"input_shape":[1,3,320,320],"output_shape":[1,100,6],"image_size":640}`), 0o644))
	_, err = LoadMetadata(wrongSize)
	require.Error(t, err)

	dynamic := filepath.Join(dir, "dynamic.json")
	require.NoError(t, os.WriteFile(dynamic, []byte(`{"input_shape":[1,3,-1,-1],"output_shape":[1,100,6]}`), 0o644))
	_, err = LoadMetadata(dynamic)
	require.Error(t, err)

	// Без image_size прямоугольный вход берется из формы тензора.
	rect := filepath.Join(dir, "rect.json")
	require.NoError(t, os.WriteFile(rect, []byte(`{"input_shape":[1,3,480,640],"output_shape":[1,100,6]}`), 0o644))
	meta, err := LoadMetadata(rect)
	require.NoError(t, err)
	require.Equal(t, 0, meta.ImageSize)
	require.Len(t, preprocess(entity.NewRGB(image.Rect(0, 0, 10, 10)), int(meta.InputShape[3]), int(meta.InputShape[2])), 3*480*640)
}
