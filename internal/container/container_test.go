package container

import (
	"testing"

	"github.com/stretchr/testify/require"

	"caries-demo/config"
	"caries-demo/internal/infrastructure/storage"
)

func TestNewPredictor_ByName(t *testing.T) {
	cfg := config.Default()

	cfg.Predictor = config.PredictorGoCV
	p, closeFn, err := NewPredictor(cfg)
	require.NoError(t, err)
	require.Equal(t, "gocv", p.Name())
	closeFn()

	cfg.Predictor = config.PredictorRemote
	p, closeFn, err = NewPredictor(cfg)
	require.NoError(t, err)
	require.Equal(t, "remote", p.Name())
	closeFn()
}

func TestNewPredictor_Unknown(t *testing.T) {
	cfg := config.Default()
	cfg.Predictor = "magic"

	_, _, err := NewPredictor(cfg)
	require.Error(t, err)
}

func TestNewPredictor_OnnxMissingMetadata(t *testing.T) {
	cfg := config.Default()
	cfg.Predictor = config.PredictorONNX
	cfg.MetadataPath = t.TempDir() + "/missing.json"

	_, _, err := NewPredictor(cfg)
	require.Error(t, err)
}

func TestBuild(t *testing.T) {
	cfg := config.Default()
	cfg.Predictor = config.PredictorRemote

	c, err := Build(cfg, storage.NewMemoryUserRepository())
	require.NoError(t, err)
	require.Equal(t, "remote", c.FrontendService.PredictorName())
	require.NotNil(t, c.UserService)
	c.Close()
}

func TestClose_ReleasesPredictorOnce(t *testing.T) {
	c := New(storage.NewMemoryUserRepository(), nil)
	calls := 0
	c.closers = append(c.closers, func() { calls++ })

	c.Close()
	c.Close()
	require.Equal(t, 1, calls)
}
