package container

import (
	"fmt"
	"log"

	"caries-demo/config"
	app "caries-demo/internal/application"
	"caries-demo/internal/domain/port"
	"caries-demo/internal/infrastructure/onnx"
	"caries-demo/internal/infrastructure/remote"
	"caries-demo/internal/infrastructure/vision"
)

type Container struct {
	UserService     *app.UserService
	FrontendService *app.FrontendService

	closers []func()
}

func New(userRepo port.UserRepository, predictor port.Predictor) *Container {
	return &Container{
		UserService:     app.NewUserService(userRepo),
		FrontendService: app.NewFrontendService(predictor),
	}
}

// NewPredictor выбирает реализацию предиктора по конфигурации.
// Вторым значением возвращается функция освобождения ресурсов.
func NewPredictor(cfg *config.Config) (port.Predictor, func(), error) {
	switch cfg.Predictor {
	case config.PredictorGoCV:
		return vision.NewGoCVDetector(), func() {}, nil
	case config.PredictorONNX:
		p, err := onnx.NewPredictor(cfg.ModelPath, cfg.MetadataPath, cfg.OnnxLibrary)
		if err != nil {
			return nil, nil, err
		}
		return p, p.Close, nil
	case config.PredictorRemote:
		p := remote.NewPredictor(cfg.RemoteURL)
		return p, func() { _ = p.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown predictor: %s", cfg.Predictor)
	}
}

// Build собирает контейнер целиком из конфигурации.
func Build(cfg *config.Config, userRepo port.UserRepository) (*Container, error) {
	predictor, closePredictor, err := NewPredictor(cfg)
	if err != nil {
		return nil, err
	}

	if checker, ok := predictor.(port.ReadinessChecker); ok {
		if err := checker.Ready(); err != nil {
			log.Printf("WARNING: predictor %s is not ready, uploads will fail: %v", predictor.Name(), err)
		}
	}

	c := New(userRepo, predictor)
	c.closers = append(c.closers, closePredictor)
	return c, nil
}

// Close освобождает ресурсы предиктора.
func (c *Container) Close() {
	for _, closeFn := range c.closers {
		closeFn()
	}
	c.closers = nil
}
