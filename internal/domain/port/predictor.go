package port

import (
	"context"

	"caries-demo/internal/domain/entity"
)

// Predictor внешний детектор кариеса
type Predictor interface {
	// Name короткое имя реализации для логов и /health
	Name() string

	// Predict принимает RGB-снимок и возвращает размеченный снимок со статусом
	Predict(ctx context.Context, img *entity.RGB) (*entity.Prediction, error)
}

// ReadinessChecker реализуют предикторы, которые могут быть собраны, но не готовы к работе
type ReadinessChecker interface {
	Ready() error
}
