package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"

	"github.com/google/uuid"

	"caries-demo/internal/domain/entity"
	"caries-demo/internal/domain/port"
	"caries-demo/internal/infrastructure/imaging"
)

// ErrNoPrediction предиктор вернул пустой результат без ошибки.
var ErrNoPrediction = errors.New("predictor returned no result")

// Submission результат одного запроса к демо.
type Submission struct {
	RequestID  string
	Format     string
	Width      int
	Height     int
	Prediction *entity.Prediction
}

// FrontendService связывает загрузку снимка с внешним предиктором.
// Состояния между запросами нет: каждый снимок обрабатывается независимо.
type FrontendService struct {
	predictor port.Predictor
}

// NewFrontendService создаёт сервис поверх выбранного предиктора.
func NewFrontendService(predictor port.Predictor) *FrontendService {
	return &FrontendService{predictor: predictor}
}

// PredictorName имя активного предиктора или пустая строка.
func (s *FrontendService) PredictorName() string {
	if s.predictor == nil {
		return ""
	}
	return s.predictor.Name()
}

// Ready проверяет, что предиктор задан и готов принимать снимки.
func (s *FrontendService) Ready() error {
	if s.predictor == nil {
		return entity.ErrPredictorNotConfigured
	}
	if checker, ok := s.predictor.(port.ReadinessChecker); ok {
		return checker.Ready()
	}
	return nil
}

// SubmitPhoto декодирует загруженный файл и передаёт его предиктору.
func (s *FrontendService) SubmitPhoto(ctx context.Context, photo []byte) (*Submission, error) {
	img, format, err := imaging.DecodeBytes(photo)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, img, format)
}

// SubmitImage передаёт предиктору уже декодированный снимок.
func (s *FrontendService) SubmitImage(ctx context.Context, img image.Image) (*Submission, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, entity.ErrEmptyImage
	}
	return s.submit(ctx, img, "")
}

func (s *FrontendService) submit(ctx context.Context, img image.Image, format string) (*Submission, error) {
	if s.predictor == nil {
		return nil, entity.ErrPredictorNotConfigured
	}

	requestID := uuid.NewString()
	rgb := entity.ToRGB(img)
	bounds := rgb.Bounds()

	log.Printf("[%s] predict %s image %dx%d with %s", requestID, format, bounds.Dx(), bounds.Dy(), s.predictor.Name())

	prediction, err := s.predictor.Predict(ctx, rgb)
	if err != nil {
		log.Printf("[%s] prediction error: %v", requestID, err)
		return nil, fmt.Errorf("predict: %w", err)
	}
	if prediction == nil {
		log.Printf("[%s] prediction error: %v", requestID, ErrNoPrediction)
		return nil, ErrNoPrediction
	}

	log.Printf("[%s] status: %s", requestID, prediction.Status)

	return &Submission{
		RequestID:  requestID,
		Format:     format,
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		Prediction: prediction,
	}, nil
}
