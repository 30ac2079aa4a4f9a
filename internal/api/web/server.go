package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"caries-demo/config"
	app "caries-demo/internal/application"
	"caries-demo/internal/domain/entity"
	"caries-demo/internal/infrastructure/imaging"
)

const formField = "image"

type predictResponse struct {
	RequestID string `json:"request_id"`
	Status    string `json:"status"`
	Image     string `json:"image"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Server HTTP-фронтенд демо: страница загрузки и API предсказаний.
type Server struct {
	app      *fiber.App
	frontend *app.FrontendService
	ui       config.UIConfig
}

func NewServer(frontend *app.FrontendService, ui config.UIConfig, maxUploadBytes int64) *Server {
	s := &Server{
		frontend: frontend,
		ui:       ui,
	}

	s.app = fiber.New(fiber.Config{
		BodyLimit:             int(maxUploadBytes),
		ErrorHandler:          errorHandler,
		DisableStartupMessage: true,
	})
	s.app.Use(logger.New())

	s.app.Get("/", s.index)
	s.app.Get("/health", s.health)
	s.app.Post("/api/predict", s.predict)
	s.app.Post("/api/predict/image", s.predictImage)

	return s
}

// App нужен тестам и для встраивания.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen блокируется до остановки сервера. Ошибка привязки к порту возвращается сразу.
func (s *Server) Listen(addr string) error {
	log.Printf("Server starting on %s", addr)
	log.Println("Endpoints:")
	log.Println("  GET  /                   - Upload page")
	log.Println("  GET  /health             - Health check")
	log.Println("  POST /api/predict        - Predict from image upload (JSON)")
	log.Println("  POST /api/predict/image  - Predict from image upload (PNG)")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) index(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, s.ui); err != nil {
		return err
	}
	c.Type("html", "utf-8")
	return c.Send(buf.Bytes())
}

func (s *Server) health(c *fiber.Ctx) error {
	if err := s.frontend.Ready(); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":    "unavailable",
			"predictor": s.frontend.PredictorName(),
			"message":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"predictor": s.frontend.PredictorName(),
	})
}

func (s *Server) predict(c *fiber.Ctx) error {
	sub, err := s.submit(c)
	if err != nil {
		return err
	}

	resp := predictResponse{
		RequestID: sub.RequestID,
		Status:    sub.Prediction.Status,
	}
	if sub.Prediction.Annotated != nil {
		data, err := imaging.EncodePNG(sub.Prediction.Annotated)
		if err != nil {
			return err
		}
		resp.Image = "data:image/png;base64," + base64.StdEncoding.EncodeToString(data)
	}

	return c.JSON(resp)
}

func (s *Server) predictImage(c *fiber.Ctx) error {
	sub, err := s.submit(c)
	if err != nil {
		return err
	}
	if sub.Prediction.Annotated == nil {
		return fmt.Errorf("[%s] %w", sub.RequestID, app.ErrNoPrediction)
	}

	data, err := imaging.EncodePNG(sub.Prediction.Annotated)
	if err != nil {
		return err
	}

	c.Set("X-Request-ID", sub.RequestID)
	c.Set("X-Detection-Status", sub.Prediction.Status)
	c.Type("png")
	return c.Send(data)
}

func (s *Server) submit(c *fiber.Ctx) (*app.Submission, error) {
	header, err := c.FormFile(formField)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "No image file provided. Use 'image' as the form field name")
	}

	file, err := header.Open()
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Failed to read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Failed to read uploaded file")
	}

	log.Printf("Received file: %s, size: %d bytes", header.Filename, header.Size)

	return s.frontend.SubmitPhoto(c.UserContext(), data)
}

// errorHandler превращает ошибки в JSON: проблемы со снимком — 400, всё остальное — 500.
func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, entity.ErrUnsupportedImage), errors.Is(err, entity.ErrEmptyImage):
		code = fiber.StatusBadRequest
	}

	if code >= fiber.StatusInternalServerError {
		log.Printf("Request %s %s failed: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(errorResponse{
		Error:   http.StatusText(code),
		Message: err.Error(),
	})
}
