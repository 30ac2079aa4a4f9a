package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"caries-demo/internal/domain/entity"
	"caries-demo/internal/infrastructure/detection"
	"caries-demo/internal/infrastructure/imaging"
)

const (
	DefaultTimeout = 30 * time.Second
	jpegQuality    = 90
)

// detectionResult ответ сервера детекции. Box нормализован: [y1, x1, y2, x2].
type detectionResult struct {
	Label      string    `json:"label"`
	Confidence float32   `json:"confidence"`
	Box        []float32 `json:"box"`
}

// Predictor отправляет снимок на удалённый сервер детекции по websocket.
// Одновременно по соединению идёт только один запрос.
type Predictor struct {
	serverURL string
	dialer    *websocket.Dialer
	Timeout   time.Duration

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewPredictor(serverURL string) *Predictor {
	return &Predictor{
		serverURL: serverURL,
		dialer:    websocket.DefaultDialer,
		Timeout:   DefaultTimeout,
	}
}

func (p *Predictor) Name() string { return "remote" }

func (p *Predictor) Predict(ctx context.Context, img *entity.RGB) (*entity.Prediction, error) {
	frame, err := imaging.EncodeJPEG(img, jpegQuality)
	if err != nil {
		return nil, err
	}

	message, err := p.roundTrip(ctx, frame)
	if err != nil {
		return nil, err
	}

	var results []detectionResult
	if err := json.Unmarshal(message, &results); err != nil {
		return nil, fmt.Errorf("decode detector response: %w", err)
	}

	b := img.Bounds()
	dets := make([]entity.Detection, 0, len(results))
	for _, res := range results {
		if len(res.Box) != 4 {
			return nil, fmt.Errorf("malformed box %v", res.Box)
		}
		d := detection.FromNormalized(res.Label, res.Confidence, res.Box[1], res.Box[0], res.Box[3], res.Box[2], b.Dx(), b.Dy())
		if d.Area() == 0 {
			continue
		}
		dets = append(dets, d)
	}

	return detection.Result(img, dets), nil
}

// Close закрывает текущее соединение, если оно есть.
func (p *Predictor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *Predictor) roundTrip(ctx context.Context, frame []byte) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	conn, err := p.connect(ctx)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(p.Timeout)
	}
	_ = conn.SetWriteDeadline(deadline)
	_ = conn.SetReadDeadline(deadline)

	// Отмена контекста прерывает ожидание ответа: дедлайн сдвигается на текущий момент.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			now := time.Now()
			_ = conn.SetWriteDeadline(now)
			_ = conn.SetReadDeadline(now)
		case <-done:
		}
	}()

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		p.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("send frame: %w", err)
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		p.drop()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("read detector response: %w", err)
	}

	return message, nil
}

// connect возвращает открытое соединение, при необходимости подключаясь заново.
func (p *Predictor) connect(ctx context.Context) (*websocket.Conn, error) {
	if p.conn != nil {
		return p.conn, nil
	}
	if p.serverURL == "" {
		return nil, errors.New("remote predictor url is empty")
	}

	log.Println("connecting to detector server...", p.serverURL)
	conn, _, err := p.dialer.DialContext(ctx, p.serverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect to detector server: %w", err)
	}
	log.Println("connected to detector server")

	p.conn = conn
	return conn, nil
}

func (p *Predictor) drop() {
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
