package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"caries-demo/config"
	app "caries-demo/internal/application"
	"caries-demo/internal/domain/entity"
	"caries-demo/internal/infrastructure/imaging"
)

type stubPredictor struct {
	calls  int
	status string
	err    error
}

func (p *stubPredictor) Name() string { return "stub" }

func (p *stubPredictor) Predict(ctx context.Context, img *entity.RGB) (*entity.Prediction, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &entity.Prediction{Annotated: img, Status: p.status}, nil
}

func newTestServer(p *stubPredictor) *Server {
	return NewServer(app.NewFrontendService(p), config.Default().UI, 10<<20)
}

func uploadRequest(t *testing.T, path, field string, payload []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, "xray.png")
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func xrayPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 6, 4))
	img.SetGray(2, 2, color.Gray{Y: 200})
	data, err := imaging.EncodePNG(img)
	require.NoError(t, err)
	return data
}

func TestIndex_RendersUIStrings(t *testing.T) {
	s := newTestServer(&stubPredictor{})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(body)
	require.Contains(t, page, config.DefaultTitle)
	require.Contains(t, page, "Detection Status")
	require.Contains(t, page, `name="image"`)
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubPredictor{})

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "stub", body["predictor"])
}

type unreadyPredictor struct {
	stubPredictor
}

func (p *unreadyPredictor) Ready() error { return errors.New("backend is not built in") }

func TestHealth_PredictorNotReady(t *testing.T) {
	s := NewServer(app.NewFrontendService(&unreadyPredictor{}), config.Default().UI, 10<<20)

	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "unavailable", body["status"])
	require.Equal(t, "stub", body["predictor"])
	require.Contains(t, body["message"], "not built in")
}

func TestPredict_ReturnsStatusAndImage(t *testing.T) {
	p := &stubPredictor{status: "No caries detected"}
	s := newTestServer(p)

	resp, err := s.App().Test(uploadRequest(t, "/api/predict", "image", xrayPNG(t)), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, p.calls)

	var body predictResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "No caries detected", body.Status)
	require.NotEmpty(t, body.RequestID)
	require.True(t, strings.HasPrefix(body.Image, "data:image/png;base64,"))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(body.Image, "data:image/png;base64,"))
	require.NoError(t, err)
	img, _, err := imaging.DecodeBytes(raw)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 6, 4), img.Bounds())
}

func TestPredictImage_ReturnsPNG(t *testing.T) {
	p := &stubPredictor{status: "Caries detected: 1 region(s), max confidence 0.90"}
	s := newTestServer(p)

	resp, err := s.App().Test(uploadRequest(t, "/api/predict/image", "image", xrayPNG(t)), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	require.Equal(t, p.status, resp.Header.Get("X-Detection-Status"))
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_, format, err := imaging.DecodeBytes(raw)
	require.NoError(t, err)
	require.Equal(t, "png", format)
}

func TestPredict_MissingField(t *testing.T) {
	p := &stubPredictor{}
	s := newTestServer(p)

	resp, err := s.App().Test(uploadRequest(t, "/api/predict", "file", xrayPNG(t)), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 0, p.calls)
}

func TestPredict_MalformedImage(t *testing.T) {
	p := &stubPredictor{}
	s := newTestServer(p)

	resp, err := s.App().Test(uploadRequest(t, "/api/predict", "image", []byte("garbage")), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, 0, p.calls)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body.Message, "unsupported image")
}

func TestPredict_PredictorErrorIsNotSwallowed(t *testing.T) {
	p := &stubPredictor{err: errors.New("model crashed")}
	s := newTestServer(p)

	resp, err := s.App().Test(uploadRequest(t, "/api/predict", "image", xrayPNG(t)), -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	require.Equal(t, 1, p.calls)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body.Message, "model crashed")
}

func TestListen_BindFailureIsReturned(t *testing.T) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := newTestServer(&stubPredictor{})
	err = s.Listen(ln.Addr().String())
	require.Error(t, err)
}
