package api

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/image/webp"

	"github.com/pixeldesk/pixeldesk/internal/cache"
	"github.com/pixeldesk/pixeldesk/internal/encode"
	"github.com/pixeldesk/pixeldesk/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	encoder, err := encode.New()
	if err != nil {
		t.Fatalf("build encoder: %v", err)
	}
	return NewServer(Options{
		Logger:  log.New(io.Discard, "", 0),
		Images:  store.NewMemoryImageStore(),
		Decodes: cache.New(0),
		Encoder: encoder,
	})
}

func pngUpload(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 11), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func doUpload(t *testing.T, s *Server, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func uploadAndGetID(t *testing.T, s *Server) string {
	t.Helper()
	rec := doUpload(t, s, "fixture.png", pngUpload(t, 40, 30))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse upload response: %v", err)
	}
	imageID, _ := resp["id"].(string)
	if imageID == "" {
		t.Fatal("upload response missing id")
	}
	return imageID
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}
}

func TestUploadReportsMetadata(t *testing.T) {
	s := newTestServer(t)
	rec := doUpload(t, s, "fixture.png", pngUpload(t, 40, 30))
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp["format"] != "png" {
		t.Fatalf("expected format png, got %v", resp["format"])
	}
	if resp["width"] != float64(40) || resp["height"] != float64(30) {
		t.Fatalf("unexpected dimensions %v x %v", resp["width"], resp["height"])
	}
	if resp["mode"] != "RGBA" {
		t.Fatalf("expected mode RGBA for png, got %v", resp["mode"])
	}
	if resp["filename"] != "fixture.png" {
		t.Fatalf("unexpected filename %v", resp["filename"])
	}
}

func TestUploadIsContentAddressed(t *testing.T) {
	s := newTestServer(t)
	data := pngUpload(t, 16, 16)

	first := doUpload(t, s, "a.png", data)
	second := doUpload(t, s, "b.png", data)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("upload statuses = %d, %d", first.Code, second.Code)
	}

	var a, b map[string]any
	_ = json.Unmarshal(first.Body.Bytes(), &a)
	_ = json.Unmarshal(second.Body.Bytes(), &b)
	if a["id"] != b["id"] {
		t.Fatalf("identical bytes must share an id: %v vs %v", a["id"], b["id"])
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	s := newTestServer(t)
	rec := doUpload(t, s, "animation.gif", []byte("GIF89a"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUploadRejectsCorruptImage(t *testing.T) {
	s := newTestServer(t)
	rec := doUpload(t, s, "broken.png", []byte("definitely not a png"))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "could not decode image") {
		t.Fatalf("expected decode error message, got %s", rec.Body.String())
	}
}

func TestUploadRequiresImageField(t *testing.T) {
	s := newTestServer(t)
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("file", "nope")
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetImageMetadata(t *testing.T) {
	s := newTestServer(t)
	imageID := uploadAndGetID(t, s)

	req := httptest.NewRequest(http.MethodGet, "/v1/images/"+imageID, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metadata status = %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if resp["id"] != imageID {
		t.Fatalf("expected id %s, got %v", imageID, resp["id"])
	}
}

func TestGetImageUnknownID(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/images/doesnotexist", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRenderGrayscalePreview(t *testing.T) {
	s := newTestServer(t)
	imageID := uploadAndGetID(t, s)

	body := strings.NewReader(`{"grayscale": true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/images/"+imageID+"/render", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("render status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("preview must be png, got %q", ct)
	}
	if mode := rec.Header().Get("X-Color-Mode"); mode != "L" {
		t.Fatalf("expected color mode L, got %q", mode)
	}
	if rec.Header().Get("X-Image-Width") != "40" || rec.Header().Get("X-Image-Height") != "30" {
		t.Fatalf("unexpected dimension headers %s x %s",
			rec.Header().Get("X-Image-Width"), rec.Header().Get("X-Image-Height"))
	}
	if _, err := png.Decode(bytes.NewReader(rec.Body.Bytes())); err != nil {
		t.Fatalf("preview body is not a valid png: %v", err)
	}
}

func TestRenderEmptyBodyUsesDefaults(t *testing.T) {
	s := newTestServer(t)
	imageID := uploadAndGetID(t, s)

	req := httptest.NewRequest(http.MethodPost, "/v1/images/"+imageID+"/render", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("render status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Image-Width") != "40" {
		t.Fatalf("identity render must keep width, got %s", rec.Header().Get("X-Image-Width"))
	}
}

func TestRenderRejectsInvalidParams(t *testing.T) {
	s := newTestServer(t)
	imageID := uploadAndGetID(t, s)

	body := strings.NewReader(`{"scale_percent": 5000}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/images/"+imageID+"/render", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRenderRejectsUnknownFields(t *testing.T) {
	s := newTestServer(t)
	imageID := uploadAndGetID(t, s)

	body := strings.NewReader(`{"sepia": true}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/images/"+imageID+"/render", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestExportWebPHalfScale(t *testing.T) {
	s := newTestServer(t)
	imageID := uploadAndGetID(t, s)

	body := strings.NewReader(`{"format": "webp", "params": {"scale_percent": 50}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/images/"+imageID+"/export", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, body = %s", rec.Code, rec.Body.String())
	}

	if ct := rec.Header().Get("Content-Type"); ct != "image/webp" {
		t.Fatalf("expected image/webp, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=processed_image.webp" {
		t.Fatalf("unexpected content disposition %q", cd)
	}

	cfg, err := webp.DecodeConfig(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("export body is not valid webp: %v", err)
	}
	if cfg.Width != 20 || cfg.Height != 15 {
		t.Fatalf("expected 20x15 export, got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestExportDefaultsToPNG(t *testing.T) {
	s := newTestServer(t)
	imageID := uploadAndGetID(t, s)

	req := httptest.NewRequest(http.MethodPost, "/v1/images/"+imageID+"/export", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("expected image/png default, got %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != "attachment; filename=processed_image.png" {
		t.Fatalf("unexpected content disposition %q", cd)
	}
}

func TestExportRejectsUnsupportedFormat(t *testing.T) {
	s := newTestServer(t)
	imageID := uploadAndGetID(t, s)

	body := strings.NewReader(`{"format": "bmp"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/images/"+imageID+"/export", body)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	s := newTestServer(t)
	uploadAndGetID(t, s)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "pixeldesk_api_requests_total") {
		t.Fatal("expected request counter in metrics exposition")
	}
}
