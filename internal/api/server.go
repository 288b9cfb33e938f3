package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pixeldesk/pixeldesk/internal/cache"
	"github.com/pixeldesk/pixeldesk/internal/decoder"
	"github.com/pixeldesk/pixeldesk/internal/domain"
	"github.com/pixeldesk/pixeldesk/internal/encode"
	"github.com/pixeldesk/pixeldesk/internal/id"
	"github.com/pixeldesk/pixeldesk/internal/pipeline"
	"github.com/pixeldesk/pixeldesk/internal/store"
)

const defaultMaxUploadBytes = 32 << 20

type Server struct {
	logger  *log.Logger
	images  store.ImageStore
	decodes *cache.DecodeCache
	encoder encode.Encoder

	maxUploadBytes        int64
	rateLimiter           RateLimiter
	rateLimitUserIDHeader string
	tracer                trace.Tracer

	metrics *metrics
	mux     *http.ServeMux
	handler http.Handler
}

type Options struct {
	Logger         *log.Logger
	Images         store.ImageStore
	Decodes        *cache.DecodeCache
	Encoder        encode.Encoder
	MaxUploadBytes int64

	// RateLimiter is optional; nil disables throttling.
	RateLimiter           RateLimiter
	RateLimitUserIDHeader string

	// Tracer is optional; nil disables span creation.
	Tracer trace.Tracer
}

func NewServer(opts Options) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = defaultMaxUploadBytes
	}
	if opts.Decodes == nil {
		opts.Decodes = cache.New(0)
	}

	s := &Server{
		logger:                opts.Logger,
		images:                opts.Images,
		decodes:               opts.Decodes,
		encoder:               opts.Encoder,
		maxUploadBytes:        opts.MaxUploadBytes,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: opts.RateLimitUserIDHeader,
		tracer:                opts.Tracer,
		metrics:               newMetrics(),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	s.handler = s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
	return s
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/images", s.handleUpload)
	s.mux.HandleFunc("GET /v1/images/{id}", s.handleGetImage)
	s.mux.HandleFunc("POST /v1/images/{id}/render", s.handleRender)
	s.mux.HandleFunc("POST /v1/images/{id}/export", s.handleExport)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)

	file, header, err := r.FormFile("image")
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{"error": "multipart field \"image\" is required"})
		return
	}
	defer file.Close()

	ext, err := domain.UploadExt(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		status := http.StatusBadRequest
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, map[string]string{"error": "failed to read upload"})
		return
	}

	src := domain.SourceImage{
		ID:         id.FromBytes(data),
		Filename:   header.Filename,
		Ext:        ext,
		Data:       data,
		UploadedAt: time.Now().UTC(),
	}

	decoded, err := s.decodeCached(r.Context(), src)
	if err != nil {
		s.logger.Printf("decode failed for upload %s: %v", header.Filename, err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": fmt.Sprintf("could not decode image: %v", err),
		})
		return
	}

	if err := s.images.Put(r.Context(), src); err != nil {
		s.logger.Printf("store image failed for %s: %v", src.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store image"})
		return
	}

	writeJSON(w, http.StatusCreated, imagePayload(src, decoded))
}

func (s *Server) handleGetImage(w http.ResponseWriter, r *http.Request) {
	src, decoded, ok := s.loadImage(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, imagePayload(src, decoded))
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	src, decoded, ok := s.loadImage(w, r)
	if !ok {
		return
	}

	params := domain.DefaultParams()
	if err := decodeJSON(r, &params); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := params.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, span := s.startSpan(r.Context(), "render",
		attribute.String("image.id", src.ID),
		attribute.String("image.format", decoded.Format))
	defer span.End()

	result, err := pipeline.Apply(ctx, decoded, params)
	if err != nil {
		s.logger.Printf("pipeline failed for image %s: %v", src.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to process image"})
		return
	}

	data, err := s.encoder.Encode(ctx, result.Image, domain.FormatPNG)
	if err != nil {
		s.logger.Printf("preview encode failed for image %s: %v", src.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("failed to encode preview: %v", err),
		})
		return
	}

	s.metrics.renders.Inc()

	w.Header().Set("Content-Type", domain.ContentType(domain.FormatPNG))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Image-Width", strconv.Itoa(result.Width))
	w.Header().Set("X-Image-Height", strconv.Itoa(result.Height))
	w.Header().Set("X-Color-Mode", result.Mode)
	_, _ = w.Write(data)
}

type exportRequest struct {
	Format string                  `json:"format"`
	Params domain.AdjustmentParams `json:"params"`
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	src, decoded, ok := s.loadImage(w, r)
	if !ok {
		return
	}

	req := exportRequest{Params: domain.DefaultParams()}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	format, err := domain.ParseOutputFormat(req.Format)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := req.Params.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ctx, span := s.startSpan(r.Context(), "export",
		attribute.String("image.id", src.ID),
		attribute.String("output.format", string(format)))
	defer span.End()

	result, err := pipeline.Apply(ctx, decoded, req.Params)
	if err != nil {
		s.logger.Printf("pipeline failed for image %s: %v", src.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to process image"})
		return
	}

	data, err := s.encoder.Encode(ctx, result.Image, format)
	if err != nil {
		s.logger.Printf("export encode failed for image %s format=%s: %v", src.ID, format, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": fmt.Sprintf("failed to encode image: %v", err),
		})
		return
	}

	s.metrics.exports.WithLabelValues(string(format)).Inc()
	s.metrics.exportBytes.Add(float64(len(data)))

	w.Header().Set("Content-Type", domain.ContentType(format))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%s", domain.DownloadFilename(format)))
	_, _ = w.Write(data)
}

// loadImage resolves the {id} path segment to a stored source and its decoded
// raster, writing the error response itself when the lookup fails.
func (s *Server) loadImage(w http.ResponseWriter, r *http.Request) (domain.SourceImage, *decoder.Decoded, bool) {
	imageID := r.PathValue("id")

	src, found, err := s.images.Get(r.Context(), imageID)
	if err != nil {
		s.logger.Printf("fetch image failed for %s: %v", imageID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load image"})
		return domain.SourceImage{}, nil, false
	}
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "image not found"})
		return domain.SourceImage{}, nil, false
	}

	decoded, err := s.decodeCached(r.Context(), src)
	if err != nil {
		s.logger.Printf("decode failed for image %s: %v", src.ID, err)
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": fmt.Sprintf("could not decode image: %v", err),
		})
		return domain.SourceImage{}, nil, false
	}

	return src, decoded, true
}

func (s *Server) decodeCached(ctx context.Context, src domain.SourceImage) (*decoder.Decoded, error) {
	if d, ok := s.decodes.Get(src.ID); ok {
		s.metrics.cacheHits.Inc()
		return d, nil
	}
	s.metrics.cacheMisses.Inc()

	d, err := decoder.Decode(ctx, src.Data, src.Ext)
	if err != nil {
		return nil, err
	}
	s.decodes.Put(src.ID, d)
	return d, nil
}

func imagePayload(src domain.SourceImage, d *decoder.Decoded) map[string]any {
	payload := map[string]any{
		"id":          src.ID,
		"filename":    src.Filename,
		"format":      d.Format,
		"width":       d.Width(),
		"height":      d.Height(),
		"mode":        d.Mode,
		"dpi":         d.DPI,
		"uploaded_at": src.UploadedAt,
	}
	if len(d.Warnings) > 0 {
		payload["warnings"] = d.Warnings
	}
	if d.EXIF != nil {
		payload["exif"] = map[string]any{
			"tags":        d.EXIF.Tags,
			"orientation": d.EXIF.Orientation,
			"datetime":    d.EXIF.DateTime,
		}
	}
	return payload
}

// decodeJSON strictly parses a request body. An empty body is not an error,
// so callers get merge-over-defaults semantics by pre-filling the target.
func decodeJSON(r *http.Request, into any) error {
	const maxBodyBytes = 1 << 20
	limited := io.LimitReader(r.Body, maxBodyBytes)
	dec := json.NewDecoder(limited)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON body: multiple JSON values are not allowed")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
