package shortener

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nkemjika/shortlinks/internal/errx"
	"github.com/nkemjika/shortlinks/internal/httpx"
)

// HTTPCreateLinkRequest is the JSON request body for creating a link.
type HTTPCreateLinkRequest struct {
	URL string `json:"url"`
}

// CreateLinkResponse is the JSON response for a created link: the full
// short URL, base plus key.
type CreateLinkResponse struct {
	URL string `json:"url"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	logger  *slog.Logger
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	BaseURL string // base for constructing short URLs, e.g. "https://short.ly"
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		baseURL: cfg.BaseURL,
	}
}

// CreateLink handles POST requests to create a new short link.
func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	req, err := httpx.DecodeJSON[HTTPCreateLinkRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request", "error", err.Error())
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	link, err := h.service.Create(ctx, req.URL)
	if err != nil {
		h.handleCreateError(ctx, w, err)
		return
	}

	logger.InfoContext(ctx, "link created",
		"key", link.Key,
	)

	httpx.WriteJSON(w, http.StatusCreated, CreateLinkResponse{
		URL: fmt.Sprintf("%s/%s", h.baseURL, link.Key),
	})
}

// ResolveLink handles GET requests to resolve a key and redirect to the
// original URL.
func (h *Handler) ResolveLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	key := r.PathValue("key")

	uri, err := h.service.Resolve(ctx, key)
	if err != nil {
		h.handleResolveError(ctx, w, err, key)
		return
	}

	logger.InfoContext(ctx, "key resolved",
		"key", key,
		"referer", r.Referer(),
	)

	http.Redirect(w, r, uri, http.StatusMovedPermanently)
}

// handleCreateError maps Create service errors to HTTP responses.
func (h *Handler) handleCreateError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Conflict:
		h.logger.WarnContext(ctx, "key conflict", logAttrs...)
		httpx.WriteError(w, http.StatusConflict, "conflict",
			"A link with this key was just created",
			map[string]string{
				"hint": "Retry the request to get a fresh key",
			})

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid link request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "store unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to create short link at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error creating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create short link at this time. Please try again.", nil)
	}
}

// handleResolveError maps Resolve service errors to HTTP responses.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, key string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"key", key,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "key not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid key", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_key", err.Error(), nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "store unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to resolve this link at this time", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this link at this time", nil)
	}
}
