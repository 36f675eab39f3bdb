package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/okian/facepace/internal/domain/model"
	"github.com/okian/facepace/pkg/logger"
)

// ProxyDependencies forwards a client-built analysis request.
type ProxyDependencies interface {
	ProxyAnalyze(ctx context.Context, req model.AnalysisRequest) (*model.AnalysisReport, error)
}

// ProxyHandler serves POST /api/analyze for clients that upload media
// themselves and only need the analysis call made on their behalf.
type ProxyHandler struct {
	deps   ProxyDependencies
	logger logger.Logger
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(deps ProxyDependencies, l logger.Logger) *ProxyHandler {
	return &ProxyHandler{deps: deps, logger: l}
}

type proxyRequest struct {
	VideoURL string  `json:"videoUrl"`
	ImageURL string  `json:"imageUrl"`
	Age      flexAge `json:"age"`
}

type proxyResult struct {
	Result json.RawMessage `json:"result"`
}

type proxyError struct {
	Error string `json:"error"`
}

// HandleAnalyze handles POST /api/analyze requests.
func (h *ProxyHandler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req proxyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, proxyError{Error: "Invalid request body"})
		return
	}
	if req.VideoURL == "" || req.ImageURL == "" || !req.Age.present() {
		writeJSON(w, http.StatusBadRequest, proxyError{Error: "Missing video URL, image URL, or age"})
		return
	}
	age, err := req.Age.Int()
	if err == nil {
		err = model.ValidateAge(age)
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, proxyError{Error: "Invalid age: " + err.Error()})
		return
	}

	h.logger.Info(r.Context(), "proxy analysis",
		logger.String("video_url", req.VideoURL),
		logger.String("image_url", req.ImageURL),
		logger.Int("age", age),
	)

	report, err := h.deps.ProxyAnalyze(r.Context(), model.AnalysisRequest{
		VideoRef:    req.VideoURL,
		ImageRef:    req.ImageURL,
		DeclaredAge: age,
	})
	if err != nil {
		h.logger.Error(r.Context(), "proxy analysis failed", logger.Error(err))
		if errors.Is(err, model.ErrAnalysisTimeout) || errors.Is(err, context.DeadlineExceeded) {
			writeJSON(w, http.StatusGatewayTimeout, proxyError{Error: "Request timed out"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, proxyError{Error: "Error analyzing media: " + err.Error()})
		return
	}

	raw := report.Raw
	if len(raw) == 0 {
		if raw, err = json.Marshal(report); err != nil {
			writeJSON(w, http.StatusInternalServerError, proxyError{Error: "Error analyzing media: " + err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, proxyResult{Result: raw})
}
