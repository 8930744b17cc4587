package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/shipnote/internal/middleware"
	"github.com/hitoshi/shipnote/internal/update"
)

// UpdateServiceInterface はアップデート生成ハンドラーが必要とするサービスインターフェース。
type UpdateServiceInterface interface {
	Generate(ctx context.Context, userID string, req update.Request) (string, error)
}

// UpdateHandler はアップデート生成のHTTPハンドラー。
type UpdateHandler struct {
	service UpdateServiceInterface
	logger  *slog.Logger
}

// NewUpdateHandler はUpdateHandlerを生成する。
func NewUpdateHandler(service UpdateServiceInterface, logger *slog.Logger) *UpdateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateHandler{service: service, logger: logger}
}

type generateUpdateResponse struct {
	Update string `json:"update"`
}

// Generate は選択されたチケットからアップデート文を生成する。
// POST /api/generate-update
func (h *UpdateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	var req update.Request
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	text, err := h.service.Generate(r.Context(), userID, req)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, generateUpdateResponse{Update: text})
}
