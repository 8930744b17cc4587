package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/shipnote/internal/credential"
	"github.com/hitoshi/shipnote/internal/middleware"
	"github.com/hitoshi/shipnote/internal/model"
)

// TrackerServiceInterface はLinearハンドラーが必要とするトラッカー操作。
type TrackerServiceInterface interface {
	Verify(ctx context.Context, apiKey string) (*model.TrackerUser, error)
	ListCompletedIssues(ctx context.Context, apiKey string) ([]model.Ticket, error)
}

// CredentialServiceInterface は保存済みAPIキーの管理操作。
type CredentialServiceInterface interface {
	Status(ctx context.Context, userID string) (*credential.Status, error)
	Connect(ctx context.Context, userID, apiKey string) (*model.TrackerUser, error)
	Disconnect(ctx context.Context, userID string) error
}

// LinearHandler はLinear連携のHTTPハンドラー。
type LinearHandler struct {
	tracker     TrackerServiceInterface
	credentials CredentialServiceInterface
	logger      *slog.Logger
}

// NewLinearHandler はLinearHandlerを生成する。
func NewLinearHandler(tracker TrackerServiceInterface, credentials CredentialServiceInterface, logger *slog.Logger) *LinearHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinearHandler{tracker: tracker, credentials: credentials, logger: logger}
}

type apiKeyRequest struct {
	APIKey string `json:"apiKey"`
}

type verifyResponse struct {
	Success bool               `json:"success"`
	User    *model.TrackerUser `json:"user"`
}

type ticketsResponse struct {
	Tickets []model.Ticket `json:"tickets"`
}

type credentialResponse struct {
	Connected bool               `json:"connected"`
	APIKey    string             `json:"apiKey,omitempty"`
	User      *model.TrackerUser `json:"user,omitempty"`
}

// readAPIKey はボディからapiKeyを読み取る。空の場合はmissingMessageのBAD_REQUESTを返す。
func readAPIKey(w http.ResponseWriter, r *http.Request, missingMessage string) (string, error) {
	var req apiKeyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return "", err
	}
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return "", model.NewBadRequestError(missingMessage)
	}
	return apiKey, nil
}

// Verify はAPIキーの有効性を確認する。キーは保存しない。
// POST /api/linear/verify
func (h *LinearHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if _, err := middleware.UserIDFromContext(r.Context()); err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	apiKey, err := readAPIKey(w, r, "API key is required")
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	user, err := h.tracker.Verify(r.Context(), apiKey)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Success: true, User: user})
}

// Tickets は完了済みチケットの一覧を返す。
// POST /api/linear/tickets
func (h *LinearHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	apiKey, err := readAPIKey(w, r, "Linear API key is required")
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	tickets, err := h.tracker.ListCompletedIssues(r.Context(), apiKey)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, ticketsResponse{Tickets: tickets})
}

// GetCredential は保存済みキーと接続状態を返す。
// GET /api/linear/credential
func (h *LinearHandler) GetCredential(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	status, err := h.credentials.Status(r.Context(), userID)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, credentialResponse{
		Connected: status.Connected,
		APIKey:    status.APIKey,
		User:      status.User,
	})
}

// PutCredential はキーを検証して保存する。拒否されたキーは保存しない。
// PUT /api/linear/credential
func (h *LinearHandler) PutCredential(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	apiKey, err := readAPIKey(w, r, "API key is required")
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	user, err := h.credentials.Connect(r.Context(), userID, apiKey)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Success: true, User: user})
}

// DeleteCredential は保存済みキーを削除する。
// DELETE /api/linear/credential
func (h *LinearHandler) DeleteCredential(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	if err := h.credentials.Disconnect(r.Context(), userID); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
