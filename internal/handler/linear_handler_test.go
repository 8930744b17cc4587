package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/shipnote/internal/credential"
	"github.com/hitoshi/shipnote/internal/model"
)

func TestLinearHandler_Verify_Success(t *testing.T) {
	tracker := &mockTracker{
		verifyFn: func(ctx context.Context, apiKey string) (*model.TrackerUser, error) {
			if apiKey != "lin_api_good" {
				t.Errorf("apiKey = %q, want %q", apiKey, "lin_api_good")
			}
			return &model.TrackerUser{Name: "Ada", Email: "ada@example.com"}, nil
		},
	}
	h := NewLinearHandler(tracker, &mockCredentialService{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/linear/verify", strings.NewReader(`{"apiKey":" lin_api_good "}`))
	w := httptest.NewRecorder()
	h.Verify(w, withUser(req, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}
	var body verifyResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if !body.Success {
		t.Error("success should be true")
	}
	if body.User == nil || body.User.Name != "Ada" || body.User.Email != "ada@example.com" {
		t.Errorf("user = %+v, want Ada <ada@example.com>", body.User)
	}
}

// 拒否されたキーは401となり、保存されないこと
func TestLinearHandler_Verify_RejectedKey_Returns401WithoutPersisting(t *testing.T) {
	tracker := &mockTracker{
		verifyFn: func(ctx context.Context, apiKey string) (*model.TrackerUser, error) {
			return nil, model.NewInvalidCredentialError("Authentication required, not authenticated")
		},
	}
	creds := &mockCredentialService{
		connectFn: func(ctx context.Context, userID, apiKey string) (*model.TrackerUser, error) {
			t.Error("verify must not persist the key")
			return nil, nil
		},
	}
	h := NewLinearHandler(tracker, creds, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/linear/verify", strings.NewReader(`{"apiKey":"lin_api_bad"}`))
	w := httptest.NewRecorder()
	h.Verify(w, withUser(req, "user-1"))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	body := decodeError(t, w)
	if body.Error != "Authentication required, not authenticated" {
		t.Errorf("error = %q", body.Error)
	}
	if body.Code != model.ErrCodeInvalidCredential {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInvalidCredential)
	}
}

func TestLinearHandler_Verify_InputErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
		wantMsg  string
	}{
		{"invalid json", `{"apiKey":`, model.ErrCodeInvalidRequest, "Invalid request body"},
		{"empty body", ``, model.ErrCodeInvalidRequest, "Invalid request body"},
		{"missing key", `{}`, model.ErrCodeBadRequest, "API key is required"},
		{"blank key", `{"apiKey":"   "}`, model.ErrCodeBadRequest, "API key is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := &mockTracker{}
			h := NewLinearHandler(tracker, &mockCredentialService{}, discardLogger())

			req := httptest.NewRequest(http.MethodPost, "/api/linear/verify", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.Verify(w, withUser(req, "user-1"))

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
			}
			body := decodeError(t, w)
			if body.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", body.Code, tt.wantCode)
			}
			if body.Error != tt.wantMsg {
				t.Errorf("error = %q, want %q", body.Error, tt.wantMsg)
			}
			if tracker.calls != 0 {
				t.Errorf("tracker calls = %d, want 0", tracker.calls)
			}
		})
	}
}

func TestLinearHandler_Verify_NoSession_Returns401(t *testing.T) {
	tracker := &mockTracker{}
	h := NewLinearHandler(tracker, &mockCredentialService{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/linear/verify", strings.NewReader(`{"apiKey":"k"}`))
	w := httptest.NewRecorder()
	h.Verify(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if tracker.calls != 0 {
		t.Errorf("tracker calls = %d, want 0", tracker.calls)
	}
}

func TestLinearHandler_Tickets_Success(t *testing.T) {
	tracker := &mockTracker{
		listFn: func(ctx context.Context, apiKey string) ([]model.Ticket, error) {
			return []model.Ticket{
				{ID: "1", Title: "Dark mode", Description: "", State: "Done", URL: "https://linear.app/t/1"},
			}, nil
		},
	}
	h := NewLinearHandler(tracker, &mockCredentialService{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/linear/tickets", strings.NewReader(`{"apiKey":"k"}`))
	w := httptest.NewRecorder()
	h.Tickets(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var raw map[string][]map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	tickets := raw["tickets"]
	if len(tickets) != 1 {
		t.Fatalf("tickets = %d, want 1", len(tickets))
	}
	if tickets[0]["description"] != "" {
		t.Errorf("description = %v, want empty string", tickets[0]["description"])
	}
	if _, ok := tickets[0]["completedAt"]; ok {
		t.Error("completedAt should be omitted when absent")
	}
}

func TestLinearHandler_Tickets_EmptyList_IsArray(t *testing.T) {
	h := NewLinearHandler(&mockTracker{}, &mockCredentialService{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/linear/tickets", strings.NewReader(`{"apiKey":"k"}`))
	w := httptest.NewRecorder()
	h.Tickets(w, req)

	if got := strings.TrimSpace(w.Body.String()); got != `{"tickets":[]}` {
		t.Errorf("body = %s, want %s", got, `{"tickets":[]}`)
	}
}

func TestLinearHandler_Tickets_MissingKey_Returns400(t *testing.T) {
	tracker := &mockTracker{}
	h := NewLinearHandler(tracker, &mockCredentialService{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/linear/tickets", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	h.Tickets(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if body := decodeError(t, w); body.Error != "Linear API key is required" {
		t.Errorf("error = %q, want %q", body.Error, "Linear API key is required")
	}
	if tracker.calls != 0 {
		t.Errorf("tracker calls = %d, want 0", tracker.calls)
	}
}

func TestLinearHandler_Tickets_UpstreamError_Returns500(t *testing.T) {
	tracker := &mockTracker{
		listFn: func(ctx context.Context, apiKey string) ([]model.Ticket, error) {
			return nil, model.NewUpstreamError("")
		},
	}
	h := NewLinearHandler(tracker, &mockCredentialService{}, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/linear/tickets", strings.NewReader(`{"apiKey":"k"}`))
	w := httptest.NewRecorder()
	h.Tickets(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := decodeError(t, w); body.Error != "Failed to fetch tickets from Linear" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestLinearHandler_GetCredential(t *testing.T) {
	tests := []struct {
		name   string
		status *credential.Status
		want   string
	}{
		{"not connected", &credential.Status{}, `{"connected":false}`},
		{"rejected key", &credential.Status{APIKey: "lin_old"}, `{"connected":false,"apiKey":"lin_old"}`},
		{
			"connected",
			&credential.Status{Connected: true, APIKey: "lin_ok", User: &model.TrackerUser{Name: "Ada", Email: "a@x"}},
			`{"connected":true,"apiKey":"lin_ok","user":{"name":"Ada","email":"a@x"}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds := &mockCredentialService{
				statusFn: func(ctx context.Context, userID string) (*credential.Status, error) {
					return tt.status, nil
				},
			}
			h := NewLinearHandler(&mockTracker{}, creds, discardLogger())

			w := httptest.NewRecorder()
			h.GetCredential(w, withUser(httptest.NewRequest(http.MethodGet, "/api/linear/credential", nil), "user-1"))

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if got := strings.TrimSpace(w.Body.String()); got != tt.want {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLinearHandler_PutCredential(t *testing.T) {
	var gotUser, gotKey string
	creds := &mockCredentialService{
		connectFn: func(ctx context.Context, userID, apiKey string) (*model.TrackerUser, error) {
			gotUser, gotKey = userID, apiKey
			return &model.TrackerUser{Name: "Ada", Email: "a@x"}, nil
		},
	}
	h := NewLinearHandler(&mockTracker{}, creds, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/linear/credential", strings.NewReader(`{"apiKey":"lin_new"}`))
	w := httptest.NewRecorder()
	h.PutCredential(w, withUser(req, "user-1"))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotUser != "user-1" || gotKey != "lin_new" {
		t.Errorf("Connect(%q, %q), want (user-1, lin_new)", gotUser, gotKey)
	}
}

func TestLinearHandler_PutCredential_Rejected_Returns401(t *testing.T) {
	creds := &mockCredentialService{
		connectFn: func(ctx context.Context, userID, apiKey string) (*model.TrackerUser, error) {
			return nil, model.NewInvalidCredentialError("")
		},
	}
	h := NewLinearHandler(&mockTracker{}, creds, discardLogger())

	req := httptest.NewRequest(http.MethodPut, "/api/linear/credential", strings.NewReader(`{"apiKey":"lin_bad"}`))
	w := httptest.NewRecorder()
	h.PutCredential(w, withUser(req, "user-1"))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestLinearHandler_DeleteCredential(t *testing.T) {
	deleted := ""
	creds := &mockCredentialService{
		disconnectFn: func(ctx context.Context, userID string) error {
			deleted = userID
			return nil
		},
	}
	h := NewLinearHandler(&mockTracker{}, creds, discardLogger())

	w := httptest.NewRecorder()
	h.DeleteCredential(w, withUser(httptest.NewRequest(http.MethodDelete, "/api/linear/credential", nil), "user-1"))

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want %d", w.Code, http.StatusNoContent)
	}
	if deleted != "user-1" {
		t.Errorf("deleted = %q, want %q", deleted, "user-1")
	}
}

func TestLinearHandler_DeleteCredential_StorageError_Returns500(t *testing.T) {
	creds := &mockCredentialService{
		disconnectFn: func(ctx context.Context, userID string) error {
			return &model.StorageError{Op: "delete credential", Err: errors.New("conn reset")}
		},
	}
	h := NewLinearHandler(&mockTracker{}, creds, discardLogger())

	w := httptest.NewRecorder()
	h.DeleteCredential(w, withUser(httptest.NewRequest(http.MethodDelete, "/api/linear/credential", nil), "user-1"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if body := decodeError(t, w); strings.Contains(body.Error, "conn reset") {
		t.Errorf("storage detail should not be exposed: %q", body.Error)
	}
}

func TestLinearHandler_CredentialEndpoints_NoSession_Return401(t *testing.T) {
	h := NewLinearHandler(&mockTracker{}, &mockCredentialService{}, discardLogger())

	for name, fn := range map[string]http.HandlerFunc{
		"get":    h.GetCredential,
		"put":    h.PutCredential,
		"delete": h.DeleteCredential,
	} {
		t.Run(name, func(t *testing.T) {
			w := httptest.NewRecorder()
			fn(w, httptest.NewRequest(http.MethodGet, "/api/linear/credential", strings.NewReader(`{"apiKey":"k"}`)))
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}
