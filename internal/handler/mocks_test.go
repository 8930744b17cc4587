package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/shipnote/internal/credential"
	"github.com/hitoshi/shipnote/internal/middleware"
	"github.com/hitoshi/shipnote/internal/model"
	"github.com/hitoshi/shipnote/internal/update"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, model.NewUnauthorizedError()
}

type mockTracker struct {
	verifyFn func(ctx context.Context, apiKey string) (*model.TrackerUser, error)
	listFn   func(ctx context.Context, apiKey string) ([]model.Ticket, error)
	calls    int
}

func (m *mockTracker) Verify(ctx context.Context, apiKey string) (*model.TrackerUser, error) {
	m.calls++
	if m.verifyFn != nil {
		return m.verifyFn(ctx, apiKey)
	}
	return &model.TrackerUser{Name: "Linear User", Email: "linear@example.com"}, nil
}

func (m *mockTracker) ListCompletedIssues(ctx context.Context, apiKey string) ([]model.Ticket, error) {
	m.calls++
	if m.listFn != nil {
		return m.listFn(ctx, apiKey)
	}
	return []model.Ticket{}, nil
}

type mockCredentialService struct {
	statusFn     func(ctx context.Context, userID string) (*credential.Status, error)
	connectFn    func(ctx context.Context, userID, apiKey string) (*model.TrackerUser, error)
	disconnectFn func(ctx context.Context, userID string) error
}

func (m *mockCredentialService) Status(ctx context.Context, userID string) (*credential.Status, error) {
	if m.statusFn != nil {
		return m.statusFn(ctx, userID)
	}
	return &credential.Status{}, nil
}

func (m *mockCredentialService) Connect(ctx context.Context, userID, apiKey string) (*model.TrackerUser, error) {
	if m.connectFn != nil {
		return m.connectFn(ctx, userID, apiKey)
	}
	return &model.TrackerUser{}, nil
}

func (m *mockCredentialService) Disconnect(ctx context.Context, userID string) error {
	if m.disconnectFn != nil {
		return m.disconnectFn(ctx, userID)
	}
	return nil
}

type mockUpdateService struct {
	generateFn func(ctx context.Context, userID string, req update.Request) (string, error)
}

func (m *mockUpdateService) Generate(ctx context.Context, userID string, req update.Request) (string, error) {
	if m.generateFn != nil {
		return m.generateFn(ctx, userID, req)
	}
	return "", nil
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

var _ AuthServiceInterface = (*mockAuthService)(nil)
var _ TrackerServiceInterface = (*mockTracker)(nil)
var _ CredentialServiceInterface = (*mockCredentialService)(nil)
var _ UpdateServiceInterface = (*mockUpdateService)(nil)
var _ UserServiceInterface = (*mockUserService)(nil)
var _ CredentialServiceInterface = (*credential.Service)(nil)
var _ UpdateServiceInterface = (*update.Service)(nil)

// --- ヘルパー ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// withUser はセッションミドルウェア通過後と同じコンテキストを持つリクエストを返す。
func withUser(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v (raw %q)", err, w.Body.String())
	}
	return body
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
