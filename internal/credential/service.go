// Package credential はユーザーごとのLinear APIキーの接続・確認・解除を提供する。
package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/shipnote/internal/model"
	"github.com/hitoshi/shipnote/internal/repository"
)

// Verifier はAPIキーをトラッカーに問い合わせて検証する。
type Verifier interface {
	Verify(ctx context.Context, apiKey string) (*model.TrackerUser, error)
}

// Status は保存済みキーの接続状態。
type Status struct {
	Connected bool
	APIKey    string
	User      *model.TrackerUser
}

// Service はLinear APIキーの管理を行う。
type Service struct {
	repo     repository.CredentialRepository
	verifier Verifier
	logger   *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.CredentialRepository, verifier Verifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, verifier: verifier, logger: logger}
}

// Status は保存済みキーを取得し、トラッカーで再検証した結果を返す。
// キー未登録の場合とトラッカーがキーを拒否した場合はConnected=falseとなる。
// 拒否されたキーは削除せず、ユーザーによる再接続を待つ。
func (s *Service) Status(ctx context.Context, userID string) (*Status, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}

	cred, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if cred == nil {
		return &Status{Connected: false}, nil
	}

	user, err := s.verifier.Verify(ctx, cred.APIKey)
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidCredential {
		s.logger.Info("stored linear key was rejected",
			slog.String("user_id", userID),
			slog.String("reason", apiErr.Message),
		)
		return &Status{Connected: false, APIKey: cred.APIKey}, nil
	}
	if err != nil {
		return nil, err
	}

	return &Status{Connected: true, APIKey: cred.APIKey, User: user}, nil
}

// Connect はキーを検証し、受理された場合のみ保存する。
// 既存のキーは置き換える。
func (s *Service) Connect(ctx context.Context, userID, apiKey string) (*model.TrackerUser, error) {
	if userID == "" {
		return nil, model.NewUnauthorizedError()
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, model.NewBadRequestError("API key is required")
	}

	user, err := s.verifier.Verify(ctx, apiKey)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.Upsert(ctx, userID, apiKey); err != nil {
		return nil, fmt.Errorf("save credential: %w", err)
	}

	s.logger.Info("linear key connected", slog.String("user_id", userID))
	return user, nil
}

// Disconnect は保存済みキーを削除する。未登録でも成功する。
func (s *Service) Disconnect(ctx context.Context, userID string) error {
	if userID == "" {
		return model.NewUnauthorizedError()
	}
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	s.logger.Info("linear key disconnected", slog.String("user_id", userID))
	return nil
}
