// Package update はチケット取得からアップデート文生成までのパイプラインを提供する。
package update

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/hitoshi/shipnote/internal/metrics"
	"github.com/hitoshi/shipnote/internal/model"
	"github.com/hitoshi/shipnote/internal/prompt"
)

// IssueFetcher は複数チケットを入力順で取得する。
type IssueFetcher interface {
	FetchIssues(ctx context.Context, apiKey string, ids []string) ([]model.IssueDetail, error)
}

// Generator はプロンプトからアップデート文を生成する。
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, systemInstruction, userPrompt string) (string, error)
}

// Request はアップデート生成リクエスト。
// フィールドの宣言順が検証エラーの優先順になる。
type Request struct {
	SelectedTickets []string `json:"selectedTickets" validate:"required,min=1,dive,notblank"`
	Tone            string   `json:"tone" validate:"required,oneof=executive casual changelog marketing"`
	LinearAPIKey    string   `json:"linearApiKey" validate:"required"`
}

// Service はアップデート生成パイプラインを実行する。
// 認証、入力検証、チケット取得、プロンプト組立、生成の順に進み、
// いずれかで失敗した時点で打ち切る。再試行は行わない。
type Service struct {
	fetcher   IssueFetcher
	generator Generator
	validate  *validator.Validate
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(fetcher IssueFetcher, generator Generator, logger *slog.Logger, m metrics.MetricsCollector) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	v := validator.New()
	// 空白のみのチケットIDも空文字と同様に拒否する
	_ = v.RegisterValidation("notblank", validators.NotBlank)

	return &Service{
		fetcher:   fetcher,
		generator: generator,
		validate:  v,
		logger:    logger,
		metrics:   m,
	}
}

// Generate はリクエストのチケットからアップデート文を生成する。
// 入力検証が通るまでは外部への通信を一切行わない。
func (s *Service) Generate(ctx context.Context, userID string, req Request) (string, error) {
	started := time.Now()

	if userID == "" {
		return "", model.NewUnauthorizedError()
	}

	req.LinearAPIKey = strings.TrimSpace(req.LinearAPIKey)
	if err := s.validateRequest(req); err != nil {
		s.logger.Info("update request rejected",
			slog.String("user_id", userID),
			slog.String("reason", err.Error()),
		)
		return "", err
	}

	if !s.generator.Configured() {
		s.logger.Error("generation provider is not configured")
		return "", model.NewServiceMisconfiguredError()
	}

	tickets, err := s.fetcher.FetchIssues(ctx, req.LinearAPIKey, req.SelectedTickets)
	if err != nil {
		s.logger.Warn("failed to fetch selected tickets",
			slog.String("user_id", userID),
			slog.Int("ticket_count", len(req.SelectedTickets)),
			slog.String("error", err.Error()),
		)
		return "", asUpstreamError(err)
	}

	tone := model.Tone(req.Tone)
	userPrompt, err := prompt.Build(tone, tickets)
	if err != nil {
		return "", err
	}

	text, err := s.generator.Generate(ctx, prompt.SystemRole, userPrompt)
	if err != nil {
		return "", err
	}

	s.metrics.RecordUpdateGenerated(req.Tone)
	s.logger.Info("update generated",
		slog.String("user_id", userID),
		slog.String("tone", req.Tone),
		slog.Int("ticket_count", len(tickets)),
		slog.Int64("duration_ms", time.Since(started).Milliseconds()),
	)
	return text, nil
}

// validateRequest は最初に失敗したフィールドに対応するBAD_REQUESTを返す。
func (s *Service) validateRequest(req Request) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.NewBadRequestError("Invalid request")
	}

	fe := verrs[0]
	switch {
	case fe.StructField() == "SelectedTickets":
		return model.NewBadRequestError("No tickets selected")
	case strings.HasPrefix(fe.StructField(), "SelectedTickets["):
		return model.NewBadRequestError("Invalid ticket selected")
	case fe.StructField() == "Tone":
		return model.NewBadRequestError("Invalid tone selected")
	case fe.StructField() == "LinearAPIKey":
		return model.NewBadRequestError("Linear API key is required")
	default:
		return model.NewBadRequestError("Invalid request")
	}
}

// asUpstreamError はチケット取得の失敗をUPSTREAM_ERRORに揃える。
func asUpstreamError(err error) error {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUpstream {
		return apiErr
	}
	return model.NewUpstreamError("")
}
