// Package generation はチャット補完APIによるアップデート文生成を提供する。
package generation

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/hitoshi/shipnote/internal/metrics"
	"github.com/hitoshi/shipnote/internal/model"
)

// 生成パラメータ
const (
	DefaultModel = "gpt-4-turbo-preview"
	Temperature  = 0.7
	MaxTokens    = 1000
)

// Options は生成クライアントの設定。
type Options struct {
	APIKey string
	Model  string
	// BaseURL が空の場合はOpenAIの既定エンドポイントを使う。
	BaseURL    string
	HTTPClient *http.Client
}

// Client はチャット補完APIのクライアント。
// APIキーが未設定の場合も生成でき、Generate呼び出し時にSERVICE_MISCONFIGUREDを返す。
type Client struct {
	api     *openai.Client
	model   string
	logger  *slog.Logger
	metrics metrics.MetricsCollector
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(opts Options, logger *slog.Logger, m metrics.MetricsCollector) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	if opts.Model == "" {
		opts.Model = DefaultModel
	}

	c := &Client{model: opts.Model, logger: logger, metrics: m}
	if strings.TrimSpace(opts.APIKey) == "" {
		return c
	}

	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		config.HTTPClient = opts.HTTPClient
	}
	c.api = openai.NewClientWithConfig(config)
	return c
}

// Configured はAPIキーが設定されているかを返す。
func (c *Client) Configured() bool {
	return c.api != nil
}

// Generate はシステム指示とユーザープロンプトから1回だけ補完を要求し、最初の候補の本文を返す。
// 再試行は行わない。
func (c *Client) Generate(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	if !c.Configured() {
		return "", model.NewServiceMisconfiguredError()
	}

	started := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
	})
	if err != nil {
		c.fail(started, err)
		return "", model.NewGenerationError(providerMessage(err))
	}

	if len(resp.Choices) == 0 {
		c.fail(started, errors.New("no choices in completion"))
		return "", model.NewGenerationError("")
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		c.fail(started, errors.New("empty completion content"))
		return "", model.NewGenerationError("")
	}

	elapsed := time.Since(started)
	c.metrics.RecordGeneration(metrics.OutcomeSuccess, elapsed)
	c.logger.Info("completion generated",
		slog.String("model", c.model),
		slog.Int("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
	return content, nil
}

func (c *Client) fail(started time.Time, err error) {
	elapsed := time.Since(started)
	c.metrics.RecordGeneration(metrics.OutcomeError, elapsed)
	c.logger.Error("completion failed",
		slog.String("model", c.model),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
		slog.String("error", err.Error()),
	)
}

// providerMessage はプロバイダーが返したエラーメッセージを取り出す。
// 取り出せない場合は空文字を返し、呼び出し元が汎用メッセージを使う。
func providerMessage(err error) string {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}
