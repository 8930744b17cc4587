// Package tracker はLinear GraphQL APIのクライアントを提供する。
// APIキーは呼び出しごとに渡され、クライアント自体はキーを保持しない。
package tracker

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/hitoshi/shipnote/internal/metrics"
	"github.com/hitoshi/shipnote/internal/model"
)

// 既定値
const (
	DefaultEndpoint         = "https://api.linear.app/graphql"
	DefaultIssueLimit       = 50
	DefaultTimeout          = 30 * time.Second
	DefaultFetchConcurrency = 8
)

// メトリクスの操作ラベル
const (
	opVerify        = "verify"
	opListCompleted = "list_completed"
	opGetIssue      = "get_issue"
)

const (
	verifyQuery = `query Viewer {
  viewer {
    id
    name
    email
  }
}`

	completedIssuesQuery = `query CompletedIssues($first: Int!) {
  issues(filter: { state: { type: { eq: "completed" } } }, first: $first) {
    nodes {
      id
      title
      description
      url
      completedAt
      state {
        name
      }
    }
  }
}`

	issueQuery = `query Issue($id: String!) {
  issue(id: $id) {
    id
    title
    description
    url
  }
}`
)

// Options はClientの動作設定。ゼロ値の項目は既定値で補われる。
type Options struct {
	Endpoint         string
	IssueLimit       int
	RatePerSec       float64
	RateBurst        int
	Timeout          time.Duration
	FetchConcurrency int
}

// Client はLinear GraphQL APIのクライアント。
// 複数リクエストから並行に利用できる。
type Client struct {
	httpClient  *http.Client
	logger      *slog.Logger
	metrics     metrics.MetricsCollector
	limiter     *rate.Limiter
	endpoint    string
	issueLimit  int
	timeout     time.Duration
	concurrency int
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, m metrics.MetricsCollector, opts Options) *Client {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultEndpoint
	}
	if opts.IssueLimit <= 0 {
		opts.IssueLimit = DefaultIssueLimit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = DefaultFetchConcurrency
	}

	limit := rate.Inf
	if opts.RatePerSec > 0 {
		limit = rate.Limit(opts.RatePerSec)
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 1
	}

	if m == nil {
		m = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient:  httpClient,
		logger:      logger,
		metrics:     m,
		limiter:     rate.NewLimiter(limit, opts.RateBurst),
		endpoint:    opts.Endpoint,
		issueLimit:  opts.IssueLimit,
		timeout:     opts.Timeout,
		concurrency: opts.FetchConcurrency,
	}
}

// Verify はAPIキーの持ち主の情報を取得してキーの有効性を確認する。
// errors配列またはviewerの欠落はINVALID_CREDENTIAL、到達失敗はUPSTREAM_ERRORとなる。
func (c *Client) Verify(ctx context.Context, apiKey string) (*model.TrackerUser, error) {
	started := time.Now()

	var data struct {
		Viewer *struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"viewer"`
	}
	err := c.execute(ctx, apiKey, graphQLRequest{OperationName: "Viewer", Query: verifyQuery}, &data)

	var gqlErr *GraphQLError
	switch {
	case errors.As(err, &gqlErr):
		c.record(opVerify, metrics.OutcomeInvalidCredential, started, err)
		return nil, model.NewInvalidCredentialError(gqlErr.Message)
	case err != nil:
		c.record(opVerify, metrics.OutcomeError, started, err)
		return nil, model.NewUpstreamError("Failed to reach Linear")
	case data.Viewer == nil:
		c.record(opVerify, metrics.OutcomeInvalidCredential, started, errors.New("viewer missing in response"))
		return nil, model.NewInvalidCredentialError("Failed to verify API key")
	}

	c.record(opVerify, metrics.OutcomeSuccess, started, nil)
	return &model.TrackerUser{Name: data.Viewer.Name, Email: data.Viewer.Email}, nil
}

// ListCompletedIssues は完了状態のチケットを最大issueLimit件取得する。
func (c *Client) ListCompletedIssues(ctx context.Context, apiKey string) ([]model.Ticket, error) {
	started := time.Now()

	var data struct {
		Issues *struct {
			Nodes []struct {
				ID          string     `json:"id"`
				Title       string     `json:"title"`
				Description *string    `json:"description"`
				URL         string     `json:"url"`
				CompletedAt *time.Time `json:"completedAt"`
				State       *struct {
					Name string `json:"name"`
				} `json:"state"`
			} `json:"nodes"`
		} `json:"issues"`
	}
	req := graphQLRequest{
		OperationName: "CompletedIssues",
		Query:         completedIssuesQuery,
		Variables:     map[string]any{"first": c.issueLimit},
	}
	err := c.execute(ctx, apiKey, req, &data)
	if err == nil && data.Issues == nil {
		err = errors.New("issues missing in response")
	}
	if err != nil {
		c.record(opListCompleted, metrics.OutcomeError, started, err)
		return nil, model.NewUpstreamError("")
	}

	tickets := make([]model.Ticket, 0, len(data.Issues.Nodes))
	for _, n := range data.Issues.Nodes {
		t := model.Ticket{
			ID:          n.ID,
			Title:       n.Title,
			State:       "Unknown",
			URL:         n.URL,
			CompletedAt: n.CompletedAt,
		}
		if n.Description != nil {
			t.Description = *n.Description
		}
		if n.State != nil && n.State.Name != "" {
			t.State = n.State.Name
		}
		tickets = append(tickets, t)
	}

	c.record(opListCompleted, metrics.OutcomeSuccess, started, nil)
	return tickets, nil
}

// GetIssue は1件のチケットを取得する。
// 存在しないIDも含め、取得できなければUPSTREAM_ERRORとなる。
func (c *Client) GetIssue(ctx context.Context, apiKey, id string) (*model.IssueDetail, error) {
	started := time.Now()

	var data struct {
		Issue *struct {
			Title       string  `json:"title"`
			Description *string `json:"description"`
			URL         string  `json:"url"`
		} `json:"issue"`
	}
	req := graphQLRequest{
		OperationName: "Issue",
		Query:         issueQuery,
		Variables:     map[string]any{"id": id},
	}
	err := c.execute(ctx, apiKey, req, &data)
	if err == nil && data.Issue == nil {
		err = errors.New("issue missing in response")
	}
	if err != nil {
		c.record(opGetIssue, metrics.OutcomeError, started, err)
		return nil, model.NewUpstreamError("")
	}

	detail := &model.IssueDetail{Title: data.Issue.Title, URL: data.Issue.URL}
	if data.Issue.Description != nil {
		detail.Description = *data.Issue.Description
	}

	c.record(opGetIssue, metrics.OutcomeSuccess, started, nil)
	return detail, nil
}

// FetchIssues は指定IDのチケットを並行に取得し、入力順に並べて返す。
// いずれか1件でも失敗した場合は残りの取得を打ち切り、最初のエラーを返す。
// 重複したIDは重複したまま取得する。
func (c *Client) FetchIssues(ctx context.Context, apiKey string, ids []string) ([]model.IssueDetail, error) {
	results := make([]model.IssueDetail, len(ids))
	if len(ids) == 0 {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			detail, err := c.GetIssue(gctx, apiKey, id)
			if err != nil {
				return err
			}
			results[i] = *detail
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
