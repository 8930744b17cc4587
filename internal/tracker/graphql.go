package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxResponseBytes はLinear APIレスポンスとして読み込む上限サイズ。
const maxResponseBytes = 4 << 20

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// GraphQLError はレスポンスにerrors配列が含まれていた場合のエラー。
// HTTPステータスに関わらず、ボディにerrorsがあればこのエラーになる。
type GraphQLError struct {
	StatusCode int
	Message    string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("linear graphql error (status %d): %s", e.StatusCode, e.Message)
}

// StatusError はerrors配列を伴わない非2xxステータスを表す。
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("linear returned status %d", e.StatusCode)
}

// execute は1件のGraphQL操作を送信し、dataをoutにデコードする。
// 送信前に共有のrate.Limiterで外向きリクエストの間隔を調整する。
func (c *Client) execute(ctx context.Context, apiKey string, op graphQLRequest, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("wait for rate limiter: %w", err)
	}

	payload, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// LinearのパーソナルAPIキーはBearer接頭辞なしで送る
	req.Header.Set("Authorization", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var gql graphQLResponse
	if err := json.Unmarshal(body, &gql); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{StatusCode: resp.StatusCode}
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if len(gql.Errors) > 0 {
		return &GraphQLError{StatusCode: resp.StatusCode, Message: gql.Errors[0].Message}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}

	if out != nil && len(gql.Data) > 0 {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// record は操作の結果をメトリクスとログに残す。APIキーは出力しない。
func (c *Client) record(operation, outcome string, started time.Time, err error) {
	elapsed := time.Since(started)
	c.metrics.RecordTrackerRequest(operation, outcome, elapsed)

	if err != nil {
		c.logger.Warn("linear request failed",
			slog.String("operation", operation),
			slog.String("outcome", outcome),
			slog.Int64("duration_ms", elapsed.Milliseconds()),
			slog.String("error", err.Error()),
		)
		return
	}
	c.logger.Debug("linear request completed",
		slog.String("operation", operation),
		slog.Int64("duration_ms", elapsed.Milliseconds()),
	)
}
