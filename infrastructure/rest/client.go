// Package rest talks to the remote chat endpoint over HTTP+JSON.
package rest

import (
	"bytes"
	"chat-sync/domain"
	"chat-sync/errors"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	messagesPath        = "/messages"
	headerCorrelationID = "X-Correlation-ID"
	maxResponseBytes    = 4 << 20
)

// TokenSource provides the bearer token of every request.
type TokenSource interface {
	Token() (string, error)
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
	log     *slog.Logger
}

type fetchResponse struct {
	Messages []domain.WireMessage `json:"messages"`
}

// NewClient builds the endpoint client. Per-request deadlines come from
// the caller context; httpClient may carry a global timeout on top.
func NewClient(baseURL string, tokens TokenSource, httpClient *http.Client, log *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid endpoint %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid endpoint %q: scheme must be http or https", baseURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: u, http: httpClient, tokens: tokens, log: log}, nil
}

// PostMessage sends one message.
// A 2xx answer with an empty or JSON object body is a success.
func (c *Client) PostMessage(ctx context.Context, msg domain.OutboundMessage) error {
	body, err := json.Marshal(domain.ToWire(msg.ChatMessage))
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrApplicationFailure, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL.JoinPath(messagesPath).String(), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerCorrelationID, msg.CorrelationID.String())

	status, payload, err := c.do(req)
	if err != nil {
		return err
	}
	if !isSuccess(status) {
		return fmt.Errorf("%w: status %d: %s", errors.ErrApplicationFailure, status, excerpt(payload))
	}
	if !isObjectOrEmpty(payload) {
		return fmt.Errorf("%w: malformed response: %s", errors.ErrApplicationFailure, excerpt(payload))
	}
	c.log.Debug("Message posted", "correlation_id", msg.CorrelationID, "room", msg.ChatRoom, "status", status)
	return nil
}

// FetchMessages pulls the messages newer than since.
// A zero since fetches the whole history the endpoint keeps.
func (c *Client) FetchMessages(ctx context.Context, since time.Time) ([]domain.ChatMessage, error) {
	u := c.baseURL.JoinPath(messagesPath)
	if !since.IsZero() {
		u.RawQuery = url.Values{"since": {since.UTC().Format(time.RFC3339Nano)}}.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	status, payload, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if !isSuccess(status) {
		return nil, fmt.Errorf("%w: status %d: %s", errors.ErrApplicationFailure, status, excerpt(payload))
	}

	var resp fetchResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, fmt.Errorf("%w: malformed response: %v", errors.ErrApplicationFailure, err)
	}
	return lo.Map(resp.Messages, func(w domain.WireMessage, _ int) domain.ChatMessage {
		return domain.FromWire(w)
	}), nil
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrApplicationFailure, err)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: unable to sign token: %v", errors.ErrApplicationFailure, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// do maps connection problems and timeouts to ErrTransportFailure.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %w", errors.ErrTransportFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading response: %w", errors.ErrTransportFailure, err)
	}
	return resp.StatusCode, payload, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func isObjectOrEmpty(payload []byte) bool {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return true
	}
	return trimmed[0] == '{' && json.Valid(trimmed)
}

func excerpt(payload []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(payload))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
