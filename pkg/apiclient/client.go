// Package apiclient talks to the user/friendship REST backend.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/ha1tch/friendgraph/pkg/metrics"
	"github.com/ha1tch/friendgraph/pkg/models"
)

// Backend is the set of logical operations the dashboard needs from the
// REST backend
type Backend interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CreateUser(ctx context.Context, in models.UserCreate) (*models.User, error)
	UpdateUser(ctx context.Context, id string, in models.UserUpdate) (*models.User, error)
	DeleteUser(ctx context.Context, id string) error
	LinkUsers(ctx context.Context, id, friendID string) error
	UnlinkUsers(ctx context.Context, id, friendID string) error
	GetGraph(ctx context.Context) (*models.GraphData, error)
}

// Options configures a Client
type Options struct {
	BaseURL     string
	Timeout     time.Duration
	MaxFailures uint32        // consecutive failures that open the breaker
	OpenTimeout time.Duration // how long the breaker stays open
	Interval    time.Duration // closed-state counter reset period
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// Client implements Backend over HTTP
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  zerolog.Logger
}

// New creates a backend client
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	maxFailures := opts.MaxFailures
	if maxFailures == 0 {
		maxFailures = 5
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		logger:  opts.Logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "backend",
		MaxRequests: 1,
		Interval:    opts.Interval,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			c.logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
		// Domain rejections (4xx) mean the backend is healthy
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, context.Canceled) {
				return true
			}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return apiErr.Status < 500
			}
			return false
		},
	})

	return c
}

// ListUsers fetches every user in backend order
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, "list_users", http.MethodGet, "/api/users/", nil, &users, http.StatusOK); err != nil {
		return nil, err
	}
	if users == nil {
		users = []models.User{}
	}
	return users, nil
}

// CreateUser creates a user and returns the backend's record
func (c *Client) CreateUser(ctx context.Context, in models.UserCreate) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, "create_user", http.MethodPost, "/api/users/", in, &user, http.StatusCreated, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial update
func (c *Client) UpdateUser(ctx context.Context, id string, in models.UserUpdate) (*models.User, error) {
	var user models.User
	path := "/api/users/" + url.PathEscape(id)
	if err := c.do(ctx, "update_user", http.MethodPut, path, in, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// DeleteUser deletes a user. The backend refuses while friendships remain.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	path := "/api/users/" + url.PathEscape(id)
	return c.do(ctx, "delete_user", http.MethodDelete, path, nil, nil, http.StatusNoContent, http.StatusOK)
}

// LinkUsers creates a friendship
func (c *Client) LinkUsers(ctx context.Context, id, friendID string) error {
	path := "/api/users/" + url.PathEscape(id) + "/link"
	return c.do(ctx, "link_users", http.MethodPost, path, models.LinkRequest{FriendID: friendID}, nil, http.StatusOK, http.StatusCreated)
}

// UnlinkUsers removes a friendship
func (c *Client) UnlinkUsers(ctx context.Context, id, friendID string) error {
	path := "/api/users/" + url.PathEscape(id) + "/unlink"
	return c.do(ctx, "unlink_users", http.MethodDelete, path, models.LinkRequest{FriendID: friendID}, nil, http.StatusOK, http.StatusNoContent)
}

// GetGraph fetches the backend's node and edge summary
func (c *Client) GetGraph(ctx context.Context) (*models.GraphData, error) {
	var data models.GraphData
	if err := c.do(ctx, "get_graph", http.MethodGet, "/api/graph", nil, &data, http.StatusOK); err != nil {
		return nil, err
	}
	return &data, nil
}

// do performs one request through the circuit breaker. Non-2xx responses
// become *APIError; transport and decode failures wrap ErrUnavailable.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}, expect ...int) error {
	start := time.Now()
	defer func() {
		metrics.BackendRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, path, body, out, expect)
	})
	if err == nil {
		return nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		metrics.BackendRequestsTotal.WithLabelValues(op, "open").Inc()
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, body, out interface{}, expect []int) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendRequestsTotal.WithLabelValues(op, "error").Inc()
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, ctx.Err())
		}
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	metrics.BackendRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w: failed to read response: %v", op, ErrUnavailable, err)
	}

	if !statusIn(resp.StatusCode, expect) {
		apiErr := decodeError(op, resp.StatusCode, respBody)
		c.logger.Debug().
			Str("op", op).
			Int("status", resp.StatusCode).
			Str("code", apiErr.Code).
			Str("detail", apiErr.Detail).
			Msg("Backend rejected request")
		return apiErr
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: %w: invalid response body: %v", op, ErrUnavailable, err)
	}
	return nil
}

func statusIn(status int, expect []int) bool {
	for _, s := range expect {
		if status == s {
			return true
		}
	}
	return false
}
