// Package client talks to the uniforme REST API and its event stream.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/inflight"
	"github.com/erazemk/uniforme/internal/model"
	"github.com/erazemk/uniforme/internal/receipt"
)

// ErrProfileIncomplete is returned by FetchLimits together with the snapshot
// when the server reports the student's profile as incomplete.
var ErrProfileIncomplete = errors.New("student profile incomplete")

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d: %s", e.Status, e.Message)
}

// Client is an API client. Mutations of one order id are never sent twice
// concurrently.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client

	guard inflight.Guard
}

// New creates a client for the server at baseURL.
func New(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// OrderLine is one requested line of a new order.
type OrderLine struct {
	ItemID   int64 `json:"item_id"`
	Quantity int   `json:"quantity"`
}

// Receipt is the claim receipt of an order.
type Receipt struct {
	Payload            *receipt.Payload `json:"payload"`
	QR                 string           `json:"qr"`
	RemainingValidDays int              `json:"remaining_valid_days"`
	ExpiresOn          string           `json:"expires_on"`
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// do sends a request and decodes the envelope's data into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		return &APIError{Status: resp.StatusCode, Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decoding data: %w", method, path, err)
		}
	}
	return nil
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"username": username, "password": password}, &out)
	if err != nil {
		return "", err
	}
	c.Token = out.Token
	return out.Token, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil); err != nil {
		return err
	}
	c.Token = ""
	return nil
}

// Profile is the signed-in account and, for students, their profile.
type Profile struct {
	User    model.User     `json:"user"`
	Student *model.Student `json:"student,omitempty"`
}

// Me returns the signed-in account.
func (c *Client) Me(ctx context.Context) (*Profile, error) {
	var p Profile
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListItems returns the catalog, optionally for one education level.
func (c *Client) ListItems(ctx context.Context, educationLevel string) ([]model.Item, error) {
	path := "/api/items"
	if educationLevel != "" {
		path += "?userEducationLevel=" + url.QueryEscape(educationLevel)
	}
	var items []model.Item
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// FetchLimits returns the caller's quota snapshot. A snapshot flagged
// profileIncomplete, sent with 200 or 400, is returned with
// ErrProfileIncomplete. Any other 400 is an *APIError.
func (c *Client) FetchLimits(ctx context.Context) (*model.LimitSnapshot, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/auth/max-quantities", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching limits: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading limits: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		var snap model.LimitSnapshot
		if err := json.Unmarshal(body, &snap); err != nil {
			return nil, fmt.Errorf("decoding limits: %w", err)
		}
		if snap.ProfileIncomplete {
			return &snap, ErrProfileIncomplete
		}
		return &snap, nil
	case http.StatusBadRequest:
		var snap model.LimitSnapshot
		if json.Unmarshal(body, &snap) == nil && snap.ProfileIncomplete {
			return &snap, ErrProfileIncomplete
		}
	}

	var env envelope
	json.Unmarshal(body, &env)
	return nil, &APIError{Status: resp.StatusCode, Message: env.Message}
}

// ListOrders returns the caller's orders (all orders for staff).
func (c *Client) ListOrders(ctx context.Context) ([]model.Order, error) {
	var orders []model.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrder returns one order by id.
func (c *Client) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	var order model.Order
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// CreateOrder places an order.
func (c *Client) CreateOrder(ctx context.Context, lines []OrderLine) (*model.Order, error) {
	var order model.Order
	err := c.guard.Do("checkout", func() error {
		return c.do(ctx, http.MethodPost, "/api/orders", map[string]any{"items": lines}, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels an order by its id (never its order number).
func (c *Client) CancelOrder(ctx context.Context, id string) (*model.Order, error) {
	return c.mutate(ctx, id, http.MethodPost, "/cancel", nil)
}

// ClaimOrder marks an order as handed over.
func (c *Client) ClaimOrder(ctx context.Context, id string) (*model.Order, error) {
	return c.mutate(ctx, id, http.MethodPost, "/claim", nil)
}

// UpdateOrderStatus moves an order to status.
func (c *Client) UpdateOrderStatus(ctx context.Context, id, status string) (*model.Order, error) {
	return c.mutate(ctx, id, http.MethodPut, "/status", map[string]string{"status": status})
}

// mutate runs one order mutation; a second call for the same id while the
// first is running fails with inflight.ErrInFlight.
func (c *Client) mutate(ctx context.Context, id, method, suffix string, body any) (*model.Order, error) {
	if id == "" {
		return nil, fmt.Errorf("order id required")
	}
	var order model.Order
	err := c.guard.Do(id, func() error {
		return c.do(ctx, method, "/api/orders/"+url.PathEscape(id)+suffix, body, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetReceipt returns the claim receipt of an order.
func (c *Client) GetReceipt(ctx context.Context, id string) (*Receipt, error) {
	var rec Receipt
	if err := c.do(ctx, http.MethodGet, "/api/orders/"+url.PathEscape(id)+"/receipt", nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Subscribe reads the server's event stream and calls fn with every event,
// normalized, until ctx is done or the stream ends.
func (c *Client) Subscribe(ctx context.Context, fn func(events.Event)) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives the client timeout.
	httpClient := *c.HTTP
	httpClient.Timeout = 0
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("opening event stream: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode}
	}

	var name string
	var data strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				dispatch(name, data.String(), fn)
			}
			name = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return ctx.Err()
}

func dispatch(name, data string, fn func(events.Event)) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return
	}
	if name == "" {
		name, _ = raw["name"].(string)
	}
	ev, err := events.Normalize(name, raw)
	if err != nil {
		return
	}
	fn(ev)
}
