// Package agent talks to the protocol agent sidecar that owns the
// proprietary terminal wire protocol, exposing it as terminal.Dialer.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"zkbridge/internal/errs"
	"zkbridge/internal/terminal"
)

// Client calls the protocol agent over HTTP.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates an agent client.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP: &http.Client{
			Timeout: 30 * time.Second, // device reads can take a while
		},
	}
}

// Dial asks the agent to open a connection to the terminal and returns a
// session bound to it. Connect failures map to errs.ErrConnection.
func (c *Client) Dial(ctx context.Context, addr string, port int, timeout time.Duration) (terminal.Session, error) {
	payload := map[string]any{
		"address":    addr,
		"port":       port,
		"timeout_ms": timeout.Milliseconds(),
	}
	var out struct {
		SessionID string `json:"session_id"`
	}
	// The agent enforces the device-side timeout; the grace bounds the HTTP
	// round trip itself so a stalled agent fails fast too.
	connectCtx, cancel := context.WithTimeout(ctx, timeout+2*time.Second)
	defer cancel()
	if err := c.post(connectCtx, "/v1/connect", payload, &out); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errs.ErrConnection, addr, err)
	}
	if out.SessionID == "" {
		return nil, fmt.Errorf("%w: %s: agent returned no session", errs.ErrConnection, addr)
	}
	return &session{client: c, id: out.SessionID, addr: addr, ctx: ctx}, nil
}

// session is one live agent-held connection.
type session struct {
	client *Client
	id     string
	addr   string
	ctx    context.Context
}

// Disconnect must reach the agent even when the owning context was canceled
// mid-operation, otherwise the device connection leaks on the agent side.
func (s *session) Disconnect() error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), 10*time.Second)
	defer cancel()
	return s.client.post(ctx, "/v1/sessions/"+s.id+"/disconnect", nil, nil)
}

func (s *session) GetUsers() ([]terminal.User, error) {
	var out struct {
		Users []terminal.User `json:"users"`
	}
	if err := s.client.get(s.ctx, "/v1/sessions/"+s.id+"/users", &out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (s *session) GetAttendance() ([]terminal.Punch, error) {
	var out struct {
		Punches []terminal.Punch `json:"punches"`
	}
	if err := s.client.get(s.ctx, "/v1/sessions/"+s.id+"/attendance", &out); err != nil {
		return nil, err
	}
	return out.Punches, nil
}

func (s *session) SetUser(id int, name string, privilege int, password string, card *string) error {
	payload := map[string]any{
		"user_id":   id,
		"name":      name,
		"privilege": privilege,
		"password":  password,
		"card":      card,
	}
	return s.client.post(s.ctx, "/v1/sessions/"+s.id+"/users", payload, nil)
}

func (s *session) DeleteUser(id int) error {
	payload := map[string]any{"user_id": id}
	return s.client.post(s.ctx, "/v1/sessions/"+s.id+"/users/delete", payload, nil)
}

func (s *session) DisableDevice() error {
	return s.client.post(s.ctx, "/v1/sessions/"+s.id+"/disable", nil, nil)
}

func (s *session) EnableDevice() error {
	return s.client.post(s.ctx, "/v1/sessions/"+s.id+"/enable", nil, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("agent request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: agent %s: %s", errs.ErrProtocol, resp.Status, string(raw))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode agent response: %w", err)
	}
	return nil
}
