// Package sealbox provides a Go client for the Sealbox key-exchange relay:
// session setup, public-value submission, end-to-end encryption of relayed
// messages, and the server-sent-events push stream.
package sealbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a Sealbox API client acting as one authenticated user. The
// identity headers mimic what the auth gateway stamps in production.
type Client struct {
	BaseURL    string
	UserID     string
	Role       string
	HTTPClient *http.Client
}

// NewClient creates a client for the given relay and user.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserID:     userID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Session is the relay's view of a key exchange, as returned to a party.
type Session struct {
	SessionID   string `json:"session_id"`
	Role        string `json:"role"`
	Counterpart string `json:"counterpart"`
	Subject     string `json:"subject"`
	Params      Params `json:"params"`
	OwnKey      string `json:"own_key"`
	TheirKey    string `json:"counterpart_key"`
	Status      string `json:"status"`
}

// Params is the group description both parties compute against.
type Params struct {
	Prime     string `json:"prime"`
	Generator string `json:"generator"`
}

// SessionSummary is one row of the session listing.
type SessionSummary struct {
	SessionID   string    `json:"session_id"`
	Role        string    `json:"role"`
	Counterpart string    `json:"counterpart"`
	Subject     string    `json:"subject"`
	Status      string    `json:"status"`
	Unread      int       `json:"unread"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CreateSessionResult is returned by CreateSession.
type CreateSessionResult struct {
	SessionID string    `json:"session_id"`
	Params    Params    `json:"params"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmitKeyResult is returned by SubmitKey.
type SubmitKeyResult struct {
	Status               string `json:"status"`
	CounterpartPublicKey string `json:"counterpart_public_key"`
}

// Message is one relayed ciphertext addressed to this client.
type Message struct {
	ID         string `json:"id"`
	From       string `json:"from"`
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
	Timestamp  int64  `json:"ts"`
}

// Event is one push notification from the event stream.
type Event struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// APIError is a non-2xx response from the relay.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("relay returned %d: %s", e.Status, e.Message)
}

// CreateSession starts (or resumes) the exchange for a triple.
func (c *Client) CreateSession(ctx context.Context, sellerID, buyerID, subject string) (*CreateSessionResult, error) {
	body := map[string]string{"seller_id": sellerID, "buyer_id": buyerID, "subject": subject}
	var out CreateSessionResult
	if err := c.do(ctx, http.MethodPost, "/exchange/sessions", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitKey submits this party's public value for its role.
func (c *Client) SubmitKey(ctx context.Context, sessionID, role, publicKeyHex string) (*SubmitKeyResult, error) {
	body := map[string]string{"role": role, "public_key": publicKeyHex}
	var out SubmitKeyResult
	if err := c.do(ctx, http.MethodPost, "/exchange/sessions/"+sessionID+"/keys", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches the session scoped to this client.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var out Session
	if err := c.do(ctx, http.MethodGet, "/exchange/sessions/"+sessionID, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListSessions fetches every live session this client is a party to.
func (c *Client) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var out struct {
		Sessions []SessionSummary `json:"sessions"`
	}
	if err := c.do(ctx, http.MethodGet, "/exchange/sessions", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Health checks the relay's health endpoint.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendSealed relays an already-sealed message into the session.
func (c *Client) SendSealed(ctx context.Context, sessionID string, msg *SealedMessage) (string, error) {
	body := map[string]string{
		"ciphertext": msg.Ciphertext,
		"iv":         msg.IV,
		"auth_tag":   msg.AuthTag,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/exchange/sessions/"+sessionID+"/messages", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetMessages fetches every message addressed to this client in the session.
func (c *Client) GetMessages(ctx context.Context, sessionID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/exchange/sessions/"+sessionID+"/messages", nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Listen opens the push stream and invokes fn for every event until the
// context is cancelled or the stream closes. Keep-alive comments are
// filtered out.
func (c *Client) Listen(ctx context.Context, fn func(Event)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/events", nil)
	if err != nil {
		return err
	}
	c.identify(req)
	req.Header.Set("Accept", "text/event-stream")

	// The stream outlives any sane request timeout.
	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Message: "event stream refused"}
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(line[len("data: "):]), &ev); err != nil {
			continue
		}
		fn(ev)
	}
	return scanner.Err()
}

// do runs one JSON round trip against the relay.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, &buf)
	if err != nil {
		return err
	}
	c.identify(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return &APIError{Status: resp.StatusCode, Message: apiErr.Error}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// identify stamps the gateway identity headers.
func (c *Client) identify(req *http.Request) {
	req.Header.Set("X-Sealbox-User", c.UserID)
	if c.Role != "" {
		req.Header.Set("X-Sealbox-Role", c.Role)
	}
}
