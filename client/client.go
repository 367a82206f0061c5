package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"visaconnect/internal/models"
)

// Client is a typed HTTP client for the visaconnect API. All responses share
// the envelope {success, data} on success and {success, message} on failure.
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
}

// New builds a Client for the given base URL, authenticating every request
// with the session's bearer token.
func New(baseURL string, session *Session) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		session:    session,
	}
}

// Session returns the session the client authenticates with.
func (c *Client) Session() *Session {
	return c.session
}

// WebsocketURL derives the ws:// or wss:// endpoint for a server push path.
func (c *Client) WebsocketURL(path string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = path
	u.RawQuery = "token=" + url.QueryEscape(c.session.Token())
	return u.String(), nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.session.Token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	if resp.StatusCode >= 400 || !env.Success {
		msg := env.Message
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("%s %s: %s", method, path, msg)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%s %s: decode data: %w", method, path, err)
		}
	}
	return nil
}

// GetConversations lists the caller's conversations, most recent first.
func (c *Client) GetConversations(ctx context.Context) ([]models.ConversationSummary, error) {
	var conversations []models.ConversationSummary
	if err := c.do(ctx, http.MethodGet, "/api/chat/conversations", nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// StartConversation creates or returns the conversation with the other user
// and reports its id.
func (c *Client) StartConversation(ctx context.Context, otherUserID string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]string{"otherUserId": otherUserID}
	if err := c.do(ctx, http.MethodPost, "/api/chat/conversations", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// GetMessages returns the conversation history, oldest first.
func (c *Client) GetMessages(ctx context.Context, conversationID string) ([]models.MessageView, error) {
	var messages []models.MessageView
	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage posts a message and returns the server-assigned message id.
func (c *Client) SendMessage(ctx context.Context, conversationID, receiverID, content string) (string, error) {
	var out struct {
		MessageID string `json:"messageId"`
	}
	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/messages"
	body := map[string]string{"content": content, "receiverId": receiverID}
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}

// MarkRead zeroes the caller's unread counter for the conversation.
func (c *Client) MarkRead(ctx context.Context, conversationID string) error {
	path := "/api/chat/conversations/" + url.PathEscape(conversationID) + "/read"
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// UnreadCount returns the caller's total unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/chat/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Me fetches the caller's profile and stores it on the session.
func (c *Client) Me(ctx context.Context) (models.User, int, error) {
	var out struct {
		User              models.User `json:"user"`
		CompletionPercent int         `json:"completionPercent"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &out); err != nil {
		return models.User{}, 0, err
	}
	c.session.SetProfile(out.User, out.CompletionPercent)
	return out.User, out.CompletionPercent, nil
}

// UpdateProfile applies a partial profile update and refreshes the session
// copy. Update keys use the API's JSON field names, e.g. "firstName".
func (c *Client) UpdateProfile(ctx context.Context, userID string, updates map[string]any) (models.User, error) {
	var out struct {
		User              models.User `json:"user"`
		CompletionPercent int         `json:"completionPercent"`
	}
	path := "/api/users/" + url.PathEscape(userID)
	if err := c.do(ctx, http.MethodPut, path, updates, &out); err != nil {
		return models.User{}, err
	}
	c.session.SetProfile(out.User, out.CompletionPercent)
	return out.User, nil
}

// ListUsers returns the member directory, excluding the caller.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}
