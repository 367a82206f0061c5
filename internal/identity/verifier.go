package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrInvalidToken is returned when the provider rejects the credential.
var ErrInvalidToken = errors.New("invalid token")

// Identity is what the provider asserts about a bearer token.
type Identity struct {
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// Verifier resolves a bearer token into an identity. The verification
// protocol itself is owned by the external provider.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) (Identity, error)
}

// Client verifies tokens against the hosted identity provider's REST
// endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient constructs the verifier client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type verifyRequest struct {
	Token string `json:"token"`
}

type verifyResponse struct {
	Valid         bool   `json:"valid"`
	UserID        string `json:"userId"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"emailVerified"`
}

// VerifyToken posts the token to the provider and returns the asserted
// identity.
func (c *Client) VerifyToken(ctx context.Context, token string) (Identity, error) {
	body, err := json.Marshal(verifyRequest{Token: token})
	if err != nil {
		return Identity{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tokens/verify", bytes.NewReader(body))
	if err != nil {
		return Identity{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("verify token: unexpected status %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Identity{}, fmt.Errorf("verify token: decode response: %w", err)
	}
	if !out.Valid || out.UserID == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{UserID: out.UserID, Email: out.Email, EmailVerified: out.EmailVerified}, nil
}
