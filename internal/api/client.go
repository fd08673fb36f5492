// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend API base URL (default: http://127.0.0.1:8000)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for REST requests (default: 30s)
	Timeout time.Duration

	// Credentials supplies the auth token (default: NoCredential)
	Credentials CredentialProvider

	// RequestsPerSecond caps the REST request rate (default: 10)
	RequestsPerSecond float64

	// Burst is the rate limiter burst size (default: 5)
	Burst int
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:           "http://127.0.0.1:8000",
		Timeout:           30 * time.Second,
		Credentials:       NoCredential{},
		RequestsPerSecond: 10,
		Burst:             5,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the chat backend REST API.
//
// The Client is thread-safe for concurrent use.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a backend client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a backend client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8000"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.Credentials == nil {
		config.Credentials = NoCredential{}
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 10
	}
	if config.Burst <= 0 {
		config.Burst = 5
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
	}
}

// =============================================================================
// DATA TYPES
// =============================================================================

// ModelInfo describes one model the backend can serve.
type ModelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ConversationInfo is the conversation metadata returned by list and create.
type ConversationInfo struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ConversationDetail is a conversation with its full transcript.
type ConversationDetail struct {
	ConversationInfo
	Messages []model.Message `json:"messages"`
}

// =============================================================================
// MODELS
// =============================================================================

// ListModels returns the models the backend can serve.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out struct {
		Models []ModelInfo `json:"models"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/models", nil, &out); err != nil {
		return nil, err
	}
	return out.Models, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns conversation metadata, newest first.
func (c *Client) ListConversations(ctx context.Context) ([]ConversationInfo, error) {
	var out struct {
		Conversations []ConversationInfo `json:"conversations"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Conversations, nil
}

// CreateConversation creates a conversation bound to the given model.
func (c *Client) CreateConversation(ctx context.Context, modelID string) (*ConversationInfo, error) {
	in := map[string]string{"model": modelID}
	var out ConversationInfo
	if err := c.doJSON(ctx, http.MethodPost, "/conversations", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetConversation fetches a conversation with its transcript.
func (c *Client) GetConversation(ctx context.Context, conversationID string) (*ConversationDetail, error) {
	var out ConversationDetail
	if err := c.doJSON(ctx, http.MethodGet, "/conversations/"+url.PathEscape(conversationID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation removes a conversation and its transcript.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID), nil, nil)
}

// ClearConversation removes all messages but keeps the conversation.
func (c *Client) ClearConversation(ctx context.Context, conversationID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/conversations/"+url.PathEscape(conversationID)+"/messages", nil, nil)
}

// UpdateConversationModel records a model switch for the conversation.
func (c *Client) UpdateConversationModel(ctx context.Context, conversationID, modelID string) error {
	in := map[string]string{"model": modelID}
	return c.doJSON(ctx, http.MethodPatch, "/conversations/"+url.PathEscape(conversationID), in, nil)
}

// AbortGeneration asks the backend to stop generating for the conversation.
// Callers treat this as best-effort and close their channel regardless.
func (c *Client) AbortGeneration(ctx context.Context, conversationID string) error {
	return c.doJSON(ctx, http.MethodPost, "/conversations/"+url.PathEscape(conversationID)+"/abort", nil, nil)
}

// =============================================================================
// STREAM URL
// =============================================================================

// StreamURL builds the websocket URL for a conversation's stream endpoint.
// The credential is resolved on every call, so each connection attempt
// carries the current token.
func (c *Client) StreamURL(conversationID string) (string, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", &ClientError{Type: ErrTypeConnection, Message: "invalid base URL", Cause: err}
	}

	switch base.Scheme {
	case "https":
		base.Scheme = "wss"
	default:
		base.Scheme = "ws"
	}
	base.Path = strings.TrimSuffix(base.Path, "/") + "/conversations/" + url.PathEscape(conversationID) + "/stream"

	token, err := c.config.Credentials.Token()
	if err != nil {
		return "", err
	}
	if token != "" {
		q := base.Query()
		q.Set("token", token)
		base.RawQuery = q.Encode()
	}

	return base.String(), nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

// doJSON performs one REST request: rate limit, auth header, JSON body in,
// JSON body out. out may be nil when the response body is irrelevant.
func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "rate limiter", Cause: err}
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &ClientError{Type: ErrTypeUnknown, Message: "encode request", Cause: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, body)
	if err != nil {
		return &ClientError{Type: ErrTypeConnection, Message: "failed to create request", Cause: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.config.Credentials.Token()
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return &ClientError{Type: ErrTypeConnection, Message: "backend unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "decode response", Cause: err}
	}
	return nil
}

func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ClientError{
			Type:    ErrTypeServer,
			Message: "unexpected status " + resp.Status + ": " + strings.TrimSpace(string(snippet)),
		}
	}
}
