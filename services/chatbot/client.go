package chatbot

import (
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

	"github.com/rs/zerolog"

	"uxy/pkg/telemetry"
	"uxy/services/environment"
)

const (
	// DefaultGraphURL is the Graph API version the profile payloads target.
	DefaultGraphURL = "https://graph.facebook.com/v2.6"

	// GetStartedPayload is delivered to the bot when a user taps Get Started.
	GetStartedPayload = "GET_STARTED"

	invalidTokenCode = 190
	maxErrorBody     = 4096
)

// APIError is a non-2xx Graph API response.
type APIError struct {
	Status  int
	Message string
	Type    string
	Code    int
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph api status %d", e.Status)
	}
	return fmt.Sprintf("graph api status %d: %s (%s, code %d)", e.Status, e.Message, e.Type, e.Code)
}

// Unwrap reports credential failures as environment.ErrCredentialInvalid.
func (e *APIError) Unwrap() error {
	if e.Code == invalidTokenCode || e.Status == http.StatusUnauthorized {
		return environment.ErrCredentialInvalid
	}
	return nil
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// Client pushes bot profile settings through the Messenger Profile API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  zerolog.Logger
}

// New returns a Client authenticated with the page access token.
func New(token string, opts Options) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: page token is required", environment.ErrCredentialInvalid)
	}

	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = DefaultGraphURL
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid graph api url %q: %w", base, err)
	}

	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{
			Timeout:   15 * time.Second,
			Transport: telemetry.HTTPTransport(nil),
		}
	}

	return &Client{baseURL: base, token: token, http: client, logger: opts.Logger}, nil
}

// ValidateToken checks that the page token is accepted by the platform. Any
// non-2xx answer rejects the token; transport failures do not.
func (c *Client) ValidateToken(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/me", nil)
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && !errors.Is(err, environment.ErrCredentialInvalid) {
		return fmt.Errorf("validate page token: %w: %w", environment.ErrCredentialInvalid, err)
	}
	return fmt.Errorf("validate page token: %w", err)
}

// InitGreeting installs the Get Started button.
func (c *Client) InitGreeting(ctx context.Context) error {
	payload := map[string]any{
		"get_started": map[string]string{"payload": GetStartedPayload},
	}
	return c.setProfile(ctx, "get started", payload)
}

// InitMenu replaces the persistent menu.
func (c *Client) InitMenu(ctx context.Context, menu any) error {
	if menu == nil {
		return errors.New("persistent menu is empty")
	}
	return c.setProfile(ctx, "persistent menu", map[string]any{"persistent_menu": menu})
}

// InitDescription sets the greeting text shown before a conversation starts.
func (c *Client) InitDescription(ctx context.Context, text string) error {
	payload := map[string]any{
		"greeting": []map[string]string{{"locale": "default", "text": text}},
	}
	return c.setProfile(ctx, "greeting text", payload)
}

// InitURLWhitelist replaces the domains allowed in webviews and buttons.
func (c *Client) InitURLWhitelist(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return errors.New("url whitelist is empty")
	}
	return c.setProfile(ctx, "whitelisted domains", map[string]any{"whitelisted_domains": urls})
}

func (c *Client) setProfile(ctx context.Context, what string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", what, err)
	}
	if err := c.do(ctx, http.MethodPost, "/me/messenger_profile", body); err != nil {
		return fmt.Errorf("set %s: %w", what, err)
	}
	c.logger.Debug().Ctx(ctx).Str("setting", what).Msg("messenger profile updated")
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) error {
	endpoint := c.baseURL + path + "?access_token=" + url.QueryEscape(c.token)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		// The URL carries the token; report only the path.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return fmt.Errorf("%s %s: %w", method, path, urlErr.Err)
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain response body: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{Status: resp.StatusCode}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Type = envelope.Error.Type
		apiErr.Code = envelope.Error.Code
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
