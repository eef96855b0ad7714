// Package client talks to the auth API the way the browser forms do:
// fields are checked locally first and code resends are held back for
// a countdown after each successful send.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/taobei/auth/internal/models"
)

// DefaultResendInterval matches the server's per-phone send limit.
const DefaultResendInterval = 60 * time.Second

var ErrResendCooldown = errors.New("verification code was sent recently, please wait")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth api: %d %s", e.Status, e.Message)
}

// Session is a successful login or registration.
type Session struct {
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      models.PublicUser `json:"user"`
}

type envelope struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Error     string            `json:"error"`
	Token     string            `json:"token"`
	ExpiresAt time.Time         `json:"expiresAt"`
	User      models.PublicUser `json:"user"`
}

type Client struct {
	baseURL        string
	httpClient     *http.Client
	resendInterval time.Duration
	now            func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithResendInterval(d time.Duration) Option {
	return func(c *Client) { c.resendInterval = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		resendInterval: DefaultResendInterval,
		now:            time.Now,
		lastSent:       make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ResendIn reports how long until another code may be requested for phone.
func (c *Client) ResendIn(phone string) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	sent, ok := c.lastSent[phone]
	if !ok {
		return 0
	}
	remaining := c.resendInterval - c.now().Sub(sent)
	if remaining <= 0 {
		delete(c.lastSent, phone)
		return 0
	}
	return remaining
}

func (c *Client) SendCode(ctx context.Context, form SendCodeForm) error {
	if err := form.Validate(); err != nil {
		return err
	}
	if c.ResendIn(form.PhoneNumber) > 0 {
		return ErrResendCooldown
	}

	body := map[string]string{"phoneNumber": form.PhoneNumber}
	if _, err := c.post(ctx, "/api/auth/send-verification-code", body); err != nil {
		return err
	}

	c.mu.Lock()
	c.lastSent[form.PhoneNumber] = c.now()
	c.mu.Unlock()
	return nil
}

func (c *Client) Login(ctx context.Context, form LoginForm) (*Session, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	env, err := c.post(ctx, "/api/auth/login", map[string]string{
		"phoneNumber":      form.PhoneNumber,
		"verificationCode": form.VerificationCode,
		"loginType":        "code",
	})
	if err != nil {
		return nil, err
	}
	return sessionFrom(env), nil
}

func (c *Client) Register(ctx context.Context, form RegisterForm) (*Session, error) {
	if err := form.Validate(); err != nil {
		return nil, err
	}

	env, err := c.post(ctx, "/api/auth/register", map[string]interface{}{
		"phoneNumber":      form.PhoneNumber,
		"verificationCode": form.VerificationCode,
		"password":         form.Password,
		"agreeToTerms":     form.AgreeToTerms,
	})
	if err != nil {
		return nil, err
	}
	return sessionFrom(env), nil
}

func sessionFrom(env *envelope) *Session {
	return &Session{Token: env.Token, ExpiresAt: env.ExpiresAt, User: env.User}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) (*envelope, error) {
	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	var env envelope
	decodeErr := json.NewDecoder(resp.Body).Decode(&env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Error
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &APIError{Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	return &env, nil
}
