package edge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"intellilot/pkg/log"

	"golang.org/x/net/context"
)

const (
	// TokenExpiryMargin renews the token this long before it actually
	// expires, so an upload never races the server-side cutoff.
	TokenExpiryMargin = 300 * time.Second

	DefaultAuthRetries    = 3
	DefaultAuthRetryDelay = 5 * time.Second

	loginPath = "/api/v1/auth/login"
)

var ErrAuthFailed = errors.New("authentication with central server failed")

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Session owns the bearer token shared by all camera workers on one edge
// node. Token renewal is serialized so concurrent workers trigger at most
// one login.
type Session struct {
	serverURL string
	username  string
	password  string
	client    *http.Client

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	retries    int
	retryDelay time.Duration
	now        func() time.Time
	sleep      func(time.Duration)
}

type SessionOption func(*Session)

func WithSessionHTTPClient(client *http.Client) SessionOption {
	return func(s *Session) {
		if client != nil {
			s.client = client
		}
	}
}

func WithAuthRetry(retries int, delay time.Duration) SessionOption {
	return func(s *Session) {
		if retries > 0 {
			s.retries = retries
		}
		if delay >= 0 {
			s.retryDelay = delay
		}
	}
}

func WithClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSession(serverURL, username, password string, opts ...SessionOption) *Session {
	s := &Session{
		serverURL:  serverURL,
		username:   username,
		password:   password,
		client:     &http.Client{Timeout: 10 * time.Second},
		retries:    DefaultAuthRetries,
		retryDelay: DefaultAuthRetryDelay,
		now:        time.Now,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Token returns a bearer token that is good for at least the expiry margin.
// A cached token inside the margin window is renewed eagerly.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.expiresAt.Add(-TokenExpiryMargin)) {
		return s.token, nil
	}

	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		token, expiresIn, err := s.login(ctx)
		if err == nil {
			s.token = token
			s.expiresAt = s.now().Add(time.Duration(expiresIn) * time.Second)
			log.Info(log.Fields{
				"expires_in": expiresIn,
			}, "Authenticated with central server")
			return s.token, nil
		}

		lastErr = err
		log.Warn(log.Fields{
			"error":   err.Error(),
			"attempt": attempt,
			"retries": s.retries,
		}, "Authentication attempt failed")

		if attempt < s.retries {
			s.sleep(s.retryDelay)
		}
	}

	return "", fmt.Errorf("%w: %v", ErrAuthFailed, lastErr)
}

// Invalidate drops the cached token. The next Token call logs in again.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.token = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
}

func (s *Session) login(ctx context.Context) (string, int64, error) {
	body, err := json.Marshal(loginRequest{Username: s.username, Password: s.password})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.serverURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", 0, err
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var loginResp loginResponse
	if err := json.Unmarshal(raw, &loginResp); err != nil {
		return "", 0, fmt.Errorf("failed to parse login response: %w", err)
	}
	if loginResp.AccessToken == "" {
		return "", 0, fmt.Errorf("login response carries no token")
	}
	if loginResp.ExpiresIn <= 0 {
		loginResp.ExpiresIn = 3600
	}

	return loginResp.AccessToken, loginResp.ExpiresIn, nil
}
