package timely

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Credentials are the password-grant credentials of a Timely OAuth application.
type Credentials struct {
	Email        string
	Password     string
	ClientID     string
	ClientSecret string
}

// CacheKey identifies the credentials in a TokenStore.
func (c Credentials) CacheKey() string {
	return c.ClientID + ":" + c.Email
}

// TokenStore persists tokens between runs. Load returns nil, nil when no
// token is cached.
type TokenStore interface {
	LoadToken(key string) (*Token, error)
	SaveToken(key string, token *Token) error
}

// Session owns the credentials and the current access token. It is created
// by the caller and passed to a Client; there is no package-level token.
type Session struct {
	creds      Credentials
	baseURL    string
	httpClient *http.Client
	store      TokenStore
	logger     *slog.Logger

	mu    sync.Mutex
	token *Token
}

// NewSession creates a session. store may be nil to keep the token in memory only.
func NewSession(creds Credentials, baseURL string, store TokenStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Session{
		creds:   creds,
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		store:  store,
		logger: logger,
	}
}

// AccessToken returns a valid access token, loading it from the store or
// authenticating when needed, and refreshing it when it has expired.
func (s *Session) AccessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == nil && s.store != nil {
		cached, err := s.store.LoadToken(s.creds.CacheKey())
		if err != nil {
			s.logger.Warn("failed to load cached token", "error", err)
		}
		s.token = cached
	}

	if s.token != nil && s.token.AccessToken != "" && !s.token.IsExpired() {
		return s.token.AccessToken, nil
	}

	if err := s.refreshLocked(ctx); err != nil {
		return "", err
	}
	return s.token.AccessToken, nil
}

// Refresh obtains a new token: with the refresh token when one is held,
// falling back to the password grant.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

// Authenticate performs the password grant, discarding any held token.
func (s *Session) Authenticate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.passwordGrant(ctx)
	if err != nil {
		return err
	}
	s.setLocked(token)
	return nil
}

// Invalidate drops the held token so the next AccessToken call obtains a new one.
func (s *Session) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token != nil {
		stale := *s.token
		stale.AccessToken = ""
		s.token = &stale
	}
}

func (s *Session) refreshLocked(ctx context.Context) error {
	if s.token != nil && s.token.RefreshToken != "" {
		s.logger.Debug("refreshing timely access token")
		token, err := s.refreshGrant(ctx, s.token.RefreshToken)
		if err == nil {
			s.setLocked(token)
			return nil
		}
		s.logger.Debug("refresh failed, falling back to password grant", "error", err)
	}

	token, err := s.passwordGrant(ctx)
	if err != nil {
		return err
	}
	s.setLocked(token)
	return nil
}

func (s *Session) setLocked(token *Token) {
	s.token = token
	if s.store == nil {
		return
	}
	if err := s.store.SaveToken(s.creds.CacheKey(), token); err != nil {
		s.logger.Warn("failed to cache token", "error", err)
	}
}

func (s *Session) passwordGrant(ctx context.Context) (*Token, error) {
	if s.creds.Email == "" || s.creds.Password == "" || s.creds.ClientID == "" {
		return nil, &AuthenticationError{Reason: "missing credentials (email, password and OAuth client id are required)"}
	}
	return s.requestToken(ctx, url.Values{
		"grant_type":    {"password"},
		"username":      {s.creds.Email},
		"password":      {s.creds.Password},
		"client_id":     {s.creds.ClientID},
		"client_secret": {s.creds.ClientSecret},
	})
}

func (s *Session) refreshGrant(ctx context.Context, refreshToken string) (*Token, error) {
	return s.requestToken(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
		"client_id":     {s.creds.ClientID},
		"client_secret": {s.creds.ClientSecret},
	})
}

func (s *Session) requestToken(ctx context.Context, form url.Values) (*Token, error) {
	endpoint := s.baseURL + "/oauth/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &AuthenticationError{Reason: "creating token request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, &AuthenticationError{Reason: "requesting token", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthenticationError{Status: resp.StatusCode, Reason: "reading token response", Err: err}
	}

	var tokenResp tokenResponse
	if len(body) > 0 {
		if err := json.Unmarshal(body, &tokenResp); err != nil && resp.StatusCode == http.StatusOK {
			return nil, &AuthenticationError{Status: resp.StatusCode, Reason: "parsing token response", Err: err}
		}
	}

	if resp.StatusCode != http.StatusOK || tokenResp.Error != "" || tokenResp.AccessToken == "" {
		reason := tokenResp.Error
		if tokenResp.ErrorDesc != "" {
			reason += ": " + tokenResp.ErrorDesc
		}
		if reason == "" {
			reason = truncate(string(body), 200)
		}
		s.logger.Error("timely token request failed", "grant", form.Get("grant_type"), "status", resp.StatusCode)
		return nil, &AuthenticationError{Status: resp.StatusCode, Reason: reason}
	}

	token := &Token{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}
	if tokenResp.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)
	}
	s.logger.Debug("obtained timely access token", "grant", form.Get("grant_type"), "expires_at", token.ExpiresAt)
	return token, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
