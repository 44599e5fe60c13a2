package debt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultLoginURL is the production login endpoint.
const DefaultLoginURL = "https://login.prod.tapila.cloud/login"

// ErrLogin is returned when the login exchange does not yield a token.
var ErrLogin = errors.New("login failed")

// Credentials authenticate against the login service.
type Credentials struct {
	APIKey   string
	Username string
	Password string
}

// TokenSource fetches an access token and keeps it until it expires.
// Tokens that are not JWTs are kept until Invalidate is called.
type TokenSource struct {
	url    string
	creds  Credentials
	client *http.Client
	now    func() time.Time

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource creates a TokenSource for the login endpoint.
func NewTokenSource(url string, creds Credentials, client *http.Client) *TokenSource {
	if url == "" {
		url = DefaultLoginURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenSource{url: url, creds: creds, client: client, now: time.Now}
}

// Token returns a cached token or logs in for a new one.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expiry.IsZero() || s.now().Before(s.expiry)) {
		return s.token, nil
	}

	token, err := s.login(ctx)
	if err != nil {
		return "", err
	}
	s.token = token
	s.expiry = tokenExpiry(token)
	return token, nil
}

// Invalidate drops the cached token.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiry = time.Time{}
}

type loginRequest struct {
	ClientUsername string `json:"clientUsername"`
	Password       string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

func (s *TokenSource) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(loginRequest{ClientUsername: s.creds.Username, Password: s.creds.Password})
	if err != nil {
		return "", fmt.Errorf("marshaling login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.creds.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLogin, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("%w: %w", ErrLogin, &StatusError{Op: "login", StatusCode: resp.StatusCode, Body: string(b)})
	}

	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("%w: decoding response: %w", ErrLogin, err)
	}
	if lr.AccessToken == "" {
		return "", fmt.Errorf("%w: response has no accessToken", ErrLogin)
	}

	slog.Info("obtained debt service token")
	return lr.AccessToken, nil
}

// tokenExpiry reads the exp claim without verifying the signature. The
// token is only forwarded, never trusted locally.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
