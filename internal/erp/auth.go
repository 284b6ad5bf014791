// internal/erp/auth.go
package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/tiendanorte/compraplan/internal/domain"
)

// Authenticator supplies bearer tokens for ERP requests. Implementations
// must be safe for concurrent use.
type Authenticator interface {
	// Token returns a currently valid bearer token, logging in when the
	// cached one is missing or expired.
	Token(ctx context.Context) (string, error)
	// Invalidate discards the cached token so the next Token call logs in
	// again. Called when the ERP rejects a token before its assigned expiry.
	Invalidate()
}

// PasswordAuthenticator logs into the ERP with username/password and caches
// the returned bearer token until its assigned TTL runs out. Concurrent
// callers hitting an expired token share a single login round trip.
type PasswordAuthenticator struct {
	baseURL  string
	username string
	password string
	ttl      time.Duration
	httpc    *http.Client

	mu    sync.Mutex
	token *oauth2.Token
	group singleflight.Group
}

// NewPasswordAuthenticator builds the production authenticator. The ERP
// does not report token lifetimes, so ttl assigns one client-side.
func NewPasswordAuthenticator(baseURL, username, password string, ttl time.Duration, timeout time.Duration) *PasswordAuthenticator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PasswordAuthenticator{
		baseURL:  strings.TrimRight(baseURL, "/"),
		username: username,
		password: password,
		ttl:      ttl,
		httpc:    &http.Client{Timeout: timeout},
	}
}

func (a *PasswordAuthenticator) Token(ctx context.Context) (string, error) {
	a.mu.Lock()
	tok := a.token
	a.mu.Unlock()
	if tok.Valid() {
		return tok.AccessToken, nil
	}

	resultChan := a.group.DoChan("login", func() (interface{}, error) {
		return a.login(ctx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(*oauth2.Token).AccessToken, nil
	}
}

func (a *PasswordAuthenticator) Invalidate() {
	a.mu.Lock()
	a.token = nil
	a.mu.Unlock()
}

func (a *PasswordAuthenticator) login(ctx context.Context) (*oauth2.Token, error) {
	payload, err := json.Marshal(map[string]string{
		"username": a.username,
		"password": a.password,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/auth", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erp auth request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", domain.ErrAuthFailed, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("erp auth error %d: %s", resp.StatusCode, excerpt(body))
	}

	token, err := parseAuthToken(body)
	if err != nil {
		return nil, err
	}

	tok := &oauth2.Token{
		AccessToken: token,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(a.ttl),
	}
	a.mu.Lock()
	a.token = tok
	a.mu.Unlock()
	return tok, nil
}

// parseAuthToken handles both auth response shapes:
// {"auth_token": "..."} and {"data": {"auth_token": "..."}}.
func parseAuthToken(body []byte) (string, error) {
	var direct struct {
		AuthToken string `json:"auth_token"`
		Data      struct {
			AuthToken string `json:"auth_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &direct); err != nil {
		return "", fmt.Errorf("erp auth response: %w", err)
	}
	if direct.AuthToken != "" {
		return direct.AuthToken, nil
	}
	if direct.Data.AuthToken != "" {
		return direct.Data.AuthToken, nil
	}
	return "", fmt.Errorf("%w: response carried no auth_token", domain.ErrAuthFailed)
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
