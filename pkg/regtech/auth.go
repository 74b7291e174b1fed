package regtech

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/wisbric/blacklistguard/internal/telemetry"
)

const (
	authCacheTTL = 5 * time.Minute
	authTimeout  = 20 * time.Second
	loginPath    = "/login/addLogin"
	successPath  = "/main/main"
	jwtCookie    = "regtech-va"
	sessionCookie = "regtech-front"
)

type authCacheEntry struct {
	cachedAt time.Time
	valid    bool
}

// authState guards the session jar and the short-lived auth-result cache
// keyed by username+password hash, matching the portal client's own cache
// semantics (§4.2).
type authState struct {
	mu            sync.Mutex
	jar           *cookiejar.Jar
	authenticated bool
	cookieMode    bool // set by SetCookieString; bypasses login on next request
	cache         map[string]authCacheEntry
}

func newAuthState() *authState {
	jar, _ := cookiejar.New(nil)
	return &authState{jar: jar, cache: make(map[string]authCacheEntry)}
}

func authCacheKey(username, password string) string {
	sum := sha256.Sum256([]byte(password))
	return username + ":" + hex.EncodeToString(sum[:8])
}

// Authenticate performs the REGTECH login as a single form POST to loginPath;
// no preliminary request to the login page is made. On success the session
// cookies are stored in the client's jar and the success is reported to the
// caller's rate limiter via onSuccess. Matches the bit-exact contract in §6:
// a 302 response, a regtech-va JWT cookie, and Location == /main/main.
func (c *Client) Authenticate(ctx context.Context, username, password string) (bool, error) {
	key := authCacheKey(username, password)

	c.auth.mu.Lock()
	if entry, ok := c.auth.cache[key]; ok && time.Since(entry.cachedAt) < authCacheTTL && entry.valid {
		c.auth.authenticated = true
		c.auth.mu.Unlock()
		return true, nil
	}
	c.auth.mu.Unlock()

	form := url.Values{"username": {username}, "password": {password}}

	reqCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("building login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	httpClient := &http.Client{
		Jar: c.auth.jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	var jwt string
	for _, ck := range resp.Cookies() {
		if ck.Name == jwtCookie {
			jwt = ck.Value
		}
	}

	success := resp.StatusCode == http.StatusFound && jwt != "" && location == successPath

	c.auth.mu.Lock()
	c.auth.cache[key] = authCacheEntry{cachedAt: time.Now(), valid: success}
	c.auth.authenticated = success
	c.auth.mu.Unlock()

	if success {
		if c.limiter != nil {
			c.limiter.OnSuccess()
		}
		c.logger.Info("regtech authentication succeeded", "module", "regtech")
		return true, nil
	}

	if c.limiter != nil {
		status := 0
		if resp.StatusCode >= 400 {
			status = resp.StatusCode
		}
		c.limiter.OnFailure(status)
	}
	telemetry.ApplicationErrorsTotal.WithLabelValues("upstream_session", "warning").Inc()
	c.logger.Warn("regtech authentication failed", "status", resp.StatusCode, "location", location, "module", "regtech")
	return false, nil
}

// IsCookieExpired reports whether resp signals an expired/invalid session:
// a bare 401, or a 302 whose Location contains "login" (case-insensitively).
func IsCookieExpired(resp *http.Response) bool {
	if resp.StatusCode == http.StatusUnauthorized {
		return true
	}
	if resp.StatusCode == http.StatusFound {
		loc := strings.ToLower(resp.Header.Get("Location"))
		return strings.Contains(loc, "login")
	}
	return false
}

// SetCookieString parses a raw "k=v; k2=v2" cookie header into the client's
// jar and switches it into cookie-auth mode, bypassing login on the next
// request. Malformed pairs are skipped; this method never errors.
func (c *Client) SetCookieString(raw string) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return
	}

	var cookies []*http.Cookie
	for _, pair := range strings.Split(raw, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		name := strings.TrimSpace(kv[0])
		value := strings.TrimSpace(kv[1])
		if name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	if len(cookies) == 0 {
		return
	}

	c.auth.mu.Lock()
	defer c.auth.mu.Unlock()
	c.auth.jar.SetCookies(u, cookies)
	c.auth.cookieMode = true
	c.auth.authenticated = true
}

// isAuthenticated reports whether the client currently believes it has a valid session.
func (s *authState) isAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

func (s *authState) invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
}
