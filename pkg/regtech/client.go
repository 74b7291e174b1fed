package regtech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wisbric/blacklistguard/pkg/ratelimit"
)

const listPath = "/fcti/securityAdvisory/advisoryList"

const listFetchTimeout = 45 * time.Second // per §5 suspension-point timeout table

// Client drives authenticated requests against the REGTECH portal. It owns
// the session jar, the auth cache, and the shared rate limiter.
type Client struct {
	baseURL string
	auth    *authState
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	http    *http.Client
}

// NewClient constructs a REGTECH client bound to baseURL (e.g.
// https://regtech.fsec.or.kr). limiter paces every outbound request.
func NewClient(baseURL string, limiter *ratelimit.Limiter, logger *slog.Logger) *Client {
	c := &Client{
		baseURL: baseURL,
		auth:    newAuthState(),
		limiter: limiter,
		logger:  logger,
	}
	c.http = &http.Client{Jar: c.auth.jar}
	return c
}

// listPage POSTs one page of the advisory list using the bit-exact form and
// header contract in §6. Returns the raw response body and status; callers
// are responsible for rate-limiter feedback and for deciding whether a 302
// represents session expiry (via IsCookieExpired).
func (c *Client) listPage(ctx context.Context, page, pageSize int, startDate, endDate string) (*http.Response, []byte, error) {
	form := url.Values{
		"page":          {strconv.Itoa(page)},
		"tabSort":       {"blacklist"},
		"excelDownload": {""},
		"cveId":         {""},
		"ipId":          {""},
		"estId":         {""},
		"startDate":     {startDate},
		"endDate":       {endDate},
		"findCondition": {"all"},
		"findKeyword":   {""},
		"excelDown":     {"blacklist"},
		"size":          {strconv.Itoa(pageSize)},
	}

	reqCtx, cancel := context.WithTimeout(ctx, listFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+listPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, nil, fmt.Errorf("building list request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", c.baseURL+listPath)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("list request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, fmt.Errorf("reading list response: %w", err)
	}

	return resp, body, nil
}
