package regtech

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsCookieExpired(t *testing.T) {
	tests := []struct {
		name   string
		status int
		loc    string
		want   bool
	}{
		{"unauthorized", http.StatusUnauthorized, "", true},
		{"redirect to login", http.StatusFound, "/login/addLogin", true},
		{"redirect to login case-insensitive", http.StatusFound, "/LOGIN/addLogin", true},
		{"redirect to main is fine", http.StatusFound, "/main/main", false},
		{"ok is fine", http.StatusOK, "", false},
	}

	for _, tt := range tests {
		resp := &http.Response{StatusCode: tt.status, Header: http.Header{}}
		if tt.loc != "" {
			resp.Header.Set("Location", tt.loc)
		}
		if got := IsCookieExpired(resp); got != tt.want {
			t.Errorf("%s: IsCookieExpired() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSetCookieString_ParsesAndEntersCookieMode(t *testing.T) {
	c := NewClient("https://regtech.example", nil, discardLogger())

	c.SetCookieString("regtech-va=abc123; regtech-front=def456")

	if !c.auth.cookieMode {
		t.Error("expected cookieMode=true after SetCookieString")
	}
	if !c.auth.isAuthenticated() {
		t.Error("expected isAuthenticated()=true after SetCookieString")
	}
}

func TestSetCookieString_SkipsMalformedPairsWithoutPanicking(t *testing.T) {
	c := NewClient("https://regtech.example", nil, discardLogger())

	c.SetCookieString("not-a-pair; ;=novalue; ok=fine")

	if !c.auth.cookieMode {
		t.Error("expected cookieMode=true once at least one valid pair is parsed")
	}
}

func TestSetCookieString_EmptyInputLeavesStateUnchanged(t *testing.T) {
	c := NewClient("https://regtech.example", nil, discardLogger())

	c.SetCookieString("")

	if c.auth.cookieMode {
		t.Error("expected cookieMode=false when no valid cookie pairs were given")
	}
}
