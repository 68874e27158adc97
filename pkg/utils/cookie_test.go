package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSetHTTPOnlyCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec := httptest.NewRecorder()

	SetHTTPOnlyCookie(rec, req, "bt_usage", "token", time.Now().Add(time.Hour))

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Name != "bt_usage" || c.Value != "token" {
		t.Fatalf("unexpected cookie %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Fatalf("unexpected cookie attributes %+v", c)
	}
	if c.MaxAge <= 0 || c.MaxAge > 3600 {
		t.Fatalf("unexpected max age %d", c.MaxAge)
	}
}

func TestReadCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	if got := ReadCookie(req, "bt_usage"); got != "" {
		t.Fatalf("expected empty value, got %q", got)
	}

	req.AddCookie(&http.Cookie{Name: "bt_usage", Value: "abc"})
	if got := ReadCookie(req, "bt_usage"); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}
