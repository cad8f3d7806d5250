package origindefense

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func serve(m *Middleware, remote, header, value string) int {
	h := m.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = remote
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestAllowlist(t *testing.T) {
	m := New(quiet(), Options{
		Enabled:    true,
		AllowIPs:   []string{"203.0.113.7", "bogus"},
		AllowCIDRs: []string{"10.0.0.0/8", "2001:db8::/32", "not/a/cidr"},
	})
	assert.Equal(t, http.StatusOK, serve(m, "203.0.113.7:5555", "", ""))
	assert.Equal(t, http.StatusOK, serve(m, "10.1.2.3:80", "", ""))
	assert.Equal(t, http.StatusOK, serve(m, "[2001:db8::1]:443", "", ""))
	assert.Equal(t, http.StatusForbidden, serve(m, "198.51.100.1:80", "", ""))
	assert.Equal(t, http.StatusForbidden, serve(m, "127.0.0.1:80", "", ""))
}

func TestAllowLocal(t *testing.T) {
	m := New(quiet(), Options{Enabled: true, AllowLocal: true})
	assert.Equal(t, http.StatusOK, serve(m, "127.0.0.1:80", "", ""))
	assert.Equal(t, http.StatusOK, serve(m, "[::1]:80", "", ""))
}

func TestRealIPHeader(t *testing.T) {
	m := New(quiet(), Options{Enabled: true, AllowCIDRs: []string{"10.0.0.0/8"}, RealIPHeader: "X-Forwarded-For"})
	assert.Equal(t, http.StatusOK, serve(m, "198.51.100.1:80", "X-Forwarded-For", "10.9.8.7, 198.51.100.1"))
	assert.Equal(t, http.StatusForbidden, serve(m, "10.0.0.1:80", "X-Forwarded-For", "198.51.100.9"))
	// 头部无效时回退到 RemoteAddr
	assert.Equal(t, http.StatusOK, serve(m, "10.0.0.1:80", "X-Forwarded-For", "garbage"))
}

func TestDisabled(t *testing.T) {
	m := New(quiet(), Options{})
	assert.Equal(t, http.StatusOK, serve(m, "198.51.100.1:80", "", ""))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1"
	assert.Equal(t, net.ParseIP("192.0.2.1"), ClientIP(req, ""))
}
