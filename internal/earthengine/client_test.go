package earthengine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(context.Background(), Config{
		Project:  "test-project",
		Endpoint: srv.URL,
		Options:  []option.ClientOption{option.WithoutAuthentication()},
	})
	require.NoError(t, err)
	return c
}

func TestComputeSendsExpression(t *testing.T) {
	var got computeRequest
	var path, method, ctype string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path, method, ctype = r.URL.Path, r.Method, r.Header.Get("content-type")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("content-type", "application/json")
		_, _ = io.WriteString(w, `{"result":{"forest":12.5,"confusion":null}}`)
	})

	shared := Invoke("Image.load", Args{"id": Constant("a")})
	res, err := c.Compute(context.Background(), Invoke("Image.add", Args{"image1": shared, "image2": shared}))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(path, "/v1/projects/test-project/value:compute"), path)
	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "application/json", ctype)
	require.NotNil(t, got.Expression)
	assert.Equal(t, "0", got.Expression.Result)
	assert.Len(t, got.Expression.Values, 2)

	m, ok := res.(map[string]any)
	require.True(t, ok, "%T", res)
	assert.Equal(t, 12.5, m["forest"])
	assert.Contains(t, m, "confusion")
	assert.Nil(t, m["confusion"])
	assert.Equal(t, "test-project", c.Project())
}

func TestComputeServiceError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"code":503,"message":"backend unavailable","status":"UNAVAILABLE"}}`)
	})
	_, err := c.Compute(context.Background(), Invoke("Image.load", Args{"id": Constant("a")}))
	require.Error(t, err)
	var gerr *googleapi.Error
	require.True(t, errors.As(err, &gerr))
	assert.Equal(t, http.StatusServiceUnavailable, gerr.Code)
	assert.True(t, IsTransient(err))
}

func TestComputeInvalidArgument(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"Invalid GeoJSON geometry.","status":"INVALID_ARGUMENT"}}`)
	})
	_, err := c.Compute(context.Background(), Invoke("Image.load", Args{"id": Constant("a")}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid GeoJSON geometry")
	assert.False(t, IsTransient(err))
}

func TestNewRequiresProject(t *testing.T) {
	_, err := New(context.Background(), Config{Options: []option.ClientOption{option.WithoutAuthentication()}})
	assert.Error(t, err)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unavailable", &googleapi.Error{Code: 503}, true},
		{"rate limited", &googleapi.Error{Code: 429}, true},
		{"wrapped gateway timeout", errors.Join(errors.New("compute"), &googleapi.Error{Code: 504}), true},
		{"bad request", &googleapi.Error{Code: 400}, false},
		{"not found", &googleapi.Error{Code: 404}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
		{"truncated body", io.ErrUnexpectedEOF, true},
		{"network", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
