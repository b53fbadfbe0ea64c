package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "provisio/pkg/domain-errors"
)

func TestVerify(t *testing.T) {
	var seen verifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&seen))
		_ = json.NewEncoder(w).Encode(map[string]bool{"success": seen.Response == "good-token"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)

	ok, err := c.Verify(context.Background(), "secret-1", "good-token", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "secret-1", seen.Secret)
	assert.Equal(t, "203.0.113.9", seen.RemoteIP)

	ok, err = c.Verify(context.Background(), "secret-1", "bad-token", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := NewClient(srv.URL)
	_, err := c.Verify(context.Background(), "secret", "token", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeExternal))
}
