package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewHTTPClient_Defaults(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(ClientOptions{})
	assert.Equal(t, 30*time.Second, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 100, tr.MaxIdleConns)
	assert.Equal(t, 10, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 5*time.Second, tr.TLSHandshakeTimeout)
	assert.NotNil(t, tr.Proxy)
}

func TestNewHTTPClient_Overrides(t *testing.T) {
	t.Parallel()

	c := NewHTTPClient(ClientOptions{Timeout: 2 * time.Second, MaxIdleConns: 4, MaxIdleConnsPerHost: 2})
	assert.Equal(t, 2*time.Second, c.Timeout)

	tr := c.Transport.(*http.Transport)
	assert.Equal(t, 4, tr.MaxIdleConns)
	assert.Equal(t, 2, tr.MaxIdleConnsPerHost)
}
