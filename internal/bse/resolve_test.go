package bse

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveScripCodeNumericPassThrough(t *testing.T) {
	client := NewClient(WithRateLimit(time.Millisecond))

	code, err := client.ResolveScripCode(context.Background(), "500325")
	require.NoError(t, err)
	assert.Equal(t, "500325", code)
}

func TestResolveScripCodeFromSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "RELIANCE", r.URL.Query().Get("text"))
		fmt.Fprint(w, `<ul><li><strong>RELIANCE INDUSTRIES LTD</strong> 500325 EQ</li><li>RELINFRA 500390</li></ul>`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	code, err := client.ResolveScripCode(context.Background(), "RELIANCE")
	require.NoError(t, err)
	assert.Equal(t, "500325", code)
}

func TestResolveScripCodeNoMatch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<ul></ul>`)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRateLimit(time.Millisecond))

	_, err := client.ResolveScripCode(context.Background(), "NOSUCHSTOCK")
	require.Error(t, err)
}
