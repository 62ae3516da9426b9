package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGateIssue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "key", user)
		assert.Equal(t, "secret", pass)

		var req tokenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "general", req.Room)
		assert.Equal(t, "user-1", req.Identity)
		assert.Equal(t, "alice", req.Name)

		json.NewEncoder(w).Encode(Credential{Token: "jwt-abc", Endpoint: "wss://relay.local"})
	}))
	defer srv.Close()

	gate := NewHTTPGate(Config{URL: srv.URL, APIKey: "key", APISecret: "secret"})
	cred, err := gate.Issue(context.Background(), "general", "user-1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", cred.Token)
	assert.Equal(t, "wss://relay.local", cred.Endpoint)
}

func TestHTTPGateIssueNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	gate := NewHTTPGate(Config{URL: srv.URL})
	_, err := gate.Issue(context.Background(), "general", "user-1", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestHTTPGateIssueEmptyToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Credential{Endpoint: "wss://relay.local"})
	}))
	defer srv.Close()

	gate := NewHTTPGate(Config{URL: srv.URL})
	_, err := gate.Issue(context.Background(), "general", "user-1", "alice")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty token")
}

func TestHTTPGateIssueUnreachable(t *testing.T) {
	gate := NewHTTPGate(Config{URL: "http://127.0.0.1:1/token"})
	_, err := gate.Issue(context.Background(), "general", "user-1", "alice")
	require.Error(t, err)
}

func TestHTTPGateContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	gate := NewHTTPGate(Config{URL: srv.URL})
	_, err := gate.Issue(ctx, "general", "user-1", "alice")
	require.Error(t, err)
}
