// Package relay is the boundary to the external media relay. The
// coordinator never touches the media plane itself; it only requests a
// scoped access credential on join and hands it to the client.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Credential is opaque beyond the token and the endpoint the client must
// dial with it.
type Credential struct {
	Token    string `json:"token"`
	Endpoint string `json:"endpoint"`
}

// CredentialGate issues a scoped room credential for one identity.
type CredentialGate interface {
	Issue(ctx context.Context, room, identity, name string) (Credential, error)
}

type Config struct {
	URL       string
	APIKey    string
	APISecret string
	Timeout   time.Duration
}

// HTTPGate requests credentials from the relay's token service.
type HTTPGate struct {
	cfg    Config
	client *http.Client
}

func NewHTTPGate(cfg Config) *HTTPGate {
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &HTTPGate{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type tokenRequest struct {
	Room     string `json:"room"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

func (g *HTTPGate) Issue(ctx context.Context, room, identity, name string) (Credential, error) {
	body, err := json.Marshal(tokenRequest{Room: room, Identity: identity, Name: name})
	if err != nil {
		return Credential{}, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL, bytes.NewBuffer(body))
	if err != nil {
		return Credential{}, fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.cfg.APIKey, g.cfg.APISecret)

	resp, err := g.client.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("call relay token service: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("relay token service status %d", resp.StatusCode)
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return Credential{}, fmt.Errorf("decode token response: %w", err)
	}
	if cred.Token == "" {
		return Credential{}, fmt.Errorf("relay returned empty token")
	}
	log.Debug().Str("module", "relay").Str("room", room).Str("identity", identity).Msg("credential issued")
	return cred, nil
}
