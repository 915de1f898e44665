package hostconn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/veridian/hvs/pkg/manifest"
)

// DefaultConnectTimeout bounds one manifest retrieval end to end.
const DefaultConnectTimeout = 30 * time.Second

// HTTPConnector retrieves manifests from a trust agent's HTTP endpoint. The
// connection string is the agent's base URL; the manifest is served at
// {base}/v1/manifest as JSON.
type HTTPConnector struct {
	Timeout time.Duration
}

// NewHTTPConnector creates a connector with the default timeout.
func NewHTTPConnector() *HTTPConnector {
	return &HTTPConnector{Timeout: DefaultConnectTimeout}
}

// agentError is the structured error body a trust agent returns when it
// cannot produce a manifest.
type agentError struct {
	State   string `json:"state"`
	Message string `json:"message"`
}

// GetManifest fetches the host's current manifest.
func (c *HTTPConnector) GetManifest(ctx context.Context, connectionString string, policy *TLSPolicy) (*manifest.Manifest, error) {
	client, err := c.client(policy)
	if err != nil {
		return nil, err
	}

	url := connectionString + "/v1/manifest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &UnauthorizedError{Status: resp.StatusCode, Detail: string(body)}
	default:
		// The agent may return a structured error with its own state.
		var ae agentError
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(body, &ae) == nil && ae.State != "" {
			return nil, &AgentStateError{State: ae.State, Message: ae.Message}
		}
		return nil, fmt.Errorf("agent error %d: %s", resp.StatusCode, string(body))
	}

	var m manifest.Manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.CollectedAt.IsZero() {
		m.CollectedAt = time.Now()
	}
	return &m, nil
}

func (c *HTTPConnector) client(policy *TLSPolicy) (*http.Client, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultConnectTimeout
	}

	tlsConfig := &tls.Config{}
	if policy != nil {
		tlsConfig.InsecureSkipVerify = policy.InsecureSkipVerify
		if policy.CACertPEM != "" {
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM([]byte(policy.CACertPEM)) {
				return nil, fmt.Errorf("TLS policy CA certificate is not valid PEM")
			}
			tlsConfig.RootCAs = pool
		}
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: tlsConfig,
		},
	}, nil
}
