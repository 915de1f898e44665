// Package hostconn retrieves measurement manifests from managed hosts and
// classifies connectivity failures into diagnostic host states.
package hostconn

import (
	"context"
	"strings"

	"github.com/veridian/hvs/pkg/manifest"
)

// HostState is the diagnostic state recorded for a host after a manifest
// retrieval attempt.
type HostState string

const (
	StateQueue             HostState = "QUEUE"
	StateConnected         HostState = "CONNECTED"
	StateConnectionFailure HostState = "CONNECTION_FAILURE"
	StateConnectionTimeout HostState = "CONNECTION_TIMEOUT"
	StateUnauthorized      HostState = "UNAUTHORIZED"
	StateUnknown           HostState = "UNKNOWN"
)

// ParseHostState normalizes a state string reported by a remote agent.
// Unrecognized strings map to UNKNOWN rather than failing.
func ParseHostState(s string) HostState {
	switch HostState(strings.ToUpper(strings.TrimSpace(s))) {
	case StateQueue:
		return StateQueue
	case StateConnected:
		return StateConnected
	case StateConnectionFailure:
		return StateConnectionFailure
	case StateConnectionTimeout:
		return StateConnectionTimeout
	case StateUnauthorized:
		return StateUnauthorized
	}
	return StateUnknown
}

// TLSPolicy controls how the connector validates the remote agent's TLS
// certificate. An empty policy means standard verification against the
// system roots.
type TLSPolicy struct {
	// InsecureSkipVerify disables certificate verification entirely.
	// Intended for lab environments only.
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
	// CACertPEM, when set, replaces the system roots for verification.
	CACertPEM string `json:"ca_cert_pem,omitempty" yaml:"ca_cert_pem,omitempty"`
}

// Connector retrieves a host's current measurement manifest. Implementations
// enforce their own connect and read timeouts; callers classify returned
// errors with Classify.
type Connector interface {
	GetManifest(ctx context.Context, connectionString string, policy *TLSPolicy) (*manifest.Manifest, error)
}
