package hostconn

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"os"
	"syscall"
)

// Classify maps a manifest-retrieval error to a diagnostic host state. It is
// total: every error maps to some state, and a nil error means the host was
// reached successfully.
//
// Mapping:
//   - nil: CONNECTED
//   - structured agent error carrying its own state: that state
//   - authentication/authorization rejection: UNAUTHORIZED
//   - socket or read timeout, context deadline: CONNECTION_TIMEOUT
//   - connection refused/unreachable, TLS handshake failure: CONNECTION_FAILURE
//   - anything else: UNKNOWN
func Classify(err error) HostState {
	if err == nil {
		return StateConnected
	}

	var agentErr *AgentStateError
	if errors.As(err, &agentErr) {
		return ParseHostState(agentErr.State)
	}

	var authErr *UnauthorizedError
	if errors.As(err, &authErr) {
		return StateUnauthorized
	}

	if isTimeout(err) {
		return StateConnectionTimeout
	}

	if isConnectionFailure(err) {
		return StateConnectionFailure
	}

	return StateUnknown
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnectionFailure(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	// TLS handshake failures: record-layer errors, certificate verification
	// failures, and unknown-authority chains.
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}

	// DNS resolution failures surface as *net.DNSError without a wrapped
	// syscall errno.
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// A dial-phase *net.OpError that is not a timeout is a transport-level
	// connection failure even when the errno is not one of the usual four.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	return false
}
