package audit

import (
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

const (
	reconnectBackoffInit = 100 * time.Millisecond
	reconnectBackoffMax  = 30 * time.Second
)

// SyslogEmitter writes verification audit events to the local syslog daemon
// as RFC 5424 messages with structured data.
//
// On write failure the emitter attempts to reconnect to the syslog socket
// with exponential backoff (100ms initial, 30s cap). This handles transient
// syslog restarts without tight-looping.
type SyslogEmitter struct {
	conn       net.Conn
	hostname   string
	appName    string
	facility   Facility
	socketPath string

	mu              sync.Mutex
	backoff         time.Duration
	lastReconnectAt time.Time
}

// SyslogConfig holds configuration for the syslog writer.
type SyslogConfig struct {
	SocketPath string   // Default: "/dev/log"
	Hostname   string   // Default: os.Hostname()
	AppName    string   // Default: "hvs"
	Facility   Facility // Default: FacLocal0
}

// NewSyslogEmitter creates a SyslogEmitter that writes RFC 5424 messages to
// the local syslog daemon. Returns an error if the syslog socket is
// unavailable. Callers should degrade gracefully on error (log-only audit
// is acceptable).
func NewSyslogEmitter(cfg SyslogConfig) (*SyslogEmitter, error) {
	if cfg.SocketPath == "" {
		cfg.SocketPath = "/dev/log"
	}
	if cfg.Hostname == "" {
		h, err := os.Hostname()
		if err != nil {
			cfg.Hostname = "unknown"
		} else {
			cfg.Hostname = h
		}
	}
	if cfg.AppName == "" {
		cfg.AppName = "hvs"
	}
	if cfg.Facility == 0 {
		cfg.Facility = FacLocal0
	}

	conn, err := dialSyslog(cfg.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("syslog connect: %w", err)
	}

	return &SyslogEmitter{
		conn:       conn,
		hostname:   cfg.Hostname,
		appName:    cfg.AppName,
		facility:   cfg.Facility,
		socketPath: cfg.SocketPath,
	}, nil
}

// Emit converts an audit Event to an RFC 5424 message and writes it to the
// syslog socket. Safe to call on a nil receiver (returns nil).
func (w *SyslogEmitter) Emit(ev Event) error {
	if w == nil {
		return nil
	}
	params := make([]SDParam, 0, 4)
	if ev.HostID != "" {
		params = append(params, SDParam{Name: "host_id", Value: ev.HostID})
	}
	for k, v := range ev.Details {
		params = append(params, SDParam{Name: k, Value: v})
	}

	msg := Message{
		Facility:  w.facility,
		Severity:  ev.Severity,
		Timestamp: ev.Timestamp,
		Hostname:  w.hostname,
		AppName:   w.appName,
		MessageID: string(ev.Type),
		SD: []SDElement{{
			ID:     "hvs",
			Params: params,
		}},
	}

	return w.writeOrReconnect(FormatMessage(msg))
}

// writeOrReconnect writes data to the syslog socket. On failure it attempts
// one reconnect (subject to backoff) and retries the write.
func (w *SyslogEmitter) writeOrReconnect(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, err := w.conn.Write(data)
	if err == nil {
		w.backoff = 0
		return nil
	}

	// Write failed. Attempt reconnect (backoff-gated).
	if reconnErr := w.reconnectLocked(); reconnErr != nil {
		return fmt.Errorf("syslog write failed (%v), reconnect failed: %w", err, reconnErr)
	}

	// Retry on the fresh connection.
	_, err = w.conn.Write(data)
	if err == nil {
		w.backoff = 0
	}
	return err
}

// reconnectLocked closes the dead connection and dials a new one.
// Must be called with w.mu held. Respects exponential backoff to avoid
// tight reconnect loops during sustained syslog outages.
func (w *SyslogEmitter) reconnectLocked() error {
	if w.backoff > 0 && time.Since(w.lastReconnectAt) < w.backoff {
		return fmt.Errorf("syslog reconnect backoff: retry in %v", w.backoff-time.Since(w.lastReconnectAt))
	}

	w.conn.Close()

	conn, err := dialSyslog(w.socketPath)
	if err != nil {
		w.lastReconnectAt = time.Now()
		if w.backoff == 0 {
			w.backoff = reconnectBackoffInit
		} else {
			w.backoff *= 2
			if w.backoff > reconnectBackoffMax {
				w.backoff = reconnectBackoffMax
			}
		}
		return fmt.Errorf("syslog reconnect: %w", err)
	}

	w.conn = conn
	w.backoff = 0
	w.lastReconnectAt = time.Time{}
	return nil
}

// Close closes the syslog socket connection.
// Safe to call on a nil receiver (returns nil).
func (w *SyslogEmitter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.Close()
}

// dialSyslog connects to the local syslog daemon. Tries unixgram (datagram) first,
// falls back to unix (stream) for compatibility with different syslog implementations.
func dialSyslog(socketPath string) (net.Conn, error) {
	conn, err := net.Dial("unixgram", socketPath)
	if err == nil {
		return conn, nil
	}
	return net.Dial("unix", socketPath)
}
