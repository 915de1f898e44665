// Package manifest models the point-in-time measurement snapshot retrieved
// from a managed host. The trust engine treats the measured values as opaque;
// only the identity fields and the host-info block are interpreted here.
package manifest

import (
	"encoding/json"
	"time"
)

// Feature describes one detected hardware security feature. Meta carries
// feature-specific detail such as a profile name or encryption algorithm.
type Feature struct {
	Enabled bool              `json:"enabled"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// HostInfo is the scalar identity block of a manifest. Every scalar field
// here ends up as a claim in the signed report; structured sub-objects
// (features, installed components) are flattened separately.
type HostInfo struct {
	HostName            string             `json:"host_name"`
	OSName              string             `json:"os_name"`
	OSVersion           string             `json:"os_version"`
	BIOSName            string             `json:"bios_name"`
	BIOSVersion         string             `json:"bios_version"`
	ProcessorInfo       string             `json:"processor_info"`
	HardwareUUID        string             `json:"hardware_uuid"`
	InstalledComponents []string           `json:"installed_components,omitempty"`
	Features            map[string]Feature `json:"hardware_features,omitempty"`
}

// Manifest is a host's measurement snapshot at a point in time.
type Manifest struct {
	HostInfo        HostInfo                   `json:"host_info"`
	Measurements    map[string]json.RawMessage `json:"measurements,omitempty"`
	Tags            map[string]string          `json:"tags,omitempty"`
	IdentityCertPEM string                     `json:"identity_cert_pem,omitempty"`
	BindingCertPEM  string                     `json:"binding_cert_pem,omitempty"`
	CollectedAt     time.Time                  `json:"collected_at"`
}

// HardwareUUID returns the host's hardware UUID from the identity block.
func (m *Manifest) HardwareUUID() string {
	return m.HostInfo.HardwareUUID
}

// HasComponent reports whether the named agent component is installed on the
// host. Component names are matched exactly.
func (m *Manifest) HasComponent(name string) bool {
	for _, c := range m.HostInfo.InstalledComponents {
		if c == name {
			return true
		}
	}
	return false
}

// Encode serializes the manifest for storage as a host-status snapshot.
func (m *Manifest) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserializes a stored manifest snapshot.
func Decode(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
