package report

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/manifest"
	"github.com/veridian/hvs/pkg/trust"
)

// AssemblyError indicates signing failed or the signed assertion carried no
// parseable validity window. No report is persisted when assembly fails.
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("failed to assemble report: %v", e.Err)
}

func (e *AssemblyError) Unwrap() error { return e.Err }

// Signed is a signed attestation plus the validity window recovered from it.
type Signed struct {
	Assertion string
	NotBefore time.Time
	NotAfter  time.Time
}

// Assembler flattens a manifest and trust report into signable claims and
// hands them to the signer.
type Assembler struct {
	signer Signer
	log    *slog.Logger
}

// NewAssembler creates an assembler. A nil logger falls back to slog.Default.
func NewAssembler(signer Signer, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{signer: signer, log: logger}
}

// Assemble builds the claim set, signs it, and recovers the validity window
// from the signed assertion.
func (a *Assembler) Assemble(m *manifest.Manifest, tr *trust.Report) (*Signed, error) {
	claims := a.Claims(m, tr)

	assertion, err := a.signer.Sign(claims)
	if err != nil {
		return nil, &AssemblyError{Err: fmt.Errorf("signing failed: %w", err)}
	}

	notBefore, notAfter, err := ParseValidity(assertion)
	if err != nil {
		return nil, &AssemblyError{Err: err}
	}

	return &Signed{Assertion: assertion, NotBefore: notBefore, NotAfter: notAfter}, nil
}

// Claims flattens the manifest's host-info scalars, hardware security
// features, per-marker trust states, certificates, and tags into one flat
// string map.
func (a *Assembler) Claims(m *manifest.Manifest, tr *trust.Report) map[string]string {
	claims := make(map[string]string)

	info := m.HostInfo
	putNonEmpty(claims, "HOST_NAME", info.HostName)
	putNonEmpty(claims, "OS_NAME", info.OSName)
	putNonEmpty(claims, "OS_VERSION", info.OSVersion)
	putNonEmpty(claims, "BIOS_NAME", info.BIOSName)
	putNonEmpty(claims, "BIOS_VERSION", info.BIOSVersion)
	putNonEmpty(claims, "PROCESSOR_INFO", info.ProcessorInfo)
	putNonEmpty(claims, "HARDWARE_UUID", info.HardwareUUID)

	for name, feature := range info.Features {
		key := "FEATURE_" + strings.ToUpper(name)
		claims[key] = fmt.Sprintf("%t", feature.Enabled)
		for metaKey, metaValue := range feature.Meta {
			claims[key+"_"+strings.ToUpper(metaKey)] = metaValue
		}
	}

	for _, c := range flavor.Categories() {
		key := "TRUST_" + string(c)
		switch {
		case !tr.HasMarker(c):
			// A marker that produced no rule results is reported as NA,
			// not as untrusted.
			claims[key] = "NA"
		case tr.TrustedForMarker(c):
			claims[key] = "true"
		default:
			claims[key] = "false"
		}
	}
	claims["TRUST_OVERALL"] = fmt.Sprintf("%t", tr.Trusted())

	putNonEmpty(claims, "AIK_CERTIFICATE", m.IdentityCertPEM)
	putNonEmpty(claims, "BINDING_KEY_CERTIFICATE", m.BindingCertPEM)

	for tag, value := range m.Tags {
		claims[strings.ToUpper(tag)] = value
	}

	return claims
}

func putNonEmpty(claims map[string]string, key, value string) {
	if value != "" {
		claims[key] = value
	}
}
