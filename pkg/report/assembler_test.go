package report

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian/hvs/pkg/flavor"
	"github.com/veridian/hvs/pkg/manifest"
	"github.com/veridian/hvs/pkg/trust"
)

func testSigner(t *testing.T, validity time.Duration) *JWSSigner {
	t.Helper()
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return NewJWSSigner(key, "hvs-test", validity)
}

func testManifest() *manifest.Manifest {
	return &manifest.Manifest{
		HostInfo: manifest.HostInfo{
			HostName:     "node-01",
			OSName:       "RedHat",
			OSVersion:    "9.4",
			BIOSName:     "AMI",
			BIOSVersion:  "1.3",
			HardwareUUID: "hw-uuid-1",
			Features: map[string]manifest.Feature{
				"TPM": {Enabled: true, Meta: map[string]string{"version": "2.0"}},
				"TXT": {Enabled: false},
			},
		},
		Tags:        map[string]string{"datacenter": "fra1"},
		CollectedAt: time.Now(),
	}
}

func trustedReport() *trust.Report {
	return &trust.Report{Results: []trust.RuleResult{
		{Rule: "r", Marker: flavor.CategoryPlatform, FlavorID: "P1"},
		{Rule: "r", Marker: flavor.CategoryOS, FlavorID: "OS1"},
	}}
}

func TestClaims(t *testing.T) {
	a := NewAssembler(testSigner(t, 0), nil)
	claims := a.Claims(testManifest(), trustedReport())

	assert.Equal(t, "node-01", claims["HOST_NAME"])
	assert.Equal(t, "9.4", claims["OS_VERSION"])
	assert.Equal(t, "1.3", claims["BIOS_VERSION"])
	assert.Equal(t, "hw-uuid-1", claims["HARDWARE_UUID"])

	assert.Equal(t, "true", claims["FEATURE_TPM"])
	assert.Equal(t, "2.0", claims["FEATURE_TPM_VERSION"])
	assert.Equal(t, "false", claims["FEATURE_TXT"])

	assert.Equal(t, "true", claims["TRUST_PLATFORM"])
	assert.Equal(t, "true", claims["TRUST_OS"])
	// Markers with no rule results at all are NA, not false.
	assert.Equal(t, "NA", claims["TRUST_SOFTWARE"])
	assert.Equal(t, "NA", claims["TRUST_ASSET_TAG"])
	assert.Equal(t, "true", claims["TRUST_OVERALL"])

	assert.Equal(t, "fra1", claims["DATACENTER"])
	_, hasEmpty := claims["PROCESSOR_INFO"]
	assert.False(t, hasEmpty, "empty scalars should be omitted")
}

func TestClaims_UntrustedMarker(t *testing.T) {
	tr := &trust.Report{Results: []trust.RuleResult{
		{Rule: "r", Marker: flavor.CategoryPlatform, FlavorID: "P1",
			Faults: []trust.Fault{{Name: "mismatch"}}},
	}}

	a := NewAssembler(testSigner(t, 0), nil)
	claims := a.Claims(testManifest(), tr)

	assert.Equal(t, "false", claims["TRUST_PLATFORM"])
	assert.Equal(t, "false", claims["TRUST_OVERALL"])
}

func TestAssemble_ValidityRoundTrip(t *testing.T) {
	validity := 8 * time.Hour
	a := NewAssembler(testSigner(t, validity), nil)

	signed, err := a.Assemble(testManifest(), trustedReport())
	require.NoError(t, err)
	require.NotEmpty(t, signed.Assertion)

	// The window handed back must be exactly what the assertion embeds.
	notBefore, notAfter, err := ParseValidity(signed.Assertion)
	require.NoError(t, err)
	assert.True(t, signed.NotBefore.Equal(notBefore))
	assert.True(t, signed.NotAfter.Equal(notAfter))
	assert.Equal(t, validity, notAfter.Sub(notBefore))
}

type failingSigner struct{}

func (failingSigner) Sign(map[string]string) (string, error) {
	return "", errors.New("hsm unavailable")
}

type windowlessSigner struct{}

func (windowlessSigner) Sign(map[string]string) (string, error) {
	// Structurally a JWS but with no claims worth parsing.
	return "not-a-jwt", nil
}

func TestAssemble_SigningFailure(t *testing.T) {
	a := NewAssembler(failingSigner{}, nil)
	_, err := a.Assemble(testManifest(), trustedReport())

	var asmErr *AssemblyError
	require.ErrorAs(t, err, &asmErr)
}

func TestAssemble_UnparseableAssertion(t *testing.T) {
	a := NewAssembler(windowlessSigner{}, nil)
	_, err := a.Assemble(testManifest(), trustedReport())

	var asmErr *AssemblyError
	require.ErrorAs(t, err, &asmErr)
}

func TestParseValidity_MissingWindow(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	// A validly signed token without nbf/exp must still be rejected.
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.EdDSA, Key: key}, nil)
	require.NoError(t, err)
	assertion, err := jwt.Signed(signer).Claims(map[string]interface{}{"TRUST_OVERALL": "true"}).Serialize()
	require.NoError(t, err)

	_, _, err = ParseValidity(assertion)
	require.Error(t, err)

	_, _, err = ParseValidity("garbage")
	require.Error(t, err)
}
