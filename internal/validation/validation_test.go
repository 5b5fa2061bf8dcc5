package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidPrincipal(t *testing.T) {
	assert.True(t, IsValidPrincipal("0x1234567890123456789012345678901234567890"))
	assert.True(t, IsValidPrincipal("0xABCDEFabcdef1234567890123456789012345678"))
	assert.False(t, IsValidPrincipal(""))
	assert.False(t, IsValidPrincipal("0x123"))
	assert.False(t, IsValidPrincipal("1234567890123456789012345678901234567890xx"))
}

func TestNormalizePrincipal(t *testing.T) {
	got := NormalizePrincipal("  0xABCDEFabcdef1234567890123456789012345678 ")
	assert.Equal(t, "0xabcdefabcdef1234567890123456789012345678", got)
}

func TestIsValidVerificationHash(t *testing.T) {
	assert.True(t, IsValidVerificationHash(strings.Repeat("ab", 32)))
	assert.True(t, IsValidVerificationHash("0x"+strings.Repeat("ab", 32)))
	assert.False(t, IsValidVerificationHash(strings.Repeat("ab", 31)))
	assert.False(t, IsValidVerificationHash(strings.Repeat("zz", 32)))
}

func TestIsValidProtocol(t *testing.T) {
	assert.True(t, IsValidProtocol("uniswap-v3"))
	assert.False(t, IsValidProtocol(""))
	assert.False(t, IsValidProtocol(strings.Repeat("p", MaxProtocolLen+1)))
	assert.True(t, IsValidProtocol(strings.Repeat("p", MaxProtocolLen)))
}

func TestIsValidVulnType(t *testing.T) {
	assert.True(t, IsValidVulnType("reentrancy"))
	assert.False(t, IsValidVulnType(strings.Repeat("v", MaxVulnTypeLen+1)))
}

func TestValidate_CollectsErrors(t *testing.T) {
	errs := Validate(
		Required("predictor", ""),
		ValidPrincipal("predictor", "nothex"),
		InRange("severity", 150, 0, 100),
	)
	assert.Len(t, errs, 3)
	assert.Contains(t, errs.Error(), "predictor")
}

func TestValidate_AllPass(t *testing.T) {
	errs := Validate(
		Required("predictor", "0x1234567890123456789012345678901234567890"),
		ValidPrincipal("predictor", "0x1234567890123456789012345678901234567890"),
		InRange("severity", 80, 0, 100),
	)
	assert.Empty(t, errs)
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "abc", SanitizeString("  abc\x00  ", 10))
	assert.Equal(t, "abcde", SanitizeString("abcdefgh", 5))
}
