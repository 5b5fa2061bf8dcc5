// Package validation provides input validation for the market API.
package validation

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (1MB)
const MaxRequestSize = 1 << 20 // 1MB

// Field length bounds from the market's data model.
const (
	MaxProtocolLen = 50
	MaxVulnTypeLen = 30
)

// VerificationHashLen is the expected hex length of a 32-byte digest.
const VerificationHashLen = 64

// hashRegex validates 32-byte hex digests (optional 0x prefix).
var hashRegex = regexp.MustCompile(`^(0x)?[a-fA-F0-9]{64}$`)

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// IsValidPrincipal checks if a string is a valid principal address.
func IsValidPrincipal(addr string) bool {
	return common.IsHexAddress(addr)
}

// NormalizePrincipal lowercases and 0x-prefixes a principal address.
// Callers should validate with IsValidPrincipal first.
func NormalizePrincipal(addr string) string {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return strings.ToLower(addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex())
}

// IsValidVerificationHash checks for a 32-byte hex digest.
func IsValidVerificationHash(s string) bool {
	return hashRegex.MatchString(s)
}

// IsValidProtocol checks the bounded protocol identifier.
func IsValidProtocol(s string) bool {
	return s != "" && len(s) <= MaxProtocolLen && !strings.ContainsRune(s, '\x00')
}

// IsValidVulnType checks the bounded vulnerability type string.
func IsValidVulnType(s string) bool {
	return s != "" && len(s) <= MaxVulnTypeLen && !strings.ContainsRune(s, '\x00')
}

// SanitizeString removes dangerous characters and limits length
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	return e[0].Field + ": " + e[0].Message
}

// Validate validates a request and returns errors
func Validate(validators ...func() *ValidationError) ValidationErrors {
	var errors ValidationErrors
	for _, v := range validators {
		if err := v(); err != nil {
			errors = append(errors, *err)
		}
	}
	return errors
}

// Required checks if a field is non-empty
func Required(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Message: "is required"}
		}
		return nil
	}
}

// ValidPrincipal checks if a field is a valid principal address
func ValidPrincipal(field, value string) func() *ValidationError {
	return func() *ValidationError {
		if value == "" {
			return nil // Use Required for required fields
		}
		if !IsValidPrincipal(value) {
			return &ValidationError{Field: field, Message: "must be a valid principal address (0x...)"}
		}
		return nil
	}
}

// MaxLength checks if a field exceeds max length
func MaxLength(field, value string, max int) func() *ValidationError {
	return func() *ValidationError {
		if len(value) > max {
			return &ValidationError{Field: field, Message: "exceeds maximum length"}
		}
		return nil
	}
}

// InRange checks a bounded 0..100 score field.
func InRange(field string, value, min, max int) func() *ValidationError {
	return func() *ValidationError {
		if value < min || value > max {
			return &ValidationError{Field: field, Message: "out of range"}
		}
		return nil
	}
}

// PrincipalParamMiddleware validates the :principal URL parameter on routes
// that use it. Apply to route groups to reject malformed addresses early.
func PrincipalParamMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr := c.Param("principal")
		if addr != "" && !IsValidPrincipal(addr) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_principal",
				"message": "principal must be a valid address (0x + 40 hex chars)",
			})
			return
		}
		c.Next()
	}
}
