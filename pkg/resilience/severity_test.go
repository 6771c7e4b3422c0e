package resilience

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	apperrors "github.com/harborline/opswatch/pkg/errors"
)

func TestClassifier_DatabaseAlwaysCritical(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name string
		err  error
	}{
		{"plain error", errors.New("something odd")},
		{"not found text", errors.New("row not found")},
		{"validation error", apperrors.NewValidationError("bad input")},
		{"empty message", errors.New("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, SeverityCritical, c.Classify(tt.err, DomainDatabase))
		})
	}
}

func TestClassifier_GenericTextRules(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name     string
		message  string
		expected Severity
	}{
		{"connection refused", "dial tcp 127.0.0.1:5432: connection refused", SeverityCritical},
		{"dns failure", "lookup db.internal: DNS resolution failed", SeverityCritical},
		{"not initialized", "session not initialized", SeverityCritical},
		{"not ready", "client not ready", SeverityCritical},
		{"permission denied", "open /var/lib/data: permission denied", SeverityCritical},
		{"missing permissions", "Missing permissions", SeverityHigh},
		{"invalid input", "invalid duration format", SeverityHigh},
		{"missing argument", "missing required argument: channel", SeverityHigh},
		{"not found", "guild not found", SeverityMedium},
		{"already exists", "reminder already exists", SeverityMedium},
		{"rate limited", "rate limit exceeded, retry later", SeverityMedium},
		{"unclassified", "something odd happened", SeverityLow},
	}

	for _, domain := range []Domain{DomainCommand, DomainService} {
		for _, tt := range tests {
			t.Run(string(domain)+"/"+tt.name, func(t *testing.T) {
				assert.Equal(t, tt.expected, c.Classify(errors.New(tt.message), domain))
			})
		}
	}
}

func TestClassifier_TypedErrors(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name     string
		err      error
		expected Severity
	}{
		{"not ready", apperrors.NewNotReadyError("gateway"), SeverityCritical},
		{"timeout", apperrors.NewTimeoutError("query"), SeverityCritical},
		{"database", apperrors.NewDatabaseError("insert", errors.New("boom")), SeverityCritical},
		{"validation", apperrors.NewValidationError("bad input"), SeverityHigh},
		{"permission", apperrors.NewPermissionError("no role"), SeverityHigh},
		{"not found", apperrors.NewNotFoundError("guild"), SeverityMedium},
		{"conflict", apperrors.NewConflictError("duplicate"), SeverityMedium},
		{"rate limit", apperrors.NewRateLimitError("slow down"), SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.err, DomainService))
		})
	}
}

func TestClassifier_PlatformCodes(t *testing.T) {
	c := NewClassifier()

	tests := []struct {
		name     string
		code     int
		expected Severity
	}{
		{"missing access", CodeMissingAccess, SeverityHigh},
		{"missing permissions", CodeMissingPermissions, SeverityHigh},
		{"invalid form body", CodeInvalidFormBody, SeverityCritical},
		{"oversized payload", CodeRequestEntityTooLarge, SeverityCritical},
		{"unknown channel", CodeUnknownChannel, SeverityHigh},
		{"unknown guild", CodeUnknownGuild, SeverityHigh},
		{"rate limited", CodeRateLimited, SeverityMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := apperrors.NewPlatformError(tt.code, "platform call failed")
			assert.Equal(t, tt.expected, c.Classify(err, DomainPlatformAPI))
		})
	}
}

// A platform missing-permissions error must classify the same whether
// it arrives via the code table or via the message text rule.
func TestClassifier_CodeAndTextPathsAgree(t *testing.T) {
	c := NewClassifier()

	viaCode := c.Classify(apperrors.NewPlatformError(CodeMissingPermissions, "Missing Permissions"), DomainPlatformAPI)
	viaText := c.Classify(errors.New("Missing permissions"), DomainCommand)

	assert.Equal(t, SeverityHigh, viaCode)
	assert.Equal(t, viaCode, viaText)
}

func TestClassifier_NilError(t *testing.T) {
	c := NewClassifier()
	assert.Equal(t, SeverityLow, c.Classify(nil, DomainCommand))
}

func TestClassifier_UnknownPlatformCodeFallsThrough(t *testing.T) {
	c := NewClassifier()

	// An unmapped code classifies by message text
	err := apperrors.NewPlatformError(99999, "connection refused")
	assert.Equal(t, SeverityCritical, c.Classify(err, DomainPlatformAPI))
}

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		expected string
	}{
		{SeverityLow, "low"},
		{SeverityMedium, "medium"},
		{SeverityHigh, "high"},
		{SeverityCritical, "critical"},
		{Severity(999), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.severity.String())
		})
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("settings.update", SeverityHigh, "invalid duration format")
	assert.Equal(t, "settings.update|high|invalid duration format", fp)

	// Long messages are truncated to a fixed prefix
	long := "invalid duration format: expected something much longer than fifty characters of text"
	truncated := Fingerprint("settings.update", SeverityHigh, long)
	assert.Equal(t, "settings.update|high|"+long[:fingerprintPrefixLen], truncated)

	// Two errors sharing a prefix collide; accepted trade-off
	other := long[:fingerprintPrefixLen] + " with a different tail"
	assert.Equal(t, truncated, Fingerprint("settings.update", SeverityHigh, other))
}
