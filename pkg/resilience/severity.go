package resilience

import (
	"strings"

	"github.com/harborline/opswatch/pkg/errors"
)

// Severity represents how severe a reported error is
type Severity int

const (
	// SeverityLow - unclassified errors, logged only
	SeverityLow Severity = iota
	// SeverityMedium - expected application errors (not found, conflicts)
	SeverityMedium
	// SeverityHigh - caller input or access problems that need attention
	SeverityHigh
	// SeverityCritical - unavailable dependencies and data-layer failures
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Domain identifies where an error was reported from
type Domain string

const (
	DomainCommand     Domain = "command"
	DomainService     Domain = "service"
	DomainDatabase    Domain = "database"
	DomainPlatformAPI Domain = "platform_api"
)

// Platform API error codes carried by errors.AppError.APICode.
const (
	CodeUnknownChannel        = 10003
	CodeUnknownGuild          = 10004
	CodeUnknownMessage        = 10008
	CodeUnknownUser           = 10013
	CodeRequestEntityTooLarge = 40005
	CodeMissingAccess         = 50001
	CodeMissingPermissions    = 50013
	CodeInvalidFormBody       = 50035
	CodeRateLimited           = 429
)

// platformCodeSeverity maps platform API error codes to severities
// independent of message text. When a code is present it takes
// precedence over the text rules.
var platformCodeSeverity = map[int]Severity{
	CodeMissingAccess:         SeverityHigh,
	CodeMissingPermissions:    SeverityHigh,
	CodeInvalidFormBody:       SeverityCritical,
	CodeRequestEntityTooLarge: SeverityCritical,
	CodeUnknownChannel:        SeverityHigh,
	CodeUnknownGuild:          SeverityHigh,
	CodeUnknownMessage:        SeverityHigh,
	CodeUnknownUser:           SeverityHigh,
	CodeRateLimited:           SeverityMedium,
}

// Ordered message patterns, first match wins. Checked lowercase.
var (
	criticalPatterns = []string{
		"connection refused",
		"connection reset",
		"no such host",
		"dns",
		"not initialized",
		"not ready",
		"permission denied",
		"unavailable",
	}
	highPatterns = []string{
		"missing permission",
		"missing access",
		"invalid",
		"missing",
		"required",
	}
	mediumPatterns = []string{
		"not found",
		"already exists",
		"unknown channel",
		"unknown guild",
		"unknown message",
		"unknown user",
		"rate limit",
	}
)

// Classifier maps an error and its reporting domain to a severity.
// It is a pure function of its inputs and safe for concurrent use.
type Classifier struct{}

// NewClassifier creates a new severity classifier
func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify computes the severity for an error reported from the given
// domain. Rules are ordered, first match wins:
//
//  1. database domain errors are always critical
//  2. platform API codes resolve through the code table
//  3. typed application errors resolve by type
//  4. message text rules
//  5. everything else is low
func (c *Classifier) Classify(err error, domain Domain) Severity {
	if err == nil {
		return SeverityLow
	}

	if domain == DomainDatabase {
		return SeverityCritical
	}

	if domain == DomainPlatformAPI {
		if code := errors.GetAPICode(err); code != 0 {
			if sev, ok := platformCodeSeverity[code]; ok {
				return sev
			}
		}
	}

	if appErr, ok := err.(*errors.AppError); ok {
		switch appErr.Type {
		case errors.ErrorTypeNotReady, errors.ErrorTypeTimeout, errors.ErrorTypeDatabase:
			return SeverityCritical
		case errors.ErrorTypeValidation, errors.ErrorTypePermission:
			return SeverityHigh
		case errors.ErrorTypeNotFound, errors.ErrorTypeConflict, errors.ErrorTypeRateLimit:
			return SeverityMedium
		}
		// internal and external errors classify by message text
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, criticalPatterns):
		return SeverityCritical
	case containsAny(msg, highPatterns):
		return SeverityHigh
	case containsAny(msg, mediumPatterns):
		return SeverityMedium
	}

	return SeverityLow
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// fingerprintPrefixLen bounds the message contribution to a
// fingerprint. Semantically different errors sharing a prefix collide;
// accepted in exchange for stable dedup keys.
const fingerprintPrefixLen = 50

// Fingerprint derives the deduplication key shared by the tracker and
// the throttler: context tag + severity + message prefix.
func Fingerprint(contextTag string, severity Severity, message string) string {
	prefix := message
	if len(prefix) > fingerprintPrefixLen {
		prefix = prefix[:fingerprintPrefixLen]
	}
	return contextTag + "|" + severity.String() + "|" + prefix
}
