package issue

import (
	"fmt"
	"strings"
)

// Severity is the reporter-assessed impact of an issue.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// DefaultSeverity applies when the reporter does not pick one.
const DefaultSeverity = SeverityMedium

// Severities lists all levels in ascending impact order.
func Severities() []Severity {
	return []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
}

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

func (s Severity) String() string { return string(s) }

// ParseSeverity accepts the canonical form case-insensitively.
func ParseSeverity(raw string) (Severity, error) {
	candidate := Severity(strings.ToUpper(strings.TrimSpace(raw)))
	if !candidate.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeverity, raw)
	}
	return candidate, nil
}
