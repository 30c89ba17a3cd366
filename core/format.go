package core

import "fmt"

// ReportFormat selects how much detail a report carries per group.
type ReportFormat string

const (
	// FormatMinimal reports groups without their member verbatims.
	FormatMinimal ReportFormat = "minimal"
	// FormatExtended reports groups with their non-zero-score members.
	FormatExtended ReportFormat = "extended"
	// FormatFull reports groups with every member.
	FormatFull ReportFormat = "full"
)

// ReportFormats lists the accepted format names.
var ReportFormats = []ReportFormat{FormatMinimal, FormatExtended, FormatFull}

// ParseReportFormat converts a format name into a ReportFormat.
func ParseReportFormat(s string) (ReportFormat, error) {
	f := ReportFormat(s)
	switch f {
	case FormatMinimal, FormatExtended, FormatFull:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q (want minimal, extended or full)", ErrInvalidFormat, s)
}

// ValidateLimit checks a report size.
func ValidateLimit(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	return nil
}
