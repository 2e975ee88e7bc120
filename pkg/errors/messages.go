package errors

import (
	"fmt"
	"strings"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	// Check for ConfigError
	var configErr *ConfigError
	if As(err, &configErr) {
		return formatConfigError(configErr)
	}

	// Check for QueryError
	var queryErr *QueryError
	if As(err, &queryErr) {
		return formatQueryError(queryErr)
	}

	// Check for ScanError
	var scanErr *ScanError
	if As(err, &scanErr) {
		return formatScanError(scanErr)
	}

	// Default: return the error message as-is
	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/repodash/config.toml\n")
	b.WriteString("  • Check REPODASH_* environment variables\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatQueryError formats a QueryError with guidance for git failures.
func formatQueryError(err *QueryError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Git query %s failed for %s: %s\n", err.Operation, err.Path, err.Message)

	if err.Timeout {
		b.WriteString("\nThe query timed out. To fix this:\n")
		b.WriteString("  • Check whether the repository lives on a slow or unmounted filesystem\n")
		b.WriteString("  • Raise probe.timeout in your config\n")
	} else {
		b.WriteString("\nTo fix this:\n")
		b.WriteString("  • Run 'git status' inside the repository to see the raw error\n")
		b.WriteString("  • Ensure the git binary configured in git.binary is installed\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatScanError formats a ScanError.
func formatScanError(err *ScanError) string {
	var b strings.Builder

	if err.Root != "" {
		fmt.Fprintf(&b, "Scan of %s failed: %s\n", err.Root, err.Message)
	} else {
		fmt.Fprintf(&b, "Scan failed: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Verify the scan root exists and is readable\n")
	b.WriteString("  • Check discovery.roots in your config\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}
