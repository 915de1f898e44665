// Package clierror provides structured errors for CLI output with codes,
// exit codes, and remediation hints.
//
// Commands return a *CLIError for failures the operator can act on; the
// entry point maps it to the right exit code and prints the hint. Plain
// errors fall back to exit code 1 with no hint.
package clierror
