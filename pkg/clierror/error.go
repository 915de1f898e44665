package clierror

import (
	"encoding/json"
	"fmt"
	"os"
)

// Exit codes returned by hvsctl.
const (
	ExitSuccess    = 0 // Operation completed successfully
	ExitGeneral    = 1 // Unknown/unhandled error
	ExitNotFound   = 2 // Resource doesn't exist
	ExitConnection = 3 // Host agent unreachable or rejected the connection
	ExitUntrusted  = 4 // Verification completed with an untrusted result
)

// Error codes for programmatic error handling.
const (
	CodeHostNotFound     = "HOST_NOT_FOUND"
	CodeGroupNotFound    = "GROUP_NOT_FOUND"
	CodeFlavorNotFound   = "FLAVOR_NOT_FOUND"
	CodeReportNotFound   = "REPORT_NOT_FOUND"
	CodeHostUnreachable  = "HOST_UNREACHABLE"
	CodeHostUnauthorized = "HOST_UNAUTHORIZED"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeInternalError    = "INTERNAL_ERROR"
)

// CLIError represents a structured error for CLI output.
type CLIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Hint      string `json:"hint,omitempty"`
	Retryable bool   `json:"retryable"`
	ExitCode  int    `json:"-"` // Not serialized, used for os.Exit
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// HostNotFound creates an error when a host isn't registered.
func HostNotFound(name string) *CLIError {
	return &CLIError{
		Code:      CodeHostNotFound,
		Message:   fmt.Sprintf("host '%s' not found", name),
		Hint:      "Check registered hosts with 'hvsctl host list'",
		Retryable: false,
		ExitCode:  ExitNotFound,
	}
}

// GroupNotFound creates an error when a flavor group doesn't exist.
func GroupNotFound(name string) *CLIError {
	return &CLIError{
		Code:      CodeGroupNotFound,
		Message:   fmt.Sprintf("flavor group '%s' not found", name),
		Hint:      "Check groups with 'hvsctl group list'",
		Retryable: false,
		ExitCode:  ExitNotFound,
	}
}

// FlavorNotFound creates an error when a flavor doesn't exist.
func FlavorNotFound(id string) *CLIError {
	return &CLIError{
		Code:      CodeFlavorNotFound,
		Message:   fmt.Sprintf("flavor '%s' not found", id),
		Hint:      "Check imported flavors with 'hvsctl flavor list'",
		Retryable: false,
		ExitCode:  ExitNotFound,
	}
}

// ReportNotFound creates an error when a host has no trust report yet.
func ReportNotFound(hostName string) *CLIError {
	return &CLIError{
		Code:      CodeReportNotFound,
		Message:   fmt.Sprintf("no trust report for host '%s'", hostName),
		Hint:      fmt.Sprintf("Queue a verification with 'hvsctl verify %s'", hostName),
		Retryable: true,
		ExitCode:  ExitNotFound,
	}
}

// HostUnreachable creates an error when the host agent can't be reached.
func HostUnreachable(name, detail string) *CLIError {
	return &CLIError{
		Code:      CodeHostUnreachable,
		Message:   fmt.Sprintf("failed to connect to host '%s': %s", name, detail),
		Hint:      "Check the connection string and that the trust agent is running",
		Retryable: true,
		ExitCode:  ExitConnection,
	}
}

// HostUnauthorized creates an error when the host agent rejects credentials.
func HostUnauthorized(name string) *CLIError {
	return &CLIError{
		Code:      CodeHostUnauthorized,
		Message:   fmt.Sprintf("host '%s' rejected the connection as unauthorized", name),
		Hint:      "Re-provision the trust agent credentials for this host",
		Retryable: false,
		ExitCode:  ExitConnection,
	}
}

// InvalidInput creates an error for malformed user input.
func InvalidInput(detail string) *CLIError {
	return &CLIError{
		Code:      CodeInvalidInput,
		Message:   detail,
		Hint:      "",
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// InternalError creates an error for unexpected internal errors.
func InternalError(err error) *CLIError {
	msg := "an unexpected internal error occurred"
	if err != nil {
		msg = fmt.Sprintf("internal error: %s", err.Error())
	}
	return &CLIError{
		Code:      CodeInternalError,
		Message:   msg,
		Hint:      "",
		Retryable: false,
		ExitCode:  ExitGeneral,
	}
}

// FormatError returns the error formatted for the given output format.
// "json" yields machine-readable JSON; anything else is human-readable.
func FormatError(err *CLIError, outputFormat string) string {
	if outputFormat == "json" {
		data, jsonErr := json.MarshalIndent(err, "", "  ")
		if jsonErr != nil {
			return fmt.Sprintf(`{"code":"%s","message":"%s"}`, err.Code, err.Message)
		}
		return string(data)
	}

	output := fmt.Sprintf("Error [%s]: %s", err.Code, err.Message)
	if err.Hint != "" {
		output += fmt.Sprintf("\nHint: %s", err.Hint)
	}
	return output
}

// PrintError prints the error to stderr in the appropriate format.
func PrintError(err *CLIError, outputFormat string) {
	fmt.Fprintln(os.Stderr, FormatError(err, outputFormat))
}
