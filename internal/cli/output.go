package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/typekey/internal/keyerr"
	"github.com/roach88/typekey/internal/keys"
	"github.com/roach88/typekey/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Input rejected (malformed descriptor or wire, unknown type, missing record)
	ExitCommandError = 2 // Command error (bad config, unusable storage, invalid flags)
)

// Error codes, unified across all CLI commands.
const (
	ErrCodeGeneric             = "E001" // Generic/unknown error
	ErrCodeConfig              = "E002" // Config load, validation or build failed
	ErrCodeStorage             = "E003" // Backend could not be opened or failed
	ErrCodeInvalidArgs         = "E004" // Arguments could not be interpreted
	ErrCodeMalformedDescriptor = "E101" // keyerr.MalformedDescriptor
	ErrCodeUnresolvedModule    = "E102" // keyerr.UnresolvedModule
	ErrCodeUnresolvedType      = "E103" // keyerr.UnresolvedType
	ErrCodeUnmappedType        = "E104" // keyerr.UnmappedType
	ErrCodeMalformedWire       = "E105" // keyerr.MalformedWireFormat
	ErrCodeEmptyKey            = "E106" // Key with no parts
	ErrCodeNotFound            = "E201" // No record under key
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode maps a domain error to its CLI error code.
func ErrorCode(err error) string {
	if kind, ok := keyerr.KindOf(err); ok {
		switch kind {
		case keyerr.MalformedDescriptor:
			return ErrCodeMalformedDescriptor
		case keyerr.UnresolvedModule:
			return ErrCodeUnresolvedModule
		case keyerr.UnresolvedType:
			return ErrCodeUnresolvedType
		case keyerr.UnmappedType:
			return ErrCodeUnmappedType
		case keyerr.MalformedWireFormat:
			return ErrCodeMalformedWire
		}
	}
	switch {
	case errors.Is(err, keys.ErrEmpty):
		return ErrCodeEmptyKey
	case errors.Is(err, store.ErrNotFound):
		return ErrCodeNotFound
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "E001", "E101", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// texter is implemented by results with a text rendering of their own.
type texter interface {
	Text() string
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	if t, ok := data.(texter); ok {
		fmt.Fprintln(f.Writer, t.Text())
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns the ExitError the command should return.
// Domain errors exit with ExitFailure, everything else with exitCode.
func (f *OutputFormatter) Fail(exitCode int, code string, err error) error {
	if domain := ErrorCode(err); domain != ErrCodeGeneric {
		code, exitCode = domain, ExitFailure
	}
	var details interface{}
	if kind, ok := keyerr.KindOf(err); ok {
		details = map[string]string{"kind": string(kind)}
	}
	_ = f.Error(code, err.Error(), details)
	return WrapExitError(exitCode, code, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
