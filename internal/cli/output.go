package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/roach88/relcat/internal/catalog"
	"github.com/roach88/relcat/internal/query"
	"github.com/roach88/relcat/internal/report"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected input (scenarios failed, invalid catalog, rejected batch)
	ExitCommandError = 2 // Command error (invalid paths, schema conflict, bad query, etc.)
)

// Error codes reported in CLIError.Code.
const (
	ErrCodeGeneric    = "E001" // Uncategorized failure
	ErrCodeNotFound   = "E002" // Unknown catalog, table, column or file
	ErrCodeValidation = "E101" // Malformed row or query parameter
	ErrCodeIntegrity  = "E102" // Duplicate key or dangling link
	ErrCodeSchema     = "E103" // Declaration conflicts with the stored schema
)

// ErrorCode maps an error to its CLIError code.
func ErrorCode(err error) string {
	switch {
	case catalog.IsValidationError(err):
		return ErrCodeValidation
	case catalog.IsIntegrityError(err):
		return ErrCodeIntegrity
	case catalog.IsSchemaError(err):
		return ErrCodeSchema
	case catalog.IsNotFound(err):
		return ErrCodeNotFound
	default:
		return ErrCodeGeneric
	}
}

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
	Code    string      `json:"code"`              // "E001", "E002", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Structured reports whether the format is a machine encoding (json or
// msgpack) rather than human-readable text.
func (f *OutputFormatter) Structured() bool {
	return f.Format == string(report.JSON) || f.Format == string(report.MsgPack)
}

// encode writes a response in the structured format.
func (f *OutputFormatter) encode(resp CLIResponse) error {
	if f.Format == string(report.MsgPack) {
		enc := msgpack.NewEncoder(f.Writer)
		enc.SetCustomStructTag("json")
		return enc.Encode(resp)
	}
	return json.NewEncoder(f.Writer).Encode(resp)
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Structured() {
		return f.encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Structured() {
		return f.encode(CLIResponse{
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

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.errWriter(), format+"\n", args...)
}

// errWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Result outputs a query result. Structured formats wrap the result
// document in a CLIResponse; text and tsv render the table directly.
func (f *OutputFormatter) Result(r *query.Result) error {
	if f.Structured() {
		return f.Success(report.NewDocument(r))
	}
	return report.Write(f.Writer, r, report.Format(f.Format))
}

// Fail reports err in structured formats and returns it wrapped with the
// exit code. Text mode leaves printing to the caller of Execute.
func (f *OutputFormatter) Fail(code int, message string, err error) error {
	if f.Structured() {
		_ = f.Error(ErrorCode(err), fmt.Sprintf("%s: %v", message, err), nil)
	}
	return WrapExitError(code, message, err)
}
