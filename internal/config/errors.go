package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Error types reported in ConfigurationError.ErrorType.
const (
	ErrorTypeIO         = "io"
	ErrorTypeParse      = "parse"
	ErrorTypeValidation = "validation"
)

// ConfigurationError represents a structured error that occurs during configuration loading
type ConfigurationError struct {
	FilePath    string   `json:"filePath"`    // Full path to the file that caused the error
	FileName    string   `json:"fileName"`    // Base name of the file
	ErrorType   string   `json:"errorType"`   // Type of error (parse, validation, io)
	Message     string   `json:"message"`     // Human-readable error message
	Details     string   `json:"details"`     // Additional details about the error
	LineNumber  int      `json:"lineNumber"`  // Line number where error occurred (if available)
	Suggestions []string `json:"suggestions"` // Actionable suggestions to fix the error
}

// Error implements the error interface
func (ce ConfigurationError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", ce.ErrorType, ce.FileName, ce.Message)
	if ce.Details != "" {
		msg += ": " + ce.Details
	}
	return msg
}

// DetailedError returns a detailed error message with all context
func (ce ConfigurationError) DetailedError() string {
	var parts []string

	parts = append(parts, fmt.Sprintf("Configuration Error in %s", ce.FileName))
	parts = append(parts, fmt.Sprintf("  File: %s", ce.FilePath))
	parts = append(parts, fmt.Sprintf("  Type: %s", ce.ErrorType))

	if ce.LineNumber > 0 {
		parts = append(parts, fmt.Sprintf("  Line: %d", ce.LineNumber))
	}

	parts = append(parts, fmt.Sprintf("  Error: %s", ce.Message))

	if ce.Details != "" {
		parts = append(parts, fmt.Sprintf("  Details: %s", ce.Details))
	}

	if len(ce.Suggestions) > 0 {
		parts = append(parts, "  Suggestions:")
		for _, suggestion := range ce.Suggestions {
			parts = append(parts, fmt.Sprintf("    - %s", suggestion))
		}
	}

	return strings.Join(parts, "\n")
}

// NewConfigurationError creates a new configuration error with basic information
func NewConfigurationError(filePath, errorType, message string) ConfigurationError {
	return ConfigurationError{
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		ErrorType: errorType,
		Message:   message,
	}
}
