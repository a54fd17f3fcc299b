package config

import (
	"fmt"
	"strings"

	"github.com/giantswarm/kopkit/pkg/logging"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// Validate checks cfg for values that defaults cannot repair.
func Validate(cfg Config) ValidationErrors {
	var errs ValidationErrors

	op := cfg.Operator
	if op.Workers < 0 {
		errs.Add("operator.workers", "must not be negative", op.Workers)
	}
	if op.QPS < 0 {
		errs.Add("operator.qps", "must not be negative", op.QPS)
	}
	if op.Burst < 0 {
		errs.Add("operator.burst", "must not be negative", op.Burst)
	}
	if op.ReconcileTimeout < 0 {
		errs.Add("operator.reconcileTimeout", "must not be negative", op.ReconcileTimeout)
	}
	if op.BaseDelay > 0 && op.MaxDelay > 0 && op.MaxDelay < op.BaseDelay {
		errs.Add("operator.maxDelay", "must not be shorter than baseDelay", op.MaxDelay)
	}

	if cfg.LogLevel != "" {
		if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
			errs.Add("logLevel", err.Error(), cfg.LogLevel)
		}
	}

	for i, p := range cfg.Schema.CRDs {
		if strings.TrimSpace(p) == "" {
			errs.Add(fmt.Sprintf("schema.crds[%d]", i), "must not be empty")
		}
	}

	return errs
}
