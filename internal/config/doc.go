// Package config loads the kopkit configuration file.
//
// Configuration lives in a single directory containing config.yaml. The
// default directory is ~/.config/kopkit; commands accept --config-path to
// point elsewhere. A missing config.yaml is not an error: the defaults are
// used instead.
//
// # File Format
//
//	operator:
//	  name: widgets
//	  workers: 2
//	  baseDelay: 5ms
//	  maxDelay: 15m
//	  qps: 10
//	  burst: 100
//	  reconcileTimeout: 30s
//	  fieldManager: widget-operator
//	schema:
//	  openapi: schemas/swagger.json
//	  crds:
//	    - crds/widgets.yaml
//	logLevel: info
//
// Relative schema paths are resolved against the configuration directory.
//
// # Errors
//
// Malformed or invalid files yield a ConfigurationError describing the file,
// the kind of failure and, where available, the offending line.
package config
