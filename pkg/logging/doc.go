// Package logging provides subsystem-tagged structured logging for kopkit.
//
// The package is a thin layer over Go's log/slog. Every record carries a
// subsystem attribute so controller, informer and reconciler output can be
// filtered independently.
//
// # Usage
//
//	logging.InitForCLI(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Controller", "Started %d workers", workers)
//	logging.Debug("Informer", "Registered handler for %s", gvk)
//	logging.Error("Reconciler", err, "Failed to apply %s", name)
//
// # Controller-Runtime Integration
//
// InitForCLI also installs the configured handler as the controller-runtime
// logger (via logr.FromSlogHandler), so caches and informers created through
// controller-runtime log through the same destination and level without
// warnings about an uninitialized logger.
//
// Calls made before InitForCLI are dropped.
package logging
