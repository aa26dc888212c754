// Package utils holds the ambient plumbing shared by the CLI and the audit:
// the layered Viper configuration loader, the zap logger factory, and the
// deferred report writer.
package utils
