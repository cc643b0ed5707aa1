// Package logging provides structured logging for Doorguard.
//
// It wraps log/slog: JSON output for production, text output for bench
// work, default service/version fields, and per-component child loggers.
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr, discard
//
// # Security
//
// Never log passcodes, admin secrets or full card identifiers. Card reads are
// logged by their last two bytes only (see policy.CardID.Redacted).
package logging
