// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different
// environments (development vs production). Repository and cluster
// components receive a *zap.Logger and annotate entries with structured
// fields such as the table being written.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Format: json (production) or console (development)
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Connected to database")
//
//	// In a repository:
//	l := logger.WithTable(log, "player_profiles")
//	l.Error("Save failed", zap.Error(err))
package logger
