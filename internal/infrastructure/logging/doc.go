// Package logging provides structured logging for BluLok Core.
//
// It wraps log/slog with configuration-driven level/format selection and
// default service/version attributes. Components receive a *Logger (or a
// narrower local interface) by injection; there is no package-level logger.
package logging
