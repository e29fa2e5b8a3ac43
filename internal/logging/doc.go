// Package logging builds the slog loggers used across the batch pipeline.
//
// Two output formats are supported: a compact console handler for interactive
// use (colour gated on TTY detection) and a JSON handler for log files and
// machine consumption. Context helpers propagate job, item, stage, and
// correlation identifiers into every record emitted under that context.
package logging
