// Package services defines shared utilities consumed by the pipeline stage
// implementations and external tool integrations.
//
// Key responsibilities:
//   - Context helpers that stamp batch job IDs, item references, stage names,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification uniform across the per-item stage taxonomy.
//
// Use these helpers when wiring new stage logic so operational behaviour (error
// handling, observability, retries) stays uniform across the pipeline.
package services
