// Package config loads, normalizes, and validates the TOML configuration that
// drives the nugget pipeline: directory layout, batch job defaults, external
// tool names, LLM connection settings, and logging.
package config
