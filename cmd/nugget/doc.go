// Command nugget is the CLI for the batch video nugget processor. It creates
// and runs batch jobs, reports their progress, and manages configuration.
package main
