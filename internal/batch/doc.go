// Package batch turns lists of remote video references into nugget exports.
//
// A job is created with a name, an ordered list of references, and a per-job
// configuration, then started explicitly. Each running job has one dispatcher
// that admits items in submission order, a bounded pool of workers that run
// the processing pipeline, and one collector that persists every outcome
// together with the updated progress snapshot. Job records live in SQLite and
// survive process restarts.
package batch
