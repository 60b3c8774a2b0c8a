// Package daemon owns the vidqueue process lifecycle around a queue.
//
// It acquires the flock-based single-instance lock on the state directory,
// opens the configured snapshot store, restores the workflow manager from it,
// and optionally serves Prometheus metrics. Every command that touches the
// queue state goes through Open so two processes never write the same
// snapshot. Keep orchestration here: queue semantics live in workflow, and
// encoding lives in encoding.
package daemon
