// Package workflow runs the compression queue.
//
// The Manager owns the ordered list of projects and a single worker goroutine
// that processes the first Pending project, one file at a time, through an
// encoding.FileRunner. Control operations (enqueue, pause, resume, cancel,
// reorder, remove, clear, retry) only touch queue metadata under the manager
// lock and never the running encoder directly; the worker observes them at
// file and project boundaries or through the per-file context.
//
// Every accepted transition is written to the queue.Store before the call
// returns, and a matching Event is published to subscribers in the same
// order. The package also summarizes results, exports Prometheus collectors,
// and forwards milestones to the notifications service.
package workflow
