// Package notifications delivers queue milestones via ntfy.
//
// The default implementation publishes to the topic configured under
// [notifications] and degrades to a no-op when no topic is set. Per-category
// toggles decide whether project, queue, and error messages are sent.
package notifications
