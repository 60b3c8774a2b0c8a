// Package ingest turns source directories into project specs for the queue.
//
// It scans for configured video extensions, optionally confirms each file
// with ffprobe, names the project after its folder, and derives destination
// paths under the output root.
package ingest
