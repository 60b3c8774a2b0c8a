// Command vidqueue queues folders of video files and compresses them one file
// at a time with ffmpeg.
//
// "vidqueue run" owns the queue for the length of a run: it takes the state
// directory lock, restores the persisted queue, optionally enqueues new
// folders, processes everything pending, and exits when the queue drains.
// The editing commands (add, remove, reorder, clear, retry) take the same
// lock, so they refuse to run while a run is in progress; status and results
// only read the persisted snapshot and work at any time.
package main
