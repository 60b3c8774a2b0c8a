package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

// WriteScript writes an executable /bin/sh script and returns its path. The
// body is appended after the shebang line.
func WriteScript(t testing.TB, path, body string) string {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write script %s: %v", path, err)
	}
	return path
}

// FFprobeDuration returns a probe script body that prints a fixed duration.
func FFprobeDuration(seconds string) string {
	return "echo " + seconds + "\n"
}

// FFprobeHang returns a probe script body whose child keeps stdout open for
// seconds before the duration is printed.
func FFprobeHang(seconds int) string {
	return "sleep " + strconv.Itoa(seconds) + "\necho 10\n"
}

// FFmpegSuccess returns an encoder script body that prints the given progress
// times to stderr and writes outputSize bytes to its last argument.
//
// The script resolves the destination as the final positional argument,
// matching the argument layout the invoker produces.
func FFmpegSuccess(outputSize int, progressTimes ...string) string {
	body := "for last; do :; done\n"
	for _, ts := range progressTimes {
		body += "echo \"frame=1 fps=30 size=1kB time=" + ts + " bitrate=1kbits/s speed=1x\" >&2\n"
	}
	body += "head -c " + strconv.Itoa(outputSize) + " /dev/zero > \"$last\"\n"
	body += "exit 0\n"
	return body
}

// FFmpegExit returns an encoder script body that exits with code after
// optionally writing a partial output file.
func FFmpegExit(code int, partialBytes int) string {
	body := "for last; do :; done\n"
	if partialBytes > 0 {
		body += "head -c " + strconv.Itoa(partialBytes) + " /dev/zero > \"$last\"\n"
	}
	body += "echo 'Conversion failed!' >&2\n"
	body += "exit " + strconv.Itoa(code) + "\n"
	return body
}

// FFmpegHang returns an encoder script body that writes a partial file, prints
// one progress line, and then sleeps. When ignoreTerm is set it traps SIGTERM
// so only SIGKILL stops it.
func FFmpegHang(ignoreTerm bool) string {
	body := "for last; do :; done\n"
	if ignoreTerm {
		body += "trap '' TERM\n"
	}
	body += "head -c 64 /dev/zero > \"$last\"\n"
	body += "echo \"frame=1 time=00:00:01.00 speed=1x\" >&2\n"
	body += "sleep 30\n"
	return body
}
