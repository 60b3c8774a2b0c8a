package encoding

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var progressTimePattern = regexp.MustCompile(`time=\s*(-?\d+):(\d{2}):(\d{2}(?:\.\d+)?)`)

// ParseProgressLine extracts the media time from an ffmpeg status line such as
// `frame=  42 fps=25 ... time=00:01:23.45 bitrate=...`. Lines without a time
// value, or with ffmpeg's negative/N/A placeholders, are not recognized.
func ParseProgressLine(line string) (time.Duration, bool) {
	matches := progressTimePattern.FindStringSubmatch(line)
	if len(matches) != 4 {
		return 0, false
	}
	hours, err := strconv.Atoi(matches[1])
	if err != nil || hours < 0 {
		return 0, false
	}
	minutes, err := strconv.Atoi(matches[2])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(matches[3], 64)
	if err != nil {
		return 0, false
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds*float64(time.Second))
	return total, true
}

// Progress is one observation of a running encode.
type Progress struct {
	// Elapsed is the media time the encoder has reached.
	Elapsed time.Duration
	// Total is the probed media duration; zero when unknown.
	Total time.Duration
	// Fraction is min(Elapsed/Total, 1), or zero when Determinate is false.
	Fraction    float64
	Determinate bool
	WallTime    time.Duration
	ETA         time.Duration
}

// progressTracker turns raw elapsed values into progress that never moves
// backwards, even when the encoder repeats or reorders status lines.
type progressTracker struct {
	total   time.Duration
	started time.Time
	now     func() time.Time

	maxElapsed  time.Duration
	maxFraction float64
}

func newProgressTracker(total time.Duration, now func() time.Time) *progressTracker {
	if now == nil {
		now = time.Now
	}
	return &progressTracker{total: total, started: now(), now: now}
}

func (t *progressTracker) observe(elapsed time.Duration) Progress {
	if elapsed > t.maxElapsed {
		t.maxElapsed = elapsed
	}
	p := Progress{
		Elapsed:  t.maxElapsed,
		Total:    t.total,
		WallTime: t.now().Sub(t.started),
	}
	if t.total > 0 {
		fraction := float64(t.maxElapsed) / float64(t.total)
		if fraction > 1 {
			fraction = 1
		}
		if fraction > t.maxFraction {
			t.maxFraction = fraction
		}
		p.Fraction = t.maxFraction
		p.Determinate = true
		p.ETA = estimateRemaining(p.WallTime, p.Fraction)
	}
	return p
}

// estimateRemaining projects the time left from wall time spent so far.
func estimateRemaining(wall time.Duration, fraction float64) time.Duration {
	if fraction <= 0 || fraction >= 1 || wall <= 0 {
		return 0
	}
	return time.Duration(float64(wall) * (1 - fraction) / fraction)
}

// FormatETA renders a duration as a compact string like 1h2m3s.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	d = d.Round(time.Second)
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second
	parts := make([]string, 0, 3)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 || hours > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if seconds > 0 || (hours == 0 && minutes == 0) {
		parts = append(parts, fmt.Sprintf("%ds", seconds))
	}
	return strings.Join(parts, "")
}

// scanLinesWithCR splits on both \r and \n; ffmpeg redraws its status line
// with carriage returns.
func scanLinesWithCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		advance = i + 1
		for advance < len(data) && (data[advance] == '\r' || data[advance] == '\n') {
			advance++
		}
		return advance, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
