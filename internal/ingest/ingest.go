package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vidqueue/internal/config"
	"vidqueue/internal/logging"
	"vidqueue/internal/media/ffprobe"
	"vidqueue/internal/services"
	"vidqueue/internal/workflow"
)

var inspectProbe = ffprobe.Inspect

// SetInspectForTests swaps the ffprobe inspection used for validation.
func SetInspectForTests(fn func(context.Context, string, string) (ffprobe.Result, error)) func() {
	previous := inspectProbe
	if fn == nil {
		inspectProbe = ffprobe.Inspect
	} else {
		inspectProbe = fn
	}
	return func() { inspectProbe = previous }
}

// Skipped records a file the scanner found but did not queue.
type Skipped struct {
	Path   string
	Reason string
}

// Options tune a single ingest.
type Options struct {
	// Name overrides the folder-derived project name.
	Name string
	// Validate probes each file with ffprobe and drops files without a video
	// stream.
	Validate bool
}

// Scanner builds project specs from directories.
type Scanner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewScanner constructs a Scanner using cfg's ingest, encoder, and path
// settings.
func NewScanner(cfg *config.Config, logger *slog.Logger) *Scanner {
	return &Scanner{cfg: cfg, logger: logging.NewComponentLogger(logger, "ingest")}
}

// Scan lists the video files in dir, sorted by path. Hidden files and files
// that already carry the output suffix are ignored.
func (s *Scanner) Scan(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "scan", "directory unreadable", err)
	}
	if !info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "ingest", "scan", dir+" is not a directory", nil)
	}

	var files []string
	consider := func(path string, d fs.DirEntry) {
		if d.IsDir() || !d.Type().IsRegular() || strings.HasPrefix(d.Name(), ".") {
			return
		}
		if s.acceptsExtension(path) && !s.isOutput(path) {
			files = append(files, path)
		}
	}

	if s.cfg.Ingest.Recursive {
		err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() && path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			consider(path, d)
			return nil
		})
	} else {
		var entries []fs.DirEntry
		entries, err = os.ReadDir(dir)
		for _, entry := range entries {
			consider(filepath.Join(dir, entry.Name()), entry)
		}
	}
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "scan", "walk failed", err)
	}
	sort.Strings(files)
	return files, nil
}

// BuildProject scans dir and returns a spec ready for Manager.Enqueue, plus
// any files that were dropped during validation. Outputs land in
// <output_root>/<folder name>/<stem>_<suffix>.mp4.
func (s *Scanner) BuildProject(ctx context.Context, dir string, opts Options) (workflow.ProjectSpec, []Skipped, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return workflow.ProjectSpec{}, nil, services.Wrap(services.ErrValidation, "ingest", "resolve directory", dir, err)
	}
	files, err := s.Scan(abs)
	if err != nil {
		return workflow.ProjectSpec{}, nil, err
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = ProjectName(abs)
	}
	outputDir := filepath.Join(s.cfg.Paths.OutputRoot, filepath.Base(abs))
	spec := workflow.ProjectSpec{Name: name, OutputRoot: outputDir}

	var skipped []Skipped
	for _, src := range files {
		if opts.Validate {
			if reason, ok := s.validate(ctx, src); !ok {
				skipped = append(skipped, Skipped{Path: src, Reason: reason})
				continue
			}
		}
		spec.Files = append(spec.Files, workflow.FileSpec{
			SourcePath:      src,
			DestinationPath: DestinationPath(src, outputDir, s.cfg.Ingest.OutputSuffix),
		})
	}
	if len(spec.Files) == 0 {
		return spec, skipped, services.Wrap(services.ErrValidation, "ingest", "build project",
			fmt.Sprintf("no usable video files in %s (extensions %s)", abs, strings.Join(s.cfg.Ingest.Extensions, ", ")), nil)
	}

	s.logger.Info("project prepared",
		logging.String(logging.FieldEventType, "ingest_prepared"),
		logging.String("name", name),
		logging.String("source_dir", abs),
		logging.Int("files", len(spec.Files)),
		logging.Int("skipped", len(skipped)),
	)
	return spec, skipped, nil
}

// validate rejects files ffprobe reads without finding a video stream. A probe
// that fails or times out lets the file through unless strict probing is on.
func (s *Scanner) validate(ctx context.Context, path string) (string, bool) {
	timeout := s.cfg.ProbeTimeout()
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := inspectProbe(probeCtx, s.cfg.Encoder.FFprobeBinary, path)
	if err != nil {
		if s.cfg.Encoder.StrictProbe {
			return "probe failed: " + err.Error(), false
		}
		hint := "file queued without validation"
		if errors.Is(err, context.DeadlineExceeded) {
			hint = "probe timed out; file queued without validation"
		}
		logging.WarnWithContext(s.logger, "ffprobe validation failed", "ingest_probe_failed",
			logging.String("source", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "set encoder.strict_probe to reject unreadable files"),
			logging.String(logging.FieldImpact, hint),
		)
		return "", true
	}
	if result.VideoStreamCount() == 0 {
		return "no video stream", false
	}
	return "", true
}

func (s *Scanner) acceptsExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range s.cfg.Ingest.Extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

func (s *Scanner) isOutput(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(strings.ToLower(stem), "_"+strings.ToLower(s.cfg.Ingest.OutputSuffix))
}

// DestinationPath maps a source file to <outputDir>/<stem>_<suffix>.mp4.
func DestinationPath(src, outputDir, suffix string) string {
	base := filepath.Base(src)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if suffix = strings.Trim(suffix, "_ "); suffix != "" {
		stem += "_" + suffix
	}
	return filepath.Join(outputDir, stem+".mp4")
}

// ProjectName derives a display name from a folder: separators collapse to
// single spaces and words are title-cased.
func ProjectName(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	var cleaned strings.Builder
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	name := strings.TrimSpace(cleaned.String())
	if name == "" || name == string(filepath.Separator) {
		return "Untitled Project"
	}
	return cases.Title(language.Und).String(name)
}

// FindCamFolders returns every directory under root whose name contains
// "CAM", the layout camera cards are usually copied into.
func FindCamFolders(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() && path != root && strings.Contains(strings.ToUpper(d.Name()), "CAM") {
			found = append(found, path)
		}
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "ingest", "find cam folders", root, err)
	}
	sort.Strings(found)
	return found, nil
}
