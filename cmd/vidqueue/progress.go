package main

import (
	"fmt"
	"io"
	"strings"

	"vidqueue/internal/encoding"
	"vidqueue/internal/queue"
	"vidqueue/internal/workflow"
)

// progressPrinter renders queue events as a single rewritten terminal line
// for the active file plus one permanent line per finished project.
type progressPrinter struct {
	out      io.Writer
	names    map[string]string
	files    map[string]int
	lastLine string
}

func newProgressPrinter(out io.Writer, snapshot queue.Snapshot) *progressPrinter {
	p := &progressPrinter{
		out:   out,
		names: make(map[string]string, len(snapshot.Projects)),
		files: make(map[string]int, len(snapshot.Projects)),
	}
	for i := range snapshot.Projects {
		p.track(&snapshot.Projects[i])
	}
	return p
}

func (p *progressPrinter) track(project *queue.Project) {
	p.names[project.ID] = project.Name
	p.files[project.ID] = len(project.Files)
}

func (p *progressPrinter) consume(events <-chan workflow.Event) {
	for evt := range events {
		p.handle(evt)
	}
	p.clear()
}

func (p *progressPrinter) handle(evt workflow.Event) {
	switch evt.Type {
	case workflow.EventProjectAdded:
		if evt.Project != nil {
			p.track(evt.Project)
		}
	case workflow.EventFileProgress:
		line := p.progressLine(evt)
		if line == p.lastLine {
			return
		}
		p.lastLine = line
		fmt.Fprintf(p.out, "\r\x1b[K%s", line)
	case workflow.EventProjectStatusChanged:
		if !evt.Status.IsTerminal() {
			return
		}
		p.clear()
		fmt.Fprintf(p.out, "%s: %s\n", p.name(evt.ProjectID), evt.Status)
	case workflow.EventQueueModeChanged:
		if evt.Mode == queue.ModePaused || evt.Mode == queue.ModeCanceling {
			p.clear()
			fmt.Fprintf(p.out, "queue %s\n", evt.Mode)
		}
	case workflow.EventPersistenceError:
		p.clear()
		fmt.Fprintf(p.out, "warning: queue state not saved: %s\n", evt.Err)
	}
}

func (p *progressPrinter) progressLine(evt workflow.Event) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s file %d/%d", p.name(evt.ProjectID), evt.FileIndex+1, p.files[evt.ProjectID])
	if evt.Determinate {
		fmt.Fprintf(&b, " %s", formatPercent(evt.Fraction))
	} else if evt.Elapsed > 0 {
		fmt.Fprintf(&b, " %s encoded", encoding.FormatETA(evt.Elapsed))
	}
	if evt.ETA > 0 {
		fmt.Fprintf(&b, " ETA %s", encoding.FormatETA(evt.ETA))
	}
	fmt.Fprintf(&b, " (project %s)", formatPercent(evt.ProjectProgress))
	return b.String()
}

func (p *progressPrinter) name(id string) string {
	if name, ok := p.names[id]; ok && name != "" {
		return name
	}
	return shortID(id)
}

func (p *progressPrinter) clear() {
	if p.lastLine == "" {
		return
	}
	fmt.Fprint(p.out, "\r\x1b[K")
	p.lastLine = ""
}
