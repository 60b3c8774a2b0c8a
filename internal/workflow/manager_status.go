package workflow

import (
	"time"

	"github.com/dustin/go-humanize"

	"vidqueue/internal/queue"
)

// StatusSummary is a point-in-time view of the queue for status displays.
type StatusSummary struct {
	Mode      queue.Mode
	Cursor    string
	Counts    map[queue.Status]int
	Projects  int
	Active    *ActiveProject
	LastError string
}

// ActiveProject describes the project the worker is processing.
type ActiveProject struct {
	ID           string
	Name         string
	Progress     float64
	FilesDone    int
	FilesTotal   int
	FileIndex    int
	FileSource   string
	FileProgress float64
}

// Status returns the queue mode, per-status project counts, and the active
// project if any.
func (m *Manager) Status() StatusSummary {
	m.mu.Lock()
	defer m.unlock()

	summary := StatusSummary{
		Mode:     m.mode,
		Cursor:   m.cursor,
		Counts:   make(map[queue.Status]int, len(queue.AllStatuses())),
		Projects: len(m.projects),
	}
	for _, project := range m.projects {
		summary.Counts[project.Status]++
		if project.ID == m.cursor {
			summary.Active = activeProject(project)
		}
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	return summary
}

// StatusFromSnapshot builds the same summary from a persisted snapshot, for
// callers that read the store while no manager is running.
func StatusFromSnapshot(snapshot queue.Snapshot) StatusSummary {
	summary := StatusSummary{
		Mode:     snapshot.Mode,
		Cursor:   snapshot.Cursor,
		Counts:   make(map[queue.Status]int, len(queue.AllStatuses())),
		Projects: len(snapshot.Projects),
	}
	for i := range snapshot.Projects {
		project := &snapshot.Projects[i]
		summary.Counts[project.Status]++
		if project.ID == snapshot.Cursor {
			summary.Active = activeProject(project)
		}
	}
	return summary
}

func activeProject(project *queue.Project) *ActiveProject {
	counts := project.Counts()
	active := &ActiveProject{
		ID:         project.ID,
		Name:       project.Name,
		Progress:   project.Progress(),
		FilesDone:  counts.Finished(),
		FilesTotal: counts.Total,
		FileIndex:  -1,
	}
	for i, file := range project.Files {
		if file.Status == queue.StatusProcessing {
			active.FileIndex = i
			active.FileSource = file.SourcePath
			active.FileProgress = file.Progress
			break
		}
	}
	return active
}

// ProjectResult aggregates one project's file outcomes.
type ProjectResult struct {
	ID               string
	Name             string
	Status           queue.Status
	Files            int
	Completed        int
	Failed           int
	Canceled         int
	Pending          int
	InputBytes       int64
	OutputBytes      int64
	BytesSaved       int64
	PercentReduction float64
	ProcessingTime   time.Duration
	Elapsed          time.Duration
	Error            string
}

// ResultsSummary aggregates every project plus queue-wide totals.
type ResultsSummary struct {
	Projects []ProjectResult
	Totals   ProjectResult
}

// Results summarizes the outcome of every project in queue order.
func (m *Manager) Results() ResultsSummary {
	return SummarizeResults(m.Snapshot())
}

// SummarizeProject tallies sizes and counts over completed files. Input and
// output bytes count only completed files so the reduction compares like with
// like.
func SummarizeProject(project *queue.Project) ProjectResult {
	counts := project.Counts()
	result := ProjectResult{
		ID:        project.ID,
		Name:      project.Name,
		Status:    project.Status,
		Files:     counts.Total,
		Completed: counts.Completed,
		Failed:    counts.Failed,
		Canceled:  counts.Canceled,
		Pending:   counts.Pending + counts.Processing,
		Error:     project.Error,
	}
	for _, file := range project.Files {
		if file.Result == nil {
			continue
		}
		result.ProcessingTime += file.Result.Duration()
		if file.Status != queue.StatusCompleted {
			continue
		}
		result.InputBytes += file.Result.OriginalSizeBytes
		result.OutputBytes += file.Result.CompressedSizeBytes
	}
	result.applySizes()
	if project.StartedAt != nil && project.CompletedAt != nil {
		result.Elapsed = project.CompletedAt.Sub(*project.StartedAt)
	}
	return result
}

// SummarizeResults summarizes every project in snapshot order.
func SummarizeResults(snapshot queue.Snapshot) ResultsSummary {
	summary := ResultsSummary{Projects: make([]ProjectResult, 0, len(snapshot.Projects))}
	totals := &summary.Totals
	totals.Name = "Total"
	for i := range snapshot.Projects {
		result := SummarizeProject(&snapshot.Projects[i])
		summary.Projects = append(summary.Projects, result)
		totals.Files += result.Files
		totals.Completed += result.Completed
		totals.Failed += result.Failed
		totals.Canceled += result.Canceled
		totals.Pending += result.Pending
		totals.InputBytes += result.InputBytes
		totals.OutputBytes += result.OutputBytes
		totals.ProcessingTime += result.ProcessingTime
		totals.Elapsed += result.Elapsed
	}
	totals.applySizes()
	return summary
}

func (r *ProjectResult) applySizes() {
	metrics := queue.ComputeSizeMetrics(r.InputBytes, r.OutputBytes)
	r.BytesSaved = metrics.BytesSaved
	r.PercentReduction = metrics.PercentReduction
}

// HumanInput renders InputBytes for display.
func (r ProjectResult) HumanInput() string { return humanBytes(r.InputBytes) }

// HumanOutput renders OutputBytes for display.
func (r ProjectResult) HumanOutput() string { return humanBytes(r.OutputBytes) }

// HumanSaved renders BytesSaved for display.
func (r ProjectResult) HumanSaved() string { return humanBytes(r.BytesSaved) }

func humanBytes(n int64) string {
	if n < 0 {
		return "-" + humanize.Bytes(uint64(-n))
	}
	return humanize.Bytes(uint64(n))
}
