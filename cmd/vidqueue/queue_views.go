package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vidqueue/internal/queue"
	"vidqueue/internal/workflow"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveProjectID expands a unique id prefix, as printed by status, to the
// full project id.
func resolveProjectID(snapshot queue.Snapshot, prefix string) (string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return "", fmt.Errorf("project id is required")
	}
	var matches []string
	for _, project := range snapshot.Projects {
		if project.ID == prefix {
			return project.ID, nil
		}
		if strings.HasPrefix(project.ID, prefix) {
			matches = append(matches, project.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no project matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("project id %q is ambiguous (%d matches)", prefix, len(matches))
	}
}

func buildQueueRows(snapshot queue.Snapshot) [][]string {
	rows := make([][]string, 0, len(snapshot.Projects))
	for i := range snapshot.Projects {
		project := &snapshot.Projects[i]
		counts := project.Counts()
		marker := ""
		if project.ID == snapshot.Cursor {
			marker = "*"
		}
		rows = append(rows, []string{
			strconv.Itoa(i),
			marker + shortID(project.ID),
			project.Name,
			string(project.Status),
			fmt.Sprintf("%d/%d", counts.Finished(), counts.Total),
			formatPercent(project.Progress()),
		})
	}
	return rows
}

func buildStatusCountRows(counts map[queue.Status]int) [][]string {
	rows := make([][]string, 0, len(counts))
	for _, status := range queue.AllStatuses() {
		if count := counts[status]; count > 0 {
			rows = append(rows, []string{string(status), strconv.Itoa(count)})
		}
	}
	return rows
}

func buildResultRows(summary workflow.ResultsSummary) ([][]string, []string) {
	rows := make([][]string, 0, len(summary.Projects))
	for _, r := range summary.Projects {
		rows = append(rows, resultRow(r, shortID(r.ID)))
	}
	if len(rows) == 0 {
		return rows, nil
	}
	return rows, resultRow(summary.Totals, "")
}

func resultRow(r workflow.ProjectResult, id string) []string {
	status := string(r.Status)
	return []string{
		id,
		r.Name,
		status,
		fmt.Sprintf("%d/%d/%d", r.Completed, r.Failed, r.Canceled),
		r.HumanInput(),
		r.HumanOutput(),
		r.HumanSaved(),
		fmt.Sprintf("%.1f%%", r.PercentReduction),
		formatDuration(r.ProcessingTime),
	}
}

func buildFailureRows(snapshot queue.Snapshot) [][]string {
	var rows [][]string
	for i := range snapshot.Projects {
		project := &snapshot.Projects[i]
		for j, file := range project.Files {
			if file.Status != queue.StatusFailed || file.Result == nil {
				continue
			}
			rows = append(rows, []string{
				shortID(project.ID),
				strconv.Itoa(j),
				filepath.Base(file.SourcePath),
				string(file.Result.Cause),
				truncate(file.Result.Message, 80),
			})
		}
	}
	return rows
}

func formatPercent(fraction float64) string {
	return fmt.Sprintf("%.0f%%", fraction*100)
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}
