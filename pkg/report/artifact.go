package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactWriter writes run artifacts into a per-run directory under
// outputDir.
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// RunDir returns the directory a summary's artifacts are written to.
func (w *ArtifactWriter) RunDir(summary *Summary) string {
	return filepath.Join(w.outputDir, summary.RunID)
}

// WriteAll writes every artifact format and returns the run directory.
func (w *ArtifactWriter) WriteAll(summary *Summary) (string, error) {
	dir := w.RunDir(summary)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.WriteSummaryJSON(summary); err != nil {
		return "", err
	}
	if err := w.WriteSummaryMarkdown(summary); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteSummaryJSON writes the full run summary as JSON
func (w *ArtifactWriter) WriteSummaryJSON(summary *Summary) error {
	path := filepath.Join(w.RunDir(summary), "summary.json")

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run summary: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary JSON: %w", writeErr)
	}
	return nil
}

// WriteSummaryMarkdown writes a human-readable markdown summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *Summary) error {
	path := filepath.Join(w.RunDir(summary), "summary.md")

	var md strings.Builder
	md.WriteString("# wobenv Run Summary\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", summary.RunID))
	md.WriteString(fmt.Sprintf("**Status:** %s\n\n", summary.Status))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", summary.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", summary.Duration))
	if summary.Error != "" {
		md.WriteString(fmt.Sprintf("**Error:** %s\n\n", summary.Error))
	}

	md.WriteString("## Tasks\n\n")
	md.WriteString("| Task | Episodes | Success rate | Mean reward | Mean steps | Deaths |\n")
	md.WriteString("|------|----------|--------------|-------------|------------|--------|\n")
	for _, m := range summary.Tasks {
		md.WriteString(fmt.Sprintf("| %s | %d | %.1f%% | %.3f | %.1f | %d |\n",
			m.Task, m.Episodes, m.SuccessRate*100, m.MeanReward, m.MeanSteps, m.Deaths))
	}

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return fmt.Errorf("failed to write summary markdown: %w", writeErr)
	}
	return nil
}
