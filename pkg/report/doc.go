// Package report collects per-episode results of a run and presents them:
// a lipgloss-styled table for the terminal and JSON/markdown artifacts on
// disk.
package report
