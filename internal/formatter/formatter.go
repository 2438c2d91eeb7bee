// package formatter writes track resolution reports in various formats (CSV, Markdown, plain text)
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
)

// Supported report formats
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Report describes how every entry of one playlist file was resolved.
type Report struct {
	Playlist    string // Remote playlist name
	PlaylistID  string // Empty for dry runs in create mode
	SourcePath  string
	Mode        models.Mode
	Results     []models.ResolutionResult
	Written     int
	Skipped     int // Already present in update mode
	GeneratedAt time.Time
}

func (r *Report) resolved() int {
	n := 0
	for _, res := range r.Results {
		if res.Resolved() {
			n++
		}
	}
	return n
}

func status(res models.ResolutionResult) string {
	if res.Resolved() {
		return "resolved"
	}
	return res.Reason
}

// ExportToCSV converts a Report to CSV format with columns: Position, Name, Location, Duration, Status, TrackID
func ExportToCSV(report *Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Name", "Location", "Duration", "Status", "TrackID"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, res := range report.Results {
		record := []string{
			strconv.Itoa(i + 1),
			res.Descriptor.Name,
			res.Descriptor.Path,
			strconv.Itoa(res.Descriptor.Duration),
			status(res),
			res.TrackID.String(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a Report to Markdown with a summary and a section for unresolved tracks
func ExportToMarkdown(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", report.Playlist))
	buf.WriteString(fmt.Sprintf("**Source**: `%s`\n", report.SourcePath))
	if report.PlaylistID != "" {
		buf.WriteString(fmt.Sprintf("**Spotify**: https://open.spotify.com/playlist/%s\n", report.PlaylistID))
	}
	buf.WriteString(fmt.Sprintf("**Mode**: %s\n", report.Mode))
	buf.WriteString(fmt.Sprintf("**Resolved**: %d/%d\n", report.resolved(), len(report.Results)))
	buf.WriteString(fmt.Sprintf("**Written**: %d", report.Written))
	if report.Skipped > 0 {
		buf.WriteString(fmt.Sprintf(" (%d already present)", report.Skipped))
	}
	buf.WriteString("\n")
	if !report.GeneratedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("**Generated**: %s\n", report.GeneratedAt.Format(time.RFC3339)))
	}

	buf.WriteString("\n## Tracks\n\n")
	buf.WriteString("| # | Name | Duration | Track |\n")
	buf.WriteString("|---|------|----------|-------|\n")
	for i, res := range report.Results {
		track := "_" + status(res) + "_"
		if res.Resolved() {
			track = fmt.Sprintf("[%s](https://open.spotify.com/track/%s)", res.TrackID, res.TrackID)
		}
		buf.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n", i+1, escapeCell(res.Descriptor.Name), FormatDuration(res.Descriptor.Duration), track))
	}

	var missing []models.ResolutionResult
	for _, res := range report.Results {
		if !res.Resolved() {
			missing = append(missing, res)
		}
	}
	if len(missing) > 0 {
		buf.WriteString("\n## Unresolved\n\n")
		for _, res := range missing {
			buf.WriteString(fmt.Sprintf("- %s\n", res.Descriptor.Name))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Report to plain text format
func ExportToText(report *Report) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", report.Playlist))
	buf.WriteString(fmt.Sprintf("Source: %s\n", report.SourcePath))
	buf.WriteString(fmt.Sprintf("Resolved: %d/%d\n", report.resolved(), len(report.Results)))
	buf.WriteString(fmt.Sprintf("Written: %d\n\n", report.Written))

	for i, res := range report.Results {
		mark := "✓"
		if !res.Resolved() {
			mark = "✗"
		}
		buf.WriteString(fmt.Sprintf("%d. %s %s\n", i+1, mark, res.Descriptor.Name))
	}

	return buf.Bytes(), nil
}

// WriteReport renders report in format and writes it into dir.
//
// The file is named after the playlist: {dir}/{playlist}_resolution.{csv,md,txt}
func WriteReport(report *Report, dir, format string) (string, error) {
	var (
		data []byte
		ext  string
		err  error
	)

	format, err = ParseFormat(format)
	if err != nil {
		return "", err
	}

	switch format {
	case FormatCSV:
		data, err = ExportToCSV(report)
		ext = "csv"
	case FormatMarkdown:
		data, err = ExportToMarkdown(report)
		ext = "md"
	default:
		data, err = ExportToText(report)
		ext = "txt"
	}
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_resolution.%s", safeFilename(report.Playlist), ext))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}

	return path, nil
}

// ParseFormat normalizes a report format name. "md" and "text" are accepted as aliases.
func ParseFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	case FormatText, "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unsupported report format %q (use csv, markdown or txt)", shared.ErrInvalidArgument, format)
	}
}

// FormatDuration renders seconds as m:ss. Unknown durations render as "-".
func FormatDuration(seconds int) string {
	if seconds < 0 {
		return "-"
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func safeFilename(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		return "playlist"
	}
	return name
}
