package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Printer writes human-readable sync output.
type Printer struct {
	w       io.Writer
	palette *Palette
	verbose bool
}

// NewPrinter creates a Printer for w, coloured when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, palette: PaletteFor(w)}
}

// NewPrinterWithPalette creates a Printer with an explicit palette.
func NewPrinterWithPalette(w io.Writer, p *Palette) *Printer {
	return &Printer{w: w, palette: p}
}

// SetVerbose enables one line per resolved track.
func (p *Printer) SetVerbose(v bool) { p.verbose = v }

// Header prints a title line.
func (p *Printer) Header(title string) {
	fmt.Fprintln(p.w, p.palette.Title(title))
}

// Successf prints a line prefixed with a check mark.
func (p *Printer) Successf(format string, args ...any) {
	fmt.Fprintln(p.w, p.palette.OK("✓")+" "+fmt.Sprintf(format, args...))
}

// Warnf prints a line prefixed with a warning sign.
func (p *Printer) Warnf(format string, args ...any) {
	fmt.Fprintln(p.w, p.palette.Warn("⚠ "+fmt.Sprintf(format, args...)))
}

// Errorf prints a line prefixed with a cross.
func (p *Printer) Errorf(format string, args ...any) {
	fmt.Fprintln(p.w, p.palette.Err("✗")+" "+fmt.Sprintf(format, args...))
}

// Hintf prints a dimmed line.
func (p *Printer) Hintf(format string, args ...any) {
	fmt.Fprintln(p.w, p.palette.Help(fmt.Sprintf(format, args...)))
}

// Progress prints a single progress event.
//
// Per-track resolution events are only shown in verbose mode, except for misses.
func (p *Printer) Progress(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.ResolveTracks:
		res, ok := u.Data.(models.ResolutionResult)
		switch {
		case !ok:
			fmt.Fprintf(p.w, "→ %s\n", u.Message)
		case !res.Resolved():
			p.Warnf("%s", u.Message)
		case p.verbose:
			fmt.Fprintf(p.w, "  %s\n", u.Message)
		}
	case tasks.WriteTracks:
		if p.verbose {
			fmt.Fprintf(p.w, "  %s\n", u.Message)
		}
	case tasks.Done, tasks.Failed:
		// FileResult prints the outcome
	default:
		fmt.Fprintf(p.w, "→ %s\n", u.Message)
	}
}

// FileResult prints the outcome of one file.
func (p *Printer) FileResult(fr tasks.FileResult, dryRun bool) {
	if fr.Err != nil {
		p.Errorf("%s: %v", fr.Path, fr.Err)
		return
	}

	resolved := len(tasks.ResolvedIDs(fr.Results))
	verb := "wrote"
	if dryRun {
		verb = "would write"
	}

	skipped := 0
	if fr.Plan != nil {
		skipped = fr.Plan.Skipped
		if dryRun {
			fr.Written = len(fr.Plan.IDs)
		}
	}

	line := fmt.Sprintf("%s: resolved %d/%d, %s %d to %q", fr.Path, resolved, len(fr.Results), verb, fr.Written, fr.Target.Name)
	if skipped > 0 {
		line += fmt.Sprintf(" (%d already present)", skipped)
	}
	p.Successf("%s", line)

	if fr.DescriptionErr != nil {
		p.Warnf("description not updated: %v", fr.DescriptionErr)
	}
}

// Summary prints the totals of a run.
func (p *Printer) Summary(res *tasks.SyncResult) {
	if res == nil {
		return
	}
	line := fmt.Sprintf("%d succeeded, %d failed", res.Succeeded, res.Failed)
	if res.Failed > 0 {
		fmt.Fprintln(p.w, p.palette.Err(line))
		return
	}
	fmt.Fprintln(p.w, p.palette.OK(line))
}

// RunTable renders sync history as a rounded table.
func RunTable(runs []*models.SyncRun) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "Started", "Playlist", "Mode", "Resolved", "Written", "Status", "ID"})

	for _, run := range runs {
		tw.AppendRow(table.Row{
			run.Sequence(),
			run.StartedAt().Local().Format(time.DateTime),
			run.PlaylistName(),
			run.Mode().String(),
			strconv.Itoa(run.Resolved()) + "/" + strconv.Itoa(run.TracksTotal()),
			run.Written(),
			status(run),
			shortID(run.ID()),
		})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 5, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 6, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})

	return tw.Render()
}

func status(run *models.SyncRun) string {
	if run.ErrorMessage() == "" {
		return string(run.Status())
	}
	msg := run.ErrorMessage()
	if len(msg) > 40 {
		msg = msg[:37] + "..."
	}
	return string(run.Status()) + ": " + strings.TrimSpace(msg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
