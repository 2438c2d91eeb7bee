// Package ui renders plsync's terminal output.
//
// [Printer] turns [tasks.ProgressUpdate] events and per-file results into one line each,
// styled with a lipgloss [Palette] when the output is a terminal and plain otherwise.
// [RunTable] renders sync history with go-pretty.
package ui
