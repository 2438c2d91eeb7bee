package models

import (
	"fmt"
	"strings"
)

// Unresolved reason recorded when the catalog returns zero candidates.
const ReasonNoMatch = "no match"

// TrackDescriptor is one entry read from a local playlist file.
type TrackDescriptor struct {
	Name     string // Display name used as the catalog query
	Path     string // Location line from the playlist file
	Duration int    // Seconds from #EXTINF, -1 when unknown
}

// TrackID is an opaque catalog track identifier. Equality is exact string match.
type TrackID string

func (id TrackID) String() string { return string(id) }

// ResolutionResult is the outcome of resolving a single [TrackDescriptor].
type ResolutionResult struct {
	Descriptor TrackDescriptor
	TrackID    TrackID // Empty when unresolved
	Reason     string  // Why the descriptor was not resolved
}

// Resolved reports whether the descriptor was matched to a catalog track.
func (r ResolutionResult) Resolved() bool {
	return r.TrackID != ""
}

// Mode selects between creating a new playlist and updating an existing one.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "create"
	case ModeUpdate:
		return "update"
	default:
		return ""
	}
}

// ParseMode converts "create" or "update" into a [Mode].
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "create":
		return ModeCreate, nil
	case "update":
		return ModeUpdate, nil
	default:
		return ModeCreate, fmt.Errorf("unknown mode %q", s)
	}
}

// PlaylistTarget identifies the remote playlist a file is written to.
type PlaylistTarget struct {
	ID   string // Empty until created or located
	Name string
	Mode Mode
}

// ReconciliationPlan is the final ordered list of IDs sent to the write call.
type ReconciliationPlan struct {
	Target  PlaylistTarget
	IDs     []TrackID
	Skipped int // IDs dropped because the playlist already contains them
}

// Playlist is the summary of a remote playlist returned by listings.
type Playlist struct {
	ID   string
	Name string
}

// Strings converts a slice of [TrackID] into plain strings.
func Strings(ids []TrackID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
