package tasks

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	tu "github.com/desertthunder/plsync/internal/testing"
)

func ids(s ...string) []models.TrackID {
	out := make([]models.TrackID, len(s))
	for i, v := range s {
		out[i] = models.TrackID(v)
	}
	return out
}

func set(s ...string) map[models.TrackID]struct{} {
	out := make(map[models.TrackID]struct{}, len(s))
	for _, v := range s {
		out[models.TrackID(v)] = struct{}{}
	}
	return out
}

// isSubsequence reports whether sub appears in seq in the same relative order.
func isSubsequence(sub, seq []models.TrackID) bool {
	j := 0
	for _, v := range seq {
		if j < len(sub) && sub[j] == v {
			j++
		}
	}
	return j == len(sub)
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name     string
		target   []models.TrackID
		mode     models.Mode
		existing map[models.TrackID]struct{}
		want     []models.TrackID
	}{
		{
			name:     "create returns target unchanged",
			target:   ids("A", "B", "A"),
			mode:     models.ModeCreate,
			existing: set("A"),
			want:     ids("A", "B", "A"),
		},
		{
			name:     "update drops existing",
			target:   ids("A", "B", "C"),
			mode:     models.ModeUpdate,
			existing: set("B"),
			want:     ids("A", "C"),
		},
		{
			name:     "update keeps intra-batch repeats",
			target:   ids("A", "X", "A", "Y"),
			mode:     models.ModeUpdate,
			existing: set("Y"),
			want:     ids("A", "X", "A"),
		},
		{
			name:     "update with everything present",
			target:   ids("A", "B"),
			mode:     models.ModeUpdate,
			existing: set("A", "B", "C"),
			want:     ids(),
		},
		{
			name:     "update with empty playlist",
			target:   ids("A", "B"),
			mode:     models.ModeUpdate,
			existing: nil,
			want:     ids("A", "B"),
		},
		{
			name:   "empty target",
			target: nil,
			mode:   models.ModeUpdate,
			want:   ids(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.target, tt.mode, tt.existing)
			if !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}

			if tt.mode == models.ModeUpdate {
				if !isSubsequence(got, tt.target) {
					t.Errorf("%v is not a subsequence of %v", got, tt.target)
				}
				for _, id := range got {
					if _, ok := tt.existing[id]; ok {
						t.Errorf("%s is already in the playlist", id)
					}
				}
			}
		})
	}

	t.Run("create returns a copy", func(t *testing.T) {
		target := ids("A", "B")
		got := Reconcile(target, models.ModeCreate, nil)
		got[0] = "Z"
		if target[0] != "A" {
			t.Error("expected target to be left untouched")
		}
	})
}

func withPageLimit(t *testing.T, n int) {
	t.Helper()
	prev := maxPlaylistPages
	maxPlaylistPages = n
	t.Cleanup(func() { maxPlaylistPages = prev })
}

// stalledProvider claims more pages exist but returns none.
type stalledProvider struct {
	*tu.MockProvider
}

func (stalledProvider) UserPlaylists(ctx context.Context, limit, offset int) (*services.PlaylistPage, error) {
	return &services.PlaylistPage{HasNext: true}, nil
}

func (stalledProvider) PlaylistTrackIDs(ctx context.Context, playlistID string, limit, offset int) (*services.TrackPage, error) {
	return &services.TrackPage{HasNext: true}, nil
}

func TestFindPlaylistByName(t *testing.T) {
	ctx := context.Background()

	t.Run("match on second page", func(t *testing.T) {
		provider := tu.NewMockProvider(
			services.Playlist{ID: "1", Name: "Alpha"},
			services.Playlist{ID: "2", Name: "Beta"},
			services.Playlist{ID: "3", Name: "Mix"},
			services.Playlist{ID: "4", Name: "Mix"},
		)

		got, err := FindPlaylistByName(ctx, provider, "Mix", 2)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got.ID != "3" {
			t.Errorf("expected first match 3, got %s", got.ID)
		}
		if provider.ListCalls != 2 {
			t.Errorf("expected 2 page requests, got %d", provider.ListCalls)
		}
	})

	t.Run("stops at first match", func(t *testing.T) {
		provider := tu.NewMockProvider(
			services.Playlist{ID: "1", Name: "Mix"},
			services.Playlist{ID: "2", Name: "Other"},
			services.Playlist{ID: "3", Name: "Other"},
		)

		if _, err := FindPlaylistByName(ctx, provider, "Mix", 1); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if provider.ListCalls != 1 {
			t.Errorf("expected 1 page request, got %d", provider.ListCalls)
		}
	})

	t.Run("case sensitive", func(t *testing.T) {
		provider := tu.NewMockProvider(services.Playlist{ID: "1", Name: "mix"})

		_, err := FindPlaylistByName(ctx, provider, "Mix", 50)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
	})

	t.Run("not found scans every page", func(t *testing.T) {
		var lists []services.Playlist
		for i := range 5 {
			lists = append(lists, services.Playlist{ID: fmt.Sprint(i), Name: fmt.Sprintf("P%d", i)})
		}
		provider := tu.NewMockProvider(lists...)

		_, err := FindPlaylistByName(ctx, provider, "Missing", 2)
		if !errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistNotFound, got %v", err)
		}
		if provider.ListCalls != 3 {
			t.Errorf("expected 3 page requests, got %d", provider.ListCalls)
		}
	})

	t.Run("page limit is a lookup error", func(t *testing.T) {
		withPageLimit(t, 2)
		var lists []services.Playlist
		for i := range 5 {
			lists = append(lists, services.Playlist{ID: fmt.Sprint(i), Name: fmt.Sprintf("P%d", i)})
		}
		provider := tu.NewMockProvider(lists...)

		_, err := FindPlaylistByName(ctx, provider, "P4", 2)
		if !errors.Is(err, shared.ErrPlaylistLookup) || errors.Is(err, shared.ErrPlaylistNotFound) {
			t.Errorf("expected ErrPlaylistLookup, got %v", err)
		}
		if provider.ListCalls != 2 {
			t.Errorf("expected 2 page requests, got %d", provider.ListCalls)
		}
	})

	t.Run("empty page before the end", func(t *testing.T) {
		_, err := FindPlaylistByName(ctx, stalledProvider{tu.NewMockProvider()}, "Mix", 50)
		if !errors.Is(err, shared.ErrPlaylistLookup) {
			t.Errorf("expected ErrPlaylistLookup, got %v", err)
		}
	})

	t.Run("listing error", func(t *testing.T) {
		provider := tu.NewMockProvider()
		provider.ListErr = services.ErrTransient

		_, err := FindPlaylistByName(ctx, provider, "Mix", 50)
		if !errors.Is(err, shared.ErrPlaylistLookup) || !errors.Is(err, services.ErrTransient) {
			t.Errorf("expected ErrPlaylistLookup wrapping ErrTransient, got %v", err)
		}
	})
}

func TestExistingTrackIDs(t *testing.T) {
	ctx := context.Background()

	t.Run("collects every page", func(t *testing.T) {
		provider := tu.NewMockProvider()
		var tracks []string
		for i := range 250 {
			tracks = append(tracks, fmt.Sprintf("t%d", i))
		}
		tracks[10] = "" // local file
		provider.Tracks["pl"] = tracks

		got, err := ExistingTrackIDs(ctx, provider, "pl")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 249 {
			t.Errorf("expected 249 IDs, got %d", len(got))
		}
		if _, ok := got["t249"]; !ok {
			t.Error("expected last page to be included")
		}
		if _, ok := got[""]; ok {
			t.Error("expected empty IDs to be ignored")
		}
		if provider.ItemCalls != 3 {
			t.Errorf("expected 3 page requests, got %d", provider.ItemCalls)
		}
	})

	t.Run("page limit is a lookup error", func(t *testing.T) {
		withPageLimit(t, 2)
		provider := tu.NewMockProvider()
		for i := range 250 {
			provider.Tracks["pl"] = append(provider.Tracks["pl"], fmt.Sprintf("t%d", i))
		}

		got, err := ExistingTrackIDs(ctx, provider, "pl")
		if !errors.Is(err, shared.ErrPlaylistLookup) {
			t.Errorf("expected ErrPlaylistLookup, got %v", err)
		}
		if got != nil {
			t.Errorf("expected no partial set, got %d IDs", len(got))
		}
	})

	t.Run("empty page before the end", func(t *testing.T) {
		if _, err := ExistingTrackIDs(ctx, stalledProvider{tu.NewMockProvider()}, "pl"); !errors.Is(err, shared.ErrPlaylistLookup) {
			t.Errorf("expected ErrPlaylistLookup, got %v", err)
		}
	})

	t.Run("empty playlist", func(t *testing.T) {
		provider := tu.NewMockProvider()

		got, err := ExistingTrackIDs(ctx, provider, "pl")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no IDs, got %d", len(got))
		}
	})

	t.Run("listing error", func(t *testing.T) {
		provider := tu.NewMockProvider()
		provider.ItemsErr = errors.New("boom")

		if _, err := ExistingTrackIDs(ctx, provider, "pl"); !errors.Is(err, shared.ErrPlaylistLookup) {
			t.Errorf("expected ErrPlaylistLookup, got %v", err)
		}
	})
}
