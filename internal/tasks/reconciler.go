package tasks

import (
	"context"
	"fmt"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
)

const (
	DefaultPageSize = 50
	trackPageSize   = 100
)

// maxPlaylistPages bounds every paginated listing. Hitting it is an error, never a short result.
var maxPlaylistPages = 10_000

// Reconcile computes the ordered list of IDs to write.
//
// In create mode target is returned unchanged. In update mode IDs already present in existing
// are dropped and the remaining order is kept. Repeats within target are not collapsed.
func Reconcile(target []models.TrackID, mode models.Mode, existing map[models.TrackID]struct{}) []models.TrackID {
	out := make([]models.TrackID, 0, len(target))
	if mode != models.ModeUpdate {
		return append(out, target...)
	}

	for _, id := range target {
		if _, ok := existing[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// FindPlaylistByName scans the current user's playlists for an exact, case-sensitive name match.
//
// Returns [shared.ErrPlaylistNotFound] once the listing is exhausted without a match.
func FindPlaylistByName(ctx context.Context, provider services.PlaylistProvider, name string, pageSize int) (*models.Playlist, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	for offset, pages := 0, 0; ; pages++ {
		if pages == maxPlaylistPages {
			return nil, fmt.Errorf("%w: playlist listing exceeded %d pages", shared.ErrPlaylistLookup, maxPlaylistPages)
		}

		page, err := provider.UserPlaylists(ctx, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", shared.ErrPlaylistLookup, err)
		}

		for _, p := range page.Items {
			if p.Name == name {
				return &models.Playlist{ID: p.ID, Name: p.Name}, nil
			}
		}

		if !page.HasNext {
			return nil, fmt.Errorf("%w: %q", shared.ErrPlaylistNotFound, name)
		}
		if len(page.Items) == 0 {
			return nil, fmt.Errorf("%w: empty page at offset %d before the end of the listing", shared.ErrPlaylistLookup, offset)
		}
		offset += len(page.Items)
	}
}

// ExistingTrackIDs collects every track ID in a playlist across all pages.
//
// A listing that cannot be read to its end fails with [shared.ErrPlaylistLookup] instead of returning a partial set.
func ExistingTrackIDs(ctx context.Context, provider services.PlaylistProvider, playlistID string) (map[models.TrackID]struct{}, error) {
	existing := make(map[models.TrackID]struct{})

	for offset, pages := 0, 0; ; pages++ {
		if pages == maxPlaylistPages {
			return nil, fmt.Errorf("%w: tracks of %s exceeded %d pages", shared.ErrPlaylistLookup, playlistID, maxPlaylistPages)
		}

		page, err := provider.PlaylistTrackIDs(ctx, playlistID, trackPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: listing tracks of %s: %w", shared.ErrPlaylistLookup, playlistID, err)
		}

		for _, id := range page.IDs {
			if id != "" {
				existing[models.TrackID(id)] = struct{}{}
			}
		}

		if !page.HasNext {
			return existing, nil
		}
		if page.Count == 0 {
			return nil, fmt.Errorf("%w: tracks of %s: empty page at offset %d before the end of the listing", shared.ErrPlaylistLookup, playlistID, offset)
		}
		offset += page.Count
	}
}
