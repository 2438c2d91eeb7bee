// package services defines the remote catalog and playlist interfaces consumed by the sync engine
//
// Spotify is the only provider.
package services

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

var (
	// ErrNoMatch is returned by [Catalog.SearchTrack] when the catalog has zero candidates for a query.
	ErrNoMatch = errors.New("no match")

	// ErrTransient marks failures worth retrying: rate limiting, server errors and network faults.
	ErrTransient = errors.New("transient failure")
)

// Catalog resolves free-text queries to catalog track identifiers.
type Catalog interface {
	// SearchTrack returns the ID of the top-ranked track for query within market.
	// Returns [ErrNoMatch] when the catalog has no candidates.
	SearchTrack(ctx context.Context, query, market string) (string, error)
}

// PlaylistProvider defines the playlist operations the sync engine needs from a music service.
type PlaylistProvider interface {
	// CurrentUserID returns the ID of the authenticated user.
	CurrentUserID(ctx context.Context) (string, error)

	// CreatePlaylist creates a playlist owned by ownerID and returns its ID.
	CreatePlaylist(ctx context.Context, ownerID, name string, public, collaborative bool) (string, error)

	// UserPlaylists returns one page of the current user's playlists.
	UserPlaylists(ctx context.Context, limit, offset int) (*PlaylistPage, error)

	// PlaylistTrackIDs returns one page of track IDs in a playlist.
	PlaylistTrackIDs(ctx context.Context, playlistID string, limit, offset int) (*TrackPage, error)

	// ReplaceTracks overwrites the playlist contents with ids (at most [MaxTracksPerRequest]).
	ReplaceTracks(ctx context.Context, ownerID, playlistID string, ids []string) error

	// AppendTracks adds ids to the end of the playlist (at most [MaxTracksPerRequest]).
	AppendTracks(ctx context.Context, playlistID string, ids []string) error

	// SetDescription overwrites the playlist description.
	SetDescription(ctx context.Context, ownerID, playlistID, text string) error
}

// OAuthService extends a provider with the authorization code flow used by the CLI.
type OAuthService interface {
	GetAuthURL(state string) string
	GetOAuthConfig() *oauth2.Config
	OAuthenticate(ctx context.Context, token *oauth2.Token) error
	Token() (*oauth2.Token, error)
}

// MaxTracksPerRequest is the largest number of tracks a single write call accepts.
const MaxTracksPerRequest = 100

// Playlist represents a music playlist from any service
type Playlist struct {
	ID   string
	Name string
}

// PlaylistPage is one page of a playlist listing.
type PlaylistPage struct {
	Items   []Playlist
	HasNext bool // More pages follow this one
}

// TrackPage is one page of a playlist's track listing.
//
// Entries without a catalog ID (local files, unavailable tracks) are omitted.
type TrackPage struct {
	IDs     []string
	Count   int  // Items on the page, including omitted entries
	HasNext bool // More pages follow this one
}
