// Package services defines the [Catalog] and [PlaylistProvider] interfaces the sync engine depends on and implements them for Spotify.
//
// # Spotify Implementation
//
// [SpotifyService] wraps [spotify.Client] from github.com/zmb3/spotify/v2 and authenticates through [oauth2].
// The [oauth2.TokenSource] refreshes expired tokens automatically; [SpotifyService.Token] exposes the current
// token so callers can persist it.
//
// # OAuth Service Extension
//
// The [OAuthService] interface covers the authorization code flow used by `plsync auth`.
//
// # Error Handling
//
// Spotify errors are classified so the engine can tell them apart:
//   - [ErrNoMatch] : search returned zero candidates
//   - [ErrTransient] : HTTP 429, 5xx or network failure
//   - [shared.ErrTokenExpired] : HTTP 401, reauthorization needed
//   - [shared.ErrAuthFailed] : token refresh rejected
//   - [shared.ErrAPIRequest] : any other API failure
//
// Transient failures of idempotent calls are retried a bounded number of times inside the client.
// Creating playlists and appending tracks are never retried.
package services
