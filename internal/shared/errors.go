package shared

import "errors"

var (
	// Configuration
	ErrMissingConfig      = errors.New("configuration not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrMissingCredentials = errors.New("missing credentials")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Authentication
	ErrAuthFailed       = errors.New("authentication failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrTokenExpired     = errors.New("access token expired")
	ErrTimeout          = errors.New("operation timed out")

	// Sync stages. Each wraps the underlying cause so callers can match on the stage.
	ErrReadPlaylist      = errors.New("failed to read playlist file")
	ErrResolve           = errors.New("track resolution failed")
	ErrPlaylistCreate    = errors.New("failed to create playlist")
	ErrPlaylistLookup    = errors.New("failed to look up playlist")
	ErrPlaylistNotFound  = errors.New("playlist not found")
	ErrTrackWrite        = errors.New("failed to write playlist tracks")
	ErrDescriptionUpdate = errors.New("failed to update playlist description")
	ErrAlreadyRunning    = errors.New("another sync is already running")

	// Remote API
	ErrAPIRequest         = errors.New("API request failed")
	ErrServiceUnavailable = errors.New("service unavailable")

	// Input
	ErrInvalidInput    = errors.New("invalid input")
	ErrMissingArgument = errors.New("missing required argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

var authErrors = []error{ErrAuthFailed, ErrTokenExpired, ErrNotAuthenticated, ErrMissingCredentials, ErrInvalidCredentials}

// IsAuthError reports whether err means the user has to (re)authenticate or fix credentials.
func IsAuthError(err error) bool {
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
