// Spotify implementation of [Catalog] and [PlaylistProvider]
//
// API reference: https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/plsync/internal/shared"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"

	defaultRedirectURI = "http://127.0.0.1:8888/callback"
	defaultTimeout     = 10 * time.Second
	defaultMaxRetries  = 2
	defaultBackoff     = 500 * time.Millisecond
)

// SpotifyService implements [Catalog], [PlaylistProvider] and [OAuthService] for the Spotify Web API.
type SpotifyService struct {
	config      *oauth2.Config
	tokens      oauth2.TokenSource
	client      *spotify.Client
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	backoff     time.Duration
	credentials map[string]string

	onTokenRefresh func(*oauth2.Token)
}

// SpotifyOption configures a [SpotifyService].
type SpotifyOption func(*SpotifyService)

// WithHTTPClient sets the base HTTP client used for API and token requests.
func WithHTTPClient(c *http.Client) SpotifyOption {
	return func(s *SpotifyService) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) SpotifyOption {
	return func(s *SpotifyService) {
		if d > 0 {
			s.httpClient = &http.Client{Timeout: d}
		}
	}
}

// WithBaseURL points the API client at another host. The URL must end with a slash.
func WithBaseURL(u string) SpotifyOption {
	return func(s *SpotifyService) { s.baseURL = u }
}

// WithRetries sets how many times transient failures of idempotent calls are retried and the linear backoff step.
func WithRetries(max int, backoff time.Duration) SpotifyOption {
	return func(s *SpotifyService) {
		if max >= 0 {
			s.maxRetries = max
		}
		if backoff >= 0 {
			s.backoff = backoff
		}
	}
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 client credentials.
func NewSpotifyService(credentials map[string]string, opts ...SpotifyOption) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = defaultRedirectURI
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes: []string{
			"playlist-read-private",
			"playlist-read-collaborative",
			"playlist-modify-public",
			"playlist-modify-private",
		},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	s := &SpotifyService{
		config:      config,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		maxRetries:  defaultMaxRetries,
		backoff:     defaultBackoff,
		credentials: credentials,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// GetAuthURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) GetAuthURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// GetOAuthConfig returns the [oauth2.Config] used for the authorization code exchange.
func (s *SpotifyService) GetOAuthConfig() *oauth2.Config {
	return s.config
}

// OAuthenticate builds the API client from a previously issued token. Expired tokens are refreshed on first use.
func (s *SpotifyService) OAuthenticate(ctx context.Context, token *oauth2.Token) error {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return fmt.Errorf("%w: no Spotify token, run 'plsync auth' first", shared.ErrNotAuthenticated)
	}

	base := &http.Client{
		Timeout:       s.httpClient.Timeout,
		Jar:           s.httpClient.Jar,
		CheckRedirect: s.httpClient.CheckRedirect,
		Transport:     &rewindTransport{base: s.httpClient.Transport},
	}
	// The token source outlives ctx, so refreshes must not be tied to its cancellation.
	tokenCtx := context.WithValue(context.WithoutCancel(ctx), oauth2.HTTPClient, base)
	s.tokens = &refreshableTokenSource{
		source:   oauth2.ReuseTokenSource(token, s.config.TokenSource(tokenCtx, token)),
		last:     token.AccessToken,
		callback: s.onTokenRefresh,
	}

	// 429 responses are retried by the client after their Retry-After delay.
	opts := []spotify.ClientOption{spotify.WithRetry(true)}
	if s.baseURL != "" {
		opts = append(opts, spotify.WithBaseURL(s.baseURL))
	}
	s.client = spotify.New(oauth2.NewClient(tokenCtx, s.tokens), opts...)

	return nil
}

// Authenticate builds the API client from a credential map holding access_token and optionally refresh_token.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	token := &oauth2.Token{
		AccessToken:  credentials["access_token"],
		RefreshToken: credentials["refresh_token"],
		TokenType:    "Bearer",
	}
	if expiry, ok := credentials["expiry"]; ok && expiry != "" {
		if t, err := time.Parse(time.RFC3339, expiry); err == nil {
			token.Expiry = t
		}
	}
	return s.OAuthenticate(ctx, token)
}

// SetTokenRefreshCallback registers fn to receive every token issued by a refresh.
// Must be called before [SpotifyService.OAuthenticate].
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// Token returns the current token, refreshing it first when it has expired.
func (s *SpotifyService) Token() (*oauth2.Token, error) {
	if s.tokens == nil {
		return nil, shared.ErrNotAuthenticated
	}
	token, err := s.tokens.Token()
	if err != nil {
		return nil, classify(err)
	}
	return token, nil
}

func (s *SpotifyService) api() (*spotify.Client, error) {
	if s.client == nil {
		return nil, fmt.Errorf("%w: call OAuthenticate first", shared.ErrNotAuthenticated)
	}
	return s.client, nil
}

// rewindTransport resets request bodies before every round trip. The API client resends the
// same request after a rate limit, by which point the first attempt has drained its body.
type rewindTransport struct {
	base http.RoundTripper
}

func (t *rewindTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	if req.Body == nil || req.GetBody == nil {
		return base.RoundTrip(req)
	}

	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	req.Body.Close()
	clone := req.Clone(req.Context())
	clone.Body = body
	return base.RoundTrip(clone)
}

// retry runs fn until it succeeds, fails with a non-transient error, or the retry budget is spent.
// Rate limits never reach it while ctx is live; the API client waits them out itself.
func (s *SpotifyService) retry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return err
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}

		if err = fn(); err == nil || !errors.Is(err, ErrTransient) || ctx.Err() != nil {
			return err
		}
	}
	return err
}

// SearchTrack returns the ID of the first track the catalog ranks for query.
//
// The top candidate is trusted as-is; no title or artist comparison is made.
func (s *SpotifyService) SearchTrack(ctx context.Context, query, market string) (string, error) {
	client, err := s.api()
	if err != nil {
		return "", err
	}

	var result *spotify.SearchResult
	err = s.retry(ctx, func() error {
		opts := []spotify.RequestOption{spotify.Limit(1)}
		if market != "" {
			opts = append(opts, spotify.Market(market))
		}
		res, err := client.Search(ctx, query, spotify.SearchTypeTrack, opts...)
		if err != nil {
			return classify(err)
		}
		result = res
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}

	if result.Tracks == nil || len(result.Tracks.Tracks) == 0 || result.Tracks.Tracks[0].ID == "" {
		return "", ErrNoMatch
	}

	return result.Tracks.Tracks[0].ID.String(), nil
}

// CurrentUserID retrieves the current authenticated user's ID.
func (s *SpotifyService) CurrentUserID(ctx context.Context) (string, error) {
	client, err := s.api()
	if err != nil {
		return "", err
	}

	var userID string
	err = s.retry(ctx, func() error {
		user, err := client.CurrentUser(ctx)
		if err != nil {
			return classify(err)
		}
		userID = user.ID
		return nil
	})
	if err != nil {
		return "", err
	}
	return userID, nil
}

// CreatePlaylist creates a playlist for ownerID. Not retried: a repeated call would create a duplicate.
func (s *SpotifyService) CreatePlaylist(ctx context.Context, ownerID, name string, public, collaborative bool) (string, error) {
	client, err := s.api()
	if err != nil {
		return "", err
	}

	playlist, err := client.CreatePlaylistForUser(ctx, ownerID, name, "", public, collaborative)
	if err != nil {
		return "", classify(err)
	}
	return playlist.ID.String(), nil
}

// UserPlaylists retrieves one page of the current user's playlists.
func (s *SpotifyService) UserPlaylists(ctx context.Context, limit, offset int) (*PlaylistPage, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var page PlaylistPage
	err = s.retry(ctx, func() error {
		res, err := client.CurrentUsersPlaylists(ctx, spotify.Limit(clampLimit(limit, 50)), spotify.Offset(offset))
		if err != nil {
			return classify(err)
		}

		page = PlaylistPage{Items: make([]Playlist, 0, len(res.Playlists)), HasNext: res.Next != ""}
		for _, p := range res.Playlists {
			page.Items = append(page.Items, Playlist{ID: p.ID.String(), Name: p.Name})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// PlaylistTrackIDs retrieves one page of a playlist's items. Episodes and local files are skipped.
func (s *SpotifyService) PlaylistTrackIDs(ctx context.Context, playlistID string, limit, offset int) (*TrackPage, error) {
	client, err := s.api()
	if err != nil {
		return nil, err
	}

	var page TrackPage
	err = s.retry(ctx, func() error {
		res, err := client.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(clampLimit(limit, 100)), spotify.Offset(offset))
		if err != nil {
			return classify(err)
		}

		page = TrackPage{IDs: make([]string, 0, len(res.Items)), Count: len(res.Items), HasNext: res.Next != ""}
		for _, item := range res.Items {
			if item.IsLocal || item.Track.Track == nil || item.Track.Track.ID == "" {
				continue
			}
			page.IDs = append(page.IDs, item.Track.Track.ID.String())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// ReplaceTracks overwrites the playlist with ids. An empty list clears the playlist.
func (s *SpotifyService) ReplaceTracks(ctx context.Context, ownerID, playlistID string, ids []string) error {
	client, err := s.api()
	if err != nil {
		return err
	}
	if len(ids) > MaxTracksPerRequest {
		return fmt.Errorf("%w: at most %d tracks per request, got %d", shared.ErrInvalidInput, MaxTracksPerRequest, len(ids))
	}

	return s.retry(ctx, func() error {
		return classify(client.ReplacePlaylistTracks(ctx, spotify.ID(playlistID), toIDs(ids)...))
	})
}

// AppendTracks adds ids to the end of the playlist. Not retried: a repeated call would add the tracks twice.
func (s *SpotifyService) AppendTracks(ctx context.Context, playlistID string, ids []string) error {
	client, err := s.api()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	if len(ids) > MaxTracksPerRequest {
		return fmt.Errorf("%w: at most %d tracks per request, got %d", shared.ErrInvalidInput, MaxTracksPerRequest, len(ids))
	}

	_, err = client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), toIDs(ids)...)
	return classify(err)
}

// SetDescription overwrites the playlist description.
func (s *SpotifyService) SetDescription(ctx context.Context, ownerID, playlistID, text string) error {
	client, err := s.api()
	if err != nil {
		return err
	}

	return s.retry(ctx, func() error {
		return classify(client.ChangePlaylistDescription(ctx, spotify.ID(playlistID), text))
	})
}

// refreshableTokenSource reports tokens that differ from the last one seen.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}

func toIDs(ids []string) []spotify.ID {
	out := make([]spotify.ID, len(ids))
	for i, id := range ids {
		out[i] = spotify.ID(id)
	}
	return out
}

func clampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

// classify wraps err with the sentinel describing how callers should treat it.
func classify(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: token refresh rejected: %w", shared.ErrAuthFailed, err)
	}

	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
		case apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		default:
			return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	return fmt.Errorf("%w: %w", shared.ErrAPIRequest, err)
}
