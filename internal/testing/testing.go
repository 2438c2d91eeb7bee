// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"sync"
	"testing"

	"github.com/desertthunder/plsync/internal/services"
)

// MockCatalog is a test double for [services.Catalog].
//
// Queries found in Results resolve to the mapped ID, queries in Errors fail, everything else is [services.ErrNoMatch].
type MockCatalog struct {
	Results map[string]string
	Errors  map[string]error

	mu      sync.Mutex
	Queries []string
	Markets []string
}

func (m *MockCatalog) SearchTrack(ctx context.Context, query, market string) (string, error) {
	m.mu.Lock()
	m.Queries = append(m.Queries, query)
	m.Markets = append(m.Markets, market)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err, ok := m.Errors[query]; ok {
		return "", err
	}
	if id, ok := m.Results[query]; ok {
		return id, nil
	}
	return "", services.ErrNoMatch
}

// Calls returns the number of searches made.
func (m *MockCatalog) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Queries)
}

// MockProvider is an in-memory [services.PlaylistProvider] that pages its listings by the requested limit.
type MockProvider struct {
	UserID    string
	Playlists []services.Playlist
	Tracks    map[string][]string // playlist ID to track IDs

	UserErr     error
	CreateErr   error
	ListErr     error
	ItemsErr    error
	ReplaceErr  error
	AppendErr   error
	DescErr     error
	AppendErrAt int // fail on the n-th append call (1-based) when AppendErr is set, 0 fails all

	UserCalls     int
	ListCalls     int
	ItemCalls     int
	ReplaceCalls  [][]string
	AppendCalls   [][]string
	Descriptions  map[string]string
	CreatedPublic []bool

	nextID int
}

// NewMockProvider creates a provider owned by "user1".
func NewMockProvider(playlists ...services.Playlist) *MockProvider {
	return &MockProvider{
		UserID:       "user1",
		Playlists:    playlists,
		Tracks:       map[string][]string{},
		Descriptions: map[string]string{},
	}
}

func (m *MockProvider) CurrentUserID(ctx context.Context) (string, error) {
	m.UserCalls++
	if m.UserErr != nil {
		return "", m.UserErr
	}
	return m.UserID, nil
}

func (m *MockProvider) CreatePlaylist(ctx context.Context, ownerID, name string, public, collaborative bool) (string, error) {
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	m.nextID++
	id := fmt.Sprintf("created-%d", m.nextID)
	m.Playlists = append(m.Playlists, services.Playlist{ID: id, Name: name})
	m.CreatedPublic = append(m.CreatedPublic, public)
	return id, nil
}

func (m *MockProvider) UserPlaylists(ctx context.Context, limit, offset int) (*services.PlaylistPage, error) {
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	items, hasNext := page(m.Playlists, limit, offset)
	return &services.PlaylistPage{Items: items, HasNext: hasNext}, nil
}

func (m *MockProvider) PlaylistTrackIDs(ctx context.Context, playlistID string, limit, offset int) (*services.TrackPage, error) {
	m.ItemCalls++
	if m.ItemsErr != nil {
		return nil, m.ItemsErr
	}
	ids, hasNext := page(m.Tracks[playlistID], limit, offset)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" {
			out = append(out, id)
		}
	}
	return &services.TrackPage{IDs: out, Count: len(ids), HasNext: hasNext}, nil
}

func (m *MockProvider) ReplaceTracks(ctx context.Context, ownerID, playlistID string, ids []string) error {
	m.ReplaceCalls = append(m.ReplaceCalls, slices.Clone(ids))
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.Tracks[playlistID] = slices.Clone(ids)
	return nil
}

func (m *MockProvider) AppendTracks(ctx context.Context, playlistID string, ids []string) error {
	m.AppendCalls = append(m.AppendCalls, slices.Clone(ids))
	if m.AppendErr != nil && (m.AppendErrAt == 0 || m.AppendErrAt == len(m.AppendCalls)) {
		return m.AppendErr
	}
	m.Tracks[playlistID] = append(m.Tracks[playlistID], ids...)
	return nil
}

func (m *MockProvider) SetDescription(ctx context.Context, ownerID, playlistID, text string) error {
	if m.DescErr != nil {
		return m.DescErr
	}
	m.Descriptions[playlistID] = text
	return nil
}

func page[T any](items []T, limit, offset int) ([]T, bool) {
	if limit <= 0 {
		limit = len(items)
	}
	if offset >= len(items) {
		return []T{}, false
	}
	end := min(offset+limit, len(items))
	return items[offset:end], end < len(items)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

// MustChdir changes into dir and restores the previous working directory when the test ends.
func MustChdir(t *testing.T, dir string) {
	t.Helper()
	wd := MustGetwd(t)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
