// package playlistfile reads M3U and M3U8 playlists into track descriptors
//
// Display names come from #EXTINF lines. Entries without one fall back to the
// audio file's tags and then to the file name.
package playlistfile

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/desertthunder/plsync/internal/models"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/dhowden/tag"
	"golang.org/x/text/encoding/charmap"
)

const (
	DefaultTimeout = 5 * time.Second

	extInf   = "#EXTINF:"
	maxBytes = 16 << 20
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader loads playlist files from disk or over HTTP.
type Reader struct {
	UserAgent  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// NewReader creates a reader that identifies itself with userAgent on remote fetches.
func NewReader(userAgent string) *Reader {
	return &Reader{UserAgent: userAgent, Timeout: DefaultTimeout}
}

// Read returns the entries of the playlist at path in file order.
func (r *Reader) Read(ctx context.Context, path string) ([]models.TrackDescriptor, error) {
	var (
		data []byte
		err  error
		base string
	)

	if IsRemote(path) {
		data, err = r.fetch(ctx, path)
	} else {
		data, err = os.ReadFile(path)
		base = filepath.Dir(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", shared.ErrReadPlaylist, path, err)
	}

	return Parse(decode(data, path), base), nil
}

func (r *Reader) fetch(ctx context.Context, url string) ([]byte, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if r.UserAgent != "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBytes))
}

// decode returns data as UTF-8 text. Legacy .m3u files are Windows-1252.
func decode(data []byte, path string) string {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) || strings.EqualFold(filepath.Ext(path), ".m3u8") {
		return string(data)
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(decoded)
}

// Parse extracts descriptors from playlist text. Relative locations are resolved against base
// for the tag lookup; an empty base disables it.
func Parse(text, base string) []models.TrackDescriptor {
	var (
		tracks  []models.TrackDescriptor
		pending *models.TrackDescriptor
	)

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, extInf):
			if pending != nil {
				tracks = append(tracks, *pending)
			}
			d := parseExtInf(line)
			pending = &d
		case strings.HasPrefix(line, "#"):
			continue
		default:
			if pending != nil {
				pending.Path = line
				if pending.Name == "" {
					pending.Name = fallbackName(line, base)
				}
				tracks = append(tracks, *pending)
				pending = nil
				continue
			}
			tracks = append(tracks, models.TrackDescriptor{
				Name:     fallbackName(line, base),
				Path:     line,
				Duration: -1,
			})
		}
	}

	if pending != nil {
		tracks = append(tracks, *pending)
	}
	return tracks
}

// parseExtInf reads "#EXTINF:<seconds>[ attrs],<name>".
func parseExtInf(line string) models.TrackDescriptor {
	d := models.TrackDescriptor{Duration: -1}

	info := strings.TrimPrefix(line, extInf)
	head, name, found := cutOutsideQuotes(info, ',')
	if found {
		d.Name = strings.TrimSpace(name)
	}

	if fields := strings.Fields(head); len(fields) > 0 {
		if secs, err := strconv.ParseFloat(fields[0], 64); err == nil && secs >= 0 {
			d.Duration = int(secs)
		}
	}
	return d
}

// cutOutsideQuotes splits s around the first sep that is not inside a double-quoted
// attribute value such as tvg-name="a, b".
func cutOutsideQuotes(s string, sep byte) (before, after string, found bool) {
	quoted := false
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			quoted = !quoted
		case sep:
			if !quoted {
				return s[:i], s[i+1:], true
			}
		}
	}
	// unbalanced quotes: fall back to the first separator
	return strings.Cut(s, string(sep))
}

func fallbackName(location, base string) string {
	if base != "" && !IsRemote(location) {
		p := location
		if !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		if name := tagName(p); name != "" {
			return name
		}
	}
	return shared.PlaylistName(location)
}

// tagName returns "Artist - Title" from the audio file's metadata, or "" when unavailable.
func tagName(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(m.Title())
	artist := strings.TrimSpace(m.Artist())
	switch {
	case title == "":
		return ""
	case artist == "":
		return title
	default:
		return artist + " - " + title
	}
}

// IsRemote reports whether path is an http(s) URL.
func IsRemote(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
