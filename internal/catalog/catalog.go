// Package catalog loads the movie records used to seed the database.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/Clark-Hu/movie-ratings/internal/domain"
)

// ReleaseDateLayout is the date format used by catalog files.
const ReleaseDateLayout = "2006-01-02"

// Entry is one movie as it appears in a catalog file.
type Entry struct {
	Title       string `json:"title"`
	Overview    string `json:"overview"`
	ReleaseDate string `json:"release_date"`
	PosterPath  string `json:"poster_path"`
}

// Movie converts the entry into an unsaved domain movie.
func (e Entry) Movie() (domain.Movie, error) {
	released, err := ParseReleaseDate(e.ReleaseDate)
	if err != nil {
		return domain.Movie{}, fmt.Errorf("movie %q: %w", e.Title, err)
	}
	var poster *string
	if p := strings.TrimSpace(e.PosterPath); p != "" {
		poster = &p
	}
	return domain.NewMovie(e.Title, e.Overview, released, poster)
}

// ParseReleaseDate parses a YYYY-MM-DD date; a blank value means unknown.
func ParseReleaseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(ReleaseDateLayout, value)
	if err != nil {
		return nil, fmt.Errorf("parse release date %q: %w", value, err)
	}
	return &t, nil
}

// Source yields catalog entries.
type Source interface {
	Load(ctx context.Context) ([]Entry, error)
}

// Open picks an HTTPSource for http(s) locations and a FileSource otherwise.
func Open(location string, timeout time.Duration, logger *log.Logger) (Source, error) {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return NewHTTPSource(location, timeout, logger)
	}
	if location == "" {
		return nil, fmt.Errorf("catalog location is required")
	}
	return FileSource{Path: location}, nil
}

// Decode reads a JSON array of entries.
func Decode(r io.Reader) ([]Entry, error) {
	var entries []Entry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return entries, nil
}

// FileSource reads a catalog from the local filesystem.
type FileSource struct {
	Path string
}

// Load implements Source.
func (s FileSource) Load(_ context.Context) ([]Entry, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// HTTPSource fetches a catalog over HTTP.
type HTTPSource struct {
	url    *url.URL
	client *http.Client
	logger *log.Logger
}

// NewHTTPSource constructs an HTTP-backed catalog source.
func NewHTTPSource(rawURL string, timeout time.Duration, logger *log.Logger) (*HTTPSource, error) {
	if logger == nil {
		logger = log.Default()
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	return &HTTPSource{
		url: parsed,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
		},
		logger: logger,
	}, nil
}

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Printf("catalog: unexpected status %d from %s", resp.StatusCode, s.url.Redacted())
		return nil, fmt.Errorf("catalog: upstream returned %d", resp.StatusCode)
	}
	return Decode(resp.Body)
}
