// Package chromium reads browsing history from a Chromium-family profile.
//
// The browser keeps its History database locked while running, so every
// search works on a private copy.
package chromium

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/goodtune/browseback/internal/history"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// webkitEpochDelta is the number of microseconds between 1601-01-01 (the
// WebKit epoch) and 1970-01-01.
const webkitEpochDelta = 11644473600 * 1_000_000

// ErrNoProfile is returned when no History database can be found.
var ErrNoProfile = errors.New("chromium: no history database found")

// FromWebKit converts a WebKit timestamp (microseconds since 1601) to a
// time. Zero or negative input yields the zero time.
func FromWebKit(us int64) time.Time {
	if us <= 0 {
		return time.Time{}
	}
	return time.UnixMicro(us - webkitEpochDelta)
}

// ToWebKit converts a time to a WebKit timestamp.
func ToWebKit(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro() + webkitEpochDelta
}

// Provider implements history.Provider over a Chromium History file.
type Provider struct {
	path   string
	logger zerolog.Logger
}

var _ history.Provider = (*Provider)(nil)

// New creates a provider. An empty path selects the default profile of the
// first installed browser.
func New(path string, logger zerolog.Logger) (*Provider, error) {
	if path == "" {
		var err error
		if path, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("history database %s: %w", path, err)
	}

	return &Provider{
		path:   path,
		logger: logger.With().Str("component", "chromium-history").Str("path", path).Logger(),
	}, nil
}

// Path returns the History database the provider reads.
func (p *Provider) Path() string {
	return p.path
}

// Candidates lists History locations to probe, most likely first.
func Candidates() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	var roots []string
	switch runtime.GOOS {
	case "darwin":
		support := filepath.Join(home, "Library", "Application Support")
		roots = []string{
			filepath.Join(support, "Google", "Chrome"),
			filepath.Join(support, "Chromium"),
			filepath.Join(support, "BraveSoftware", "Brave-Browser"),
			filepath.Join(support, "Microsoft Edge"),
		}
	case "windows":
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			local = filepath.Join(home, "AppData", "Local")
		}
		roots = []string{
			filepath.Join(local, "Google", "Chrome", "User Data"),
			filepath.Join(local, "Chromium", "User Data"),
			filepath.Join(local, "BraveSoftware", "Brave-Browser", "User Data"),
			filepath.Join(local, "Microsoft", "Edge", "User Data"),
		}
	default:
		config := os.Getenv("XDG_CONFIG_HOME")
		if config == "" {
			config = filepath.Join(home, ".config")
		}
		roots = []string{
			filepath.Join(config, "google-chrome"),
			filepath.Join(config, "chromium"),
			filepath.Join(config, "BraveSoftware", "Brave-Browser"),
			filepath.Join(config, "microsoft-edge"),
		}
	}

	out := make([]string, 0, len(roots))
	for _, root := range roots {
		out = append(out, filepath.Join(root, "Default", "History"))
	}
	return out
}

// DefaultPath returns the first candidate History file that exists.
func DefaultPath() (string, error) {
	for _, candidate := range Candidates() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", ErrNoProfile
}

const searchQuery = `
	SELECT id, url, title, visit_count, last_visit_time
	FROM urls
	WHERE last_visit_time >= ? AND hidden = 0
	ORDER BY last_visit_time DESC
	LIMIT ?
`

// Search implements history.Provider. Results are newest first.
func (p *Provider) Search(ctx context.Context, since time.Time, maxResults int) ([]history.Visit, error) {
	if maxResults <= 0 {
		maxResults = 10000
	}

	snapshot, cleanup, err := p.snapshot()
	if err != nil {
		return nil, err
	}
	defer cleanup()

	db, err := sql.Open("sqlite", snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to open history snapshot: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1) // SQLite limitation

	rows, err := db.QueryContext(ctx, searchQuery, ToWebKit(since), maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	visits := make([]history.Visit, 0)
	for rows.Next() {
		var (
			id         int64
			url        string
			title      sql.NullString
			visitCount int
			lastVisit  int64
		)
		if err := rows.Scan(&id, &url, &title, &visitCount, &lastVisit); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		visits = append(visits, history.Visit{
			ID:            strconv.FormatInt(id, 10),
			URL:           url,
			Title:         title.String,
			LastVisitTime: FromWebKit(lastVisit),
			VisitCount:    visitCount,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	p.logger.Debug().Int("visits", len(visits)).Time("since", since).Msg("History searched")
	return visits, nil
}

// snapshot copies the database and its write-ahead log into a temporary
// directory.
func (p *Provider) snapshot() (string, func(), error) {
	dir, err := os.MkdirTemp("", "browseback-history-")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	dst := filepath.Join(dir, "History")
	if err := copyFile(p.path, dst); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to copy history database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-journal"} {
		if err := copyFile(p.path+suffix, dst+suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			cleanup()
			return "", nil, fmt.Errorf("failed to copy history%s: %w", suffix, err)
		}
	}

	return dst, cleanup, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
