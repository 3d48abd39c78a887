package overrides

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"curator/internal/store"
)

const (
	movieDir        = "tmdb-movies2"
	seriesDir       = "tmdb-tv"
	movieDocument   = "all.json"
	seriesDocument  = "series.json"
	documentPattern = "season-*.json"
)

var (
	seasonFile  = regexp.MustCompile(`^season-(\d+)\.json$`)
	episodeFile = regexp.MustCompile(`^season-(\d+)-episode-(\d+)\.json$`)
)

// ErrNotFound reports a key with no primary document.
var ErrNotFound = errors.New("override document not found")

// Cache is the override file tree rooted at one directory.
type Cache struct {
	fs   afero.Fs
	root string
}

// New returns a cache rooted at root on fs.
func New(fs afero.Fs, root string) *Cache {
	return &Cache{fs: fs, root: strings.TrimSpace(root)}
}

// NewOS returns a cache on the real filesystem.
func NewOS(root string) *Cache {
	return New(afero.NewOsFs(), root)
}

// Root returns the cache root directory.
func (c *Cache) Root() string {
	return c.root
}

// Dir returns the directory holding the documents for key.
func (c *Cache) Dir(key store.Key) (string, error) {
	id := strings.TrimSpace(key.ExternalID)
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("overrides: invalid external id %q", key.ExternalID)
	}
	switch key.ItemType {
	case store.ItemMovie:
		return filepath.Join(c.root, movieDir, id), nil
	case store.ItemSeries:
		return filepath.Join(c.root, seriesDir, id), nil
	default:
		return "", fmt.Errorf("overrides: no document layout for %s", key.ItemType)
	}
}

func primaryName(key store.Key) string {
	if key.ItemType == store.ItemMovie {
		return movieDocument
	}
	return seriesDocument
}

// SeasonFileName returns the document name for a season.
func SeasonFileName(season int) string {
	return fmt.Sprintf("season-%d.json", season)
}

// EpisodeFileName returns the document name for an episode.
func EpisodeFileName(season, episode int) string {
	return fmt.Sprintf("season-%d-episode-%d.json", season, episode)
}

// Exists reports whether the primary document for key is present.
func (c *Cache) Exists(key store.Key) (bool, error) {
	dir, err := c.Dir(key)
	if err != nil {
		return false, err
	}
	ok, err := afero.Exists(c.fs, filepath.Join(dir, primaryName(key)))
	if err != nil {
		return false, fmt.Errorf("overrides: stat %s: %w", key, err)
	}
	return ok, nil
}

// Write stores every document of tree. Each file is replaced atomically;
// documents already on disk that tree does not mention are left alone.
func (c *Cache) Write(tree Tree) error {
	dir, err := c.Dir(tree.Key)
	if err != nil {
		return err
	}
	if err := c.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("overrides: ensure dir: %w", err)
	}
	for _, season := range tree.Seasons {
		if err := c.writeJSON(dir, SeasonFileName(season.SeasonNumber), season); err != nil {
			return err
		}
	}
	for _, episode := range tree.Episodes {
		if err := c.writeJSON(dir, EpisodeFileName(episode.SeasonNumber, episode.EpisodeNumber), episode); err != nil {
			return err
		}
	}
	// Primary last: its presence is what marks the tree as materialized.
	return c.writeJSON(dir, primaryName(tree.Key), tree.Primary)
}

func (c *Cache) writeJSON(dir, name string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("overrides: encode %s: %w", name, err)
	}
	target := filepath.Join(dir, name)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s-%d.tmp", name, time.Now().UnixNano()))
	if err := afero.WriteFile(c.fs, tmp, payload, 0o644); err != nil {
		return fmt.Errorf("overrides: write %s temp: %w", name, err)
	}
	if err := c.fs.Rename(tmp, target); err != nil {
		_ = c.fs.Remove(tmp)
		return fmt.Errorf("overrides: rename %s: %w", name, err)
	}
	return nil
}

// Read loads the full tree for key. A missing primary document yields
// ErrNotFound.
func (c *Cache) Read(key store.Key) (*Tree, error) {
	dir, err := c.Dir(key)
	if err != nil {
		return nil, err
	}
	tree := &Tree{Key: key}
	if err := c.readJSON(filepath.Join(dir, primaryName(key)), &tree.Primary); err != nil {
		return nil, err
	}
	if key.ItemType != store.ItemSeries {
		return tree, nil
	}

	matches, err := afero.Glob(c.fs, filepath.Join(dir, documentPattern))
	if err != nil {
		return nil, fmt.Errorf("overrides: list %s: %w", key, err)
	}
	for _, match := range matches {
		name := path.Base(filepath.ToSlash(match))
		switch {
		case seasonFile.MatchString(name):
			var season SeasonDocument
			if err := c.readJSON(match, &season); err != nil {
				return nil, err
			}
			if season.SeasonNumber == 0 {
				season.SeasonNumber = atoi(seasonFile.FindStringSubmatch(name)[1])
			}
			tree.Seasons = append(tree.Seasons, season)
		case episodeFile.MatchString(name):
			var episode EpisodeDocument
			if err := c.readJSON(match, &episode); err != nil {
				return nil, err
			}
			if episode.EpisodeNumber == 0 {
				parts := episodeFile.FindStringSubmatch(name)
				episode.SeasonNumber = atoi(parts[1])
				episode.EpisodeNumber = atoi(parts[2])
			}
			tree.Episodes = append(tree.Episodes, episode)
		}
	}
	sort.Slice(tree.Seasons, func(i, j int) bool {
		return tree.Seasons[i].SeasonNumber < tree.Seasons[j].SeasonNumber
	})
	sort.Slice(tree.Episodes, func(i, j int) bool {
		a, b := tree.Episodes[i], tree.Episodes[j]
		if a.SeasonNumber != b.SeasonNumber {
			return a.SeasonNumber < b.SeasonNumber
		}
		return a.EpisodeNumber < b.EpisodeNumber
	})
	return tree, nil
}

func (c *Cache) readJSON(name string, dest any) error {
	payload, err := afero.ReadFile(c.fs, name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("overrides: read %s: %w", name, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("overrides: decode %s: %w", name, err)
	}
	return nil
}

// PrimaryCast returns the raw cast array bytes of the primary document.
func (c *Cache) PrimaryCast(key store.Key) ([]byte, error) {
	dir, err := c.Dir(key)
	if err != nil {
		return nil, err
	}
	var raw struct {
		Credits struct {
			Cast json.RawMessage `json:"cast"`
		} `json:"credits"`
	}
	if err := c.readJSON(filepath.Join(dir, primaryName(key)), &raw); err != nil {
		return nil, err
	}
	return raw.Credits.Cast, nil
}

// Remove deletes the whole document directory for key.
func (c *Cache) Remove(key store.Key) error {
	dir, err := c.Dir(key)
	if err != nil {
		return err
	}
	if err := c.fs.RemoveAll(dir); err != nil {
		return fmt.Errorf("overrides: remove %s: %w", key, err)
	}
	return nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
