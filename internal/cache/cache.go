// Package cache stores generated presentations on disk, one folder per topic.
//
// A folder is named after the original topic text plus a short hash of it, and holds the enriched
// outline as JSON and the speech script as plain text. Lookups compare normalized topic identities,
// so topics that differ only in casing, punctuation or spacing resolve to the same entry even when
// they were first written under different folder names.
package cache

import (
	"bytes"
	"crypto/md5" //nolint:gosec // folder suffix only, kept for existing cache layouts
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/book-expert/logger"

	"github.com/book-expert/presentation-service/internal/core"
	"github.com/book-expert/presentation-service/internal/presentation"
)

// Artifact file names inside an entry folder.
const (
	OutlineFile = "enriched_outline.json"
	SpeechFile  = "presentation_speech.md"
)

const (
	dirPermissions  = 0o750
	filePermissions = 0o644
	hashLength      = 8
	folderSeparator = "_"
	jsonIndent      = "    "
	tempPattern     = ".tmp-*"
)

// Log messages.
const (
	logFmtHit      = "Cache hit for '%s': %s"
	logFmtStored   = "Cached '%s' in %s"
	logFmtRemoved  = "Removed invalid cache folder: %s"
	logFmtDeleted  = "Deleted cache folder: %s"
	logFmtSkipping = "Skipping unreadable cache folder %s: %v"

	logFmtLegacyOutline = "Cache folder %s holds an outline in an older shape: %v"
)

var (
	// ErrNotFound indicates that no valid entry exists for a topic or folder.
	ErrNotFound = errors.New("cache entry not found")
	// ErrInvalidEntry indicates a folder whose artifacts are missing or unreadable.
	ErrInvalidEntry = errors.New("invalid cache entry")
	// ErrInvalidFolder indicates a folder name that does not name a direct child of the cache root.
	ErrInvalidFolder = errors.New("invalid cache folder name")
)

// Entry is one cached presentation.
type Entry struct {
	Topic       string
	Folder      string
	Path        string
	OutlinePath string
	SpeechPath  string
	Outline     *presentation.Outline
	Speech      string
}

// Summary describes an entry for browsing.
type Summary struct {
	Folder      string
	DisplayName string
	Path        string
}

// Cache is a directory of presentation entries. The directory is owned by a single process; writes
// from several processes are not coordinated.
type Cache struct {
	root string
	log  *logger.Logger
}

// New creates a Cache rooted at dir. The directory is created on first write.
func New(dir string, log *logger.Logger) *Cache {
	return &Cache{root: dir, log: log}
}

// Root returns the cache directory.
func (c *Cache) Root() string {
	return c.root
}

// Identity returns the normalized form of topic used to match entries: lower case, with only
// letters, digits, dots and commas kept.
func Identity(topic string) string {
	var builder strings.Builder

	for _, r := range strings.ToLower(topic) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == ',' {
			builder.WriteRune(r)
		}
	}

	return builder.String()
}

// FolderName returns the folder an entry for topic is written to: the topic with unsafe characters
// replaced by underscores, followed by the first eight hex digits of its MD5 sum.
func FolderName(topic string) string {
	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("._-, ", r) {
			return r
		}

		return '_'
	}, topic)

	sanitized = strings.ReplaceAll(strings.TrimSpace(sanitized), " ", folderSeparator)
	sum := md5.Sum([]byte(topic)) //nolint:gosec // see import

	return sanitized + folderSeparator + hex.EncodeToString(sum[:])[:hashLength]
}

// folderTopic recovers the topic text a folder was named after. The second result is false for
// folders without a hash suffix.
func folderTopic(folder string) (string, bool) {
	index := strings.LastIndex(folder, folderSeparator)
	if index < 0 {
		return "", false
	}

	return strings.ReplaceAll(folder[:index], folderSeparator, " "), true
}

// Lookup returns the valid entry whose identity matches topic, or ErrNotFound.
func (c *Cache) Lookup(topic string) (*Entry, error) {
	identity := Identity(topic)

	folders, err := c.folders()
	if err != nil {
		return nil, err
	}

	for _, folder := range folders {
		name, ok := folderTopic(folder)
		if !ok || Identity(name) != identity {
			continue
		}

		entry, loadErr := c.load(folder)
		if loadErr != nil {
			c.log.Warn(logFmtSkipping, folder, loadErr)

			continue
		}

		c.log.Info(logFmtHit, topic, folder)

		return entry, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrNotFound, topic)
}

// Store writes outline and speech for topic. If a valid entry with the same identity already
// exists it is returned unchanged. Failures to write are reported as core.ErrCacheUnwritable.
func (c *Cache) Store(topic string, outline *presentation.Outline, speech string) (*Entry, error) {
	existing, err := c.Lookup(topic)
	if err == nil {
		return existing, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", core.ErrCacheUnwritable, err)
	}

	outlineJSON, err := json.MarshalIndent(outline, "", jsonIndent)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal outline: %w", err)
	}

	folder := FolderName(topic)
	path := filepath.Join(c.root, folder)

	err = os.MkdirAll(path, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrCacheUnwritable, err)
	}

	err = writeAtomic(filepath.Join(path, OutlineFile), outlineJSON)
	if err != nil {
		return nil, err
	}

	err = writeAtomic(filepath.Join(path, SpeechFile), []byte(speech))
	if err != nil {
		return nil, err
	}

	c.log.Info(logFmtStored, topic, path)

	return c.entry(folder, c.decodeOutline(folder, outlineJSON), speech), nil
}

// List returns a summary of every valid entry, ordered by folder name. The display name is the
// outline title.
func (c *Cache) List() ([]Summary, error) {
	folders, err := c.folders()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(folders))

	for _, folder := range folders {
		name, ok := folderTopic(folder)
		if !ok {
			continue
		}

		entry, loadErr := c.load(folder)
		if loadErr != nil {
			continue
		}

		display := entry.Outline.Title
		if display == "" {
			display = name
		}

		summaries = append(summaries, Summary{Folder: folder, DisplayName: display, Path: entry.Path})
	}

	return summaries, nil
}

// Load reads the entry stored in folder.
func (c *Cache) Load(folder string) (*Entry, error) {
	err := validateFolder(folder)
	if err != nil {
		return nil, err
	}

	return c.load(folder)
}

// Delete removes folder and everything in it.
func (c *Cache) Delete(folder string) error {
	err := validateFolder(folder)
	if err != nil {
		return err
	}

	path := filepath.Join(c.root, folder)

	_, err = os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, folder)
	}

	err = os.RemoveAll(path)
	if err != nil {
		return fmt.Errorf("failed to delete cache folder %s: %w", folder, err)
	}

	c.log.Info(logFmtDeleted, folder)

	return nil
}

// Clean removes every hash-suffixed folder whose artifacts are missing or unreadable and returns
// the names it removed. Hidden folders and folders without a hash suffix are left alone.
func (c *Cache) Clean() ([]string, error) {
	folders, err := c.folders()
	if err != nil {
		return nil, err
	}

	var removed []string

	for _, folder := range folders {
		if _, ok := folderTopic(folder); !ok {
			continue
		}

		_, loadErr := c.load(folder)
		if loadErr == nil {
			continue
		}

		err = os.RemoveAll(filepath.Join(c.root, folder))
		if err != nil {
			return removed, fmt.Errorf("failed to remove cache folder %s: %w", folder, err)
		}

		c.log.Info(logFmtRemoved, folder)
		removed = append(removed, folder)
	}

	return removed, nil
}

// Export copies the artifacts of entry into dir under their usual names.
func (c *Cache) Export(entry *Entry, dir string) error {
	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	for _, name := range []string{OutlineFile, SpeechFile} {
		data, readErr := os.ReadFile(filepath.Join(entry.Path, name))
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", name, readErr)
		}

		writeErr := os.WriteFile(filepath.Join(dir, name), data, filePermissions)
		if writeErr != nil {
			return fmt.Errorf("failed to write %s: %w", name, writeErr)
		}
	}

	return nil
}

// folders returns the non-hidden subdirectories of the root. A missing root has none.
func (c *Cache) folders() ([]string, error) {
	entries, err := os.ReadDir(c.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory %s: %w", c.root, err)
	}

	folders := make([]string, 0, len(entries))

	for _, dirEntry := range entries {
		if !dirEntry.IsDir() || strings.HasPrefix(dirEntry.Name(), ".") {
			continue
		}

		folders = append(folders, dirEntry.Name())
	}

	return folders, nil
}

// load reads and validates an entry: the outline must be valid JSON and the speech must not be blank.
func (c *Cache) load(folder string) (*Entry, error) {
	path := filepath.Join(c.root, folder)

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, folder)
	}

	outlineJSON, err := os.ReadFile(filepath.Join(path, OutlineFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEntry, folder, err)
	}

	if !json.Valid(outlineJSON) {
		return nil, fmt.Errorf("%w: %s: outline is not valid JSON", ErrInvalidEntry, folder)
	}

	speech, err := os.ReadFile(filepath.Join(path, SpeechFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidEntry, folder, err)
	}

	if len(bytes.TrimSpace(speech)) == 0 {
		return nil, fmt.Errorf("%w: %s: empty speech", ErrInvalidEntry, folder)
	}

	return c.entry(folder, c.decodeOutline(folder, outlineJSON), string(speech)), nil
}

// decodeOutline reads a stored outline. Entries written by older versions may not follow the current
// outline shape; those keep what decodes and fall back to the folder topic as title.
func (c *Cache) decodeOutline(folder string, data []byte) *presentation.Outline {
	var outline presentation.Outline

	err := json.Unmarshal(data, &outline)
	if err != nil {
		c.log.Warn(logFmtLegacyOutline, folder, err)

		outline = presentation.Outline{}

		var loose struct {
			Title        any `json:"title"`
			Introduction any `json:"introduction"`
		}

		if json.Unmarshal(data, &loose) == nil {
			outline.Title, _ = loose.Title.(string)
			outline.Introduction, _ = loose.Introduction.(string)
		}
	}

	if outline.Title == "" {
		outline.Title, _ = folderTopic(folder)
	}

	if outline.Slides == nil {
		outline.Slides = []presentation.Slide{}
	}

	return &outline
}

func (c *Cache) entry(folder string, outline *presentation.Outline, speech string) *Entry {
	topic, _ := folderTopic(folder)
	path := filepath.Join(c.root, folder)

	return &Entry{
		Topic:       topic,
		Folder:      folder,
		Path:        path,
		OutlinePath: filepath.Join(path, OutlineFile),
		SpeechPath:  filepath.Join(path, SpeechFile),
		Outline:     outline,
		Speech:      speech,
	}
}

func validateFolder(folder string) error {
	if folder == "" || folder == "." || folder == ".." || filepath.Base(folder) != folder {
		return fmt.Errorf("%w: %q", ErrInvalidFolder, folder)
	}

	return nil
}

// writeAtomic writes data next to path and renames it into place.
func writeAtomic(path string, data []byte) error {
	temp, err := os.CreateTemp(filepath.Dir(path), tempPattern)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrCacheUnwritable, err)
	}

	tempName := temp.Name()

	_, err = temp.Write(data)
	closeErr := temp.Close()

	if err == nil {
		err = closeErr
	}

	if err == nil {
		err = os.Chmod(tempName, filePermissions)
	}

	if err == nil {
		err = os.Rename(tempName, path)
	}

	if err != nil {
		_ = os.Remove(tempName)

		return fmt.Errorf("%w: %w", core.ErrCacheUnwritable, err)
	}

	return nil
}
