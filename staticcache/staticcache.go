// Package staticcache implements the path→content mapping from spec
// §4.8: a directory is walked once at registration time and re-walked on
// a timer, giving HTTP servers O(1) average lookup for static assets
// without touching disk on the request path.
package staticcache

import (
	"bytes"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// defaultRefreshInterval matches spec §4.8's documented default re-walk
// period.
const defaultRefreshInterval = 60 * time.Second

// Entry is one cached static asset.
type Entry struct {
	Bytes       []byte
	ContentType string
	ModTime     time.Time
	Expires     time.Time
}

// mount is one registered (dir, urlPrefix) pair tracked for re-walking.
type mount struct {
	dir       string
	urlPrefix string
}

// Cache is a thread-safe path -> Entry store, periodically refreshed from
// disk.
type Cache struct {
	refreshInterval time.Duration

	mu      sync.RWMutex
	entries map[string]Entry
	mounts  []mount

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New constructs an empty Cache. Call AddStaticContent to populate it, then
// StartAutoRefresh to begin periodic re-walking.
func New() *Cache {
	return &Cache{
		refreshInterval: defaultRefreshInterval,
		entries:         make(map[string]Entry),
		stopCh:          make(chan struct{}),
	}
}

// Lookup returns the entry registered at urlPath, and whether it exists.
func (c *Cache) Lookup(urlPath string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[urlPath]
	return e, ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// AddStaticContent walks dir and registers every regular file it finds
// under urlPrefix, joined with the file's path relative to dir. The mount
// is remembered so subsequent refreshes pick up new or removed files.
func (c *Cache) AddStaticContent(dir, urlPrefix string) error {
	c.mu.Lock()
	c.mounts = append(c.mounts, mount{dir: dir, urlPrefix: urlPrefix})
	c.mu.Unlock()
	return c.walkMount(dir, urlPrefix)
}

func (c *Cache) walkMount(dir, urlPrefix string) error {
	fresh := make(map[string]Entry)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		urlPath := joinURLPath(urlPrefix, rel)

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("staticcache: reading %s: %w", path, err)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("staticcache: stat %s: %w", path, err)
		}

		fresh[urlPath] = Entry{
			Bytes:       data,
			ContentType: detectContentType(path, data),
			ModTime:     info.ModTime(),
			Expires:     timeNowPlus(c.refreshInterval),
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("staticcache: walking %s: %w", dir, err)
	}

	c.mu.Lock()
	for path := range c.entries {
		if strings.HasPrefix(path, urlPrefix) {
			if _, stillPresent := fresh[path]; !stillPresent {
				delete(c.entries, path)
			}
		}
	}
	for path, entry := range fresh {
		c.entries[path] = entry
	}
	c.mu.Unlock()
	return nil
}

// StartAutoRefresh begins a background goroutine that re-walks every
// registered mount every refreshInterval (0 means the spec default of 60s).
// It returns nothing; call Stop to end the goroutine.
func (c *Cache) StartAutoRefresh(refreshInterval time.Duration) {
	if refreshInterval > 0 {
		c.refreshInterval = refreshInterval
	}
	go c.refreshLoop()
}

func (c *Cache) refreshLoop() {
	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.RLock()
			mounts := append([]mount(nil), c.mounts...)
			c.mu.RUnlock()
			for _, m := range mounts {
				_ = c.walkMount(m.dir, m.urlPrefix)
			}
		case <-c.stopCh:
			return
		}
	}
}

// Stop terminates the background refresh goroutine, if running.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() { close(c.stopCh) })
}

func joinURLPath(prefix, rel string) string {
	rel = filepath.ToSlash(rel)
	prefix = strings.TrimSuffix(prefix, "/")
	if !strings.HasPrefix(rel, "/") {
		rel = "/" + rel
	}
	u := prefix + rel
	if cleaned, err := url.PathUnescape(u); err == nil {
		return cleaned
	}
	return u
}

// detectContentType infers a MIME type from the file extension, falling
// back to sniffing the first 512 bytes (spec §6 "4.6a" addition, since
// spec.md itself left this unspecified).
func detectContentType(path string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	n := len(data)
	if n > 512 {
		n = 512
	}
	return http.DetectContentType(bytes.TrimRight(data[:n], "\x00"))
}

func timeNowPlus(d time.Duration) time.Time {
	return time.Now().Add(d)
}
