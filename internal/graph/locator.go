package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"journal_backend/internal/failure"
	"journal_backend/internal/retry"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// maxResolveWait bounds a shared lookup, retries included.
const maxResolveWait = 2 * time.Minute

// FileHandle identifies the resolved workbook. ItemPath is the drive item
// path that range URLs are built on.
type FileHandle struct {
	ID       string
	ItemPath string
}

// Locator resolves the workbook's drive item id and caches it. Concurrent
// cold lookups share one resolution.
type Locator struct {
	client *Client

	mu         sync.RWMutex
	handle     FileHandle
	resolvedAt time.Time

	group singleflight.Group
}

func newLocator(c *Client) *Locator {
	return &Locator{client: c}
}

type driveItem struct {
	ID string `json:"id"`
}

// Resolve returns the cached handle, or looks the file up when nothing is
// cached or the cached id is older than the configured TTL.
func (l *Locator) Resolve(ctx context.Context) (FileHandle, error) {
	if handle, ok := l.Cached(); ok {
		return handle, nil
	}

	// The lookup outlives any single caller; each caller stops waiting on
	// its own context.
	ch := l.group.DoChan("file", func() (any, error) {
		if handle, ok := l.Cached(); ok {
			return handle, nil
		}
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), maxResolveWait)
		defer cancel()
		return l.resolve(shared)
	})
	select {
	case <-ctx.Done():
		return FileHandle{}, fmt.Errorf("resolve file: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return FileHandle{}, res.Err
		}
		return res.Val.(FileHandle), nil
	}
}

// Cached reports the cached handle while it is still fresh.
func (l *Locator) Cached() (FileHandle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.handle.ID == "" {
		return FileHandle{}, false
	}
	ttl := l.client.cfg.FileIDTTL
	if ttl > 0 && l.client.now().Sub(l.resolvedAt) >= ttl {
		return FileHandle{}, false
	}
	return l.handle, true
}

func (l *Locator) resolve(ctx context.Context) (FileHandle, error) {
	cfg := l.client.cfg
	if err := l.checkConfig(); err != nil {
		log.Error().Err(err).Msg("Cannot resolve workbook")
		return FileHandle{}, err
	}

	lookup := l.resolveUserDrive
	if cfg.usesSite() {
		lookup = l.resolveSiteDrive
	}
	handle, err := retry.WithRetry(ctx, cfg.Resolve, lookup)
	if err != nil {
		log.Error().Err(err).Str("file", cfg.FilePath).Msg("Failed to resolve workbook")
		return FileHandle{}, err
	}

	l.mu.Lock()
	l.handle = handle
	l.resolvedAt = l.client.now()
	l.mu.Unlock()

	log.Info().Str("file_id", handle.ID).Str("file", cfg.FilePath).Msg("Workbook resolved")
	return handle, nil
}

func (l *Locator) checkConfig() error {
	cfg := l.client.cfg
	switch {
	case cfg.FilePath == "":
		return fmt.Errorf("EXCEL_FILE_PATH: %w", failure.ErrConfig)
	case !cfg.usesSite() && cfg.UserID == "":
		return fmt.Errorf("USER_ID: %w", failure.ErrConfig)
	}
	return nil
}

func (l *Locator) resolveUserDrive(ctx context.Context) (FileHandle, error) {
	cfg := l.client.cfg
	drive := "/users/" + url.PathEscape(cfg.UserID) + "/drive"

	id, err := l.lookupID(ctx, "resolve file", cfg.BaseURL+drive+"/root:/"+escapePath(cfg.FilePath))
	if err != nil {
		return FileHandle{}, err
	}
	return FileHandle{ID: id, ItemPath: drive + "/items/" + url.PathEscape(id)}, nil
}

func (l *Locator) resolveSiteDrive(ctx context.Context) (FileHandle, error) {
	cfg := l.client.cfg
	sitePath := "/" + strings.TrimLeft(cfg.SitePath, "/")

	siteID, err := l.lookupID(ctx, "resolve site", cfg.BaseURL+"/sites/"+cfg.SiteHost+":"+escapePath(sitePath))
	if err != nil {
		return FileHandle{}, err
	}
	drive := "/sites/" + url.PathEscape(siteID) + "/drive"

	id, err := l.lookupID(ctx, "resolve file", cfg.BaseURL+drive+"/root:/"+escapePath(cfg.FilePath))
	if err != nil {
		return FileHandle{}, err
	}
	return FileHandle{ID: id, ItemPath: drive + "/items/" + url.PathEscape(id)}, nil
}

func (l *Locator) lookupID(ctx context.Context, op, target string) (string, error) {
	var item driveItem
	if err := l.client.do(ctx, op, http.MethodGet, target, nil, exactlyOK, &item, failure.ErrResolution); err != nil {
		return "", err
	}
	if item.ID == "" {
		return "", fmt.Errorf("%s: response without id: %w", op, failure.ErrResolution)
	}
	return item.ID, nil
}

// escapePath escapes each segment of a slash-separated drive path.
func escapePath(p string) string {
	segments := strings.Split(strings.TrimLeft(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	escaped := strings.Join(segments, "/")
	if strings.HasPrefix(p, "/") {
		return "/" + escaped
	}
	return escaped
}
