package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

var imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}

// DirectoryLibrary treats a directory as the photo library. Each pick returns
// the newest image that has not been picked before.
type DirectoryLibrary struct {
	dir     string
	quality func() float64

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewDirectoryLibrary creates a library over dir. quality is read on every
// pick; nil uses DefaultLibraryQuality.
func NewDirectoryLibrary(dir string, quality func() float64) *DirectoryLibrary {
	if quality == nil {
		quality = func() float64 { return DefaultLibraryQuality }
	}
	return &DirectoryLibrary{
		dir:     dir,
		quality: quality,
		seen:    make(map[string]time.Time),
	}
}

// Dir returns the library directory.
func (l *DirectoryLibrary) Dir() string { return l.dir }

// PickFromLibrary implements Library.
func (l *DirectoryLibrary) PickFromLibrary(ctx context.Context) (*Photo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(l.dir, e.Name()),
			modTime: info.ModTime(),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime.Equal(candidates[j].modTime) {
			return candidates[i].path > candidates[j].path
		}
		return candidates[i].modTime.After(candidates[j].modTime)
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range candidates {
		// A file rewritten after it was picked counts as new.
		if at, ok := l.seen[c.path]; ok && !c.modTime.After(at) {
			continue
		}
		raw, err := os.ReadFile(c.path)
		if err != nil {
			continue
		}
		data, err := Reencode(raw, l.quality())
		if err != nil {
			continue
		}
		l.seen[c.path] = c.modTime
		return &Photo{
			URI:        fileURI(c.path),
			Data:       data,
			MIME:       "image/jpeg",
			CapturedAt: c.modTime,
		}, nil
	}
	return nil, ErrCancelled
}

var _ Library = (*DirectoryLibrary)(nil)
