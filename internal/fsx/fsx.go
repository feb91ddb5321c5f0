// Package fsx supplies the filesystem-facing background jobs the editor
// spawns through pkg/job: directory listings and previews for the file
// explorer, and a watcher that tells an open document when its file
// changed on disk out from under it. Grounded on
// original_source/src/job_manager/jobs/{explorer,fs}.rs — the listing
// and preview jobs are a close port of DirectoryListJob/FilePreviewJob;
// the disk watcher has no original_source counterpart (the original
// relies on the user noticing), so its shape instead follows
// pkg/termsocket/manager.go's debounced-notification pattern, re-expressed
// with fsnotify instead of a PTY-output poll.
package fsx

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"

	"github.com/vtedit/core/pkg/job"
)

const previewMaxSize = 1024 * 1024 // 1MiB, same ceiling FilePreviewJob uses
const previewChunk = 4096
const previewMaxLines = 100

// Entry is one directory member, a Go rendering of the original's
// FileEntry.
type Entry struct {
	Path  string
	Name  string
	IsDir bool
	Size  int64
}

// Listing is the Custom payload a directory-list job delivers.
type Listing struct {
	Path    string
	Entries []Entry
}

// Preview is the Custom payload a file-preview job delivers.
type Preview struct {
	Path    string
	Content string
}

// Change is the Custom payload the disk watcher delivers when the
// watched file is written or removed out from under the editor.
type Change struct {
	Path    string
	Removed bool
}

// ListDirectory lists path's immediate children, directories first and
// then case-insensitively by name, mirroring DirectoryListJob's sort.
// Dotfiles are skipped unless showHidden is set.
func ListDirectory(path string, showHidden bool) job.RunFunc {
	return func(ctx context.Context, id int, sender job.Sender) error {
		dirEntries, err := os.ReadDir(path)
		if err != nil {
			return fmt.Errorf("fsx: read dir %s: %w", path, err)
		}

		entries := make([]Entry, 0, len(dirEntries))
		for _, de := range dirEntries {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			name := de.Name()
			if !showHidden && strings.HasPrefix(name, ".") {
				continue
			}
			info, err := de.Info()
			var size int64
			isDir := de.IsDir()
			if err == nil {
				size = info.Size()
			}
			entries = append(entries, Entry{
				Path:  filepath.Join(path, name),
				Name:  name,
				IsDir: isDir,
				Size:  size,
			})
		}

		sort.Slice(entries, func(i, j int) bool {
			if entries[i].IsDir != entries[j].IsDir {
				return entries[i].IsDir
			}
			return strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
		})

		sender.Custom(Listing{Path: path, Entries: entries})
		return nil
	}
}

// PreviewFile reads up to the first previewMaxLines lines (or
// previewChunk bytes, whichever comes first) of path, mirroring
// FilePreviewJob's "simplified head" behavior: oversized or non-UTF-8
// files get a placeholder message instead of their actual bytes.
func PreviewFile(path string) job.RunFunc {
	return func(ctx context.Context, id int, sender job.Sender) error {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("fsx: stat %s: %w", path, err)
		}
		if info.Size() > previewMaxSize {
			sender.Custom(Preview{Path: path, Content: "<file too large to preview>"})
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("fsx: open %s: %w", path, err)
		}
		defer f.Close()

		buf := make([]byte, previewChunk)
		n, err := f.Read(buf)
		if err != nil && n == 0 {
			return fmt.Errorf("fsx: read %s: %w", path, err)
		}
		chunk := buf[:n]

		if !utf8.Valid(chunk) {
			sender.Custom(Preview{Path: path, Content: "<binary file>"})
			return nil
		}

		lines := bytes.Split(chunk, []byte("\n"))
		if len(lines) > previewMaxLines {
			lines = lines[:previewMaxLines]
		}
		sender.Custom(Preview{Path: path, Content: string(bytes.Join(lines, []byte("\n")))})
		return nil
	}
}

// WatchFile watches path's containing directory for changes to path
// itself, delivering a Change payload every time the file is written or
// removed, debounced by debounce so a single save (which often fires
// write+chmod in quick succession) collapses into one notification. It
// runs until ctx is cancelled, then closes the watcher and returns
// context.Canceled.
func WatchFile(path string, debounce time.Duration) job.RunFunc {
	return func(ctx context.Context, id int, sender job.Sender) error {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("fsx: new watcher: %w", err)
		}
		defer watcher.Close()

		dir := filepath.Dir(path)
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("fsx: watch %s: %w", dir, err)
		}

		base := filepath.Base(path)
		var pending *time.Timer
		var pendingRemoved bool
		fire := func() {
			sender.Custom(Change{Path: path, Removed: pendingRemoved})
		}

		for {
			select {
			case <-ctx.Done():
				if pending != nil {
					pending.Stop()
				}
				return ctx.Err()

			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				switch {
				case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
					pendingRemoved = false
				case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
					pendingRemoved = true
				default:
					continue
				}
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(debounce, fire)

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				return fmt.Errorf("fsx: watcher error: %w", err)
			}
		}
	}
}
