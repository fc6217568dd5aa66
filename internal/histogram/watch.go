package histogram

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// DefaultDebounce is how long a file must stay quiet before it is re-rendered.
const DefaultDebounce = 500 * time.Millisecond

// Watch renders logDir once, then re-renders files as the trainer writes them
// until ctx is done. New run directories are picked up as they appear.
func (p *Plotter) Watch(ctx context.Context, logDir string, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating file watcher")
	}
	defer watcher.Close()

	logDir = filepath.Clean(logDir)
	if err := watcher.Add(logDir); err != nil {
		return errors.Wrapf(err, "watching %s", logDir)
	}
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return errors.Wrapf(err, "reading %s", logDir)
	}
	for _, e := range entries {
		if e.IsDir() {
			p.watchRun(watcher, filepath.Join(logDir, e.Name()))
		}
	}
	if err := p.LogDir(logDir); err != nil {
		return err
	}

	// Timers hand paths back to this goroutine, so rendering never overlaps
	// and nothing is in flight once Watch returns.
	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Stop()
		}
		timers[path] = time.AfterFunc(debounce, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	p.log.Info("watching for changes", "dir", logDir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case path := <-ready:
			if err := p.File(path); err != nil {
				p.log.Error("failed to plot", "path", path, "error", err)
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			switch {
			case info.IsDir():
				// Files can land in a new run before it is watched.
				p.watchRun(watcher, event.Name)
				for _, path := range regularFiles(event.Name) {
					schedule(path)
				}
			case info.Mode().IsRegular() && filepath.Dir(event.Name) != logDir:
				schedule(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Error("watcher error", "error", err)
		}
	}
}

func (p *Plotter) watchRun(watcher *fsnotify.Watcher, dir string) {
	if err := watcher.Add(dir); err != nil {
		p.log.Warn("cannot watch run directory", "dir", dir, "error", err)
		return
	}
	p.log.Debug("watching run", "dir", dir)
}

func regularFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return paths
}
