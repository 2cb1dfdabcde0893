package powerbi

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/good-yellow-bee/reportwatch/internal/metrics"
)

// reloadDebounce collapses the burst of events editors emit on save.
const reloadDebounce = 250 * time.Millisecond

// Watch reloads the catalog whenever its fixture file changes, until ctx is
// cancelled. For the embedded fixture it only waits for ctx. A fixture that
// fails to parse is logged and the previous snapshot is kept.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		<-ctx.Done()
		return nil
	}

	abs, err := filepath.Abs(c.path)
	if err != nil {
		return fmt.Errorf("resolve catalog path: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so atomic rename-on-save is seen.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch directory: %w", err)
	}

	var debounce *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce == nil {
				debounce = time.NewTimer(reloadDebounce)
			} else {
				debounce.Reset(reloadDebounce)
			}
			fire = debounce.C
		case <-fire:
			fire = nil
			if err := c.Reload(); err != nil {
				metrics.CatalogReloads.WithLabelValues("failure").Inc()
				log.Printf("catalog reload error: %v", err)
				continue
			}
			metrics.CatalogReloads.WithLabelValues("success").Inc()
			w, r, d, s := c.Counts()
			log.Printf("catalog reloaded from %s: %d workspaces, %d reports, %d datasets, %d datasources", c.path, w, r, d, s)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("catalog watcher error: %v", err)
		}
	}
}
