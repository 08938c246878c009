package mirror

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// watchFetchFile signals on the returned channel whenever the fetch file
// is created or written. It watches the file's directory rather than the
// file itself, which survives the file not existing yet and rename-style
// editor saves. The channel holds one pending signal; bursts coalesce.
func (m *Service) watchFetchFile() (<-chan struct{}, func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}
	dir := filepath.Dir(m.config.Sync.FetchFile)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, nil, err
	}

	base := filepath.Base(m.config.Sync.FetchFile)
	wake := make(chan struct{}, 1)
	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				select {
				case wake <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				m.logger.Warn("fetch file watcher error", "error", err)
			}
		}
	}()
	return wake, func() { watcher.Close() }, nil
}
