package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hbomb79/mediatab/pkg/logger"
	"github.com/rjeczalik/notify"
)

// watchService is responsible for the automatic detection of files
// beneath a directory, pushing each newly detected file in to an open
// batch. The batch is sealed by the caller once the service stops.
type watchService struct {
	config Config
	path   string
	filter ExtensionFilter
	batch  *Batch
}

// NewWatchService creates a new watch service for the directory provided. The
// path is validated to be an existing directory.
func NewWatchService(config Config, path string, filter ExtensionFilter) (*watchService, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("watch path '%s' could not be resolved: %w", path, err)
	}

	if info, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("watch path '%s' could not be accessed: %w", abs, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("watch path '%s' is not a directory", abs)
	}

	if config.ForceSyncSeconds < 1 {
		return nil, errors.New("watch force sync interval must be at least one second")
	}

	return &watchService{
		config: config,
		path:   abs,
		filter: filter,
		batch:  NewBatch(nil, WithImportHold(config.RequiredModTimeAgeDuration())),
	}, nil
}

// Batch returns the open batch new files are pushed in to.
func (service *watchService) Batch() *Batch { return service.batch }

// Run is the main entry point of this service. It's responsible
// for listening to the OS file system and responding to change events,
// as well as regularly polling the file system irrespective of the
// watcher.
// To kill the service, the calling code should cancel the context
// provided.
func (service *watchService) Run(ctx context.Context) error {
	// The watcher does not follow a symlinked root, so watch the directory it resolves to
	watchRoot := service.path
	if resolved, err := filepath.EvalSymlinks(service.path); err == nil {
		watchRoot = resolved
	}

	fsNotifyChannel := make(chan notify.EventInfo, 32)
	if err := notify.Watch(filepath.Join(watchRoot, "..."), fsNotifyChannel, notify.Create, notify.Write, notify.Rename); err != nil {
		return fmt.Errorf("failed to watch %s: %w", service.path, err)
	}
	defer notify.Stop(fsNotifyChannel)

	forceSync := time.NewTicker(service.config.ForceSyncDuration())
	defer forceSync.Stop()

	log.Emit(logger.NEW, "Watching %s for new files\n", service.path)
	service.DiscoverNewFiles()

	for {
		select {
		case ev := <-fsNotifyChannel:
			log.Emit(logger.VERBOSE, "File system event %s for %s\n", ev.Event(), ev.Path())
			service.DiscoverNewFiles()
		case <-forceSync.C:
			service.DiscoverNewFiles()
		case <-ctx.Done():
			log.Emit(logger.STOP, "Stopped watching %s\n", service.path)
			return nil
		}
	}
}

// Discover performs the initial collection of the watched directory, pushing every
// file found in to the batch. Subtrees which could not be read are returned as
// PATH_FAILURE skip records so they can be reported alongside the batch; later
// discoveries only log them, as they are retried on every sync.
func (service *watchService) Discover() []SkipRecord {
	_, skipped := service.discover()
	return skipped
}

// DiscoverNewFiles will scan the watched directory and push any files not already
// known to the batch. Subtrees which cannot be read are logged and retried on the
// next discovery. Returns the number of new files found.
func (service *watchService) DiscoverNewFiles() int {
	added, skipped := service.discover()
	for _, skip := range skipped {
		log.Emit(logger.WARNING, "Watch discovery could not read %s: %s\n", skip.Path, skip.Reason())
	}

	return added
}

func (service *watchService) discover() (int, []SkipRecord) {
	files, skipped := Collect([]string{service.path}, service.filter)
	added, err := service.batch.Push(files...)
	if err != nil {
		log.Emit(logger.DEBUG, "Discovered files ignored: %v\n", err)
		return 0, skipped
	}

	if added > 0 {
		log.Emit(logger.INFO, "Discovered %d new file(s) in %s\n", added, service.path)
	}

	return added, skipped
}
