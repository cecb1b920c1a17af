package internal

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hbomb79/mediatab/internal/api"
	"github.com/hbomb79/mediatab/internal/api/batches"
	"github.com/hbomb79/mediatab/internal/database"
	"github.com/hbomb79/mediatab/internal/event"
	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/hbomb79/mediatab/internal/job"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/probe"
	"github.com/hbomb79/mediatab/internal/sink"
	"github.com/hbomb79/mediatab/pkg/logger"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/sync/errgroup"
)

var (
	log = logger.Get("Core")

	ErrNotServing = fmt.Errorf("%w: batches can only be submitted while serving", batches.ErrServiceUnavailable)
)

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// mediatabImpl is the top-level object for mediatab, and is responsible
	// for wiring together the prober, the optional database mirror, the job
	// executor and (when serving) the HTTP gateway and activity service.
	mediatabImpl struct {
		config   Config
		profile  media.Profile
		filter   ingest.ExtensionFilter
		eventBus event.EventCoordinator
		prober   probe.Prober
		jobs     *job.Store

		db       database.Manager
		rowStore *sink.RowStore
		mirror   *sink.Mirror
		executor *job.Executor

		jobsMu    sync.Mutex
		serveCtx  context.Context
		accepting bool
		jobsWg    sync.WaitGroup
	}
)

// New constructs mediatab using the configuration provided. The configuration
// is validated before use.
func New(config Config) (*mediatabImpl, error) {
	log.Emit(logger.DEBUG, "Bootstrapping mediatab using config: %#v\n", config)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	profile, err := config.ParsedProfile()
	if err != nil {
		return nil, err
	}

	prober, err := probe.New(config.Probe)
	if err != nil {
		return nil, fmt.Errorf("failed to construct prober: %w", err)
	}

	return &mediatabImpl{
		config:   config,
		profile:  profile,
		filter:   config.ExtensionFilter(profile),
		eventBus: event.New(),
		prober:   prober,
		jobs:     job.NewStore(),
	}, nil
}

// Scan collects the inputs provided in to a single batch and runs it to
// completion, returning the summary of the run.
func (app *mediatabImpl) Scan(ctx context.Context, inputs []string) (sink.Summary, error) {
	if err := app.connect(); err != nil {
		return sink.Summary{}, err
	}
	defer app.close()

	paths, skipped := ingest.Collect(inputs, app.filter)
	log.Emit(logger.INFO, "Collected %d file(s) from %d input(s) (%d skipped)\n", len(paths), len(inputs), len(skipped))

	batch := ingest.NewBatch(paths)
	batch.Seal()

	j := job.New(batch, app.profile, app.config.Output, skipped)
	app.jobs.Add(j)

	return app.executor.Execute(ctx, j)
}

// Watch collects the directory provided in to an open batch, and keeps pushing
// newly discovered files in to the batch until the context is cancelled. Once
// cancelled, the batch is sealed and the run finalized.
func (app *mediatabImpl) Watch(ctx context.Context, dir string) (sink.Summary, error) {
	watcher, err := ingest.NewWatchService(app.config.Watch, dir, app.filter)
	if err != nil {
		return sink.Summary{}, err
	}

	if err := app.connect(); err != nil {
		return sink.Summary{}, err
	}
	defer app.close()

	skipped := watcher.Discover()
	j := job.New(watcher.Batch(), app.profile, app.config.Output, skipped)
	app.jobs.Add(j)

	var summary sink.Summary
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		defer watcher.Batch().Seal()
		return watcher.Run(groupCtx)
	})
	group.Go(func() error {
		s, err := app.executor.Execute(groupCtx, j)
		summary = s
		return err
	})

	err = group.Wait()
	return summary, err
}

// Serve will start the HTTP gateway and activity service, accepting batches
// over the API until the context is cancelled. Batches still running when
// the context is cancelled are cancelled, and Serve waits for them to finalize.
//
// Errors from which mediatab cannot recover will also cause Serve to return.
func (app *mediatabImpl) Serve(parent context.Context) error {
	if err := app.connect(); err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := context.WithCancelCause(parent)
	defer cancel(nil)
	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel(fmt.Errorf("%s crashed: %w", label, err))
	}

	app.jobsMu.Lock()
	app.serveCtx, app.accepting = ctx, true
	app.jobsMu.Unlock()

	gateway := api.NewRestGateway(&app.config.Api, app)
	activity := newActivityService(gateway, app.eventBus)

	wg := &sync.WaitGroup{}
	app.spawnAsyncService(ctx, wg, activity, "activity-service", crashHandler)
	app.spawnAsyncService(ctx, wg, gateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "mediatab services spawned!\n")

	wg.Wait()

	app.jobsMu.Lock()
	app.accepting = false
	app.jobsMu.Unlock()
	app.jobsWg.Wait()

	// Parent cancellation is not an error case we should report
	if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}

	return nil
}

// SubmitBatch collects the paths provided and starts a job for them in the
// background. An empty output uses the configured output path.
func (app *mediatabImpl) SubmitBatch(inputs []string, profile media.Profile, output string) (*job.Job, error) {
	outputConfig := app.config.Output
	if output != "" {
		expanded, err := homedir.Expand(output)
		if err != nil {
			return nil, fmt.Errorf("failed to expand output path %s: %w", output, err)
		}

		outputConfig.Path = expanded
		outputConfig.SkipReportPath = ""
	}

	paths, skipped := ingest.Collect(inputs, app.config.ExtensionFilter(profile))
	batch := ingest.NewBatch(paths)
	batch.Seal()

	app.jobsMu.Lock()
	defer app.jobsMu.Unlock()
	if !app.accepting || app.serveCtx.Err() != nil {
		return nil, ErrNotServing
	}

	j := job.New(batch, profile, outputConfig, skipped)
	app.jobs.Add(j)

	app.jobsWg.Add(1)
	go func(ctx context.Context) {
		defer app.jobsWg.Done()
		if _, err := app.executor.Execute(ctx, j); err != nil {
			log.Emit(logger.ERROR, "Batch %s failed: %v\n", j.ID(), err)
		}
	}(app.serveCtx)

	return j, nil
}

func (app *mediatabImpl) GetAllBatches() []*job.Job { return app.jobs.All() }

func (app *mediatabImpl) GetBatch(id uuid.UUID) *job.Job { return app.jobs.Get(id) }

// GetBatchRows returns the rows mirrored to the database for the batch.
func (app *mediatabImpl) GetBatchRows(id uuid.UUID) ([]*sink.StoredRow, error) {
	if app.mirror == nil {
		return nil, batches.ErrRowsUnavailable
	}

	return app.rowStore.ListForBatch(app.db.GetSqlxDb(), id)
}

// connect establishes the database connection (if enabled) and constructs
// the executor used to run jobs.
func (app *mediatabImpl) connect() error {
	if app.config.Database.Enabled {
		log.Emit(logger.NEW, "Connecting to database...\n")
		db := database.New()
		if err := db.Connect(app.config.Database); err != nil {
			return err
		}

		app.db = db
		app.rowStore = sink.NewRowStore()
		app.mirror = sink.NewMirror(db.GetSqlxDb(), app.rowStore)
	}

	app.executor = job.NewExecutor(app.prober, app.config.Concurrency, app.config.InspectTimeout(), app.mirror, app.eventBus)
	return nil
}

func (app *mediatabImpl) close() {
	if app.db == nil {
		return
	}

	if err := app.db.Close(); err != nil {
		log.Emit(logger.WARNING, "Failed to close database connection: %v\n", err)
	}
}

// spawnAsyncService will run the provided function/service as it's own
// go-routine, ensuring that the service waitgroup is updated correctly
func (app *mediatabImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
