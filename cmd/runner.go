package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plsync/internal/playlistfile"
	"github.com/desertthunder/plsync/internal/repositories"
	"github.com/desertthunder/plsync/internal/services"
	"github.com/desertthunder/plsync/internal/shared"
	"github.com/desertthunder/plsync/internal/tasks"
	"github.com/desertthunder/plsync/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const defaultConfigPath = "config.toml"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
type Runner struct {
	config     *shared.Config
	configPath string
	catalog    services.Catalog
	provider   services.PlaylistProvider
	reader     tasks.PlaylistReader
	httpClient *http.Client
	logger     *log.Logger
	ownLogger  bool
	logCloser  io.Closer
	output     io.Writer
	printer    *ui.Printer

	tokenMu sync.Mutex
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Catalog and Provider replace the Spotify client when both are set.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Catalog    services.Catalog
	Provider   services.PlaylistProvider
	Reader     tasks.PlaylistReader
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	r := &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		catalog:    opts.Catalog,
		provider:   opts.Provider,
		reader:     opts.Reader,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}

	if r.configPath == "" {
		r.configPath = defaultConfigPath
	}
	if r.logger == nil {
		r.logger = shared.NewLogger(nil)
		r.ownLogger = true
	}
	if r.output == nil {
		r.output = os.Stdout
	}
	r.printer = ui.NewPrinter(r.output)

	return r
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		syncCommand, watchCommand, authCommand, setupCommand, historyCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// prepare loads and validates the configuration named by --config unless one was injected,
// then switches to the configured log level and file.
func (r *Runner) prepare(cmd *cli.Command) error {
	if cmd.IsSet("config") {
		r.configPath = cmd.String("config")
	}

	if r.config == nil {
		if _, err := os.Stat(r.configPath); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s (run 'plsync setup' to create one)", shared.ErrMissingConfig, r.configPath)
		}
		config, err := shared.LoadConfig(r.configPath)
		if err != nil {
			return err
		}
		r.config = config
	}

	if err := r.config.Validate(); err != nil {
		return err
	}

	if r.ownLogger && r.logCloser == nil {
		logger, closer, err := shared.NewRunLogger(r.config.Log)
		if err != nil {
			return err
		}
		r.logger, r.logCloser = logger, closer
	}

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
		r.printer.SetVerbose(true)
	}
	return nil
}

// Close releases the log file opened by prepare.
func (r *Runner) Close() error {
	if r.logCloser == nil {
		return nil
	}
	err := r.logCloser.Close()
	r.logCloser = nil
	return err
}

// spotifyService builds a Spotify client from the configured credentials without authenticating it.
func (r *Runner) spotifyService() (*services.SpotifyService, error) {
	opts := []services.SpotifyOption{
		services.WithTimeout(r.config.Catalog.Timeout.Duration),
		services.WithRetries(r.config.Catalog.MaxRetries, 500*time.Millisecond),
	}
	if r.httpClient != nil {
		opts = append(opts, services.WithHTTPClient(r.httpClient))
	}

	svc, err := services.NewSpotifyService(r.config.Credentials.Spotify.Map(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify service: %w", err)
	}
	return svc, nil
}

// clients returns the injected catalog and provider, or an authenticated Spotify client serving both.
func (r *Runner) clients(ctx context.Context) (services.Catalog, services.PlaylistProvider, error) {
	if r.catalog != nil && r.provider != nil {
		return r.catalog, r.provider, nil
	}

	svc, err := r.spotifyService()
	if err != nil {
		return nil, nil, err
	}
	svc.SetTokenRefreshCallback(r.persistToken)
	if err := svc.OAuthenticate(ctx, r.config.Credentials.Spotify.Token()); err != nil {
		return nil, nil, err
	}
	return svc, svc, nil
}

// persistToken writes a refreshed token back to the config file. Failures only warn: the token stays valid in memory.
func (r *Runner) persistToken(token *oauth2.Token) {
	r.tokenMu.Lock()
	defer r.tokenMu.Unlock()

	if err := r.config.Credentials.Spotify.Update(token); err != nil {
		r.logger.Warn("refreshed token not saved", "error", err)
		return
	}
	if err := shared.SaveConfig(r.configPath, r.config); err != nil {
		r.logger.Warn("refreshed token not saved", "error", err)
		return
	}
	r.logger.Debug("refreshed token saved", "path", r.configPath)
}

func (r *Runner) playlistReader() tasks.PlaylistReader {
	if r.reader != nil {
		return r.reader
	}
	reader := playlistfile.NewReader(r.config.Sync.UserAgent)
	reader.HTTPClient = r.httpClient
	return reader
}

// openHistory opens the run history database, applying pending migrations.
func (r *Runner) openHistory() (*repositories.RunRepository, *sql.DB, error) {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	shared.ConfigureDatabase(db, r.config.Database.MaxOpenConns, r.config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repositories.NewRunRepository(db), db, nil
}

// engineOptions maps configuration onto [tasks.Options].
func (r *Runner) engineOptions(policy tasks.FailurePolicy, dryRun bool) tasks.Options {
	return tasks.Options{
		Market:      r.config.Sync.Market,
		Public:      r.config.Sync.Public,
		Policy:      policy,
		DryRun:      dryRun,
		PageSize:    r.config.Sync.PageSize,
		Concurrency: r.config.Sync.Concurrency,
		RateLimit:   r.config.Sync.RateLimit,
	}
}

// newEngine wires reader, clients and run history into a [tasks.PlaylistEngine].
//
// A history database that cannot be opened is logged and the run proceeds without it.
func (r *Runner) newEngine(ctx context.Context, opts tasks.Options) (*tasks.PlaylistEngine, func(), error) {
	catalog, provider, err := r.clients(ctx)
	if err != nil {
		return nil, nil, err
	}

	engine := tasks.NewPlaylistEngine(r.playlistReader(), catalog, provider, opts)
	engine.SetLogger(r.logger)

	cleanup := func() {}
	repo, closer, err := r.openHistory()
	if err != nil {
		r.logger.Warn("run history disabled", "error", err)
	} else {
		engine.SetRecorder(repo)
		cleanup = func() { closer.Close() }
	}

	return engine, cleanup, nil
}

// lock takes the single-run lock unless this is a dry run, which never mutates playlists.
func (r *Runner) lock(dryRun bool) (func(), error) {
	if dryRun {
		return func() {}, nil
	}
	l := shared.NewRunLock(r.config.Database.Path)
	if err := l.Acquire(); err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(); err != nil {
			r.logger.Warn("failed to release lock", "path", l.Path(), "error", err)
		}
	}, nil
}

// playlistPaths returns the command arguments, falling back to sync.paths.
func (r *Runner) playlistPaths(cmd *cli.Command) ([]string, error) {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		paths = r.config.PlaylistPaths()
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: pass playlist files or set sync.paths in %s", shared.ErrMissingArgument, r.configPath)
	}
	return paths, nil
}

// drainProgress prints updates until the channel is closed. The returned channel closes once printing is done.
func (r *Runner) drainProgress(progress <-chan tasks.ProgressUpdate) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.printer.Progress(update)
		}
	}()
	return done
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(append(output, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
