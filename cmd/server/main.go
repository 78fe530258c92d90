// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	apiconnect "github.com/osa030/tapedeck/internal/api/connect"
	"github.com/osa030/tapedeck/internal/app/notification"
	"github.com/osa030/tapedeck/internal/app/playback"
	"github.com/osa030/tapedeck/internal/app/resolve"
	"github.com/osa030/tapedeck/internal/infra/audio"
	"github.com/osa030/tapedeck/internal/infra/cache"
	"github.com/osa030/tapedeck/internal/infra/config"
	"github.com/osa030/tapedeck/internal/infra/library"
	"github.com/osa030/tapedeck/internal/infra/logger"
	"github.com/osa030/tapedeck/internal/infra/mpris"
	"github.com/osa030/tapedeck/internal/infra/spotify"
)

const shutdownTimeout = 10 * time.Second

var (
	app        = kingpin.New("tapedeck-server", "tapedeck playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// import command
	importCmd      = app.Command("import", "Import a YAML manifest into the local library and exit")
	importManifest = importCmd.Arg("manifest", "Path to the manifest").Required().ExistingFile()
)

func init() {
	// start command (default)
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closeLog()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Error().Msgf("Failed to load config: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case importCmd.FullCommand():
		err = runImport(ctx, cfg, *importManifest)
	default:
		err = run(ctx, cfg)
	}
	if err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		stop()
		closeLog()
		os.Exit(1)
	}
}

// runImport stores a manifest in the configured library.
func runImport(ctx context.Context, cfg *config.Config, manifest string) error {
	if cfg.Catalog.Type != config.CatalogSQLite {
		return errors.Newf("import needs the %s catalog, configured: %s", config.CatalogSQLite, cfg.Catalog.Type)
	}
	libCfg, err := library.DecodeConfig(cfg.Catalog.Settings)
	if err != nil {
		return errors.Wrap(err, "invalid catalog settings")
	}
	lib, err := library.Open(ctx, libCfg.Path)
	if err != nil {
		return err
	}
	defer lib.Close()

	m, err := library.LoadManifest(manifest)
	if err != nil {
		return err
	}
	stats, err := lib.Import(ctx, m, audio.Probe)
	if err != nil {
		return err
	}
	fmt.Printf("Imported %d albums, %d tracks and %d playlists into %s\n", stats.Albums, stats.Tracks, stats.Playlists, libCfg.Path)
	return nil
}

// run wires the server together and blocks until ctx is done or the HTTP
// server fails. Using a separate function ensures deferred closes run.
func run(ctx context.Context, cfg *config.Config) error {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i].Close(); err != nil {
				zlog.Warn().Msgf("Failed to close %T: %v", closers[i], err)
			}
		}
	}()

	var spotifyClient *spotify.Client
	if cfg.UsesSpotify() {
		var err error
		spotifyClient, err = spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			RefreshToken: cfg.Spotify.RefreshToken,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
	}

	catalog, err := newCatalog(ctx, cfg, spotifyClient, &closers)
	if err != nil {
		return err
	}

	backend, err := newBackend(cfg, spotifyClient)
	if err != nil {
		return err
	}

	controller := playback.NewController(
		backend,
		resolve.NewResolver(catalog, resolve.Config{Concurrency: cfg.Playback.ResolveConcurrency}),
		playback.Config{
			PositionPollInterval: cfg.Playback.PositionPollInterval(),
			AutoAdvance:          cfg.Playback.AutoAdvanceEnabled(),
		},
	)
	// Closing the controller also closes the backend.
	closers = append(closers, controller)

	notifier := notification.NewManager(notification.Config{SendTimeout: cfg.Server.NotifyTimeout()})

	if cfg.MPRIS.Enabled {
		adapter, err := mpris.New(controller, cfg.MPRIS.Name)
		if err != nil {
			zlog.Warn().Msgf("MPRIS disabled: %v", err)
		} else {
			closers = append(closers, adapter)
		}
	}

	mux := http.NewServeMux()
	path, handler := apiconnect.NewPlayerServiceHandler(
		apiconnect.NewPlayerService(controller, notifier),
		connect.WithInterceptors(
			apiconnect.NewRequestLogInterceptor(),
			apiconnect.NewControlAuthInterceptor(cfg.Server.ControlToken),
		),
	)
	mux.Handle(path, handler)

	// Create server with h2c (HTTP/2 cleartext) support
	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: h2c.NewHandler(mux, &http2.Server{}),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		notifier.Run(gctx, controller.Watch(gctx))
		return nil
	})
	g.Go(func() error {
		zlog.Info().Msgf("Starting server: addr=%s catalog=%s backend=%s", cfg.Server.Addr, cfg.Catalog.Type, cfg.Backend.Type)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server error")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zlog.Info().Msg("Shutting down...")

		// Close streams first so that Shutdown does not wait for them
		notifier.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			zlog.Error().Msgf("Failed to shutdown server: %v", err)
		}
		return nil
	})

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	err = g.Wait()
	zlog.Info().Msg("Server stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return err
}

// newCatalog builds the configured catalog, wrapped in the Redis cache when enabled.
func newCatalog(ctx context.Context, cfg *config.Config, client *spotify.Client, closers *[]io.Closer) (resolve.Catalog, error) {
	var catalog resolve.Catalog

	switch cfg.Catalog.Type {
	case config.CatalogSQLite:
		libCfg, err := library.DecodeConfig(cfg.Catalog.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "invalid catalog settings")
		}
		lib, err := library.Open(ctx, libCfg.Path)
		if err != nil {
			return nil, err
		}
		*closers = append(*closers, lib)
		catalog = lib
	case config.CatalogSpotify:
		catalog = spotify.NewCatalog(client)
	default:
		return nil, errors.Newf("unknown catalog type %q", cfg.Catalog.Type)
	}

	if !cfg.Catalog.Cache.Enabled {
		return catalog, nil
	}
	cached, err := cache.New(ctx, catalog, cache.Config{
		Addr:     cfg.Catalog.Cache.Addr,
		Password: cfg.Catalog.Cache.Password,
		DB:       cfg.Catalog.Cache.DB,
		TTL:      cfg.Catalog.Cache.TTL(),
	})
	if err != nil {
		return nil, err
	}
	*closers = append(*closers, cached)
	return cached, nil
}

// newBackend builds the configured playback backend.
func newBackend(cfg *config.Config, client *spotify.Client) (playback.Backend, error) {
	switch cfg.Backend.Type {
	case config.BackendLocal:
		audioCfg, err := audio.DecodeConfig(cfg.Backend.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "invalid backend settings")
		}
		return audio.NewBackend(audioCfg)
	case config.BackendSpotify:
		spotifyCfg, err := spotify.DecodeBackendConfig(cfg.Backend.Settings)
		if err != nil {
			return nil, errors.Wrap(err, "invalid backend settings")
		}
		return spotify.NewBackend(client, spotifyCfg), nil
	default:
		return nil, errors.Newf("unknown backend type %q", cfg.Backend.Type)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
