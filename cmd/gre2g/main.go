// Command gre2g manages the recordings blob store and indexes recordings
// for key frames.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/gre2g/internal/blobstore"
	"github.com/zsiec/gre2g/internal/config"
	"github.com/zsiec/gre2g/internal/health"
	"github.com/zsiec/gre2g/internal/indexer"
	"github.com/zsiec/gre2g/internal/logger"
	"github.com/zsiec/gre2g/internal/mappingtable"
	"github.com/zsiec/gre2g/internal/registry"
	"github.com/zsiec/gre2g/internal/server"
	"github.com/zsiec/gre2g/pkg/version"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("gre2g", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", os.Getenv("GRE2G_CONFIG"), "Path to YAML configuration file")
	global.Usage = func() { printUsage(stderr) }
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() < 1 {
		printUsage(stderr)
		return exitUsage
	}

	command, rest := global.Arg(0), global.Args()[1:]
	switch command {
	case "version":
		fmt.Fprintln(stdout, version.GetInfo().String())
		return exitOK
	case "help":
		printUsage(stdout)
		return exitOK
	}

	handler, ok := commands[command]
	if !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return exitUsage
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	fs.SetOutput(stderr)
	exec := handler(fs)
	if err := fs.Parse(rest); err != nil {
		return exitUsage
	}

	a, err := newApp(*configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	defer a.close()

	if err := exec(ctx, a, fs.Args(), stdout); err != nil {
		if _, ok := err.(usageError); ok {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			fs.Usage()
			return exitUsage
		}
		a.log.WithField("command", command).WithError(err).Error("Command failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `gre2g - game recording key-frame indexer

Usage: gre2g [-config file] <command> [options]

Commands:
  init              Wipe the blob store and create the recordings level
  add-recording     Import a video file under <recordings>/<game>/<track>/<tech>
  index-recording   Detect key frames of a stored recording
  key-frames        Print the stored key frames of a recording
  ls                List a level of the blob store
  get               Write a stored file to stdout or a local file
  rm                Delete a stored file or level
  serve             Run the read-only HTTP API
  version           Show version information
  help              Show this help message

Configuration is read from -config (or GRE2G_CONFIG) and GRE2G_*
environment variables, e.g. GRE2G_SETTINGS_BLOB_DB_PATH.`)
}

// usageError reports bad command arguments.
type usageError string

func (e usageError) Error() string { return string(e) }

type commandFunc func(ctx context.Context, a *app, args []string, stdout io.Writer) error

// commands maps a command name to a function that declares its flags and
// returns the command body.
var commands = map[string]func(fs *flag.FlagSet) commandFunc{
	"init":            initCommand,
	"add-recording":   addRecordingCommand,
	"index-recording": indexRecordingCommand,
	"key-frames":      keyFramesCommand,
	"ls":              lsCommand,
	"get":             getCommand,
	"rm":              rmCommand,
	"serve":           serveCommand,
}

// app holds what every command needs.
type app struct {
	cfg   *config.Config
	log   *logrus.Logger
	store *blobstore.FileSystemStore
	runs  registry.Registry
	redis *redis.Client
}

func newApp(configPath string, stderr io.Writer) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if cfg.Logging.Output == "stderr" || cfg.Logging.Output == "" {
		log.SetOutput(stderr)
	}
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	store, err := blobstore.NewFileSystemStore(cfg.Settings.BlobDBPath,
		mappingtable.Format(cfg.Settings.MappingTableFormat),
		logger.NewLogrusAdapter(logger.WithComponent(log, "blobstore")))
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log, store: store}
	if cfg.Redis.Enabled {
		a.redis = registry.NewClient(cfg.Redis)
		a.runs = registry.NewRedisRegistry(a.redis, log, cfg.Redis.RunTTL)
	} else {
		a.runs = registry.NewMemoryRegistry()
	}
	return a, nil
}

func (a *app) indexer() *indexer.Indexer {
	return indexer.New(a.cfg, a.store, a.runs, logger.NewLogrusAdapter(logger.WithComponent(a.log, "indexer")))
}

func (a *app) close() {
	if err := a.runs.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close run registry")
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("Failed to close blob store")
	}
}

func initCommand(fs *flag.FlagSet) commandFunc {
	return func(ctx context.Context, a *app, args []string, stdout io.Writer) error {
		if err := a.indexer().Init(ctx); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Initialized blob store at %s\n", a.cfg.Settings.BlobDBPath)
		return nil
	}
}

func recordingFlags(fs *flag.FlagSet) *indexer.RecordingRef {
	ref := &indexer.RecordingRef{}
	fs.StringVar(&ref.Game, "game", "", "Game name (required)")
	fs.StringVar(&ref.Track, "track", "", "Track name (required)")
	fs.StringVar(&ref.Tech, "tech", "", "Recording technique (required)")
	return ref
}

func checkRef(ref *indexer.RecordingRef) error {
	if ref.Game == "" || ref.Track == "" || ref.Tech == "" {
		return usageError("-game, -track and -tech are required")
	}
	return nil
}

func addRecordingCommand(fs *flag.FlagSet) commandFunc {
	ref := recordingFlags(fs)
	file := fs.String("file", "", "Path of the video file to import (required)")
	return func(ctx context.Context, a *app, args []string, stdout io.Writer) error {
		if err := checkRef(ref); err != nil {
			return err
		}
		if *file == "" {
			return usageError("-file is required")
		}
		path, err := a.indexer().AddRecording(ctx, indexer.AddRequest{RecordingRef: *ref, RecordingPath: *file})
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, blobstore.JoinPath(path))
		return nil
	}
}

func indexRecordingCommand(fs *flag.FlagSet) commandFunc {
	ref := recordingFlags(fs)
	algorithm := fs.String("algorithm", "", "Override key_frame_det.algorithm")
	debugLevel := fs.Int("debug-level", -1, "Override key_frame_det.debug_level")
	return func(ctx context.Context, a *app, args []string, stdout io.Writer) error {
		if err := checkRef(ref); err != nil {
			return err
		}
		if *algorithm != "" {
			a.cfg.KeyFrameDet.Algorithm = *algorithm
		}
		if *debugLevel >= 0 {
			a.cfg.KeyFrameDet.DebugLevel = *debugLevel
		}
		if _, err := a.indexer().IndexRecording(ctx, *ref); err != nil {
			return err
		}
		return printResult(a, *ref, stdout)
	}
}

func keyFramesCommand(fs *flag.FlagSet) commandFunc {
	ref := recordingFlags(fs)
	return func(ctx context.Context, a *app, args []string, stdout io.Writer) error {
		if err := checkRef(ref); err != nil {
			return err
		}
		return printResult(a, *ref, stdout)
	}
}

func printResult(a *app, ref indexer.RecordingRef, stdout io.Writer) error {
	res, err := a.indexer().LoadResult(ref)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func lsCommand(fs *flag.FlagSet) commandFunc {
	return func(ctx context.Context, a *app, args []string, stdout io.Writer) error {
		if len(args) > 1 {
			return usageError("ls takes at most one level path")
		}
		var path []string
		if len(args) == 1 {
			path = blobstore.SplitPath(args[0])
		}
		names, err := a.store.GetLevelContent(path)
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(stdout, n)
		}
		return nil
	}
}

func getCommand(fs *flag.FlagSet) commandFunc {
	out := fs.String("o", "", "Write to this local file instead of stdout")
	return func(ctx context.Context, a *app, args []string, stdout io.Writer) error {
		if len(args) != 1 {
			return usageError("get takes exactly one file path")
		}
		data, err := a.store.GetFile(blobstore.SplitPath(args[0]))
		if err != nil {
			return err
		}
		if *out != "" {
			return os.WriteFile(*out, data, 0o644)
		}
		_, err = stdout.Write(data)
		return err
	}
}

func rmCommand(fs *flag.FlagSet) commandFunc {
	level := fs.Bool("level", false, "Delete a level with all its content")
	return func(ctx context.Context, a *app, args []string, stdout io.Writer) error {
		if len(args) != 1 {
			return usageError("rm takes exactly one path")
		}
		path := blobstore.SplitPath(args[0])
		if *level {
			return a.store.DeleteLevel(path)
		}
		return a.store.DeleteFile(path)
	}
}

func serveCommand(fs *flag.FlagSet) commandFunc {
	return func(ctx context.Context, a *app, args []string, stdout io.Writer) error {
		a.log.WithField("version", version.GetInfo().Short()).Info("Starting gre2g API")

		checkers := []health.Checker{
			health.NewFFmpegChecker(a.cfg.Settings.FFmpegPath, a.cfg.Settings.FFprobePath),
		}
		if a.redis != nil {
			checkers = append(checkers, health.NewRedisChecker(a.redis))
		}

		srv := server.New(a.cfg, a.log, a.store, a.runs, checkers...)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		a.log.Info("Server shutdown complete")
		return nil
	}
}
