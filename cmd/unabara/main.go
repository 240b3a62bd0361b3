package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/unabara/internal/config"
	"codeberg.org/mutker/unabara/internal/errors"
	"codeberg.org/mutker/unabara/internal/logger"
	"codeberg.org/mutker/unabara/internal/prefs"
)

const usage = `Usage: unabara [flags] <command> [arguments]

Commands:
  list <log>                      List the dives in a Subsurface log
  show <source> [-dive N]         Print a dive's metadata and profile
  import <log> [-dive N]          Save dives from a log to the catalog
  export <kind> <source> [flags]  Export a dive (images, video, sheet, profile)
  catalog list | delete <id>      Manage the dive catalog

A <source> is a log file path or catalog:<id>.

Global flags:
  --config        Path to configuration file
  --log-level     debug, info, warning or error
  --store         Path to the dive catalog database
  --prefs         Path to the preferences file
  --ffmpeg        ffmpeg executable
  --codec         h264, hevc, prores or vp9
  --bitrate       Video bitrate in kbit/s
  --kill-timeout  Seconds to wait for ffmpeg to exit after cancellation
`

type app struct {
	cfg   *config.Config
	prefs *prefs.Preferences
	log   logger.Logger
}

func main() {
	cfg, args, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(2)
	}

	logger.Init(cfg.LogLevel.String(), logger.IsService())
	logger.Debug().Str("file", cfg.File).Msg("Config loaded")

	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	p, err := prefs.Load(cfg.PrefsPath)
	if err != nil {
		logger.Warn().Err(err).Str("path", cfg.PrefsPath).Msg("Ignoring unreadable preferences")
		p, _ = prefs.Load("")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	a := &app{cfg: cfg, prefs: p, log: logger.Default()}
	err = a.run(ctx, args[0], args[1:])

	if p.Path() != "" {
		if saveErr := p.Save(); saveErr != nil {
			logger.Warn().Err(saveErr).Msg("Failed to save preferences")
		}
	}

	if err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.ErrorWithCode(coded).Msg("Command failed")
		} else {
			logger.Error().Err(err).Msg("Command failed")
		}
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return a.list(ctx, args)
	case "show":
		return a.show(ctx, args)
	case "import":
		return a.importLog(ctx, args)
	case "export":
		return a.export(ctx, args)
	case "catalog":
		return a.catalog(ctx, args)
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		return errors.New().WithData(errors.ErrInvalidArgument, struct{ Command string }{cmd})
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
