package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/config"
	"github.com/paulschiretz/pgl-sync/pkg/flagparse"
	"github.com/paulschiretz/pgl-sync/pkg/pathsync"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/preflight"
)

var syncDescriptions = map[flagparse.Command]struct{ short, example string }{
	flagparse.Dir: {
		short:   "Synchronize a destination directory with a source directory",
		example: "  pgl-sync dir -s ~/Photos -d /mnt/usb/Photos --sha256 --mirror --dry-run",
	},
	flagparse.File: {
		short:   "Copy a single file into a destination directory if it changed",
		example: "  pgl-sync file -s ~/notes.db -d /mnt/usb/backup",
	},
}

func newSyncCommand(c flagparse.Command) *cobra.Command {
	desc := syncDescriptions[c]
	command := &cobra.Command{
		Use:     c.String(),
		Short:   desc.short,
		Example: desc.example,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunSync(cmd.Context(), c, cmd.Flags())
		},
	}
	command.Flags().SortFlags = false
	flagparse.Register(command.Flags(), c)
	return command
}

func modeFor(c flagparse.Command) (pathsync.Mode, error) {
	switch c {
	case flagparse.Dir:
		return pathsync.DirectoryMode, nil
	case flagparse.File:
		return pathsync.FileMode, nil
	default:
		return 0, fmt.Errorf("internal error: %s is not a sync command", c)
	}
}

// RunSync handles the logic for the dir and file commands: merge settings,
// set up logging, run the preflight checks and the sync.
func RunSync(ctx context.Context, c flagparse.Command, flags *pflag.FlagSet) error {
	mode, err := modeFor(c)
	if err != nil {
		return err
	}
	fsys := afero.NewOsFs()

	settingsPath, _ := flags.GetString(flagparse.FlagSettings)
	if settingsPath == "" {
		settingsPath = config.SettingsFileName
	}

	runConfig, err := config.Load(fsys, settingsPath, flags)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	runConfig.Mode = mode
	if verbose, _ := flags.GetBool(flagparse.FlagVerbose); verbose && plog.LevelFromString(runConfig.LogLevel) > plog.LevelInfo {
		runConfig.LogLevel = "info"
	}

	closeLog, err := configureLogging(fsys, runConfig)
	if err != nil {
		return err
	}
	defer closeLog()

	if err := runConfig.Validate(); err != nil {
		return err
	}

	if save, _ := flags.GetBool(flagparse.FlagSaveSettings); save {
		if err := runConfig.Save(fsys, settingsPath); err != nil {
			return err
		}
	}

	plog.Info("Starting "+buildinfo.Name, "version", buildinfo.Version, "pid", os.Getpid())
	runConfig.LogSummary()

	req, err := runConfig.ToRequest()
	if err != nil {
		return err
	}
	if err := preflight.CheckSourceAccessible(req.Source, mode == pathsync.DirectoryMode); err != nil {
		return err
	}
	if err := preflight.CheckDestinationAccessible(req.Destination); err != nil {
		return err
	}

	startTime := time.Now()
	_, err = pathsync.NewPathSyncer(fsys).Run(ctx, req)
	duration := time.Since(startTime).Round(time.Millisecond)
	if err != nil {
		plog.Warn(buildinfo.Name+" finished with errors", "duration", duration)
		return err // The error will be logged with full details by main()
	}
	plog.Change(buildinfo.Name+" finished successfully", "duration", duration)
	return nil
}

// configureLogging applies the configured level and colour and, with
// saveLog, appends a plain-text copy of the log to the log file. The returned
// func closes that file.
func configureLogging(fsys afero.Fs, cfg config.Config) (func(), error) {
	opts := plog.Options{
		Level: plog.LevelFromString(cfg.LogLevel),
		Color: cfg.Color,
	}
	closeFn := func() {}

	if cfg.SaveLog {
		f, err := fsys.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.LogFile, err)
		}
		opts.File = f
		closeFn = func() {
			console := opts
			console.File = nil
			plog.Configure(console)
			f.Close()
		}
	}

	plog.Configure(opts)
	return closeFn, nil
}
