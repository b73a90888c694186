package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/paulschiretz/pgl-sync/pkg/buildinfo"
	"github.com/paulschiretz/pgl-sync/pkg/flagparse"
	"github.com/paulschiretz/pgl-sync/pkg/pathsync"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

const (
	// SettingsFileName is looked up in the working directory unless --settings is given.
	SettingsFileName = "pgl-sync.settings.json"
	// DefaultLogFileName receives the log copy written with --save-log.
	DefaultLogFileName = "sync.log"
	// EnvPrefix prefixes every environment variable read by Load, e.g. PGLSYNC_DRYRUN.
	EnvPrefix = "PGLSYNC"
)

// Settings keys as they appear in the settings file.
const (
	keyVersion          = "version"
	keyMode             = "mode"
	keySource           = "source"
	keyDestination      = "destination"
	keyIgnore           = "ignore"
	keyExclude          = "exclude"
	keyMirror           = "mirror"
	keyDryRun           = "dryRun"
	keyStrongHash       = "strongHash"
	keyWorkers          = "workers"
	keyRetryCount       = "retryCount"
	keyRetryWaitSeconds = "retryWaitSeconds"
	keyLogLevel         = "logLevel"
	keyColor            = "color"
	keySaveLog          = "saveLog"
	keyLogFile          = "logFile"
	keyProgressSeconds  = "progressSeconds"
)

// flagKeys maps command-line flags onto settings keys. Flags without an
// entry (verbose, settings, save-settings) only steer the CLI itself.
var flagKeys = map[string]string{
	flagparse.FlagSource:      keySource,
	flagparse.FlagDestination: keyDestination,
	flagparse.FlagIgnore:      keyIgnore,
	flagparse.FlagExclude:     keyExclude,
	flagparse.FlagMirror:      keyMirror,
	flagparse.FlagDryRun:      keyDryRun,
	flagparse.FlagSHA256:      keyStrongHash,
	flagparse.FlagWorkers:     keyWorkers,
	flagparse.FlagRetryCount:  keyRetryCount,
	flagparse.FlagRetryWait:   keyRetryWaitSeconds,
	flagparse.FlagLogLevel:    keyLogLevel,
	flagparse.FlagColor:       keyColor,
	flagparse.FlagSaveLog:     keySaveLog,
	flagparse.FlagLogFile:     keyLogFile,
	flagparse.FlagProgress:    keyProgressSeconds,
}

var validLogLevels = []string{"debug", "info", "change", "warn", "error"}

// Config is the effective configuration of one run. It is also the shape of
// the settings file.
type Config struct {
	Version     string        `json:"version"`
	Mode        pathsync.Mode `json:"mode"`
	Source      string        `json:"source"`
	Destination string        `json:"destination"`
	Ignore      []string      `json:"ignore"`
	Exclude     []string      `json:"exclude"`

	Mirror     bool `json:"mirror"`
	DryRun     bool `json:"dryRun"`
	StrongHash bool `json:"strongHash"`

	Workers          int `json:"workers"`
	RetryCount       int `json:"retryCount"`
	RetryWaitSeconds int `json:"retryWaitSeconds"`

	LogLevel        string `json:"logLevel"`
	Color           bool   `json:"color"`
	SaveLog         bool   `json:"saveLog"`
	LogFile         string `json:"logFile"`
	ProgressSeconds int    `json:"progressSeconds"`
}

// NewDefault returns a configuration with default values.
func NewDefault() Config {
	return Config{
		Version:          buildinfo.Version,
		Mode:             pathsync.DirectoryMode,
		Ignore:           []string{},
		Exclude:          []string{},
		Mirror:           false, // Deleting extras is opt-in.
		DryRun:           false,
		StrongHash:       false, // Timestamps and sizes only; no move detection.
		Workers:          0,     // One copy per CPU.
		RetryCount:       3,
		RetryWaitSeconds: 5,
		LogLevel:         "change", // Every change is logged, nothing else.
		LogFile:          DefaultLogFileName,
		ProgressSeconds:  0,
	}
}

// Load builds the configuration from, in increasing priority: the defaults,
// the settings file at path, PGLSYNC_* environment variables and the flags
// that were explicitly set. A missing settings file is not an error.
func Load(fsys afero.Fs, path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetFs(fsys)
	v.SetConfigType("json")
	setDefaults(v, NewDefault())
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
			}
			plog.Debug("No settings file found, using defaults", "path", path)
		} else {
			plog.Info("Loaded settings", "path", path)
		}
	}

	return fromViper(v)
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault(keyVersion, d.Version)
	v.SetDefault(keyMode, d.Mode.String())
	v.SetDefault(keySource, d.Source)
	v.SetDefault(keyDestination, d.Destination)
	v.SetDefault(keyIgnore, d.Ignore)
	v.SetDefault(keyExclude, d.Exclude)
	v.SetDefault(keyMirror, d.Mirror)
	v.SetDefault(keyDryRun, d.DryRun)
	v.SetDefault(keyStrongHash, d.StrongHash)
	v.SetDefault(keyWorkers, d.Workers)
	v.SetDefault(keyRetryCount, d.RetryCount)
	v.SetDefault(keyRetryWaitSeconds, d.RetryWaitSeconds)
	v.SetDefault(keyLogLevel, d.LogLevel)
	v.SetDefault(keyColor, d.Color)
	v.SetDefault(keySaveLog, d.SaveLog)
	v.SetDefault(keyLogFile, d.LogFile)
	v.SetDefault(keyProgressSeconds, d.ProgressSeconds)
}

func fromViper(v *viper.Viper) (Config, error) {
	mode, err := pathsync.ParseMode(v.GetString(keyMode))
	if err != nil {
		return Config{}, fmt.Errorf("invalid %s setting: %w", keyMode, err)
	}
	return Config{
		Version:          buildinfo.Version,
		Mode:             mode,
		Source:           v.GetString(keySource),
		Destination:      v.GetString(keyDestination),
		Ignore:           listValue(v.Get(keyIgnore)),
		Exclude:          listValue(v.Get(keyExclude)),
		Mirror:           v.GetBool(keyMirror),
		DryRun:           v.GetBool(keyDryRun),
		StrongHash:       v.GetBool(keyStrongHash),
		Workers:          v.GetInt(keyWorkers),
		RetryCount:       v.GetInt(keyRetryCount),
		RetryWaitSeconds: v.GetInt(keyRetryWaitSeconds),
		LogLevel:         v.GetString(keyLogLevel),
		Color:            v.GetBool(keyColor),
		SaveLog:          v.GetBool(keySaveLog),
		LogFile:          v.GetString(keyLogFile),
		ProgressSeconds:  v.GetInt(keyProgressSeconds),
	}, nil
}

// listValue normalizes a list setting. Environment variables arrive as a
// single string, the settings file as a JSON array and flags as a string
// slice; every item may itself be a comma-separated list.
func listValue(raw any) []string {
	switch val := raw.(type) {
	case nil:
		return []string{}
	case string:
		return flagparse.ParseList(val)
	case []string:
		return flagparse.ParseLists(val)
	case []any:
		items := make([]string, 0, len(val))
		for _, item := range val {
			items = append(items, fmt.Sprint(item))
		}
		return flagparse.ParseLists(items)
	default:
		return flagparse.ParseList(fmt.Sprint(val))
	}
}

// Save writes the configuration as indented JSON to path.
func (c Config) Save(fsys afero.Fs, path string) error {
	c.Version = buildinfo.Version
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if err := afero.WriteFile(fsys, path, append(data, '\n'), util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write settings file %s: %w", path, err)
	}
	plog.Info("Saved settings", "path", path)
	return nil
}

// Validate checks the configuration for logical errors. It does not touch
// the filesystem; existence checks belong to preflight and to the syncer.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Source) == "" {
		return fmt.Errorf("source cannot be empty; use --source or set it in %s", SettingsFileName)
	}
	if strings.TrimSpace(c.Destination) == "" {
		return fmt.Errorf("destination cannot be empty; use --destination or set it in %s", SettingsFileName)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative")
	}
	if c.RetryCount < 0 {
		return fmt.Errorf("retryCount cannot be negative")
	}
	if c.RetryWaitSeconds < 0 {
		return fmt.Errorf("retryWaitSeconds cannot be negative")
	}
	if c.ProgressSeconds < 0 {
		return fmt.Errorf("progressSeconds cannot be negative")
	}
	if !isValidLogLevel(c.LogLevel) {
		return fmt.Errorf("invalid logLevel %q. Must be one of %s", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if c.SaveLog && strings.TrimSpace(c.LogFile) == "" {
		return fmt.Errorf("logFile cannot be empty when saveLog is enabled")
	}
	if c.Mode == pathsync.FileMode && (c.Mirror || len(c.Exclude) > 0) {
		plog.Warn("Mirror and exclude patterns have no effect in file mode")
	}
	return nil
}

func isValidLogLevel(l string) bool {
	l = strings.ToLower(strings.TrimSpace(l))
	if l == "" || l == "warning" {
		return true
	}
	for _, valid := range validLogLevels {
		if l == valid {
			return true
		}
	}
	return false
}

// ToRequest turns the configuration into a sync request with home-relative
// paths expanded and every path made absolute.
func (c *Config) ToRequest() (pathsync.SyncRequest, error) {
	source, err := absPath(c.Source)
	if err != nil {
		return pathsync.SyncRequest{}, fmt.Errorf("invalid source: %w", err)
	}
	destination, err := absPath(c.Destination)
	if err != nil {
		return pathsync.SyncRequest{}, fmt.Errorf("invalid destination: %w", err)
	}

	ignore := make([]string, 0, len(c.Ignore))
	for _, p := range util.MergeAndDeduplicate(c.Ignore) {
		abs, err := absPath(p)
		if err != nil {
			return pathsync.SyncRequest{}, fmt.Errorf("invalid ignore path %q: %w", p, err)
		}
		ignore = append(ignore, abs)
	}

	req := pathsync.SyncRequest{
		Mode:             c.Mode,
		Source:           source,
		Destination:      destination,
		Ignore:           ignore,
		DryRun:           c.DryRun,
		StrongHash:       c.StrongHash,
		Workers:          c.Workers,
		RetryCount:       c.RetryCount,
		RetryWait:        time.Duration(c.RetryWaitSeconds) * time.Second,
		ProgressInterval: time.Duration(c.ProgressSeconds) * time.Second,
	}
	// Mirror and exclude patterns only apply to directory syncs.
	if c.Mode == pathsync.DirectoryMode {
		req.Exclude = util.MergeAndDeduplicate(c.Exclude)
		req.Mirror = c.Mirror
	}
	return req, nil
}

func absPath(p string) (string, error) {
	expanded, err := util.ExpandPath(strings.TrimSpace(p))
	if err != nil {
		return "", err
	}
	return filepath.Abs(expanded)
}

// LogSummary prints the effective configuration at info level.
func (c *Config) LogSummary() {
	logArgs := []interface{}{
		"mode", c.Mode,
		"source", c.Source,
		"destination", c.Destination,
		"log_level", c.LogLevel,
		"dry_run", c.DryRun,
		"strong_hash", c.StrongHash,
		"workers", c.Workers,
	}
	if c.Mode == pathsync.DirectoryMode {
		logArgs = append(logArgs, "mirror", c.Mirror)
		if len(c.Exclude) > 0 {
			logArgs = append(logArgs, "exclude", strings.Join(c.Exclude, ", "))
		}
	}
	if len(c.Ignore) > 0 {
		logArgs = append(logArgs, "ignore", strings.Join(c.Ignore, ", "))
	}
	if c.RetryCount > 0 {
		logArgs = append(logArgs, "retries", fmt.Sprintf("%d (wait %ds)", c.RetryCount, c.RetryWaitSeconds))
	}
	if c.SaveLog {
		logArgs = append(logArgs, "log_file", c.LogFile)
	}
	plog.Info("Configuration", logArgs...)
}
