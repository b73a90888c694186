// Package flagparse registers the command-line flags of each command and
// splits list-valued options.
package flagparse

import (
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Flag names. Settings keys are derived from these by the config package.
const (
	FlagSource       = "source"
	FlagDestination  = "destination"
	FlagIgnore       = "ignore"
	FlagExclude      = "exclude"
	FlagMirror       = "mirror"
	FlagDryRun       = "dry-run"
	FlagSHA256       = "sha256"
	FlagWorkers      = "workers"
	FlagRetryCount   = "retry-count"
	FlagRetryWait    = "retry-wait"
	FlagLogLevel     = "log-level"
	FlagVerbose      = "verbose"
	FlagColor        = "color"
	FlagSaveLog      = "save-log"
	FlagLogFile      = "log-file"
	FlagProgress     = "progress"
	FlagSettings     = "settings"
	FlagSaveSettings = "save-settings"
)

// DefaultProgressSeconds is used when --progress is given without a value.
const DefaultProgressSeconds = 5

// Register adds the flags of command c to fs. Flags carry zero-value
// defaults; the real defaults come from the settings layer so that an unset
// flag never overrides a value from the settings file or the environment.
func Register(fs *pflag.FlagSet, c Command) {
	if !c.Syncs() {
		return
	}
	registerCommonFlags(fs, c)
	if c == Dir {
		registerDirFlags(fs)
	}
}

func registerCommonFlags(fs *pflag.FlagSet, c Command) {
	if c == File {
		fs.StringP(FlagSource, "s", "", "Source file to copy. (Required unless set in the settings file)")
		fs.StringP(FlagDestination, "d", "", "Destination directory that receives the file.")
	} else {
		fs.StringP(FlagSource, "s", "", "Source directory to copy from. (Required unless set in the settings file)")
		fs.StringP(FlagDestination, "d", "", "Destination directory to synchronize.")
	}
	fs.StringArray(FlagIgnore, nil, "Source path to leave alone on both sides. Repeatable, or a comma-separated list.")
	fs.BoolP(FlagDryRun, "n", false, "Show what would be done without making any changes.")
	fs.Bool(FlagSHA256, false, "Compare content with SHA-256 and detect moved files and directories.")
	fs.IntP(FlagWorkers, "w", 0, "Number of concurrent file copies (0 = number of CPUs).")
	fs.Int(FlagRetryCount, 0, "Number of retries for failed file copies.")
	fs.Int(FlagRetryWait, 0, "Seconds to wait between retries.")

	fs.String(FlagLogLevel, "", "Set the logging level: 'debug', 'info', 'change', 'warn', 'error'.")
	fs.BoolP(FlagVerbose, "v", false, "Shorthand for --log-level=info.")
	fs.Bool(FlagColor, false, "Force colored console output.")
	fs.Bool(FlagSaveLog, false, "Append a copy of the log to a log file.")
	fs.String(FlagLogFile, "", "Log file used with --save-log.")
	fs.Int(FlagProgress, 0, "Log progress every N seconds (0 = off).")
	fs.Lookup(FlagProgress).NoOptDefVal = strconv.Itoa(DefaultProgressSeconds)

	fs.String(FlagSettings, "", "Settings file to read (default: ./pgl-sync.settings.json).")
	fs.Bool(FlagSaveSettings, false, "Write the effective settings back to the settings file.")
}

func registerDirFlags(fs *pflag.FlagSet) {
	fs.StringArray(FlagExclude, nil, "Gitignore-style pattern relative to the source. Repeatable, or a comma-separated list.")
	fs.BoolP(FlagMirror, "m", false, "Delete destination entries that have no source counterpart.")
}

// ParseList splits a comma-separated list of paths or patterns. Single or
// double quotes group items that contain commas or spaces and are removed.
// Backslashes are literal, so Windows paths pass through unchanged.
func ParseList(s string) []string {
	var list []string
	var current strings.Builder
	var quoteChar rune

	appendItem := func() {
		trimmed := strings.TrimSpace(current.String())
		if trimmed != "" {
			list = append(list, trimmed)
		}
		current.Reset()
	}

	for _, r := range s {
		switch {
		case r == '\'' || r == '"':
			if quoteChar == 0 {
				quoteChar = r
			} else if quoteChar == r {
				quoteChar = 0
			} else {
				current.WriteRune(r)
			}
		case r == ',' && quoteChar == 0:
			appendItem()
		default:
			current.WriteRune(r)
		}
	}
	appendItem()
	return list
}

// ParseLists applies ParseList to every item and concatenates the results.
func ParseLists(items []string) []string {
	var out []string
	for _, item := range items {
		out = append(out, ParseList(item)...)
	}
	return out
}
