package flagparse

import (
	"fmt"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// Command identifies a top-level CLI command.
type Command int

const (
	None Command = iota
	Dir
	File
	Version
)

var commandToString = map[Command]string{
	None:    "none",
	Dir:     "dir",
	File:    "file",
	Version: "version",
}

var stringToCommand map[string]Command

func init() {
	stringToCommand = util.InvertMap(commandToString)
}

func (c Command) String() string {
	if str, ok := commandToString[c]; ok {
		return str
	}
	return fmt.Sprintf("unknown_command(%d)", c)
}

// Syncs reports whether the command runs a sync.
func (c Command) Syncs() bool {
	return c == Dir || c == File
}

func ParseCommand(s string) (Command, error) {
	if command, ok := stringToCommand[s]; ok {
		return command, nil
	}
	return None, fmt.Errorf("invalid command: %q. Must be 'dir', 'file' or 'version'", s)
}
