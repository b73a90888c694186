package pathsync

import (
	"fmt"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// ActionKind identifies what an Action does to the destination.
type ActionKind int

const (
	CreateDir ActionKind = iota
	CopyFile
	RenameFile
	RenameDir
	DeletePath
	SkipIgnored
	Noop
)

var actionKindToString = map[ActionKind]string{
	CreateDir:   "create-dir",
	CopyFile:    "copy-file",
	RenameFile:  "rename-file",
	RenameDir:   "rename-dir",
	DeletePath:  "delete-path",
	SkipIgnored: "skip-ignored",
	Noop:        "noop",
}

var stringToActionKind = util.InvertMap(actionKindToString)

func (k ActionKind) String() string {
	if s, ok := actionKindToString[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown_action(%d)", k)
}

// ParseActionKind maps an action name back to its kind.
func ParseActionKind(s string) (ActionKind, error) {
	if k, ok := stringToActionKind[s]; ok {
		return k, nil
	}
	return 0, fmt.Errorf("invalid action kind: %q", s)
}

// Mutates reports whether executing the kind changes the destination.
func (k ActionKind) Mutates() bool {
	switch k {
	case CreateDir, CopyFile, RenameFile, RenameDir, DeletePath:
		return true
	default:
		return false
	}
}

// Reasons attached to Noop actions.
const (
	ReasonUpToDate        = "up to date"
	ReasonUnsupportedType = "unsupported file type"
)

// Action is one planned step. Paths are absolute OS paths.
type Action struct {
	Kind ActionKind
	// Source is the source file for CopyFile and the existing destination
	// path for RenameFile and RenameDir. Empty otherwise.
	Source string
	// Target is the path the action creates, replaces or deletes. For
	// SkipIgnored and Noop it is the source entry concerned.
	Target string
	Size   int64
	Reason string
	// CrossVolumeFallback permits copy-then-delete when a rename crosses devices.
	CrossVolumeFallback bool
}

func (a Action) String() string {
	switch a.Kind {
	case CopyFile, RenameFile, RenameDir:
		return fmt.Sprintf("%s %s -> %s", a.Kind, a.Source, a.Target)
	case Noop:
		return fmt.Sprintf("%s %s (%s)", a.Kind, a.Target, a.Reason)
	default:
		return fmt.Sprintf("%s %s", a.Kind, a.Target)
	}
}
