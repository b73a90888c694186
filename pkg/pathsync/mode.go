package pathsync

import (
	"encoding/json"
	"fmt"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// Mode selects between syncing a whole tree and syncing a single file.
type Mode int

const (
	// DirectoryMode makes the destination directory reflect the source directory.
	DirectoryMode Mode = iota
	// FileMode copies one source file into the destination directory.
	FileMode
)

var modeToString = map[Mode]string{DirectoryMode: "directory", FileMode: "file"}
var stringToMode = map[string]Mode{}

func init() {
	stringToMode = util.InvertMap(modeToString)
}

// String returns the string representation of a Mode.
func (m Mode) String() string {
	if str, ok := modeToString[m]; ok {
		return str
	}
	return fmt.Sprintf("unknown_mode(%d)", m)
}

// ParseMode parses a string and returns the corresponding Mode.
func ParseMode(s string) (Mode, error) {
	if mode, ok := stringToMode[s]; ok {
		return mode, nil
	}
	return 0, fmt.Errorf("invalid mode: %q. Must be 'directory' or 'file'", s)
}

// MarshalJSON implements the json.Marshaler interface for Mode.
func (m Mode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for Mode.
func (m *Mode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("Mode should be a string, got %s", data)
	}

	mode, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = mode
	return nil
}
