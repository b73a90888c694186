//go:build windows

package preflight

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/windows"
)

func TestCheckDestinationAccessible_Windows(t *testing.T) {
	t.Run("Windows - Error on Non-Existent Drive", func(t *testing.T) {
		// Helper to find a drive letter that is guaranteed not to exist on this system.
		findFirstNonExistentDrive := func() string {
			drives, err := windows.GetLogicalDrives()
			if err != nil {
				t.Fatalf("Failed to get logical drives: %v", err)
			}

			for letter := 'A'; letter <= 'Z'; letter++ {
				driveBit := uint32(1) << (letter - 'A')
				if (drives & driveBit) == 0 {
					return string(letter) + `:\`
				}
			}
			return ""
		}

		nonExistentDrive := findFirstNonExistentDrive()
		if nonExistentDrive == "" {
			t.Skip("could not find a non-existent drive letter; all letters A-Z are in use")
		}
		nonExistentPath := filepath.Join(nonExistentDrive, "nonexistent", "sync", "path")

		err := CheckDestinationAccessible(nonExistentPath)
		if err == nil {
			t.Fatal("expected an error for a non-existent drive, but got nil")
		}
		if !strings.Contains(err.Error(), "volume root does not exist") {
			t.Errorf("expected error about the volume root, but got: %v", err)
		}
	})

	t.Run("Error - Destination is Bare Drive Letter", func(t *testing.T) {
		err := CheckDestinationAccessible(`C:`)
		if err == nil {
			t.Fatal("expected error for a bare drive letter, but got nil")
		}
		if !strings.Contains(err.Error(), "bare drive letter") {
			t.Errorf("expected error about unsafe root, but got: %v", err)
		}
	})

	t.Run("Happy Path - Destination is Volume Root", func(t *testing.T) {
		volume := filepath.VolumeName(t.TempDir())
		if volume == "" {
			t.Skip("could not determine an existing volume for testing")
		}
		if err := CheckDestinationAccessible(volume + `\`); err != nil {
			t.Errorf("expected no error for a volume root, but got: %v", err)
		}
	})

	t.Run("Error - Unreachable UNC Share", func(t *testing.T) {
		err := CheckDestinationAccessible(`\\server\share`)
		if err == nil {
			t.Fatal("expected an error for a non-existent UNC path, but got nil")
		}
		if !strings.Contains(err.Error(), "volume root does not exist") {
			t.Errorf("expected error to be about non-existent volume, but got: %v", err)
		}
	})
}

func TestIsUnsafeRoot(t *testing.T) {
	testCases := []struct {
		path string
		want bool
	}{
		{".", true},
		{`\`, true},
		{"C:", true},
		{"C:.", true},
		{`C:\`, false},
		{`C:\Data`, false},
		{`\\server\share`, false},
	}
	for _, tc := range testCases {
		if got := isUnsafeRoot(tc.path); got != tc.want {
			t.Errorf("isUnsafeRoot(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}
