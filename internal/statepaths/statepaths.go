package statepaths

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultStateDir = "~/.csabot"

	ArchiveFilename = "deals.json"
	EventsFilename  = "events.jsonl"
	DBFilename      = "deals.db"
	LocksDirname    = ".fslocks"
)

// ExpandHome resolves a leading "~" against the user's home directory.
func ExpandHome(path string) string {
	path = strings.TrimSpace(path)
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}

func FileStateDir() string {
	dir := strings.TrimSpace(viper.GetString("file_state_dir"))
	if dir == "" {
		dir = DefaultStateDir
	}
	return filepath.Clean(ExpandHome(dir))
}

func LocksDir() string {
	return filepath.Join(FileStateDir(), LocksDirname)
}

// ArchivePath is archive.path when set, otherwise the default file for the
// configured driver inside the state directory.
func ArchivePath(driver string) string {
	if p := strings.TrimSpace(viper.GetString("archive.path")); p != "" {
		return filepath.Clean(ExpandHome(p))
	}
	if strings.EqualFold(strings.TrimSpace(driver), "sqlite") {
		return filepath.Join(FileStateDir(), DBFilename)
	}
	return filepath.Join(FileStateDir(), ArchiveFilename)
}

// EventsPath places the transition log next to the archive file.
func EventsPath(archivePath string) string {
	return filepath.Join(filepath.Dir(archivePath), EventsFilename)
}
