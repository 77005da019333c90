package installer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mint/internal/mint"
)

// Record is the on-disk proof that an Install completed, consumed by
// Uninstall to reverse it.
type Record struct {
	ID           string    `json:"id"`
	InstalledAt  time.Time `json:"installed_at"`
	PakPath      string    `json:"pak_path"`
	HookPath     string    `json:"hook_path"`
	ConfigPath   string    `json:"config_path"`
	ConfigBackup string    `json:"config_backup"` // path to the backed-up original bytes
}

func recordPath(dataDir string) string {
	return filepath.Join(dataDir, "install_record.json")
}

// loadRecord reads the committed InstallRecord, or nil if none is on disk
// (nothing installed yet).
func loadRecord(dataDir string) (*Record, error) {
	data, err := os.ReadFile(recordPath(dataDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "reading install record")
	}
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, mint.Wrap(mint.KindIO, err, "parsing install record")
	}
	return &r, nil
}

// saveRecord commits r via temp-file + rename.
func saveRecord(dataDir string, r *Record) error {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return mint.Wrap(mint.KindIO, err, "creating data dir")
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return mint.Wrap(mint.KindIO, err, "marshalling install record")
	}
	path := recordPath(dataDir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return mint.Wrap(mint.KindIO, err, "writing install record temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return mint.Wrap(mint.KindIO, err, "renaming install record into place")
	}
	return nil
}

func removeRecord(dataDir string) error {
	if err := os.Remove(recordPath(dataDir)); err != nil && !os.IsNotExist(err) {
		return mint.Wrap(mint.KindIO, err, "removing install record")
	}
	return nil
}

func newRecordID() string {
	return uuid.NewString()
}
