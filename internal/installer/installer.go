// Package installer implements the atomic, reversible install/uninstall
// sequence: back up and rewrite the game's modding subsystem
// configuration, write the integrated pak and hook DLL via temp-file +
// rename, and commit an InstallRecord, rolling back everything performed
// so far on any failure.
package installer

import (
	"bytes"
	"os"
	"path/filepath"

	"mint/internal/mint"
)

// disabledConfigMarker is written in place of the subsystem's config file
// content, representing "official modding disabled" in this simplified
// model; Uninstall restores the original bytes verbatim regardless of what
// they were.
var disabledConfigMarker = []byte("# modding subsystem disabled by mint\n")

// Install performs the five ordered install steps, rolling back
// everything it already did if any step fails.
func Install(paths GamePaths, dataDir string, pakBytes, hookBytes []byte) (*Record, error) {
	var completed []func()
	rollback := func() {
		for i := len(completed) - 1; i >= 0; i-- {
			completed[i]()
		}
	}

	// Step 1+2: back up and rewrite the modding subsystem config.
	configPath := paths.ConfigFile()
	backupPath := configPath + ".mint-backup"
	original, err := os.ReadFile(configPath)
	hadConfig := err == nil
	if err != nil && !os.IsNotExist(err) {
		return nil, mint.WrapStage("backup-config", err, "reading %s", configPath)
	}
	if hadConfig {
		if err := os.MkdirAll(filepath.Dir(backupPath), 0o755); err != nil {
			return nil, mint.WrapStage("backup-config", err, "creating backup dir")
		}
		if err := os.WriteFile(backupPath, original, 0o644); err != nil {
			return nil, mint.WrapStage("backup-config", err, "writing backup")
		}
		completed = append(completed, func() { os.Remove(backupPath) })

		if err := os.WriteFile(configPath, disabledConfigMarker, 0o644); err != nil {
			rollback()
			return nil, mint.WrapStage("disable-subsystem", err, "rewriting %s", configPath)
		}
		completed = append(completed, func() { os.WriteFile(configPath, original, 0o644) })
	}

	// Step 3: write mod_P.pak beside the game's own paks.
	pakPath := paths.PakFile()
	if err := atomicWrite(pakPath, pakBytes); err != nil {
		rollback()
		return nil, mint.WrapStage("write-pak", err, "writing %s", pakPath)
	}
	completed = append(completed, func() { os.Remove(pakPath) })

	// Step 4: write the hook DLL under its proxy name.
	hookPath := paths.HookFile()
	if err := atomicWrite(hookPath, hookBytes); err != nil {
		rollback()
		return nil, mint.WrapStage("write-hook", err, "writing %s", hookPath)
	}
	completed = append(completed, func() { os.Remove(hookPath) })

	// Step 5: commit the InstallRecord.
	record := &Record{
		ID:       newRecordID(),
		PakPath:  pakPath,
		HookPath: hookPath,
	}
	if hadConfig {
		record.ConfigPath = configPath
		record.ConfigBackup = backupPath
	}
	if err := saveRecord(dataDir, record); err != nil {
		rollback()
		return nil, err
	}

	return record, nil
}

// Uninstall reverses a prior Install, tolerating files that are already
// missing and always restoring the config backup last. Calling Uninstall
// with nothing installed is a no-op, not an error.
func Uninstall(dataDir string) error {
	record, err := loadRecord(dataDir)
	if err != nil {
		return err
	}
	if record == nil {
		return nil
	}

	if err := removeIfExists(record.PakPath); err != nil {
		return mint.WrapStage("remove-pak", err, "removing %s", record.PakPath)
	}
	if err := removeIfExists(record.HookPath); err != nil {
		return mint.WrapStage("remove-hook", err, "removing %s", record.HookPath)
	}

	if record.ConfigBackup != "" {
		original, err := os.ReadFile(record.ConfigBackup)
		if err != nil && !os.IsNotExist(err) {
			return mint.WrapStage("restore-config", err, "reading backup %s", record.ConfigBackup)
		}
		if err == nil {
			if err := os.WriteFile(record.ConfigPath, original, 0o644); err != nil {
				return mint.WrapStage("restore-config", err, "restoring %s", record.ConfigPath)
			}
			if err := os.Remove(record.ConfigBackup); err != nil && !os.IsNotExist(err) {
				return mint.WrapStage("restore-config", err, "removing backup %s", record.ConfigBackup)
			}
		}
	}

	return removeRecord(dataDir)
}

func removeIfExists(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// VerifyConfigRestored reports whether the live config file's bytes equal
// original, i.e. whether an Uninstall restored the modding subsystem
// config byte-for-byte.
func VerifyConfigRestored(paths GamePaths, original []byte) (bool, error) {
	got, err := os.ReadFile(paths.ConfigFile())
	if err != nil {
		return false, mint.Wrap(mint.KindIO, err, "reading %s", paths.ConfigFile())
	}
	return bytes.Equal(got, original), nil
}
