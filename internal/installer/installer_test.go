package installer

import (
	"os"
	"path/filepath"
	"testing"
)

func setupGameRoot(t *testing.T) (GamePaths, []byte) {
	t.Helper()
	root := t.TempDir()
	paths := GamePaths{Root: root}

	if err := os.MkdirAll(filepath.Dir(paths.ConfigFile()), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	original := []byte("mods_enabled=true\n")
	if err := os.WriteFile(paths.ConfigFile(), original, 0o644); err != nil {
		t.Fatalf("write original config: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(paths.Executable()), 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	return paths, original
}

func TestInstallThenUninstallRestoresConfig(t *testing.T) {
	paths, original := setupGameRoot(t)
	dataDir := t.TempDir()

	record, err := Install(paths, dataDir, []byte("pak-bytes"), []byte("hook-bytes"))
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	if record.PakPath != paths.PakFile() {
		t.Fatalf("PakPath = %q, want %q", record.PakPath, paths.PakFile())
	}

	if got, err := os.ReadFile(paths.ConfigFile()); err != nil {
		t.Fatalf("reading rewritten config: %v", err)
	} else if string(got) == string(original) {
		t.Fatal("config was not rewritten by Install")
	}

	if _, err := os.Stat(paths.PakFile()); err != nil {
		t.Fatalf("pak not written: %v", err)
	}
	if _, err := os.Stat(paths.HookFile()); err != nil {
		t.Fatalf("hook not written: %v", err)
	}

	if err := Uninstall(dataDir); err != nil {
		t.Fatalf("Uninstall: %v", err)
	}

	restored, err := VerifyConfigRestored(paths, original)
	if err != nil {
		t.Fatalf("VerifyConfigRestored: %v", err)
	}
	if !restored {
		t.Fatal("config not restored byte-for-byte after Uninstall")
	}

	if _, err := os.Stat(paths.PakFile()); !os.IsNotExist(err) {
		t.Fatal("pak file still present after Uninstall")
	}
	if _, err := os.Stat(paths.HookFile()); !os.IsNotExist(err) {
		t.Fatal("hook file still present after Uninstall")
	}
}

func TestUninstallWithNothingInstalledIsNoop(t *testing.T) {
	dataDir := t.TempDir()
	if err := Uninstall(dataDir); err != nil {
		t.Fatalf("Uninstall on empty state: %v", err)
	}
}

func TestUninstallToleratesMissingFiles(t *testing.T) {
	paths, _ := setupGameRoot(t)
	dataDir := t.TempDir()

	record, err := Install(paths, dataDir, []byte("pak-bytes"), []byte("hook-bytes"))
	if err != nil {
		t.Fatalf("Install: %v", err)
	}

	// Simulate the user having manually deleted the pak and hook already.
	os.Remove(record.PakPath)
	os.Remove(record.HookPath)

	if err := Uninstall(dataDir); err != nil {
		t.Fatalf("Uninstall should tolerate missing files: %v", err)
	}
}

func TestInstallRollsBackOnHookWriteFailure(t *testing.T) {
	paths, original := setupGameRoot(t)
	dataDir := t.TempDir()

	// Make the hook's directory unwritable by replacing it with a file,
	// forcing the hook-write step to fail after config+pak already landed.
	hookDir := filepath.Dir(paths.HookFile())
	if err := os.RemoveAll(hookDir); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if err := os.WriteFile(hookDir, []byte("not a directory"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Install(paths, dataDir, []byte("pak-bytes"), []byte("hook-bytes"))
	if err == nil {
		t.Fatal("Install succeeded despite hook write failure, want error")
	}

	if got, rerr := os.ReadFile(paths.ConfigFile()); rerr != nil {
		t.Fatalf("reading config after rollback: %v", rerr)
	} else if string(got) != string(original) {
		t.Fatal("config was not rolled back after install failure")
	}
	if _, err := os.Stat(paths.PakFile()); !os.IsNotExist(err) {
		t.Fatal("pak file was not rolled back after install failure")
	}
}
