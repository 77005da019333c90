package installer

import (
	"path/filepath"
)

// modSubsystemConfigName is the game's built-in modding subsystem
// configuration file, relative to GameRoot. The exact on-disk name is an
// internal detail of the shipped game; this package only needs a single
// stable path to back up, rewrite, and restore atomically.
const modSubsystemConfigName = "FSD/Content/Paks/ModIntegration.ini"

// pakName is the output integrated pak's fixed file name, written beside
// the game's root pak under FSD/Content/Paks.
const pakName = "mod_P.pak"

// GamePaths resolves every on-disk location the installer touches, given
// the root of a Deep Rock Galactic install.
type GamePaths struct {
	Root string // e.g. ".../steamapps/common/Deep Rock Galactic"
}

// ConfigFile is the modding subsystem's configuration file.
func (g GamePaths) ConfigFile() string {
	return filepath.Join(g.Root, filepath.FromSlash(modSubsystemConfigName))
}

// PakFile is where the integrated pak is written, beside the game's own paks.
func (g GamePaths) PakFile() string {
	return filepath.Join(g.Root, "FSD", "Content", "Paks", pakName)
}

// Executable is the game's main executable, the hook DLL sits beside.
func (g GamePaths) Executable() string {
	name := "FSD-Win64-Shipping.exe"
	return filepath.Join(g.Root, "FSD", "Binaries", "Win64", name)
}

// HookFile is where the proxy DLL is installed, loaded automatically by the
// game at startup under its well-known proxy name. dsound.dll is the
// conventional audio-library proxy name this title's mod loaders hijack;
// the same file name is used regardless of host OS so the atomic-write
// logic is exercised identically in tests (the game itself ships Win64-only).
func (g GamePaths) HookFile() string {
	return filepath.Join(filepath.Dir(g.Executable()), "dsound.dll")
}
