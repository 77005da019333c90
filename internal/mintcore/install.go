package mintcore

import (
	"bytes"
	"context"
	"fmt"

	"mint/internal/installer"
	"mint/internal/profile"
)

// proxyHook is the dsound.dll proxy loader this package installs beside
// the game executable. The real hook is a small native shim that loads the
// system audio library then the game's own modding subsystem; this build
// carries a placeholder payload since the shim itself ships as a
// pre-built binary artifact outside this module's source tree.
var proxyHook = []byte("mint-proxy-hook-placeholder")

// Install integrates the active profile and performs the atomic
// install/rollback sequence. Per-mod resolve/fetch failures are isolated:
// the run still integrates and installs whatever remainder resolved,
// including an empty mod_P.pak if nothing did, and reports the skipped
// entries back to the caller rather than aborting.
func (s *Session) Install(ctx context.Context) (*installer.Record, []profile.ResolvedEntry, error) {
	if s.cfg.GameRoot == "" {
		return nil, nil, fmt.Errorf("game install path not configured")
	}

	var buf bytes.Buffer
	_, failures, err := s.Integrate(ctx, &buf)
	if err != nil {
		return nil, nil, fmt.Errorf("integrating profile: %w", err)
	}

	record, err := installer.Install(s.paths, s.cfg.Dirs.Data, buf.Bytes(), proxyHook)
	if err != nil {
		return nil, failures, err
	}
	return record, failures, nil
}

// Uninstall reverses a prior Install.
func (s *Session) Uninstall() error {
	return installer.Uninstall(s.cfg.Dirs.Data)
}

// GamePaths exposes the resolved on-disk locations Install/Uninstall touch,
// e.g. for CLI status reporting.
func (s *Session) GamePaths() installer.GamePaths { return s.paths }
