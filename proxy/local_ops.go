package proxy

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// LocalOps implements PrivilegedOps by calling os.WriteFile/os.Symlink/
// os.Remove directly and shelling out for chown and the reload command.
// It assumes the orchestrator process itself runs with enough privilege to
// write under the configured nginx directories — true of the common
// single-host deployment where corvusd runs as root or under sudo.
type LocalOps struct{}

func (LocalOps) WriteFile(path string, contents []byte) error {
	if err := os.WriteFile(path, contents, 0644); err != nil {
		return fmt.Errorf("failed to write %q: %w", path, err)
	}
	return nil
}

func (LocalOps) Symlink(oldname, newname string) error {
	_ = os.Remove(newname) // ignore error: fine if it didn't exist
	if err := os.Symlink(oldname, newname); err != nil {
		return fmt.Errorf("failed to symlink %q -> %q: %w", newname, oldname, err)
	}
	return nil
}

func (LocalOps) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %q: %w", path, err)
	}
	return nil
}

func (LocalOps) Chown(path string, ownerSpec string) error {
	cmd := exec.Command("chown", ownerSpec, path)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("chown %q %q failed: %w (%s)", ownerSpec, path, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (LocalOps) ReloadProxy(command string) error {
	parts := strings.Fields(command)
	if len(parts) == 0 {
		return fmt.Errorf("empty reload command")
	}
	cmd := exec.Command(parts[0], parts[1:]...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("proxy reload command %q failed: %w (%s)", command, err, strings.TrimSpace(string(output)))
	}
	return nil
}
