package proxy

import (
	"errors"
	"strings"
	"testing"
)

// fakeOps records every call made against it, letting tests assert on the
// exact sequence of filesystem/process operations a Configure/Retract call
// issues without touching a real filesystem or nginx process.
type fakeOps struct {
	writtenFiles  map[string][]byte
	symlinks      map[string]string
	removed       []string
	reloadCommand string
	reloadCalls   int

	failWriteFile bool
	failReload    bool
}

func newFakeOps() *fakeOps {
	return &fakeOps{
		writtenFiles: make(map[string][]byte),
		symlinks:     make(map[string]string),
	}
}

func (f *fakeOps) WriteFile(path string, contents []byte) error {
	if f.failWriteFile {
		return errors.New("simulated write failure")
	}
	f.writtenFiles[path] = contents
	return nil
}

func (f *fakeOps) Symlink(oldname, newname string) error {
	f.symlinks[newname] = oldname
	return nil
}

func (f *fakeOps) Remove(path string) error {
	f.removed = append(f.removed, path)
	return nil
}

func (f *fakeOps) Chown(path, ownerSpec string) error { return nil }

func (f *fakeOps) ReloadProxy(command string) error {
	if f.failReload {
		return errors.New("simulated reload failure")
	}
	f.reloadCommand = command
	f.reloadCalls++
	return nil
}

func TestConfigurator_Configure_WritesSymlinksAndReloads(t *testing.T) {
	ops := newFakeOps()
	configurator := &Configurator{
		Ops:               ops,
		SitesAvailableDir: "/etc/nginx/sites-available",
		SitesEnabledDir:   "/etc/nginx/sites-enabled",
		ReloadCommand:     "systemctl reload nginx",
		UseHTTPS:          false,
	}

	err := configurator.Configure(ConfigureRequest{
		Hostname:     "widgets-ab12.example.com",
		InternalPort: 4001,
		DeploymentID: "dep-1",
	})
	if err != nil {
		t.Fatalf("Configure: %v", err)
	}

	availablePath := "/etc/nginx/sites-available/deploy-dep-1.conf"
	enabledPath := "/etc/nginx/sites-enabled/deploy-dep-1.conf"

	written, ok := ops.writtenFiles[availablePath]
	if !ok {
		t.Fatalf("expected a server block written to %q", availablePath)
	}
	if !strings.Contains(string(written), "proxy_pass http://127.0.0.1:4001;") {
		t.Error("written server block does not target the internal port")
	}

	if ops.symlinks[enabledPath] != availablePath {
		t.Errorf("expected %q symlinked from %q, got %q", enabledPath, availablePath, ops.symlinks[enabledPath])
	}

	if ops.reloadCalls != 1 || ops.reloadCommand != "systemctl reload nginx" {
		t.Errorf("expected exactly one reload with the configured command, got %d calls (%q)", ops.reloadCalls, ops.reloadCommand)
	}
}

func TestConfigurator_Configure_PropagatesWriteFailure(t *testing.T) {
	ops := newFakeOps()
	ops.failWriteFile = true
	configurator := &Configurator{Ops: ops, SitesAvailableDir: "/a", SitesEnabledDir: "/b"}

	req := ConfigureRequest{Hostname: "host.example.com", InternalPort: 4001, DeploymentID: "dep-1"}
	if err := configurator.Configure(req); err == nil {
		t.Fatal("expected an error when WriteFile fails")
	}
	if ops.reloadCalls != 0 {
		t.Error("should not reload the proxy when writing the config failed")
	}
}

func TestConfigurator_Retract_RemovesBothFilesAndReloads(t *testing.T) {
	ops := newFakeOps()
	configurator := &Configurator{
		Ops:               ops,
		SitesAvailableDir: "/etc/nginx/sites-available",
		SitesEnabledDir:   "/etc/nginx/sites-enabled",
		ReloadCommand:     "nginx -s reload",
	}

	if err := configurator.Retract("dep-1"); err != nil {
		t.Fatalf("Retract: %v", err)
	}

	if len(ops.removed) != 2 {
		t.Fatalf("expected both the enabled symlink and available file removed, got %v", ops.removed)
	}
	if ops.reloadCalls != 1 {
		t.Errorf("expected exactly one reload, got %d", ops.reloadCalls)
	}
}
