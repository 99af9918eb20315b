// Package proxy implements the Proxy Configurator (C8) and URL Minter's
// downstream consumer: once a deployment is live on an internal port, this
// package writes an nginx server block, enables it, and reloads nginx so
// the chosen public URL routes to that port.
//
// Writing into /etc/nginx and reloading a system service are both
// privileged operations the orchestrator process may not have the rights
// to perform directly (and, in a multi-host layout, may need to perform on
// a different machine entirely). PrivilegedOps abstracts that boundary so
// the rendering logic in this package never knows whether it is running
// locally as root or issuing commands over SSH to a dedicated proxy host.
package proxy

// PrivilegedOps is everything the Proxy Configurator needs a privileged
// execution context for. Two bindings exist: LocalOps (direct os/exec +
// os.WriteFile, for a single-host deployment) and SSHOps (for nginx running
// on a separate host).
type PrivilegedOps interface {
	// WriteFile writes contents to path, creating or truncating it.
	WriteFile(path string, contents []byte) error

	// Symlink creates newname -> oldname, replacing any existing file at
	// newname first (nginx's sites-enabled convention).
	Symlink(oldname, newname string) error

	// Remove deletes path if it exists; used to retract a config when a
	// deployment is torn down.
	Remove(path string) error

	// Chown sets the owner of path to the given user:group string (e.g.
	// "www-data:www-data"). Neither the Configurator nor the orchestrator
	// calls it.
	Chown(path string, ownerSpec string) error

	// ReloadProxy runs the configured reload command (e.g. "systemctl
	// reload nginx" or "nginx -s reload").
	ReloadProxy(command string) error
}
