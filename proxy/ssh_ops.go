package proxy

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SSHOps implements PrivilegedOps over an SSH connection, for the layout
// where nginx runs on a dedicated proxy host separate from the orchestrator.
// File writes, symlinks, and removals go through SFTP; chown and the reload
// command run as remote shell commands over a fresh SSH session each.
type SSHOps struct {
	client *ssh.Client
	sftp   *sftp.Client
}

// NewSSHOps dials host:port as user, authenticating with the private key at
// keyPath, and opens an SFTP subsystem on top of the same connection.
func NewSSHOps(host string, port int, user string, keyPath string) (*SSHOps, error) {
	expandedKeyPath := keyPath
	if strings.HasPrefix(keyPath, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home directory for key path %q: %w", keyPath, err)
		}
		expandedKeyPath = filepath.Join(home, keyPath[2:])
	}

	keyBytes, err := os.ReadFile(expandedKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read private key %q: %w", expandedKeyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key %q: %w", expandedKeyPath, err)
	}

	hostKeyCallback, err := knownHostKeyCallback()
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts: %w", err)
	}

	clientConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}

	address := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	client, err := ssh.Dial("tcp", address, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to dial proxy host %q: %w", address, err)
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to start sftp subsystem: %w", err)
	}

	return &SSHOps{client: client, sftp: sftpClient}, nil
}

// Close releases the SFTP and SSH connections.
func (ops *SSHOps) Close() error {
	sftpErr := ops.sftp.Close()
	sshErr := ops.client.Close()
	if sftpErr != nil {
		return sftpErr
	}
	return sshErr
}

func knownHostKeyCallback() (ssh.HostKeyCallback, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return knownhosts.New(filepath.Join(home, ".ssh", "known_hosts"))
}

func (ops *SSHOps) WriteFile(path string, contents []byte) error {
	remoteFile, err := ops.sftp.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create remote file %q: %w", path, err)
	}
	defer remoteFile.Close()

	if _, err := remoteFile.Write(contents); err != nil {
		return fmt.Errorf("failed to write remote file %q: %w", path, err)
	}
	return nil
}

func (ops *SSHOps) Symlink(oldname, newname string) error {
	_ = ops.sftp.Remove(newname)
	if err := ops.sftp.Symlink(oldname, newname); err != nil {
		return fmt.Errorf("failed to symlink remote %q -> %q: %w", newname, oldname, err)
	}
	return nil
}

func (ops *SSHOps) Remove(path string) error {
	if err := ops.sftp.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove remote %q: %w", path, err)
	}
	return nil
}

func (ops *SSHOps) Chown(path string, ownerSpec string) error {
	return ops.runCommand(fmt.Sprintf("chown %s %s", ownerSpec, path))
}

func (ops *SSHOps) ReloadProxy(command string) error {
	return ops.runCommand(command)
}

func (ops *SSHOps) runCommand(command string) error {
	session, err := ops.client.NewSession()
	if err != nil {
		return fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	output, err := session.CombinedOutput(command)
	if err != nil {
		return fmt.Errorf("remote command %q failed: %w (%s)", command, err, strings.TrimSpace(string(output)))
	}
	return nil
}
