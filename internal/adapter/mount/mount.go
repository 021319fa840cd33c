package mount

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandRunner abstracts external command execution so tests can fake
// mount/umount without touching the real mount table.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

// Manager owns the lifecycle of the CIFS mount for one run: mount once,
// tear down on every exit path.
type Manager struct {
	remote     string // UNC path, //host/share
	mountPoint string
	credsFile  string
	version    string
	runner     CommandRunner
	mountsFile string
	logger     Logger
}

func NewManager(remote, mountPoint, credsFile, version string, logger Logger) *Manager {
	return &Manager{
		remote:     remote,
		mountPoint: mountPoint,
		credsFile:  credsFile,
		version:    version,
		runner:     execRunner{},
		mountsFile: "/proc/self/mounts",
		logger:     logger,
	}
}

// Mount attaches the remote share at the mount point. A mount point
// already present in the mount table is treated as stale and unmounted
// first rather than reused.
func (m *Manager) Mount(ctx context.Context) error {
	if err := CheckCredentialsFile(m.credsFile); err != nil {
		return err
	}

	mounted, err := m.isMounted()
	if err != nil {
		return err
	}
	if mounted {
		m.logger.Warnf("Stale mount detected at %s, unmounting", m.mountPoint)
		if out, err := m.runner.Run(ctx, "umount", m.mountPoint); err != nil {
			return fmt.Errorf("unmount stale mount %s: %w, output: %s", m.mountPoint, err, out)
		}
	}

	if err := os.MkdirAll(m.mountPoint, 0755); err != nil {
		return fmt.Errorf("create mount point %s: %w", m.mountPoint, err)
	}

	opts := fmt.Sprintf("vers=%s,credentials=%s", m.version, m.credsFile)
	if out, err := m.runner.Run(ctx, "mount", "-t", "cifs", m.remote, m.mountPoint, "-o", opts); err != nil {
		return fmt.Errorf("mount %s at %s: %w, output: %s", m.remote, m.mountPoint, err, out)
	}

	m.logger.Infof("Mounted %s at %s", m.remote, m.mountPoint)
	return nil
}

// Unmount is the guaranteed teardown. It unmounts if still mounted and
// removes the mount point only after a confirmed unmount; if unmounting
// fails the directory is left in place for the operator. Running it when
// nothing is mounted is a no-op.
func (m *Manager) Unmount(ctx context.Context) {
	mounted, err := m.isMounted()
	if err != nil {
		m.logger.Errorf("Could not read mount table: %v", err)
		return
	}
	if !mounted {
		return
	}

	if out, err := m.runner.Run(ctx, "umount", m.mountPoint); err != nil {
		m.logger.Errorf("Failed to unmount %s: %v, output: %s", m.mountPoint, err, out)
		m.logger.Warnf("Leaving %s in place, manual cleanup required", m.mountPoint)
		return
	}
	m.logger.Infof("Unmounted %s", m.mountPoint)

	if err := os.Remove(m.mountPoint); err != nil {
		m.logger.Errorf("Failed to remove mount point %s: %v", m.mountPoint, err)
	} else {
		m.logger.Infof("Removed mount point %s", m.mountPoint)
	}
}

func (m *Manager) isMounted() (bool, error) {
	f, err := os.Open(m.mountsFile)
	if err != nil {
		return false, fmt.Errorf("open mount table %s: %w", m.mountsFile, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && fields[1] == m.mountPoint {
			return true, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("read mount table: %w", err)
	}

	return false, nil
}

// CheckCredentialsFile verifies the mount credentials file exists, is not
// readable by group or others, and carries the two expected keys.
func CheckCredentialsFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("credentials file: %w", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		return fmt.Errorf("credentials file %s must not be readable by group or others", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read credentials file: %w", err)
	}

	var hasUser, hasPassword bool
	for _, line := range strings.Split(string(data), "\n") {
		key, _, found := strings.Cut(strings.TrimSpace(line), "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "username":
			hasUser = true
		case "password":
			hasPassword = true
		}
	}
	if !hasUser || !hasPassword {
		return fmt.Errorf("credentials file %s must contain username and password entries", path)
	}

	return nil
}

// CheckSupport verifies the external tooling and kernel support needed
// for CIFS mounts before anything is attempted.
func CheckSupport() error {
	return checkSupport("/proc/filesystems")
}

func checkSupport(filesystemsFile string) error {
	for _, bin := range []string{"mount", "umount"} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("required command %q not found: %w", bin, err)
		}
	}

	data, err := os.ReadFile(filesystemsFile)
	if err != nil {
		return fmt.Errorf("read %s: %w", filesystemsFile, err)
	}
	if !strings.Contains(string(data), "cifs") {
		return fmt.Errorf("kernel has no cifs filesystem support")
	}

	return nil
}
