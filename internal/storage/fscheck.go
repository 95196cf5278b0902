package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// remoteFilesystems are filesystem types on which SQLite locking is unreliable.
var remoteFilesystems = map[string]bool{
	"afpfs":      true,
	"cifs":       true,
	"nfs":        true,
	"smbfs":      true,
	"smb2":       true,
	"webdav":     true,
	"9p":         true,
	"fuse.sshfs": true,
}

// CheckLocalFilesystem fails when path, or the directory it would be created
// in, is on a network filesystem.
func CheckLocalFilesystem(path string) error {
	return checkLocalFilesystemWith(path, detectFilesystemType)
}

func checkLocalFilesystemWith(path string, detect func(string) (string, error)) error {
	existing, err := existingAncestor(path)
	if err != nil {
		return fmt.Errorf("resolve path %q: %w", path, err)
	}

	fsType, err := detect(existing)
	if err != nil {
		return fmt.Errorf("detect filesystem for %q: %w", existing, err)
	}
	if isRemoteFilesystem(fsType) {
		return fmt.Errorf("%q is on %s, not a local filesystem", path, fsType)
	}
	return nil
}

// existingAncestor returns path, or its closest parent that exists.
func existingAncestor(path string) (string, error) {
	p, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	for {
		_, err := os.Stat(p)
		switch {
		case err == nil:
			return p, nil
		case !errors.Is(err, os.ErrNotExist):
			return "", err
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", fmt.Errorf("no existing parent directory")
		}
		p = parent
	}
}

func isRemoteFilesystem(fsType string) bool {
	return remoteFilesystems[strings.ToLower(strings.TrimSpace(fsType))]
}
