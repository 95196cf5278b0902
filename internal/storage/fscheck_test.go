package storage

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestCheckLocalFilesystemAllowsLocal(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	err := checkLocalFilesystemWith(dbPath, func(string) (string, error) {
		return "ext4", nil
	})
	if err != nil {
		t.Fatalf("expected local filesystem to pass, got: %v", err)
	}
}

func TestCheckLocalFilesystemRejectsRemote(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	err := checkLocalFilesystemWith(dbPath, func(string) (string, error) {
		return "nfs", nil
	})
	if err == nil {
		t.Fatal("expected remote filesystem to be rejected")
	}
	for _, want := range []string{"nfs", "not a local filesystem"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected error to contain %q, got %q", want, err.Error())
		}
	}
}

func TestCheckLocalFilesystemInspectsExistingAncestor(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	dbPath := filepath.Join(root, "state", "halyard", "history.db")

	var inspected string
	err := checkLocalFilesystemWith(dbPath, func(path string) (string, error) {
		inspected = path
		return "apfs", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inspected != root {
		t.Fatalf("expected %q to be inspected, got %q", root, inspected)
	}
}

func TestIsRemoteFilesystem(t *testing.T) {
	t.Parallel()

	cases := []struct {
		fs   string
		want bool
	}{
		{"nfs", true},
		{" SMBFS ", true},
		{"fuse.sshfs", true},
		{"ext4", false},
		{"0x6969", false},
		{"unknown", false},
	}
	for _, tc := range cases {
		if got := isRemoteFilesystem(tc.fs); got != tc.want {
			t.Errorf("isRemoteFilesystem(%q) = %v, want %v", tc.fs, got, tc.want)
		}
	}
}
