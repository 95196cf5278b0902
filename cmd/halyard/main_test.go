package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/halyard/internal/archive"
	"github.com/mattjoyce/halyard/internal/history"
	"github.com/mattjoyce/halyard/internal/target"
)

const ramBase = 0x2000_0000

// isolate keeps the run away from the user's configuration and history.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, k := range []string{
		"HALYARD_CONFIG_DIR", "HALYARD_PROBE", "HALYARD_CHIP", "HALYARD_ARCHIVE",
		"HALYARD_DUMP", "HALYARD_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
	hist := filepath.Join(home, "history.db")
	t.Setenv("HALYARD_HISTORY_PATH", hist)
	return hist
}

func setVersionMetadataForTest(t *testing.T, v, commit string) {
	t.Helper()
	origVersion, origCommit := version, gitCommit
	version, gitCommit = v, commit
	t.Cleanup(func() {
		version, gitCommit = origVersion, origCommit
	})
}

// writeFixtures writes an archive and a dump captured from a booted target
// running it.
func writeFixtures(t *testing.T) (archivePath, dumpPath string) {
	t.Helper()
	dir := t.TempDir()
	idAddr, flagAddr := uint32(ramBase), uint32(ramBase+0x10)
	archivePath = filepath.Join(dir, "gimlet.zip")
	m := archive.Manifest{
		Name:         "gimlet",
		ImageIDAddr:  &idAddr,
		BootFlagAddr: &flagAddr,
		Regions:      []archive.Region{{Name: "ram", Base: ramBase, Size: 0x100, Attr: "rw"}},
	}
	if err := archive.Write(archivePath, m, []byte("gimlet image")); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	a := archive.New()
	if err := a.Load(archivePath); err != nil {
		t.Fatalf("load archive: %v", err)
	}
	ram := make([]byte, 0x100)
	copy(ram, a.ImageID())
	binary.LittleEndian.PutUint32(ram[0x10:], 1)
	copy(ram[0x20:], "ABCD")

	dumpPath = filepath.Join(dir, "gimlet.dump")
	if err := archive.WriteDump(dumpPath, a, time.Now(), []target.Segment{{Base: ramBase, Data: ram}}); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	return archivePath, dumpPath
}

func runWith(t *testing.T, input string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(input), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRunNoCommand(t *testing.T) {
	isolate(t)
	code, _, stderr := runWith(t, "")
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "Usage:") {
		t.Fatalf("stderr missing usage: %s", stderr)
	}
}

func TestRunHelp(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runWith(t, "", "--help")
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
	for _, want := range []string{"readmem", "manifest", "repl", "HALYARD_PROBE"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("root help missing %q:\n%s", want, stdout)
		}
	}

	code, stdout, _ = runWith(t, "", "readmem", "--help")
	if code != 0 {
		t.Fatalf("readmem --help code = %d", code)
	}
	if !strings.Contains(stdout, "--halfword") || !strings.Contains(stdout, `halyard doc readmem`) {
		t.Fatalf("readmem help incomplete:\n%s", stdout)
	}
}

func TestRunVersion(t *testing.T) {
	isolate(t)
	setVersionMetadataForTest(t, "1.2.3", "abc1234567890def")

	code, stdout, stderr := runWith(t, "", "version")
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
	if stdout != "halyard 1.2.3 (abc123456789)\n" {
		t.Fatalf("stdout = %q", stdout)
	}
}

func TestRunManifest(t *testing.T) {
	isolate(t)
	archivePath, _ := writeFixtures(t)

	code, stdout, stderr := runWith(t, "", "--archive", archivePath, "manifest")
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "name => gimlet") {
		t.Fatalf("stdout missing name: %s", stdout)
	}
}

func TestRunArchiveFromEnvironment(t *testing.T) {
	isolate(t)
	archivePath, _ := writeFixtures(t)
	t.Setenv("HALYARD_ARCHIVE", archivePath)

	code, stdout, stderr := runWith(t, "", "map")
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "ram") {
		t.Fatalf("stdout missing region: %s", stdout)
	}
}

func TestRunFailures(t *testing.T) {
	archivePath, _ := writeFixtures(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown command", []string{"frobnicate"}, "frobnicate"},
		{"missing archive", []string{"manifest"}, "manifest"},
		{"bad archive path", []string{"--archive", "/nonexistent/build.zip", "manifest"}, "/nonexistent/build.zip"},
		{"no probe configured", []string{"--archive", archivePath, "probe"}, "no probe found"},
		{"missing config", []string{"--config", "/nonexistent/halyard.yaml", "version"}, "config file not found"},
		{"bad flag", []string{"readmem", "--length", "many", "0x0"}, "invalid argument"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			code, _, stderr := runWith(t, "", tt.args...)
			if code != 1 {
				t.Fatalf("code = %d, want 1", code)
			}
			if !strings.Contains(stderr, "Error: ") || !strings.Contains(stderr, tt.want) {
				t.Fatalf("stderr = %q, want it to mention %q", stderr, tt.want)
			}
		})
	}
}

func TestRunReadmemFromDump(t *testing.T) {
	isolate(t)
	_, dumpPath := writeFixtures(t)

	code, stdout, stderr := runWith(t, "", "--dump", dumpPath, "readmem", "-n", "4", "0x20000020")
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "0x20000020 | 41 42 43 44") {
		t.Fatalf("unexpected dump output:\n%s", stdout)
	}
}

func TestRunReplQuitsCleanly(t *testing.T) {
	histPath := isolate(t)
	_, dumpPath := writeFixtures(t)

	code, stdout, stderr := runWith(t, "map\nfrobnicate\nquit\nversion\n", "--dump", dumpPath, "repl")
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Welcome to the halyard shell!") {
		t.Errorf("missing welcome: %s", stdout)
	}
	if !strings.Contains(stdout, "I'm sorry, Dave.") {
		t.Errorf("unknown command not reported: %s", stdout)
	}
	if strings.Contains(stdout, "halyard 0") {
		t.Errorf("a line after quit ran: %s", stdout)
	}

	store, err := history.Open(context.Background(), histPath)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()
	lines, err := store.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if strings.Join(lines, "|") != "map|frobnicate" {
		t.Fatalf("history = %v", lines)
	}
}

func TestRunReplWithHistoryDisabled(t *testing.T) {
	histPath := isolate(t)
	_, dumpPath := writeFixtures(t)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(cfgPath, []byte("history:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := runWith(t, "map\n", "--config", cfgPath, "--dump", dumpPath, "repl")
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
	if _, err := os.Stat(histPath); !os.IsNotExist(err) {
		t.Fatalf("history database created while disabled: %v", err)
	}
}

func TestConfigFlag(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"manifest"}, ""},
		{[]string{"-p", "bench", "--config", "rig.yaml", "readmem", "-w", "0x0"}, "rig.yaml"},
		{[]string{"readmem", "--config=lab.yaml", "--halt", "ram"}, "lab.yaml"},
		{[]string{"--help"}, ""},
	}
	for _, tt := range tests {
		if got := configFlag(tt.args); got != tt.want {
			t.Errorf("configFlag(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestRunDoctor(t *testing.T) {
	isolate(t)

	code, stdout, stderr := runWith(t, "", "doctor")
	if code != 0 {
		t.Fatalf("code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "built-in defaults") || !strings.Contains(stdout, "no probes configured") {
		t.Fatalf("unexpected doctor report:\n%s", stdout)
	}

	t.Setenv("HALYARD_ARCHIVE", filepath.Join(t.TempDir(), "missing.zip"))
	code, stdout, stderr = runWith(t, "", "doctor")
	if code != 1 {
		t.Fatalf("code = %d, want 1", code)
	}
	if !strings.Contains(stdout, "does not exist") || !strings.Contains(stderr, "1 error(s)") {
		t.Fatalf("missing archive not reported:\nstdout: %s\nstderr: %s", stdout, stderr)
	}
}
