// Package archive loads firmware archives and dumps and checks an attached
// target against them.
//
// An archive is a zip file holding manifest.yaml and image.bin. A dump is a
// zip file holding the archive members under archive/, a dump.yaml index and
// the captured memory under regions/.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/mattjoyce/halyard/internal/fault"
	"github.com/mattjoyce/halyard/internal/policy"
	"github.com/mattjoyce/halyard/internal/target"
)

const (
	manifestMember = "manifest.yaml"
	imageMember    = "image.bin"
	dumpPrefix     = "archive/"

	// maxMemberBytes caps any single member read from an archive or dump.
	maxMemberBytes = 64 << 20

	// fingerprintLen is the number of BLAKE3 bytes kept as the image id.
	fingerprintLen = 16
)

// Archive is the loaded firmware description. The zero value is an
// unloaded archive.
type Archive struct {
	path        string
	manifest    *Manifest
	image       []byte
	fingerprint []byte
	dump        *Dump
}

// New returns an unloaded archive.
func New() *Archive {
	return &Archive{}
}

// Fingerprint computes the image id of an image.
func Fingerprint(image []byte) []byte {
	sum := blake3.Sum256(image)
	return append([]byte(nil), sum[:fingerprintLen]...)
}

// Load reads an archive file.
func (a *Archive) Load(path string) error {
	zr, closer, err := openZip(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	next := &Archive{path: path}
	if err := next.loadMembers(zr, ""); err != nil {
		return err
	}
	*a = *next
	return nil
}

// LoadDump reads a dump file, loading the archive embedded in it.
func (a *Archive) LoadDump(path string) error {
	zr, closer, err := openZip(path)
	if err != nil {
		return err
	}
	defer closer.Close()

	next := &Archive{path: path}
	if err := next.loadMembers(zr, dumpPrefix); err != nil {
		return fmt.Errorf("embedded archive: %w", err)
	}
	d, err := readDump(zr, path)
	if err != nil {
		return err
	}
	if d.ImageID != "" && !strings.EqualFold(d.ImageID, next.manifest.ImageID) {
		return fmt.Errorf("dump was captured from image %s but embeds archive %s", d.ImageID, next.manifest.ImageID)
	}
	next.dump = d
	*a = *next
	return nil
}

func (a *Archive) loadMembers(zr *zip.Reader, prefix string) error {
	raw, err := readMember(zr, prefix+manifestMember)
	if err != nil {
		return err
	}
	m, err := parseManifest(raw)
	if err != nil {
		return err
	}
	image, err := readMember(zr, prefix+imageMember)
	if err != nil {
		return err
	}

	fp := Fingerprint(image)
	want, err := hex.DecodeString(m.ImageID)
	if err != nil {
		return fmt.Errorf("manifest image_id is not hex: %w", err)
	}
	if !bytes.Equal(want, fp) {
		return fmt.Errorf("manifest image_id %s does not match image hash %x", m.ImageID, fp)
	}
	m.ImageID = hex.EncodeToString(fp)

	a.manifest = m
	a.image = image
	a.fingerprint = fp
	return nil
}

// Loaded reports whether an archive or dump has been loaded.
func (a *Archive) Loaded() bool {
	return a != nil && a.manifest != nil
}

// Path returns the file the archive was loaded from.
func (a *Archive) Path() string { return a.path }

// Manifest returns the loaded manifest, or nil.
func (a *Archive) Manifest() *Manifest { return a.manifest }

// Image returns the raw image bytes.
func (a *Archive) Image() []byte { return a.image }

// ImageID returns the image fingerprint.
func (a *Archive) ImageID() []byte { return a.fingerprint }

// Dump returns the dump this archive was loaded from, or nil.
func (a *Archive) Dump() *Dump { return a.dump }

// RegionFor returns the manifest region containing [addr, addr+length).
func (a *Archive) RegionFor(addr uint32, length int) (Region, bool) {
	if !a.Loaded() {
		return Region{}, false
	}
	for _, r := range a.manifest.Regions {
		if r.Contains(addr, length) {
			return r, true
		}
	}
	return Region{}, false
}

// Validate checks att against the archive according to v.
func (a *Archive) Validate(att target.Attachment, v policy.Validate) error {
	switch v {
	case policy.ValidateNone:
		return nil
	case policy.ValidateMatch:
		return a.validateMatch(att)
	case policy.ValidateBooted:
		return a.validateBooted(att)
	default:
		return fmt.Errorf("unknown validation policy %d", v)
	}
}

func (a *Archive) validateMatch(att target.Attachment) error {
	expected := hex.EncodeToString(a.fingerprint)
	if a.manifest.ImageIDAddr == nil {
		return &fault.ValidationMismatchError{Expected: expected, Actual: "<archive records no image id address>"}
	}

	got, err := att.ReadMemory(*a.manifest.ImageIDAddr, len(a.fingerprint))
	if err != nil {
		return &fault.AttachmentError{Reason: "failed to read image id from target", Err: err}
	}
	if !bytes.Equal(got, a.fingerprint) {
		return &fault.ValidationMismatchError{Expected: expected, Actual: hex.EncodeToString(got)}
	}
	return nil
}

func (a *Archive) validateBooted(att target.Attachment) error {
	if a.manifest.BootFlagAddr == nil {
		return &fault.NotBootedError{Detail: "archive records no boot flag address"}
	}
	flag, err := att.ReadWord(*a.manifest.BootFlagAddr)
	if err != nil {
		return &fault.AttachmentError{Reason: "failed to read boot flag from target", Err: err}
	}
	if flag == 0 {
		return &fault.NotBootedError{Detail: fmt.Sprintf("boot flag at 0x%08x is clear", *a.manifest.BootFlagAddr)}
	}
	return nil
}

func openZip(path string) (*zip.Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	zr, err := zip.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("not a zip file: %w", err)
	}
	return zr, f, nil
}

var errMemberTooLarge = errors.New("member exceeds size limit")

func readMember(zr *zip.Reader, name string) ([]byte, error) {
	f, err := zr.Open(name)
	if err != nil {
		return nil, fmt.Errorf("missing %s: %w", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxMemberBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(data) > maxMemberBytes {
		return nil, fmt.Errorf("%s: %w", name, errMemberTooLarge)
	}
	return data, nil
}
