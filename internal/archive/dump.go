package archive

import (
	"archive/zip"
	"fmt"
	"os"
	"path"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/halyard/internal/target"
)

const (
	dumpIndexMember = "dump.yaml"
	regionsDir      = "regions/"
	dumpVersion     = 1
)

// Dump is a captured copy of target memory.
type Dump struct {
	Path       string
	CapturedAt time.Time
	ImageID    string
	Segments   []target.Segment
}

type dumpIndex struct {
	Version    int           `yaml:"version"`
	CapturedAt string        `yaml:"captured_at"`
	ImageID    string        `yaml:"image_id"`
	Regions    []dumpSegment `yaml:"regions"`
}

type dumpSegment struct {
	Base uint32 `yaml:"base"`
	File string `yaml:"file"`
}

// ReadDump reads only the captured memory of a dump file.
func ReadDump(path string) (*Dump, error) {
	zr, closer, err := openZip(path)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return readDump(zr, path)
}

func readDump(zr *zip.Reader, p string) (*Dump, error) {
	raw, err := readMember(zr, dumpIndexMember)
	if err != nil {
		return nil, err
	}

	var idx dumpIndex
	if err := yaml.Unmarshal(raw, &idx); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", dumpIndexMember, err)
	}
	if idx.Version != dumpVersion {
		return nil, fmt.Errorf("unsupported dump version: %d", idx.Version)
	}

	d := &Dump{Path: p, ImageID: idx.ImageID}
	if idx.CapturedAt != "" {
		t, err := time.Parse(time.RFC3339, idx.CapturedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid captured_at %q: %w", idx.CapturedAt, err)
		}
		d.CapturedAt = t
	}

	for _, r := range idx.Regions {
		data, err := readMember(zr, r.File)
		if err != nil {
			return nil, err
		}
		d.Segments = append(d.Segments, target.Segment{Base: r.Base, Data: data})
	}
	return d, nil
}

// Write stores an archive built from m and image at p. m.ImageID is set
// from the image.
func Write(p string, m Manifest, image []byte) error {
	return writeZip(p, func(zw *zip.Writer) error {
		return writeArchiveMembers(zw, "", m, image)
	})
}

// WriteDump stores a dump of segments captured from a target running the
// image described by a.
func WriteDump(p string, a *Archive, capturedAt time.Time, segments []target.Segment) error {
	if !a.Loaded() {
		return fmt.Errorf("no archive loaded")
	}
	return writeZip(p, func(zw *zip.Writer) error {
		if err := writeArchiveMembers(zw, dumpPrefix, *a.manifest, a.image); err != nil {
			return err
		}

		idx := dumpIndex{
			Version:    dumpVersion,
			CapturedAt: capturedAt.UTC().Format(time.RFC3339),
			ImageID:    a.manifest.ImageID,
		}
		for _, s := range segments {
			name := path.Join(regionsDir, fmt.Sprintf("%08x.bin", s.Base))
			if err := writeMember(zw, name, s.Data); err != nil {
				return err
			}
			idx.Regions = append(idx.Regions, dumpSegment{Base: s.Base, File: name})
		}

		raw, err := yaml.Marshal(idx)
		if err != nil {
			return fmt.Errorf("marshal dump index: %w", err)
		}
		return writeMember(zw, dumpIndexMember, raw)
	})
}

func writeArchiveMembers(zw *zip.Writer, prefix string, m Manifest, image []byte) error {
	m.ImageID = fmt.Sprintf("%x", Fingerprint(image))
	raw, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := writeMember(zw, prefix+manifestMember, raw); err != nil {
		return err
	}
	return writeMember(zw, prefix+imageMember, image)
}

func writeMember(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func writeZip(p string, fill func(zw *zip.Writer) error) error {
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	if err := fill(zw); err != nil {
		_ = zw.Close()
		_ = f.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
