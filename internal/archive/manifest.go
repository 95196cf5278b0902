package archive

import (
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes a firmware build. It is stored as manifest.yaml inside
// the archive.
type Manifest struct {
	Name   string `yaml:"name"`
	Board  string `yaml:"board,omitempty"`
	Target string `yaml:"target,omitempty"`

	// ImageID is the hex fingerprint of image.bin.
	ImageID string `yaml:"image_id"`
	// ImageIDAddr is where a running target exposes its image id.
	ImageIDAddr *uint32 `yaml:"image_id_addr,omitempty"`
	// BootFlagAddr holds a word that is non-zero once the target has booted.
	BootFlagAddr *uint32 `yaml:"boot_flag_addr,omitempty"`

	Regions []Region `yaml:"regions,omitempty"`
	Tasks   []Task   `yaml:"tasks,omitempty"`
}

// Region is a named range of target address space.
type Region struct {
	Name string `yaml:"name"`
	Base uint32 `yaml:"base"`
	Size uint32 `yaml:"size"`
	Attr string `yaml:"attr,omitempty"`
}

// Contains reports whether [addr, addr+length) lies in the region.
func (r Region) Contains(addr uint32, length int) bool {
	end := uint64(addr) + uint64(length)
	return addr >= r.Base && end <= uint64(r.Base)+uint64(r.Size)
}

// Task is one task in the image.
type Task struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
}

func parseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest YAML: %w", err)
	}
	if err := validateManifest(&m); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &m, nil
}

// validateManifest checks required manifest fields.
func validateManifest(m *Manifest) error {
	if strings.TrimSpace(m.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if m.ImageID == "" {
		return fmt.Errorf("image_id is required")
	}
	if _, err := hex.DecodeString(m.ImageID); err != nil {
		return fmt.Errorf("image_id is not hex: %w", err)
	}

	seen := make(map[string]bool, len(m.Regions))
	for _, r := range m.Regions {
		if r.Name == "" {
			return fmt.Errorf("region at 0x%08x has no name", r.Base)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate region %q", r.Name)
		}
		seen[r.Name] = true
		if r.Size == 0 {
			return fmt.Errorf("region %q has zero size", r.Name)
		}
		if uint64(r.Base)+uint64(r.Size) > 1<<32 {
			return fmt.Errorf("region %q extends past the 32-bit address space", r.Name)
		}
	}
	return nil
}
