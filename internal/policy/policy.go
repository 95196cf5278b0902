// Package policy holds the three knobs a command uses to declare what it
// needs before it can run: an archive, a kind of target, and a degree of
// archive/target agreement.
package policy

// Archive declares whether a firmware archive must be loaded before a command runs.
type Archive int

const (
	// ArchiveRequired loads an archive or dump and fails if neither is present.
	ArchiveRequired Archive = iota
	// ArchiveOptional loads an archive or dump if one was given and continues otherwise.
	ArchiveOptional
	// ArchiveIgnored never touches the archive or dump paths, even when set.
	ArchiveIgnored
)

func (a Archive) String() string {
	switch a {
	case ArchiveRequired:
		return "required"
	case ArchiveOptional:
		return "optional"
	case ArchiveIgnored:
		return "ignored"
	default:
		return "unknown"
	}
}

// Attach declares which target sources a command accepts.
type Attach int

const (
	// AttachLiveOnly requires a probe connection.
	AttachLiveOnly Attach = iota
	// AttachDumpOnly requires a previously captured dump.
	AttachDumpOnly
	// AttachAny prefers a dump when one was given and falls back to a probe.
	AttachAny
)

func (a Attach) String() string {
	switch a {
	case AttachLiveOnly:
		return "live-only"
	case AttachDumpOnly:
		return "dump-only"
	case AttachAny:
		return "any"
	default:
		return "unknown"
	}
}

// Validate declares the archive/target consistency check a command needs.
type Validate int

const (
	// ValidateMatch requires the target to run the exact image in the archive.
	ValidateMatch Validate = iota
	// ValidateBooted requires only that the target has finished booting.
	ValidateBooted
	// ValidateNone performs no check.
	ValidateNone
)

func (v Validate) String() string {
	switch v {
	case ValidateMatch:
		return "match"
	case ValidateBooted:
		return "booted"
	case ValidateNone:
		return "none"
	default:
		return "unknown"
	}
}
