// Package probe selects a configured debug probe and opens a live
// connection through it.
package probe

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mattjoyce/halyard/internal/fault"
	"github.com/mattjoyce/halyard/internal/lock"
	"github.com/mattjoyce/halyard/internal/log"
	"github.com/mattjoyce/halyard/internal/target"
)

const (
	// Auto asks for the single configured probe.
	Auto = "auto"

	DriverGDB = "gdb"
)

// Spec is one configured probe.
type Spec struct {
	Name    string `yaml:"name"`
	Driver  string `yaml:"driver"`
	Address string `yaml:"address"`
}

// DialFunc opens the transport for a probe.
type DialFunc func(network, address string, timeout time.Duration) (net.Conn, error)

// Catalog is the set of probes a session may attach through.
type Catalog struct {
	probes      []Spec
	dialTimeout time.Duration
	maxRead     int
	dial        DialFunc
	lockDir     string
}

// NewCatalog returns a catalog over specs.
func NewCatalog(specs []Spec, dialTimeout time.Duration, maxRead int) *Catalog {
	return &Catalog{
		probes:      append([]Spec(nil), specs...),
		dialTimeout: dialTimeout,
		maxRead:     maxRead,
		dial:        net.DialTimeout,
	}
}

// WithDialer replaces the transport dialer.
func (c *Catalog) WithDialer(d DialFunc) *Catalog {
	c.dial = d
	return c
}

// WithLockDir makes Open hold a per-probe lock under dir for as long as the
// attachment stays open, so two processes never drive one probe.
func (c *Catalog) WithLockDir(dir string) *Catalog {
	c.lockDir = dir
	return c
}

// Probes returns the configured probes.
func (c *Catalog) Probes() []Spec { return c.probes }

// Select resolves a probe selector. An empty selector or "auto" picks the
// only configured probe; "gdb:<host:port>" names a stub directly.
func (c *Catalog) Select(selector string) (Spec, error) {
	selector = strings.TrimSpace(selector)

	if selector == "" || selector == Auto {
		switch len(c.probes) {
		case 0:
			return Spec{}, fault.Attachf("no probe found")
		case 1:
			return c.probes[0], nil
		default:
			names := make([]string, len(c.probes))
			for i, p := range c.probes {
				names[i] = p.Name
			}
			return Spec{}, fault.Attachf("multiple probes match: %s", strings.Join(names, ", "))
		}
	}

	if addr, ok := strings.CutPrefix(selector, DriverGDB+":"); ok {
		if addr == "" {
			return Spec{}, fault.Attachf("probe %q has no address", selector)
		}
		return Spec{Name: selector, Driver: DriverGDB, Address: addr}, nil
	}

	for _, p := range c.probes {
		if p.Name == selector {
			return p, nil
		}
	}
	return Spec{}, fault.Attachf("no probe matches %q", selector)
}

// Open selects a probe and connects to the target behind it.
func (c *Catalog) Open(selector, chip string) (*target.LiveAttachment, error) {
	spec, err := c.Select(selector)
	if err != nil {
		return nil, err
	}

	logger := log.WithProbe(spec.Name)
	logger.Debug("connecting", "driver", spec.Driver, "address", spec.Address, "chip", chip)

	switch spec.Driver {
	case DriverGDB:
		held, err := c.acquire(spec)
		if err != nil {
			return nil, err
		}
		conn, err := c.dial("tcp", spec.Address, c.dialTimeout)
		if err != nil {
			_ = held.Release()
			return nil, &fault.AttachmentError{Reason: fmt.Sprintf("could not reach probe %s", spec.Name), Err: err}
		}
		logger.Info("attached", "address", spec.Address)
		port := &lockedGDB{GDB: NewGDB(conn, GDBConfig{MaxReadSize: c.maxRead, Timeout: c.dialTimeout}), held: held}
		return target.NewLive(port, spec.Name, chip), nil
	default:
		return nil, fault.Attachf("probe %s: unsupported driver %q", spec.Name, spec.Driver)
	}
}

var unsafeLockChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// acquire takes the probe's lock. It returns a nil lock when locking is off.
func (c *Catalog) acquire(spec Spec) (*lock.File, error) {
	if c.lockDir == "" {
		return nil, nil
	}
	name := unsafeLockChars.ReplaceAllString(spec.Driver+"-"+spec.Address, "_")
	held, err := lock.Acquire(filepath.Join(c.lockDir, name+".lock"))
	var busy *lock.HeldError
	if errors.As(err, &busy) {
		if busy.PID != 0 {
			return nil, fault.Attachf("probe %s is in use by process %d", spec.Name, busy.PID)
		}
		return nil, fault.Attachf("probe %s is in use by another process", spec.Name)
	}
	if err != nil {
		return nil, &fault.AttachmentError{Reason: fmt.Sprintf("could not lock probe %s", spec.Name), Err: err}
	}
	return held, nil
}

// lockedGDB releases the probe lock once the stub connection is closed.
type lockedGDB struct {
	*GDB
	held *lock.File
}

func (l *lockedGDB) Close() error {
	err := l.GDB.Close()
	if rerr := l.held.Release(); err == nil {
		err = rerr
	}
	return err
}
