package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrCapabilityUnavailable is returned when the host cannot enumerate
// volumes at all: the prober is missing, the mount table is unreadable or
// the introspection tool is absent on this OS version.
var ErrCapabilityUnavailable = errors.New("volume enumeration unavailable")

// Prober names accepted by New.
const (
	ProberAuto     = "auto"
	ProberSysfs    = "sysfs"
	ProberDiskutil = "diskutil"
	ProberNone     = "none"
)

// DiskInfo holds the raw facts a prober found out about a backing disk.
type DiskInfo struct {
	Name      string
	Model     string
	SD        bool
	USB       bool
	Removable bool
}

// Descriptor is one raw, unvalidated volume entry as reported by a prober.
// Err is set when the entry could only be partially read.
type Descriptor struct {
	Device     string
	MountPoint string
	FSType     string
	Kind       string
	Disk       *DiskInfo
	Err        error
}

// Prober enumerates mounted volumes through one OS-specific mechanism.
type Prober interface {
	Name() string
	// Descriptors returns the current volume table in enumeration order.
	// It returns an error wrapping ErrCapabilityUnavailable when the
	// mechanism cannot be used on this host.
	Descriptors(ctx context.Context) ([]Descriptor, error)
}

// Options selects and configures a prober.
type Options struct {
	Prober    string
	SysfsRoot string
	ProcRoot  string
	Timeout   time.Duration
	Logger    *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Prober == "" {
		o.Prober = ProberAuto
	}
	if o.SysfsRoot == "" {
		o.SysfsRoot = "/sys"
	}
	if o.ProcRoot == "" {
		o.ProcRoot = "/proc"
	}
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// New selects the prober for this host once. Auto picks the best variant
// for the running OS and falls back to Unavailable.
func New(opts Options) (Prober, error) {
	opts = opts.withDefaults()

	var p Prober
	switch opts.Prober {
	case ProberAuto:
		p = autoProber(opts)
	case ProberSysfs:
		p = NewSysfs(opts)
	case ProberDiskutil:
		p = NewDiskutil(opts)
	case ProberNone:
		p = Unavailable()
	default:
		return nil, fmt.Errorf("unknown prober %q", opts.Prober)
	}

	opts.Logger.Debug("volume prober selected",
		zap.String("requested", opts.Prober),
		zap.String("prober", p.Name()))
	return p, nil
}

type unavailableProber struct{}

// Unavailable returns the no-op prober used when no mechanism fits the host.
func Unavailable() Prober {
	return unavailableProber{}
}

func (unavailableProber) Name() string { return ProberNone }

func (unavailableProber) Descriptors(context.Context) ([]Descriptor, error) {
	return nil, ErrCapabilityUnavailable
}
