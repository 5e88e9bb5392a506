package volume

import (
	"fmt"
	"strings"
)

// Kind is the storage subsystem's own visibility class for a volume.
type Kind int

const (
	KindOther Kind = iota
	KindPrivate
	KindPublic
	KindEmulated
)

func (k Kind) String() string {
	switch k {
	case KindPrivate:
		return "private"
	case KindPublic:
		return "public"
	case KindEmulated:
		return "emulated"
	default:
		return "other"
	}
}

// Real reports whether volumes of this kind are backed by a physical disk
// the host can classify. Only private and public volumes qualify.
func (k Kind) Real() bool {
	return k == KindPrivate || k == KindPublic
}

// ParseKind converts a prober kind name into a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "private":
		return KindPrivate, nil
	case "public":
		return KindPublic, nil
	case "emulated":
		return KindEmulated, nil
	case "other", "stub":
		return KindOther, nil
	}
	return KindOther, fmt.Errorf("unknown volume kind %q", s)
}

// Disk describes the medium backing one or more volumes.
type Disk struct {
	Name      string
	Model     string
	SD        bool
	USB       bool
	Removable bool
}

// Volume is a point-in-time snapshot of one mounted storage volume.
type Volume struct {
	Device    string
	MountPath string // empty when the volume is not visible in the filesystem
	FSType    string
	Kind      Kind
	Disk      *Disk // nil when there is no backing disk
}

// Mounted reports whether the volume has a usable mount path.
func (v Volume) Mounted() bool {
	return v.MountPath != ""
}

// Category is a caller-facing storage class.
type Category int

const (
	CategoryInternal Category = iota
	CategorySD
	CategoryUSB
)

func (c Category) String() string {
	switch c {
	case CategorySD:
		return "sd"
	case CategoryUSB:
		return "usb"
	default:
		return "internal"
	}
}

// ParseCategory accepts "internal", "sd" or "usb" in any case.
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "internal":
		return CategoryInternal, nil
	case "sd":
		return CategorySD, nil
	case "usb":
		return CategoryUSB, nil
	}
	return CategoryInternal, fmt.Errorf("unknown storage category %q", s)
}

// Matches reports whether the disk carries the flag for c. Internal means
// neither removable SD nor USB mass storage.
func (d Disk) Matches(c Category) bool {
	switch c {
	case CategorySD:
		return d.SD
	case CategoryUSB:
		return d.USB
	default:
		return !d.SD && !d.USB
	}
}
