package inventory

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/gajzzs/xstorage/internal/platform"
	"github.com/gajzzs/xstorage/internal/volume"
)

// ErrMalformedDescriptor marks a volume entry that was skipped because its
// fields could not be read or parsed.
var ErrMalformedDescriptor = errors.New("malformed volume descriptor")

// Listing is the outcome of one enumeration. Err is set when the volume
// table could not be read at all, in which case Volumes is empty. Skipped
// aggregates the per-entry failures that were dropped.
type Listing struct {
	Volumes []volume.Volume
	Err     error
	Skipped error
}

// Lister produces fresh volume listings.
type Lister interface {
	ListVolumes(ctx context.Context) Listing
}

// Reader turns raw prober output into typed volumes.
type Reader struct {
	prober  platform.Prober
	exclude []string
	log     *zap.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithExcludes drops volumes whose mount path matches any doublestar pattern.
func WithExcludes(patterns []string) Option {
	return func(r *Reader) { r.exclude = append(r.exclude, patterns...) }
}

// WithLogger sets the diagnostics logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

// NewReader creates a reader over prober.
func NewReader(prober platform.Prober, opts ...Option) *Reader {
	r := &Reader{prober: prober, log: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ListVolumes enumerates the current volumes. It never fails: a missing
// capability degrades to an empty listing and bad entries are skipped.
func (r *Reader) ListVolumes(ctx context.Context) Listing {
	descs, err := r.prober.Descriptors(ctx)
	if err != nil {
		if errors.Is(err, platform.ErrCapabilityUnavailable) {
			r.log.Debug("volume enumeration unavailable", zap.String("prober", r.prober.Name()), zap.Error(err))
		} else {
			r.log.Warn("volume enumeration failed", zap.String("prober", r.prober.Name()), zap.Error(err))
		}
		return Listing{Volumes: []volume.Volume{}, Err: err}
	}

	listing := Listing{Volumes: make([]volume.Volume, 0, len(descs))}
	for _, d := range descs {
		v, err := parseDescriptor(d)
		if err != nil {
			r.log.Debug("skipping volume", zap.String("device", d.Device), zap.String("mount", d.MountPoint), zap.Error(err))
			listing.Skipped = multierr.Append(listing.Skipped, err)
			continue
		}
		if r.excluded(v.MountPath) {
			continue
		}
		listing.Volumes = append(listing.Volumes, v)
	}
	return listing
}

func (r *Reader) excluded(mountPath string) bool {
	if mountPath == "" {
		return false
	}
	for _, pattern := range r.exclude {
		if ok, _ := doublestar.Match(pattern, mountPath); ok {
			return true
		}
	}
	return false
}

func parseDescriptor(d platform.Descriptor) (volume.Volume, error) {
	if d.Err != nil {
		return volume.Volume{}, fmt.Errorf("%w: %s: %w", ErrMalformedDescriptor, d.Device, d.Err)
	}

	kind, err := volume.ParseKind(d.Kind)
	if err != nil {
		return volume.Volume{}, fmt.Errorf("%w: %s: %w", ErrMalformedDescriptor, d.Device, err)
	}

	mount := d.MountPoint
	if mount != "" {
		if !filepath.IsAbs(mount) {
			return volume.Volume{}, fmt.Errorf("%w: %s: mount point %q is not absolute", ErrMalformedDescriptor, d.Device, mount)
		}
		mount = filepath.Clean(mount)
	}

	v := volume.Volume{
		Device:    d.Device,
		MountPath: mount,
		FSType:    d.FSType,
		Kind:      kind,
	}
	if d.Disk != nil {
		v.Disk = &volume.Disk{
			Name:      d.Disk.Name,
			Model:     d.Disk.Model,
			SD:        d.Disk.SD,
			USB:       d.Disk.USB,
			Removable: d.Disk.Removable,
		}
	}
	return v, nil
}
