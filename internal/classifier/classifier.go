package classifier

import (
	"context"

	"github.com/gajzzs/xstorage/internal/inventory"
	"github.com/gajzzs/xstorage/internal/volume"
)

// Classifier projects volume listings onto storage categories.
type Classifier struct {
	lister inventory.Lister
}

// New creates a classifier reading volumes from lister.
func New(lister inventory.Lister) *Classifier {
	return &Classifier{lister: lister}
}

// FindPaths returns the mount paths of volumes in category c, in enumeration
// order. Duplicates are kept. The result is empty, never nil, when nothing
// matches.
func (c *Classifier) FindPaths(ctx context.Context, cat volume.Category) []string {
	listing := c.lister.ListVolumes(ctx)
	paths := make([]string, 0, len(listing.Volumes))
	for _, v := range listing.Volumes {
		if keep(v, cat) {
			paths = append(paths, v.MountPath)
		}
	}
	return paths
}

// FirstSDPath returns the first SD card mount path, if any.
func (c *Classifier) FirstSDPath(ctx context.Context) (string, bool) {
	paths := c.FindPaths(ctx, volume.CategorySD)
	if len(paths) == 0 {
		return "", false
	}
	return paths[0], true
}

func keep(v volume.Volume, cat volume.Category) bool {
	return v.Kind.Real() && v.Disk != nil && v.Disk.Matches(cat) && v.Mounted()
}

// Report is one listed volume with the categories it qualifies for.
type Report struct {
	Volume     volume.Volume
	Categories []volume.Category
}

// Volumes classifies every listed volume, including those that match no
// category, for display.
func (c *Classifier) Volumes(ctx context.Context) []Report {
	listing := c.lister.ListVolumes(ctx)
	reports := make([]Report, 0, len(listing.Volumes))
	for _, v := range listing.Volumes {
		r := Report{Volume: v}
		for _, cat := range []volume.Category{volume.CategoryInternal, volume.CategorySD, volume.CategoryUSB} {
			if keep(v, cat) {
				r.Categories = append(r.Categories, cat)
			}
		}
		reports = append(reports, r)
	}
	return reports
}
