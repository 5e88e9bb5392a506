package inventory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/gajzzs/xstorage/internal/platform"
	"github.com/gajzzs/xstorage/internal/volume"
)

type fakeProber struct {
	descs []platform.Descriptor
	err   error
	calls int
}

func (f *fakeProber) Name() string { return "fake" }

func (f *fakeProber) Descriptors(context.Context) ([]platform.Descriptor, error) {
	f.calls++
	return f.descs, f.err
}

func TestListVolumesParsesDescriptors(t *testing.T) {
	p := &fakeProber{descs: []platform.Descriptor{
		{Device: "/dev/block/mmcblk0p20", MountPoint: "/data", Kind: "private", Disk: &platform.DiskInfo{Name: "mmcblk0"}},
		{Device: "/dev/fuse", MountPoint: "/storage/emulated/", Kind: "emulated"},
		{Device: "/dev/block/vold/public:179,1", MountPoint: "/storage/1234-ABCD", Kind: "public",
			Disk: &platform.DiskInfo{Name: "mmcblk1", SD: true, Removable: true, Model: "SC64G"}},
	}}

	listing := NewReader(p).ListVolumes(context.Background())
	require.NoError(t, listing.Err)
	require.NoError(t, listing.Skipped)
	require.Len(t, listing.Volumes, 3)

	assert.Equal(t, volume.KindPrivate, listing.Volumes[0].Kind)
	assert.Equal(t, "/storage/emulated", listing.Volumes[1].MountPath)
	assert.Nil(t, listing.Volumes[1].Disk)

	sd := listing.Volumes[2]
	assert.Equal(t, volume.KindPublic, sd.Kind)
	require.NotNil(t, sd.Disk)
	assert.Equal(t, volume.Disk{Name: "mmcblk1", Model: "SC64G", SD: true, Removable: true}, *sd.Disk)
}

func TestListVolumesCallsProberOncePerListing(t *testing.T) {
	p := &fakeProber{}
	r := NewReader(p)
	r.ListVolumes(context.Background())
	r.ListVolumes(context.Background())
	assert.Equal(t, 2, p.calls)
}

func TestListVolumesDegradesWhenUnavailable(t *testing.T) {
	listing := NewReader(platform.Unavailable()).ListVolumes(context.Background())
	assert.NotNil(t, listing.Volumes)
	assert.Empty(t, listing.Volumes)
	assert.ErrorIs(t, listing.Err, platform.ErrCapabilityUnavailable)
}

func TestListVolumesDegradesOnUnexpectedError(t *testing.T) {
	p := &fakeProber{err: errors.New("boom")}
	listing := NewReader(p).ListVolumes(context.Background())
	assert.Empty(t, listing.Volumes)
	assert.EqualError(t, listing.Err, "boom")
}

func TestListVolumesSkipsMalformed(t *testing.T) {
	p := &fakeProber{descs: []platform.Descriptor{
		{Device: "/dev/sdb1", MountPoint: "/media/a", Kind: "public", Err: errors.New("sysfs entry vanished")},
		{Device: "/dev/sdc1", MountPoint: "media/relative", Kind: "public"},
		{Device: "/dev/sdd1", MountPoint: "/media/d", Kind: "asec"},
		{Device: "/dev/sde1", MountPoint: "/media/usb", Kind: "public", Disk: &platform.DiskInfo{USB: true}},
	}}

	listing := NewReader(p).ListVolumes(context.Background())
	require.NoError(t, listing.Err)
	require.Len(t, listing.Volumes, 1)
	assert.Equal(t, "/media/usb", listing.Volumes[0].MountPath)

	skipped := multierr.Errors(listing.Skipped)
	require.Len(t, skipped, 3)
	for _, err := range skipped {
		assert.ErrorIs(t, err, ErrMalformedDescriptor)
	}
}

func TestListVolumesKeepsUnmounted(t *testing.T) {
	p := &fakeProber{descs: []platform.Descriptor{
		{Device: "/dev/sdb1", Kind: "public", Disk: &platform.DiskInfo{USB: true}},
	}}
	listing := NewReader(p).ListVolumes(context.Background())
	require.Len(t, listing.Volumes, 1)
	assert.False(t, listing.Volumes[0].Mounted())
}

func TestListVolumesExcludes(t *testing.T) {
	p := &fakeProber{descs: []platform.Descriptor{
		{Device: "/dev/loop3", MountPoint: "/snap/core/1234", Kind: "private", Disk: &platform.DiskInfo{Name: "loop3"}},
		{Device: "/dev/sdb1", MountPoint: "/media/stick", Kind: "public", Disk: &platform.DiskInfo{USB: true}},
	}}

	listing := NewReader(p, WithExcludes([]string{"/snap/**"}), WithLogger(nil)).ListVolumes(context.Background())
	require.Len(t, listing.Volumes, 1)
	assert.Equal(t, "/media/stick", listing.Volumes[0].MountPath)
}
