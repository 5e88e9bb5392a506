package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sysTree struct {
	t    *testing.T
	root string
}

func newSysTree(t *testing.T) *sysTree {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "class", "block"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dev", "block"), 0o755))
	return &sysTree{t: t, root: root}
}

func (s *sysTree) file(rel, content string) {
	s.t.Helper()
	path := filepath.Join(s.root, rel)
	require.NoError(s.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(s.t, os.WriteFile(path, []byte(content+"\n"), 0o644))
}

func (s *sysTree) dir(rel string) {
	s.t.Helper()
	require.NoError(s.t, os.MkdirAll(filepath.Join(s.root, rel), 0o755))
}

func (s *sysTree) link(rel, target string) {
	s.t.Helper()
	require.NoError(s.t, os.Symlink(filepath.Join(s.root, target), filepath.Join(s.root, rel)))
}

// disk registers a whole disk and its partitions under devicePath.
func (s *sysTree) disk(devicePath, name string, removable string, parts ...string) {
	s.t.Helper()
	diskDir := filepath.Join(devicePath, "block", name)
	s.file(filepath.Join(diskDir, "removable"), removable)
	s.link(filepath.Join("class", "block", name), diskDir)
	for _, part := range parts {
		s.file(filepath.Join(diskDir, part, "partition"), "1")
		s.link(filepath.Join("class", "block", part), filepath.Join(diskDir, part))
	}
}

func (s *sysTree) prober(parts []disk.PartitionStat) *sysfsProber {
	noNum := func(string) (uint32, uint32, error) { return 0, 0, errors.New("no device number") }
	return &sysfsProber{
		root:     s.root,
		mounts:   func(context.Context) ([]disk.PartitionStat, error) { return parts, nil },
		nodeNum:  noNum,
		mountNum: noNum,
		log:      zap.NewNop(),
	}
}

func androidTree(t *testing.T) *sysTree {
	s := newSysTree(t)

	emmc := "devices/platform/soc/7c4000.sdhci/mmc_host/mmc0/mmc0:0001"
	s.disk(emmc, "mmcblk0", "0", "mmcblk0p20")
	s.file(filepath.Join(emmc, "block", "mmcblk0", "device", "type"), "MMC")

	sd := "devices/platform/soc/8804000.sdhci/mmc_host/mmc1/mmc1:aaaa"
	s.disk(sd, "mmcblk1", "1", "mmcblk1p1", "mmcblk1p2")
	s.file(filepath.Join(sd, "block", "mmcblk1", "device", "type"), "SD")
	s.file(filepath.Join(sd, "block", "mmcblk1", "device", "name"), "SC64G")
	s.link("dev/block/179:1", filepath.Join(sd, "block", "mmcblk1", "mmcblk1p1"))

	usb := "devices/platform/soc/a600000.ssusb/a600000.dwc3/xhci-hcd.0.auto/usb1/1-1/1-1:1.0/host0/target0:0:0/0:0:0:0"
	s.disk(usb, "sda", "1", "sda1")
	s.file(filepath.Join(usb, "block", "sda", "device", "vendor"), "SanDisk")
	s.file(filepath.Join(usb, "block", "sda", "device", "model"), "Cruzer Blade")

	s.dir("devices/virtual/block/dm-0/slaves/mmcblk1p2")
	s.link("class/block/dm-0", "devices/virtual/block/dm-0")

	s.link("class/block/mmcblk7p1", "devices/platform/gone/block/mmcblk7/mmcblk7p1")
	return s
}

func TestSysfsDescriptors(t *testing.T) {
	s := androidTree(t)
	p := s.prober([]disk.PartitionStat{
		{Device: "/dev/block/mmcblk0p20", Mountpoint: "/data", Fstype: "ext4"},
		{Device: "/dev/fuse", Mountpoint: "/storage/emulated", Fstype: "fuse"},
		{Device: "/dev/block/vold/public:179,1", Mountpoint: "/mnt/media_rw/1234-ABCD", Fstype: "vfat"},
		{Device: "/dev/block/sda1", Mountpoint: "/mnt/media_rw/usb1", Fstype: "exfat"},
		{Device: "/dev/block/dm-0", Mountpoint: "/mnt/expand/0f3e", Fstype: "f2fs"},
		{Device: "tmpfs", Mountpoint: "/dev", Fstype: "tmpfs"},
		{Device: "/dev/block/mmcblk7p1", Mountpoint: "/mnt/broken", Fstype: "vfat"},
	})

	descs, err := p.Descriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 7)

	data := descs[0]
	assert.Equal(t, "private", data.Kind)
	require.NotNil(t, data.Disk)
	assert.Equal(t, "mmcblk0", data.Disk.Name)
	assert.False(t, data.Disk.SD)
	assert.False(t, data.Disk.USB)

	assert.Equal(t, "emulated", descs[1].Kind)
	assert.Nil(t, descs[1].Disk)

	sdcard := descs[2]
	assert.Equal(t, "public", sdcard.Kind)
	require.NotNil(t, sdcard.Disk)
	assert.Equal(t, "mmcblk1", sdcard.Disk.Name)
	assert.Equal(t, "SC64G", sdcard.Disk.Model)
	assert.True(t, sdcard.Disk.SD)
	assert.False(t, sdcard.Disk.USB)
	assert.True(t, sdcard.Disk.Removable)

	stick := descs[3]
	assert.Equal(t, "public", stick.Kind)
	require.NotNil(t, stick.Disk)
	assert.Equal(t, "sda", stick.Disk.Name)
	assert.Equal(t, "Cruzer Blade", stick.Disk.Model)
	assert.True(t, stick.Disk.USB)
	assert.False(t, stick.Disk.SD)

	adopted := descs[4]
	assert.Equal(t, "private", adopted.Kind)
	require.NotNil(t, adopted.Disk)
	assert.Equal(t, "mmcblk1", adopted.Disk.Name)
	assert.True(t, adopted.Disk.SD)

	assert.Equal(t, "other", descs[5].Kind)
	assert.Nil(t, descs[5].Disk)

	assert.Error(t, descs[6].Err)
	assert.Nil(t, descs[6].Disk)
}

func TestSysfsResolvesByDeviceNumber(t *testing.T) {
	s := androidTree(t)
	p := s.prober([]disk.PartitionStat{
		{Device: "/dev/root", Mountpoint: "/", Fstype: "ext4"},
	})
	p.nodeNum = func(path string) (uint32, uint32, error) {
		require.Equal(t, "/dev/root", path)
		return 179, 1, nil
	}

	descs, err := p.Descriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 1)
	require.NotNil(t, descs[0].Disk)
	assert.Equal(t, "mmcblk1", descs[0].Disk.Name)
}

func TestSysfsFallsBackToMountDeviceNumber(t *testing.T) {
	s := androidTree(t)
	p := s.prober([]disk.PartitionStat{
		{Device: "/dev/disk/by-uuid/1234-ABCD", Mountpoint: "/media/card", Fstype: "vfat"},
	})
	p.mountNum = func(path string) (uint32, uint32, error) {
		require.Equal(t, "/media/card", path)
		return 179, 1, nil
	}

	descs, err := p.Descriptors(context.Background())
	require.NoError(t, err)
	require.NotNil(t, descs[0].Disk)
	assert.True(t, descs[0].Disk.SD)
	assert.Equal(t, "public", descs[0].Kind)
}

func TestSysfsUnknownDeviceNumberIsNotBlockBacked(t *testing.T) {
	s := androidTree(t)
	p := s.prober([]disk.PartitionStat{
		{Device: "/dev/mapper/missing", Mountpoint: "/srv", Fstype: "xfs"},
	})
	p.nodeNum = func(string) (uint32, uint32, error) { return 253, 9, nil }

	descs, err := p.Descriptors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "other", descs[0].Kind)
	assert.NoError(t, descs[0].Err)
}

func TestSysfsCapabilityUnavailable(t *testing.T) {
	p := &sysfsProber{root: filepath.Join(t.TempDir(), "nosys"), log: zap.NewNop()}
	_, err := p.Descriptors(context.Background())
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)

	s := newSysTree(t)
	p = s.prober(nil)
	p.mounts = func(context.Context) ([]disk.PartitionStat, error) {
		return nil, os.ErrPermission
	}
	_, err = p.Descriptors(context.Background())
	assert.ErrorIs(t, err, ErrCapabilityUnavailable)
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestSysfsMapperLoop(t *testing.T) {
	s := newSysTree(t)
	s.dir("devices/virtual/block/dm-1/slaves/dm-1")
	s.link("class/block/dm-1", "devices/virtual/block/dm-1")

	p := s.prober([]disk.PartitionStat{
		{Device: "/dev/dm-1", Mountpoint: "/loop", Fstype: "ext4"},
	})
	descs, err := p.Descriptors(context.Background())
	require.NoError(t, err)
	assert.Error(t, descs[0].Err)
}

func TestSysfsPrefersStorageView(t *testing.T) {
	s := androidTree(t)
	p := s.prober([]disk.PartitionStat{
		{Device: "/dev/block/vold/public:179,1", Mountpoint: "/mnt/media_rw/1234-ABCD", Fstype: "vfat"},
		{Device: "/dev/fuse", Mountpoint: "/storage/1234-ABCD", Fstype: "fuse"},
		{Device: "/dev/block/sda1", Mountpoint: "/mnt/media_rw/5678-EF01", Fstype: "exfat"},
		{Device: "/mnt/media_rw/5678-EF01", Mountpoint: "/storage/5678-EF01", Fstype: "sdcardfs"},
		{Device: "/dev/block/vold/public:179,1", Mountpoint: "/mnt/media_rw/9999-0000", Fstype: "vfat"},
	})

	descs, err := p.Descriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 5)

	assert.Equal(t, "public", descs[0].Kind)
	assert.Equal(t, "/storage/1234-ABCD", descs[0].MountPoint)
	require.NotNil(t, descs[0].Disk)
	assert.True(t, descs[0].Disk.SD)

	assert.Equal(t, "other", descs[1].Kind)
	assert.Equal(t, "/storage/1234-ABCD", descs[1].MountPoint)

	assert.Equal(t, "public", descs[2].Kind)
	assert.Equal(t, "/storage/5678-EF01", descs[2].MountPoint)
	require.NotNil(t, descs[2].Disk)
	assert.True(t, descs[2].Disk.USB)

	assert.Equal(t, "emulated", descs[3].Kind)

	// no view mounted, the vold mount is all there is
	assert.Equal(t, "/mnt/media_rw/9999-0000", descs[4].MountPoint)
}

func TestDiskModelSkipsPCIIDs(t *testing.T) {
	s := newSysTree(t)
	virtio := "devices/pci0000:00/0000:00:04.0/virtio1"
	s.disk(virtio, "vda", "0", "vda1")
	s.file(filepath.Join(virtio, "block", "vda", "device", "vendor"), "0x1af4")
	s.file(filepath.Join(virtio, "block", "vda", "device", "device"), "0x0002")

	reader := "devices/pci0000:00/0000:00:14.0/usb2/2-1/2-1:1.0/host1/target1:0:0/1:0:0:0"
	s.disk(reader, "sdb", "1", "sdb1")
	s.file(filepath.Join(reader, "block", "sdb", "device", "vendor"), "Generic")
	s.file(filepath.Join(reader, "block", "sdb", "device", "product"), "Card Reader")

	p := s.prober([]disk.PartitionStat{
		{Device: "/dev/vda1", Mountpoint: "/", Fstype: "ext4"},
		{Device: "/dev/sdb1", Mountpoint: "/media/card", Fstype: "vfat"},
	})
	descs, err := p.Descriptors(context.Background())
	require.NoError(t, err)
	require.Len(t, descs, 2)
	require.NotNil(t, descs[0].Disk)
	assert.Empty(t, descs[0].Disk.Model)
	require.NotNil(t, descs[1].Disk)
	assert.Equal(t, "Generic Card Reader", descs[1].Disk.Model)

	assert.True(t, isHexID("0x1af4"))
	assert.False(t, isHexID("SanDisk"))
}

func TestIsEmulatedMount(t *testing.T) {
	assert.True(t, isEmulatedMount("/mnt/runtime/default/emulated", "sdcardfs"))
	assert.True(t, isEmulatedMount("/storage/emulated", "fuse"))
	assert.True(t, isEmulatedMount("/mnt/user/0/emulated", "fuse"))
	assert.False(t, isEmulatedMount("/mnt/media_rw/1234-ABCD", "vfat"))
}
