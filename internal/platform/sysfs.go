package platform

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shirou/gopsutil/v3/common"
	"github.com/shirou/gopsutil/v3/disk"
	"go.uber.org/zap"
)

// maxMapperDepth bounds the walk through stacked device-mapper targets.
const maxMapperDepth = 8

// vold names its block nodes after the volume id, e.g. public:179,1.
var voldNode = regexp.MustCompile(`^(?:public|private|emulated|disk):(\d+),(\d+)$`)

type mountLister func(ctx context.Context) ([]disk.PartitionStat, error)

type devnumFunc func(path string) (major, minor uint32, err error)

type sysfsProber struct {
	root     string
	mounts   mountLister
	nodeNum  devnumFunc
	mountNum devnumFunc
	log      *zap.Logger
}

// NewSysfs returns the Linux/Android prober. It reads the mount table via
// gopsutil and resolves backing disks through sysfs under opts.SysfsRoot.
func NewSysfs(opts Options) Prober {
	opts = opts.withDefaults()
	procRoot := opts.ProcRoot
	return &sysfsProber{
		root: opts.SysfsRoot,
		mounts: func(ctx context.Context) ([]disk.PartitionStat, error) {
			ctx = context.WithValue(ctx, common.EnvKey, common.EnvMap{common.HostProcEnvKey: procRoot})
			return disk.PartitionsWithContext(ctx, true)
		},
		nodeNum:  blockNodeNumber,
		mountNum: mountDeviceNumber,
		log:      opts.Logger,
	}
}

func (p *sysfsProber) Name() string { return ProberSysfs }

func (p *sysfsProber) Descriptors(ctx context.Context) ([]Descriptor, error) {
	if _, err := os.Stat(filepath.Join(p.root, "class", "block")); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapabilityUnavailable, err)
	}

	parts, err := p.mounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading mount table: %w", ErrCapabilityUnavailable, err)
	}

	descs := make([]Descriptor, 0, len(parts))
	for _, part := range parts {
		descs = append(descs, p.describe(part))
	}
	preferStorageViews(descs, parts)
	return descs, nil
}

// vold mounts public volumes at /mnt/media_rw/<id>; apps reach them through
// the FUSE or sdcardfs view at /storage/<id>.
const (
	voldMediaDir   = "/mnt/media_rw/"
	storageViewDir = "/storage/"
)

// preferStorageViews rewrites the mount point of public vold volumes to
// their /storage/<id> view when that view is mounted.
func preferStorageViews(descs []Descriptor, parts []disk.PartitionStat) {
	views := make(map[string]bool)
	for _, part := range parts {
		if strings.HasPrefix(part.Mountpoint, storageViewDir) {
			views[part.Mountpoint] = true
		}
	}
	for i := range descs {
		d := &descs[i]
		if d.Kind != "public" || !strings.HasPrefix(d.MountPoint, voldMediaDir) {
			continue
		}
		id := strings.TrimPrefix(d.MountPoint, voldMediaDir)
		if id == "" || strings.Contains(id, "/") {
			continue
		}
		if view := storageViewDir + id; views[view] {
			d.MountPoint = view
		}
	}
}

func (p *sysfsProber) describe(part disk.PartitionStat) Descriptor {
	d := Descriptor{
		Device:     part.Device,
		MountPoint: part.Mountpoint,
		FSType:     part.Fstype,
	}

	if isEmulatedMount(part.Mountpoint, part.Fstype) {
		d.Kind = "emulated"
		return d
	}

	name, ok := p.blockName(part.Device, part.Mountpoint)
	if !ok {
		d.Kind = "other"
		return d
	}

	info, mapped, err := p.resolveDisk(name, 0)
	if err != nil {
		d.Err = err
		return d
	}
	d.Disk = &info

	// Mapper targets on Android are adopted (encrypted, owned by the
	// system) storage even when the underlying medium is removable.
	switch {
	case mapped:
		d.Kind = "private"
	case info.SD || info.USB || info.Removable:
		d.Kind = "public"
	default:
		d.Kind = "private"
	}
	return d
}

func isEmulatedMount(mountPoint, fsType string) bool {
	switch fsType {
	case "sdcardfs", "esdfs":
		return true
	}
	for _, prefix := range []string{"/storage/emulated", "/mnt/runtime/", "/mnt/user/"} {
		if strings.HasPrefix(mountPoint, prefix) {
			return true
		}
	}
	return false
}

// blockName maps a mount source to its sysfs block entry name. It reports
// false for sources that are not backed by a block device.
func (p *sysfsProber) blockName(device, mountPoint string) (string, bool) {
	if !strings.HasPrefix(device, "/dev/") {
		return "", false
	}

	base := filepath.Base(device)
	if m := voldNode.FindStringSubmatch(base); m != nil {
		return p.numberedName(m[1] + ":" + m[2])
	}

	if _, err := os.Lstat(filepath.Join(p.root, "class", "block", base)); err == nil {
		return base, true
	}

	// Aliases like /dev/root or /dev/disk/by-uuid/... need the device number.
	major, minor, err := p.nodeNum(device)
	if err != nil {
		major, minor, err = p.mountNum(mountPoint)
		if err != nil {
			p.log.Debug("no device number for mount source",
				zap.String("device", device), zap.Error(err))
			return "", false
		}
	}
	return p.numberedName(fmt.Sprintf("%d:%d", major, minor))
}

func (p *sysfsProber) numberedName(majmin string) (string, bool) {
	target, err := filepath.EvalSymlinks(filepath.Join(p.root, "dev", "block", majmin))
	if err != nil {
		return "", false
	}
	return filepath.Base(target), true
}

// resolveDisk walks from a block entry to the disk that carries it:
// partitions go up to their parent, mapper targets follow their first slave.
func (p *sysfsProber) resolveDisk(name string, depth int) (DiskInfo, bool, error) {
	if depth > maxMapperDepth {
		return DiskInfo{}, false, fmt.Errorf("device-mapper chain too deep at %s", name)
	}

	sysPath, err := filepath.EvalSymlinks(filepath.Join(p.root, "class", "block", name))
	if err != nil {
		return DiskInfo{}, false, fmt.Errorf("resolving block device %s: %w", name, err)
	}

	if slaves, err := os.ReadDir(filepath.Join(sysPath, "slaves")); err == nil && len(slaves) > 0 {
		info, _, err := p.resolveDisk(slaves[0].Name(), depth+1)
		return info, true, err
	}

	if _, err := os.Stat(filepath.Join(sysPath, "partition")); err == nil {
		sysPath = filepath.Dir(sysPath)
	}

	diskName := filepath.Base(sysPath)
	info := DiskInfo{
		Name:      diskName,
		Model:     p.diskModel(sysPath),
		Removable: readTrim(filepath.Join(sysPath, "removable")) == "1",
		USB:       p.onUSBBus(sysPath),
	}
	info.SD = isSDCard(sysPath, diskName, info.Removable)
	return info, false, nil
}

func isSDCard(diskPath, diskName string, removable bool) bool {
	if !strings.HasPrefix(diskName, "mmcblk") {
		return false
	}
	switch readTrim(filepath.Join(diskPath, "device", "type")) {
	case "SD":
		return true
	case "MMC", "SDIO":
		return false
	}
	return removable
}

func (p *sysfsProber) onUSBBus(diskPath string) bool {
	root, err := filepath.EvalSymlinks(p.root)
	if err != nil {
		root = p.root
	}
	rel, err := filepath.Rel(root, diskPath)
	if err != nil {
		rel = diskPath
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, "usb") {
			return true
		}
	}
	return false
}

func (p *sysfsProber) diskModel(diskPath string) string {
	if model := readTrim(filepath.Join(diskPath, "device", "model")); model != "" {
		return model
	}
	if name := readTrim(filepath.Join(diskPath, "device", "name")); name != "" {
		return name
	}
	// virtio and other PCI-backed disks expose numeric ids here, not names.
	vendor := readTrim(filepath.Join(diskPath, "device", "vendor"))
	product := readTrim(filepath.Join(diskPath, "device", "product"))
	if vendor == "" || product == "" || isHexID(vendor) || isHexID(product) {
		return ""
	}
	return vendor + " " + product
}

func isHexID(s string) bool {
	return strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")
}

func readTrim(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
