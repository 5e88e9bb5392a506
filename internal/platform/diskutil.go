package platform

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"howett.net/plist"
)

type diskutilVolume struct {
	DeviceIdentifier string `plist:"DeviceIdentifier"`
	MountPoint       string `plist:"MountPoint"`
	VolumeName       string `plist:"VolumeName"`
}

type diskutilList struct {
	AllDisksAndPartitions []struct {
		DeviceIdentifier string           `plist:"DeviceIdentifier"`
		MountPoint       string           `plist:"MountPoint"`
		Partitions       []diskutilVolume `plist:"Partitions"`
		APFSVolumes      []diskutilVolume `plist:"APFSVolumes"`
	} `plist:"AllDisksAndPartitions"`
}

type diskutilInfo struct {
	DeviceIdentifier  string `plist:"DeviceIdentifier"`
	DeviceNode        string `plist:"DeviceNode"`
	MountPoint        string `plist:"MountPoint"`
	FilesystemType    string `plist:"FilesystemType"`
	BusProtocol       string `plist:"BusProtocol"`
	MediaName         string `plist:"MediaName"`
	ParentWholeDisk   string `plist:"ParentWholeDisk"`
	Internal          bool   `plist:"Internal"`
	Removable         bool   `plist:"Removable"`
	RemovableMedia    bool   `plist:"RemovableMedia"`
	RemovableOrExtDev bool   `plist:"RemovableMediaOrExternalDevice"`
	VirtualOrPhysical string `plist:"VirtualOrPhysical"`
}

type commandRunner func(ctx context.Context, args ...string) ([]byte, error)

type diskutilProber struct {
	lookPath func(string) (string, error)
	run      commandRunner
	timeout  time.Duration
	log      *zap.Logger
}

// NewDiskutil returns the macOS prober backed by `diskutil -plist` output.
func NewDiskutil(opts Options) Prober {
	opts = opts.withDefaults()
	return &diskutilProber{
		lookPath: exec.LookPath,
		run: func(ctx context.Context, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, "diskutil", args...).Output()
		},
		timeout: opts.Timeout,
		log:     opts.Logger,
	}
}

func (p *diskutilProber) Name() string { return ProberDiskutil }

func (p *diskutilProber) Descriptors(ctx context.Context) ([]Descriptor, error) {
	if _, err := p.lookPath("diskutil"); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapabilityUnavailable, err)
	}

	out, err := p.exec(ctx, "list", "-plist")
	if err != nil {
		return nil, fmt.Errorf("%w: diskutil list: %w", ErrCapabilityUnavailable, err)
	}
	mounted, err := parseDiskutilList(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapabilityUnavailable, err)
	}

	descs := make([]Descriptor, 0, len(mounted))
	for _, vol := range mounted {
		d := Descriptor{Device: "/dev/" + vol.DeviceIdentifier, MountPoint: vol.MountPoint}
		data, err := p.exec(ctx, "info", "-plist", vol.DeviceIdentifier)
		if err != nil {
			d.Err = fmt.Errorf("diskutil info %s: %w", vol.DeviceIdentifier, err)
			p.log.Debug("diskutil info failed", zap.String("device", vol.DeviceIdentifier), zap.Error(err))
			descs = append(descs, d)
			continue
		}
		info, err := parseDiskutilInfo(data)
		if err != nil {
			d.Err = err
			descs = append(descs, d)
			continue
		}
		descs = append(descs, descriptorFromInfo(vol, info))
	}
	return descs, nil
}

func (p *diskutilProber) exec(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.run(ctx, args...)
}

// parseDiskutilList flattens `diskutil list -plist` into the mounted
// volumes in listing order.
func parseDiskutilList(data []byte) ([]diskutilVolume, error) {
	var list diskutilList
	if _, err := plist.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing diskutil list: %w", err)
	}

	var vols []diskutilVolume
	for _, d := range list.AllDisksAndPartitions {
		if d.MountPoint != "" {
			vols = append(vols, diskutilVolume{DeviceIdentifier: d.DeviceIdentifier, MountPoint: d.MountPoint})
		}
		for _, part := range d.Partitions {
			if part.MountPoint != "" {
				vols = append(vols, part)
			}
		}
		for _, apfs := range d.APFSVolumes {
			if apfs.MountPoint != "" {
				vols = append(vols, apfs)
			}
		}
	}
	return vols, nil
}

func parseDiskutilInfo(data []byte) (diskutilInfo, error) {
	var info diskutilInfo
	if _, err := plist.Unmarshal(data, &info); err != nil {
		return diskutilInfo{}, fmt.Errorf("parsing diskutil info: %w", err)
	}
	if info.DeviceIdentifier == "" {
		return diskutilInfo{}, fmt.Errorf("diskutil info without DeviceIdentifier")
	}
	return info, nil
}

func descriptorFromInfo(vol diskutilVolume, info diskutilInfo) Descriptor {
	mount := info.MountPoint
	if mount == "" {
		mount = vol.MountPoint
	}
	device := info.DeviceNode
	if device == "" {
		device = "/dev/" + info.DeviceIdentifier
	}

	removable := info.Removable || info.RemovableMedia || info.RemovableOrExtDev
	bus := strings.ToLower(info.BusProtocol)
	disk := &DiskInfo{
		Name:      info.ParentWholeDisk,
		Model:     info.MediaName,
		USB:       bus == "usb",
		SD:        bus == "secure digital" || bus == "sd",
		Removable: removable,
	}
	if disk.Name == "" {
		disk.Name = info.DeviceIdentifier
	}

	kind := "public"
	if info.Internal && !removable {
		kind = "private"
	}

	return Descriptor{
		Device:     device,
		MountPoint: mount,
		FSType:     info.FilesystemType,
		Kind:       kind,
		Disk:       disk,
	}
}
