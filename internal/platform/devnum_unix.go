//go:build unix

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func blockNodeNumber(path string) (uint32, uint32, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, err
	}
	if uint32(st.Mode)&unix.S_IFMT != unix.S_IFBLK {
		return 0, 0, fmt.Errorf("%s is not a block device", path)
	}
	rdev := uint64(st.Rdev)
	return unix.Major(rdev), unix.Minor(rdev), nil
}

func mountDeviceNumber(path string) (uint32, uint32, error) {
	if path == "" {
		return 0, 0, fmt.Errorf("empty mount point")
	}
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, 0, err
	}
	dev := uint64(st.Dev)
	return unix.Major(dev), unix.Minor(dev), nil
}
