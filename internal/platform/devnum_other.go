//go:build !unix

package platform

import "errors"

var errNoDevnum = errors.New("device numbers not supported on this platform")

func blockNodeNumber(string) (uint32, uint32, error) { return 0, 0, errNoDevnum }

func mountDeviceNumber(string) (uint32, uint32, error) { return 0, 0, errNoDevnum }
