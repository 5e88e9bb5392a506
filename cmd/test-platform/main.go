package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/gajzzs/xstorage/internal/config"
	"github.com/gajzzs/xstorage/internal/logging"
	"github.com/gajzzs/xstorage/internal/platform"
)

// Dumps what every prober variant sees on this host, before any filtering.
func main() {
	fmt.Printf("Testing xstorage probers on %s\n", runtime.GOOS)
	cfg := config.LoadOrDefault()
	ctx := context.Background()

	for _, name := range []string{platform.ProberAuto, platform.ProberSysfs, platform.ProberDiskutil} {
		opts := cfg.PlatformOptions()
		opts.Prober = name
		opts.Logger = logging.NewOrNop(cfg.LoggerConfig())
		p, err := platform.New(opts)
		if err != nil {
			fmt.Printf("\n=== %s: %v\n", name, err)
			continue
		}

		fmt.Printf("\n=== %s (selected %s) ===\n", name, p.Name())
		descs, err := p.Descriptors(ctx)
		if err != nil {
			fmt.Printf("Unavailable: %v\n", err)
			continue
		}
		for i, d := range descs {
			fmt.Printf("%d. %s on %s [%s] kind=%s", i+1, d.Device, d.MountPoint, d.FSType, d.Kind)
			if d.Disk != nil {
				fmt.Printf(" disk=%s sd=%v usb=%v removable=%v", d.Disk.Name, d.Disk.SD, d.Disk.USB, d.Disk.Removable)
			}
			if d.Err != nil {
				fmt.Printf(" error=%v", d.Err)
			}
			fmt.Println()
		}
	}

	if major, err := platform.KernelMajor(ctx); err == nil {
		fmt.Printf("\nKernel major version: %d\n", major)
	}
}
