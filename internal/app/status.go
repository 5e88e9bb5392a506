package app

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/spf13/cobra"

	"github.com/gajzzs/xstorage/internal/volume"
)

func NewStatusCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:                   "status",
		Short:                 "Show prober, host and storage summary",
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "xstorage status")
			fmt.Fprintln(out, "===============")

			fmt.Fprintln(out, "\nHost:")
			if info, err := host.InfoWithContext(ctx); err == nil {
				fmt.Fprintf(out, "  Hostname: %s\n", info.Hostname)
				fmt.Fprintf(out, "  OS: %s %s\n", info.Platform, info.PlatformVersion)
				fmt.Fprintf(out, "  Kernel: %s\n", info.KernelVersion)
			} else {
				fmt.Fprintln(out, "  Unavailable")
			}

			fmt.Fprintln(out, "\nProber:")
			fmt.Fprintf(out, "  Selected: %s\n", rt.Prober.Name())
			descs, err := rt.Prober.Descriptors(ctx)
			if err != nil {
				fmt.Fprintf(out, "  Enumeration: unavailable (%v)\n", err)
			} else {
				fmt.Fprintf(out, "  Mount entries: %d\n", len(descs))
				failed := 0
				for _, d := range descs {
					if d.Err != nil {
						failed++
					}
				}
				fmt.Fprintf(out, "  Unreadable entries: %d\n", failed)
			}

			fmt.Fprintln(out, "\nStorage:")
			if path, ok := rt.Classifier.FirstSDPath(ctx); ok {
				fmt.Fprintf(out, "  SD card: %s\n", path)
			} else {
				fmt.Fprintln(out, "  SD card: none")
			}
			usb := rt.Classifier.FindPaths(ctx, volume.CategoryUSB)
			fmt.Fprintf(out, "  USB volumes: %d\n", len(usb))
			for _, p := range usb {
				fmt.Fprintf(out, "    - %s\n", p)
			}
			internal := rt.Classifier.FindPaths(ctx, volume.CategoryInternal)
			fmt.Fprintf(out, "  Internal volumes: %d\n", len(internal))

			return nil
		},
	}
}
