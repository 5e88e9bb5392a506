package app

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/gajzzs/xstorage/internal/bridge"
	"github.com/gajzzs/xstorage/internal/classifier"
	"github.com/gajzzs/xstorage/internal/platform"
	"github.com/gajzzs/xstorage/internal/volume"
)

func NewSDCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "sd",
		Short: "Print the mount path of the SD card",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok := rt.Classifier.FirstSDPath(cmd.Context())
			if !ok {
				return bridge.ErrSDCardNotFound
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func NewUSBCommand(rt *Runtime) *cobra.Command {
	return newPathsCommand(rt, "usb", "Print the mount paths of USB mass-storage volumes", volume.CategoryUSB)
}

func NewInternalCommand(rt *Runtime) *cobra.Command {
	return newPathsCommand(rt, "internal", "Print the mount paths of volumes on fixed internal disks", volume.CategoryInternal)
}

func newPathsCommand(rt *Runtime, use, short string, cat volume.Category) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range rt.Classifier.FindPaths(cmd.Context(), cat) {
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}

type volumeView struct {
	Device     string   `json:"device"`
	MountPath  string   `json:"mount_path,omitempty"`
	FSType     string   `json:"fs_type,omitempty"`
	Kind       string   `json:"kind"`
	Disk       string   `json:"disk,omitempty"`
	Model      string   `json:"model,omitempty"`
	Categories []string `json:"categories"`
}

func viewOf(r classifier.Report) volumeView {
	v := volumeView{
		Device:     r.Volume.Device,
		MountPath:  r.Volume.MountPath,
		FSType:     r.Volume.FSType,
		Kind:       r.Volume.Kind.String(),
		Categories: []string{},
	}
	if d := r.Volume.Disk; d != nil {
		v.Disk = d.Name
		v.Model = d.Model
	}
	for _, c := range r.Categories {
		v.Categories = append(v.Categories, c.String())
	}
	return v
}

func NewVolumesCommand(rt *Runtime) *cobra.Command {
	var (
		asJSON   bool
		category string
	)
	cmd := &cobra.Command{
		Use:   "volumes",
		Short: "List every mounted volume with its classification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var only *volume.Category
			if category != "" {
				c, err := volume.ParseCategory(category)
				if err != nil {
					return err
				}
				only = &c
			}

			reports := rt.Classifier.Volumes(cmd.Context())
			views := make([]volumeView, 0, len(reports))
			for _, r := range reports {
				if only != nil && !slices.Contains(r.Categories, *only) {
					continue
				}
				views = append(views, viewOf(r))
			}

			if asJSON {
				data, err := sonic.MarshalIndent(views, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEVICE\tMOUNT\tKIND\tDISK\tCATEGORY")
			for _, v := range views {
				mount := v.MountPath
				if mount == "" {
					mount = "(not mounted)"
				}
				category := strings.Join(v.Categories, ",")
				if category == "" {
					category = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", v.Device, mount, v.Kind, v.Disk, category)
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().StringVar(&category, "category", "", "only list volumes in this category (internal, sd, usb)")
	return cmd
}

func NewCallCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "call [method] [json-args]",
		Short: "Run one bridge method and print the JSON response",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := bridge.Request{Method: args[0]}
			if len(args) == 2 {
				if err := sonic.UnmarshalString(args[1], &req.Args); err != nil {
					return fmt.Errorf("invalid arguments: %w", err)
				}
			}
			data, err := sonic.Marshal(rt.Router.Handle(cmd.Context(), req))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func NewServeCommand(rt *Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Answer JSON-lines bridge requests on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rt.Router.Serve(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the host kernel major version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			major, err := platform.KernelMajor(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), major)
			return nil
		},
	}
}
