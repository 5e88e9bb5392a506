//go:build linux

package platform

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

func autoProber(opts Options) Prober {
	if _, err := os.Stat(filepath.Join(opts.SysfsRoot, "class", "block")); err != nil {
		opts.Logger.Debug("sysfs block class not found", zap.String("root", opts.SysfsRoot), zap.Error(err))
		return Unavailable()
	}
	return NewSysfs(opts)
}
