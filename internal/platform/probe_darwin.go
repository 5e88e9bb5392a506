//go:build darwin

package platform

import (
	"os/exec"

	"go.uber.org/zap"
)

func autoProber(opts Options) Prober {
	if _, err := exec.LookPath("diskutil"); err != nil {
		opts.Logger.Debug("diskutil not found", zap.Error(err))
		return Unavailable()
	}
	return NewDiskutil(opts)
}
