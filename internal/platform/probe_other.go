//go:build !linux && !darwin

package platform

import "go.uber.org/zap"

func autoProber(opts Options) Prober {
	opts.Logger.Debug("no volume prober for this platform", zap.String("requested", opts.Prober))
	return Unavailable()
}
