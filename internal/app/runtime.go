package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gajzzs/xstorage/internal/bridge"
	"github.com/gajzzs/xstorage/internal/classifier"
	"github.com/gajzzs/xstorage/internal/config"
	"github.com/gajzzs/xstorage/internal/inventory"
	"github.com/gajzzs/xstorage/internal/logging"
	"github.com/gajzzs/xstorage/internal/platform"
)

// Runtime holds the components every command works against.
type Runtime struct {
	Config     *config.Config
	Log        *zap.Logger
	Prober     platform.Prober
	Classifier *classifier.Classifier
	Router     *bridge.Router
}

// NewRuntime selects the prober once and wires the query pipeline.
func NewRuntime(cfg *config.Config) (*Runtime, error) {
	log, err := logging.New(cfg.LoggerConfig())
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	opts := cfg.PlatformOptions()
	opts.Logger = log.Named("platform")
	prober, err := platform.New(opts)
	if err != nil {
		return nil, err
	}

	reader := inventory.NewReader(prober,
		inventory.WithExcludes(cfg.Probe.ExcludeMounts),
		inventory.WithLogger(log.Named("inventory")))
	cls := classifier.New(reader)

	return &Runtime{
		Config:     cfg,
		Log:        log,
		Prober:     prober,
		Classifier: cls,
		Router:     bridge.NewRouter(cls, platform.KernelMajor, log.Named("bridge")),
	}, nil
}
