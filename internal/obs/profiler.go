package obs

import (
	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
)

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enabled         bool              `yaml:"enabled"`
	ApplicationName string            `yaml:"application_name"`
	ServerAddress   string            `yaml:"server_address"`
	Tags            map[string]string `yaml:"tags"`
}

// StartProfiler starts pyroscope when enabled. The returned stop func is
// always safe to call.
func StartProfiler(cfg ProfilingConfig) (stop func(), err error) {
	if !cfg.Enabled {
		return func() {}, nil
	}

	name := cfg.ApplicationName
	if name == "" {
		name = "market-relay"
	}
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.ServerAddress,
		Tags:            cfg.Tags,
		Logger:          logs.With("component", "pyroscope"),
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
	if err != nil {
		return func() {}, errors.Wrap(err, "start pyroscope").With("server", cfg.ServerAddress)
	}
	logs.Infof("profiling enabled, server: %s", cfg.ServerAddress)

	return func() {
		_ = profiler.Stop()
	}, nil
}
