package telemetry

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"slices"
	"sync"

	"github.com/erp/settlement/internal/infrastructure/config"
	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// DefaultProfileTypes adds the mutex and block profiles to CPU and heap, which
// is where waits on row locks and on the connection pool show up
var DefaultProfileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockDuration,
}

const defaultContentionRate = 5

type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []pyroscope.ProfileType

	// sampling rates for the contention profiles, 0 means 5
	MutexProfileFraction int
	BlockProfileRate     int
	DisableGCRuns        bool
}

func ProfilerConfigFrom(cfg config.TelemetryConfig) ProfilerConfig {
	return ProfilerConfig{
		Enabled:         cfg.ProfilingEnabled,
		ServerAddress:   cfg.ProfilingServer,
		ApplicationName: cfg.ServiceName,
		ProfileTypes:    DefaultProfileTypes,
	}
}

func (c ProfilerConfig) validate() error {
	var errs []error
	if c.ServerAddress == "" {
		errs = append(errs, errors.New("profiler server address is required"))
	}
	if c.ApplicationName == "" {
		errs = append(errs, errors.New("profiler application name is required"))
	}
	return errors.Join(errs...)
}

func (c ProfilerConfig) wants(types ...pyroscope.ProfileType) bool {
	return slices.ContainsFunc(types, func(t pyroscope.ProfileType) bool {
		return slices.Contains(c.ProfileTypes, t)
	})
}

// enableContentionSampling turns on the runtime sampling the mutex and block
// profiles need; both are off by default in the Go runtime
func (c ProfilerConfig) enableContentionSampling() {
	if c.wants(pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration) {
		runtime.SetMutexProfileFraction(orRate(c.MutexProfileFraction))
	}
	if c.wants(pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration) {
		runtime.SetBlockProfileRate(orRate(c.BlockProfileRate))
	}
}

func orRate(v int) int {
	if v > 0 {
		return v
	}
	return defaultContentionRate
}

// hostTags labels profiles with the pod or host they came from
func hostTags() map[string]string {
	tags := map[string]string{}
	for env, tag := range map[string]string{"HOSTNAME": "hostname", "POD_NAME": "pod"} {
		if v := os.Getenv(env); v != "" {
			tags[tag] = v
		}
	}
	return tags
}

// Profiler pushes continuous profiles to Pyroscope
type Profiler struct {
	session *pyroscope.Profiler
	cfg     ProfilerConfig
	log     *zap.Logger
	stop    sync.Once
	stopErr error
}

func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{cfg: cfg, log: logger}
	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled")
		return p, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(cfg.ProfileTypes) == 0 {
		logger.Warn("Profiler has no profile types and will upload nothing")
	}
	cfg.enableContentionSampling()

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            logger.Named("pyroscope").Sugar(),
		Tags:              hostTags(),
		ProfileTypes:      cfg.ProfileTypes,
		DisableGCRuns:     cfg.DisableGCRuns,
	})
	if err != nil {
		return nil, fmt.Errorf("start pyroscope: %w", err)
	}
	p.session = session

	logger.Info("Continuous profiling enabled",
		zap.String("server_address", cfg.ServerAddress),
		zap.Int("profile_types", len(cfg.ProfileTypes)),
	)
	return p, nil
}

// Stop uploads what is buffered and ends the session. Later calls return
// the first result.
func (p *Profiler) Stop() error {
	p.stop.Do(func() {
		if p.session == nil {
			return
		}
		if err := p.session.Stop(); err != nil {
			p.stopErr = fmt.Errorf("stop pyroscope: %w", err)
			return
		}
		p.log.Info("Continuous profiling stopped")
	})
	return p.stopErr
}

func (p *Profiler) IsEnabled() bool { return p.session != nil }

func (p *Profiler) GetConfig() ProfilerConfig {
	cfg := p.cfg
	cfg.ProfileTypes = slices.Clone(cfg.ProfileTypes)
	return cfg
}
