// Package stats periodically samples process and host resource usage along
// with the number of live connections.
package stats

import (
	"os"
	"sync"
	"time"

	"github.com/marmos91/validay/pkg/logger"
	"github.com/marmos91/validay/pkg/manager"
	"github.com/marmos91/validay/pkg/metrics"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const Name = "StatsManager"

// DefaultInterval is the sampling period.
const DefaultInterval = time.Second

// Snapshot is one sample.
type Snapshot struct {
	Time              time.Time
	RSSBytes          uint64
	ProcessCPUPercent float64
	HostCPUPercent    float64
	HostMemoryPercent float64
	ActiveConnections int
}

type Config struct {
	Interval time.Duration

	// Quiet skips the per-sample log line.
	Quiet bool

	// Metrics receives every sample. Nil disables it.
	Metrics metrics.ServerMetrics
}

// Manager samples resource usage once per interval, logs it at Info and
// keeps the latest Snapshot.
type Manager struct {
	manager.Base

	cfg  Config
	proc *process.Process

	mu   sync.Mutex
	last Snapshot
	stop chan struct{}
	done chan struct{}
}

func New(cfg Config) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoopServerMetrics()
	}

	m := &Manager{Base: manager.NewBase(Name), cfg: cfg}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	} else {
		logger.Warn("%s: cannot inspect own process: %v", Name, err)
	}
	return m
}

func (m *Manager) Start() {
	if !m.Activate() {
		return
	}

	m.mu.Lock()
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(m.stop, m.done)
	m.mu.Unlock()

	m.Logger().Log(logger.LevelInfo, "%s started (interval %v)", Name, m.cfg.Interval)
}

func (m *Manager) Stop() {
	if !m.Deactivate() {
		return
	}

	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	m.Logger().Log(logger.LevelInfo, "%s stopped", Name)
}

// Snapshot returns the latest sample. It is the zero value before the
// first sample.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Manager) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.Sample()
		}
	}
}

// Sample takes a snapshot now, records it and returns it. Probes that fail
// leave their field at zero.
func (m *Manager) Sample() Snapshot {
	snap := Snapshot{Time: time.Now()}

	if m.proc != nil {
		if info, err := m.proc.MemoryInfo(); err == nil {
			snap.RSSBytes = info.RSS
		}
		if pct, err := m.proc.Percent(0); err == nil {
			snap.ProcessCPUPercent = pct
		}
	}
	if pcts, err := cpu.Percent(0, false); err == nil && len(pcts) > 0 {
		snap.HostCPUPercent = pcts[0]
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		snap.HostMemoryPercent = vmem.UsedPercent
	}
	if host := m.Host(); host != nil {
		snap.ActiveConnections = len(host.GetAllConnections())
	}

	m.mu.Lock()
	m.last = snap
	m.mu.Unlock()

	m.cfg.Metrics.SetProcessStats(snap.RSSBytes, snap.ProcessCPUPercent, snap.HostMemoryPercent)

	if !m.cfg.Quiet {
		m.Logger().Log(logger.LevelInfo,
			"Memory: %.2f MB | CPU: %.1f%% (host %.1f%%) | Host memory: %.1f%% | Active connections: %d",
			float64(snap.RSSBytes)/1024/1024, snap.ProcessCPUPercent, snap.HostCPUPercent,
			snap.HostMemoryPercent, snap.ActiveConnections)
	}
	return snap
}
