package watchdog

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"go-modguard/internal/logging"
	"go-modguard/internal/metrics"
)

type Watchdog struct {
	mu            sync.RWMutex
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	now           func() time.Time
	proc          *process.Process
}

type ComponentHealth struct {
	Name          string
	LastHeartbeat atomic.Int64
	IsHealthy     atomic.Bool
	Threshold     time.Duration
}

func NewWatchdog(checkInterval time.Duration) *Watchdog {
	w := &Watchdog{
		components:    make(map[string]*ComponentHealth),
		checkInterval: checkInterval,
		now:           time.Now,
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		w.proc = p
	} else {
		logging.Warn("[WATCHDOG] Process stats unavailable: %v", err)
	}
	return w
}

// RegisterComponent tracks name; it is unhealthy once threshold passes
// without a heartbeat.
func (w *Watchdog) RegisterComponent(name string, threshold time.Duration) {
	comp := &ComponentHealth{Name: name, Threshold: threshold}
	comp.IsHealthy.Store(true)

	w.mu.Lock()
	w.components[name] = comp
	w.mu.Unlock()
}

func (w *Watchdog) Heartbeat(name string) {
	w.mu.RLock()
	comp, exists := w.components[name]
	w.mu.RUnlock()
	if !exists {
		return
	}
	comp.LastHeartbeat.Store(w.now().UnixNano())
	if !comp.IsHealthy.Swap(true) {
		logging.Info("[WATCHDOG] %s recovered", name)
	}
}

// Run checks components and samples resources every interval until ctx is
// cancelled.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.checkAllComponents()
			w.sampleResources()
		}
	}
}

func (w *Watchdog) checkAllComponents() {
	now := w.now().UnixNano()

	w.mu.RLock()
	defer w.mu.RUnlock()
	for name, comp := range w.components {
		lastBeat := comp.LastHeartbeat.Load()
		if lastBeat == 0 {
			continue
		}

		elapsed := time.Duration(now - lastBeat)
		if elapsed > comp.Threshold && comp.IsHealthy.Swap(false) {
			logging.Error("[WATCHDOG] %s unhealthy (no heartbeat for %v)", name, elapsed)
		}
	}
}

func (w *Watchdog) sampleResources() {
	if w.proc != nil {
		if info, err := w.proc.MemoryInfo(); err == nil {
			metrics.SetProcessRSS(info.RSS)
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm.UsedPercent > 90 {
		logging.Warn("[WATCHDOG] Host memory at %.1f%%", vm.UsedPercent)
	}
}

func (w *Watchdog) IsHealthy(name string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if comp, exists := w.components[name]; exists {
		return comp.IsHealthy.Load()
	}
	return false
}

func (w *Watchdog) GetStatus() map[string]bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	status := make(map[string]bool, len(w.components))
	for name, comp := range w.components {
		status[name] = comp.IsHealthy.Load()
	}
	return status
}
