package decision

import (
	"sync"
	"time"

	"go-modguard/internal/models"
)

// CooldownManager throttles repeated reports of the same kind per guild.
type CooldownManager struct {
	mu        sync.RWMutex
	cooldowns map[string]map[models.ReportKind]time.Time
	duration  time.Duration
}

func NewCooldownManager(duration time.Duration) *CooldownManager {
	return &CooldownManager{
		cooldowns: make(map[string]map[models.ReportKind]time.Time),
		duration:  duration,
	}
}

// TryExecute records an execution and returns true when kind is not cooling
// down for guildID.
func (cm *CooldownManager) TryExecute(guildID string, kind models.ReportKind, now time.Time) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if last, exists := cm.cooldowns[guildID][kind]; exists && now.Sub(last) < cm.duration {
		return false
	}
	cm.record(guildID, kind, now)
	return true
}

func (cm *CooldownManager) record(guildID string, kind models.ReportKind, now time.Time) {
	if _, exists := cm.cooldowns[guildID]; !exists {
		cm.cooldowns[guildID] = make(map[models.ReportKind]time.Time)
	}
	cm.cooldowns[guildID][kind] = now
}

func (cm *CooldownManager) Reset(guildID string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	delete(cm.cooldowns, guildID)
}

func (cm *CooldownManager) GetRemainingCooldown(guildID string, kind models.ReportKind, now time.Time) time.Duration {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	last, exists := cm.cooldowns[guildID][kind]
	if !exists {
		return 0
	}
	remaining := cm.duration - now.Sub(last)
	if remaining < 0 {
		return 0
	}
	return remaining
}
