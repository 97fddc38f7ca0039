package session

import (
	"context"

	"go.uber.org/zap"
)

// The validity loop runs only while authenticated. The refresh ticker is
// coarse to batch exchange cost; expiry can land anywhere inside that
// window, so a short check ticker compares remaining lifetime against the
// low-water-mark and refreshes early when it gets close.

func (m *Manager) startLoopLocked() {
	if m.cancelLoop != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancelLoop = cancel

	go m.validityLoop(ctx)
}

func (m *Manager) stopLoopLocked() {
	if m.cancelLoop == nil {
		return
	}
	m.cancelLoop()
	m.cancelLoop = nil
}

func (m *Manager) validityLoop(ctx context.Context) {
	refresh := m.clock.NewTicker(m.cfg.RefreshInterval)
	defer refresh.Stop()
	check := m.clock.NewTicker(m.cfg.CheckInterval)
	defer check.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-refresh.Chan():
			m.log.Info("auto-refreshing session")
			if err := m.Refresh(ctx); err != nil {
				m.log.Warn("scheduled refresh failed", zap.Error(err))
			}

		case <-check.Chan():
			if m.expiringSoon() {
				m.log.Info("session expiring soon, refreshing")
				if err := m.Refresh(ctx); err != nil {
					m.log.Warn("early refresh failed", zap.Error(err))
				}
			}
		}
	}
}

func (m *Manager) expiringSoon() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil && m.session.ExpiringSoon(m.clock.Now(), m.cfg.ExpiryMargin)
}
