package lifecycle

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ignitex/ignitex/internal/domain"
)

// timeoutProgressShare is the fraction of the barrier distance a signal must
// have covered at expiry to be classified WIN (toward target) or LOSS
// (toward stop) instead of TIMEOUT.
const timeoutProgressShare = 0.30

// monitor polls the price source until a barrier resolves the signal or the
// parent context shuts the manager down. Shutdown leaves the signal
// unresolved; restart seeding replays it from the store.
func (m *Manager) monitor(sig *domain.PublishedSignal, interval time.Duration) {
	defer m.wg.Done()
	defer m.metrics.ActiveMonitors.Dec()

	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	expiry := time.NewTimer(time.Until(sig.ExpiresAt))
	defer expiry.Stop()

	lastPrice := sig.Entry
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-expiry.C:
			if price, err := m.prices.LastPrice(m.ctx, sig.Symbol); err == nil {
				lastPrice = price
			}
			result := classifyExpiry(sig, lastPrice)
			m.resolve(sig, result, domain.BarrierTimeout, lastPrice)
			return
		case <-ticker.C:
			price, err := m.prices.LastPrice(m.ctx, sig.Symbol)
			if err != nil {
				log.Warn().Err(err).Str("symbol", sig.Symbol).Msg("monitor price fetch failed")
				continue
			}
			lastPrice = price
			switch barrierHit(sig, price) {
			case domain.BarrierTarget:
				m.resolve(sig, domain.ResultWin, domain.BarrierTarget, price)
				return
			case domain.BarrierStop:
				m.resolve(sig, domain.ResultLoss, domain.BarrierStop, price)
				return
			}
		}
	}
}

// barrierHit checks the nearest target and the stop. Empty barrier means the
// signal is still live.
func barrierHit(sig *domain.PublishedSignal, price float64) domain.Barrier {
	if len(sig.Targets) == 0 {
		return ""
	}
	target := sig.Targets[0]
	if sig.Direction == domain.Long {
		if price >= target {
			return domain.BarrierTarget
		}
		if price <= sig.Stop {
			return domain.BarrierStop
		}
		return ""
	}
	if price <= target {
		return domain.BarrierTarget
	}
	if price >= sig.Stop {
		return domain.BarrierStop
	}
	return ""
}

// classifyExpiry grades an expired signal by how far price travelled toward
// either barrier.
func classifyExpiry(sig *domain.PublishedSignal, price float64) domain.Result {
	if len(sig.Targets) == 0 {
		return domain.ResultTimeout
	}
	move := price - sig.Entry
	if sig.Direction == domain.Short {
		move = -move
	}
	targetDist := sig.Targets[0] - sig.Entry
	stopDist := sig.Entry - sig.Stop
	if sig.Direction == domain.Short {
		targetDist = sig.Entry - sig.Targets[0]
		stopDist = sig.Stop - sig.Entry
	}

	if targetDist > 0 && move >= timeoutProgressShare*targetDist {
		return domain.ResultWin
	}
	if stopDist > 0 && move <= -timeoutProgressShare*stopDist {
		return domain.ResultLoss
	}
	return domain.ResultTimeout
}
