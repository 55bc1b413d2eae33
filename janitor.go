package identity

import (
	"sync"
	"time"
)

// janitor runs the periodic cleanup pass: expired login challenges, stale
// recovery tokens, aged-out refresh records, and idle limiter state. It is
// started by Build and stopped from Engine.Close.
type janitor struct {
	engine *Engine
	cfg    CleanupConfig
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

func newJanitor(e *Engine, cfg CleanupConfig) *janitor {
	return &janitor{
		engine: e,
		cfg:    cfg,
		done:   make(chan struct{}),
	}
}

func (j *janitor) Start() {
	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		ticker := time.NewTicker(j.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-j.done:
				return
			case <-ticker.C:
				j.sweep()
			}
		}
	}()
}

// Stop shuts the janitor down and waits for an in-flight sweep to finish.
func (j *janitor) Stop() {
	j.once.Do(func() { close(j.done) })
	j.wg.Wait()
}

func (j *janitor) sweep() {
	e := j.engine
	now := e.now()

	challenges := e.challenges.Sweep(now)
	recovery := e.recovery.Sweep(now)
	limiters := e.recoveryLimiter.Sweep(now, j.cfg.RefreshKeepFor)

	pruned := 0
	for _, id := range e.tenants.IDs() {
		st, err := e.tenants.Resolve(id)
		if err != nil {
			continue
		}
		pruned += st.PruneRefreshTokens(now, j.cfg.RefreshKeepFor)
	}

	swept := 0
	if e.memGuard != nil {
		swept = e.memGuard.Sweep()
	}

	if challenges+recovery+limiters+pruned+swept > 0 {
		e.logger.Debug().
			Int("challenges", challenges).
			Int("recovery", recovery).
			Int("limiters", limiters).
			Int("refresh_pruned", pruned).
			Int("guard_entries", swept).
			Msg("janitor sweep")
	}
}
