package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/openvent/helios-core/internal/variable"
)

// poller drives the periodic read cycle.
//
// Each cycle reads every variable that currently has a listener, feeds
// completions to the cache, and notifies the hub on changes. Transport
// and decode failures are counted per variable; after the consecutive
// failure threshold the cached value is marked invalid but kept visible.
// A cycle that cannot reach the device at all is reported and the next
// cycle is scheduled unconditionally.
type poller struct {
	registry  *variable.Registry
	transport Transport
	busMu     *sync.Mutex
	cache     *Cache
	hub       *Hub
	logger    Logger

	interval         time.Duration
	interReadDelay   time.Duration
	failureThreshold int

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newPoller(registry *variable.Registry, transport Transport, busMu *sync.Mutex, cache *Cache, hub *Hub, interval, interReadDelay time.Duration, failureThreshold int, logger Logger) *poller {
	return &poller{
		registry:         registry,
		transport:        transport,
		busMu:            busMu,
		cache:            cache,
		hub:              hub,
		logger:           logger,
		interval:         interval,
		interReadDelay:   interReadDelay,
		failureThreshold: failureThreshold,
		done:             make(chan struct{}),
	}
}

// start launches the polling loop. The loop runs until stop is called or
// the context is cancelled; cancellation takes effect between transport
// exchanges, never mid-call.
func (p *poller) start(ctx context.Context) {
	p.wg.Add(1)
	go p.loop(ctx)
}

func (p *poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// First cycle immediately so subscribers get values without waiting a
	// full interval.
	p.cycle(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one Idle -> Requesting -> Decoding -> Idle pass over the
// subscribed variables.
func (p *poller) cycle(ctx context.Context) {
	ids := p.hub.SubscribedVariables()
	if len(ids) == 0 {
		return
	}

	failures := 0
	for i, id := range ids {
		if p.cancelled(ctx) {
			return
		}
		if !p.pollOne(ctx, id) {
			failures++
		}

		// Pause between reads to avoid flooding the bus.
		if i < len(ids)-1 && p.interReadDelay > 0 {
			select {
			case <-time.After(p.interReadDelay):
			case <-p.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}

	if failures == len(ids) {
		p.logger.Warn("device unreachable for entire poll cycle",
			"variables", len(ids),
		)
	}
}

// pollOne reads a single variable and applies the completion. Returns
// false when the read failed (transport or decode).
func (p *poller) pollOne(ctx context.Context, id string) bool {
	v, err := p.registry.Resolve(id)
	if err != nil {
		// Listeners are validated on registration; an unknown ID here is a
		// programming error worth surfacing loudly.
		p.logger.Error("subscribed variable missing from registry", "variable", id)
		return true
	}

	seq := p.cache.BeginRead(id)

	p.busMu.Lock()
	raw, err := p.transport.ReadVariable(ctx, v)
	p.busMu.Unlock()

	if err != nil {
		p.failed(id, "read failed", err)
		return false
	}

	changed, cv, err := p.cache.ApplyRead(id, seq, raw)
	switch {
	case errors.Is(err, ErrStaleRead):
		p.logger.Debug("discarded stale read", "variable", id)
		return true
	case err != nil:
		p.failed(id, "decode failed", err)
		return false
	case changed:
		p.hub.Notify(cv)
	}
	return true
}

// failed records a read failure and notifies listeners when the value
// transitions to invalid, so consumers can mark entities unavailable.
func (p *poller) failed(id string, msg string, err error) {
	p.logger.Debug(msg, "variable", id, "error", err)

	invalidated, cv := p.cache.RecordFailure(id, p.failureThreshold)
	if invalidated {
		p.logger.Warn("variable marked invalid after consecutive failures",
			"variable", id,
			"threshold", p.failureThreshold,
		)
		p.hub.Notify(cv)
	}
}

func (p *poller) cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-p.done:
		return true
	default:
		return false
	}
}

// stop cancels the polling loop between cycles and waits for it to exit.
func (p *poller) stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
