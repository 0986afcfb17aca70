// services/power/power.go
//
// Power-domain coordinator: tracks which rails are powered, expires idle
// rails on a periodic tick, and drops the CPU into deep sleep when nothing
// is left running.
package power

import (
	"github.com/rs/zerolog"

	"propcore-go/bus"
	"propcore-go/errcode"
	"propcore-go/services/power/internal/pwrcore"
	"propcore-go/services/power/internal/wake"
	"propcore-go/types"
	"propcore-go/x/mathx"
)

// WakeSources selects which wake triggers the manager arms before a deep
// sleep. It aliases the wake controller's source set so callers outside this
// package can configure it.
type WakeSources = wake.Sources

// Options assembles a PowerManager. Zero values pick sane defaults:
// startup set, 10 ms tick, wait-for-interrupt halt.
type Options struct {
	Log      zerolog.Logger
	Platform *pwrcore.Platform
	// Bus, when set, carries retained power-state and wake-report messages.
	Bus     *bus.Connection
	Startup types.DomainSet
	Halt    types.HaltMode
	Wake    WakeSources
	TickMs  uint32
	// Timeouts overrides per-domain default hold timeouts (config).
	Timeouts map[types.DomainFlag]uint32
	// OutputActive guards the forced-sleep path: sleep is refused while the
	// device is actively driving its outputs. Nil means never refuse.
	OutputActive func() bool
}

// PowerManager owns the domain and subscriber registries, the live
// power-state bitmap and the deep-sleep protocol. All methods run on the
// cooperative tick goroutine; nothing here is safe for concurrent use.
type PowerManager struct {
	log  zerolog.Logger
	plat *pwrcore.Platform
	conn *bus.Connection

	reg   DomainRegistry
	subs  []*Subscriber
	state types.DomainSet

	startup      types.DomainSet
	halt         types.HaltMode
	wakeSrc      wake.Sources
	wake         *wake.Controller
	tickMs       uint32
	lastMs       int64
	overrides    map[types.DomainFlag]uint32
	outputActive func() bool
	prepare      []func()
}

// eachFlag visits the set bits of s in ascending flag order.
func eachFlag(s types.DomainSet, fn func(f types.DomainFlag)) {
	for bit := 0; bit < 8; bit++ {
		if f := types.DomainFlag(1) << uint(bit); s.Has(f) {
			fn(f)
		}
	}
}

// New builds a manager around a platform. Domains are added afterwards with
// AddDomain; Setup finishes initialization.
func New(opts Options) *PowerManager {
	if opts.Startup == types.DomainNone {
		opts.Startup = types.StartupDomains
	}
	if opts.TickMs == 0 {
		opts.TickMs = 10
	}
	return &PowerManager{
		log:          opts.Log,
		plat:         opts.Platform,
		conn:         opts.Bus,
		startup:      opts.Startup,
		halt:         opts.Halt,
		wakeSrc:      opts.Wake,
		wake:         wake.New(opts.Platform),
		tickMs:       opts.TickMs,
		overrides:    opts.Timeouts,
		outputActive: opts.OutputActive,
	}
}

// AddDomain registers a rail driver, applying any configured timeout
// override. Call before Setup.
func (pm *PowerManager) AddDomain(d Domain) error {
	if err := pm.reg.Add(d); err != nil {
		return err
	}
	if ms, ok := pm.overrides[d.Flag()]; ok {
		pm.reg.SetDefaultTimeout(d.Flag(), ms)
	}
	return nil
}

// Setup initializes every registered driver and powers the startup set.
// A driver setup failure is fatal: the caller must abort startup.
func (pm *PowerManager) Setup() error {
	var fail error
	pm.reg.ForEach(func(d Domain) {
		if fail != nil {
			return
		}
		if err := d.Setup(); err != nil {
			fail = &errcode.E{C: errcode.Error, Op: "power.Setup", Msg: d.Name(), Err: err}
		}
	})
	if fail != nil {
		return fail
	}
	pm.lastMs = pm.plat.Clock.NowMs()
	pm.Activate(pm.startup)
	pm.log.Info().
		Str("domains", types.DomainSetString(pm.state)).
		Msg("power manager up")
	return nil
}

// State returns the live power-state bitmap.
func (pm *PowerManager) State() types.DomainSet { return pm.state }

// Registry exposes the domain registry for diagnostics.
func (pm *PowerManager) Registry() *DomainRegistry { return &pm.reg }

// Activate powers on every domain in set not already powered, granting each
// its default timeout, then fires on-acquired for every subscriber whose
// declared set just became complete. Reports whether anything changed.
func (pm *PowerManager) Activate(set types.DomainSet) bool {
	changed := false
	eachFlag(set&^pm.state, func(f types.DomainFlag) {
		pm.powerOn(f, 0)
		changed = true
	})
	if changed {
		pm.notifyAcquired()
		pm.publishState()
	}
	return changed
}

// powerOn marks the bit, schedules the hold, then drives the rail.
func (pm *PowerManager) powerOn(f types.DomainFlag, timeoutMs uint32) {
	pm.state |= f
	pm.reg.RequestHold(f, timeoutMs)
	if d := pm.reg.byFlag(f); d != nil {
		d.d.SetPower(true)
	}
}

// requestFor implements Subscriber.RequestPower. timeouts align to the
// subscriber's declared set in ascending flag order.
func (pm *PowerManager) requestFor(s *Subscriber, timeouts []uint32) bool {
	changed := false
	i := 0
	eachFlag(s.domains, func(f types.DomainFlag) {
		var ms uint32
		if i < len(timeouts) {
			ms = timeouts[i]
		}
		i++
		if pm.state.Has(f) {
			pm.reg.RequestHold(f, ms)
			return
		}
		pm.powerOn(f, ms)
		changed = true
	})
	if changed {
		pm.notifyAcquired()
		pm.publishState()
	}
	return changed
}

// notifyAcquired fires on-acquired for every subscriber whose declared set
// turned complete since the last state change. Edge-triggered: a set that
// stays complete fires nothing.
func (pm *PowerManager) notifyAcquired() {
	for _, s := range pm.subs {
		sat := pm.state&s.domains == s.domains
		if sat && !s.satisfied {
			s.satisfied = true
			if s.onAcquired != nil {
				s.onAcquired()
			}
		} else if !sat {
			s.satisfied = false
		}
	}
}

// Loop is the periodic entry point. It measures elapsed wall time and skips
// the tick entirely when the measurement is stale (a late invocation would
// expire holds with time the holders never saw).
func (pm *PowerManager) Loop() {
	now := pm.plat.Clock.NowMs()
	elapsed := now - pm.lastMs
	pm.lastMs = now
	if elapsed <= 0 {
		return
	}
	if uint32(elapsed) >= pm.staleMs() {
		pm.log.Debug().Int64("elapsed_ms", elapsed).Msg("stale tick skipped")
		return
	}
	pm.Evaluate(uint32(elapsed))
}

// staleMs is the elapsed-time bound above which a tick is discarded.
func (pm *PowerManager) staleMs() uint32 {
	return mathx.FloorAt(2*pm.tickMs, types.MinTimeoutMs)
}

// Evaluate runs one evaluation pass with the given elapsed time.
//
// Held domains pause rather than expire. On-lost callbacks run for every
// affected subscriber strictly before any rail is switched off, so callback
// code may still touch the hardware. Rails power down in descending flag
// order, the reverse of power-up. When nothing is left powered the manager
// enters deep sleep and, on wake, reactivates the startup set.
func (pm *PowerManager) Evaluate(elapsedMs uint32) {
	held := pm.heldMask()

	scratch := pm.state
	eachFlag(pm.state&^held, func(f types.DomainFlag) {
		if pm.reg.Tick(f, elapsedMs) {
			scratch &^= f
		}
	})
	if scratch == pm.state {
		return
	}

	for _, s := range pm.subs {
		if pm.state&s.domains == s.domains && scratch&s.domains != s.domains {
			s.satisfied = false
			if s.onLost != nil {
				s.onLost()
			}
		}
	}

	dying := pm.state &^ scratch
	for bit := 7; bit >= 0; bit-- {
		f := types.DomainFlag(1) << uint(bit)
		if !dying.Has(f) {
			continue
		}
		if d := pm.reg.byFlag(f); d != nil {
			pm.log.Debug().Str("domain", d.d.Name()).Msg("domain off")
			d.d.SetPower(false)
		}
		pm.state &^= f
	}
	pm.publishState()

	if pm.state == types.DomainNone {
		src := pm.sleep()
		pm.log.Info().Str("wake", src.String()).Msg("woke from deep sleep")
		pm.Activate(pm.startup)
	}
}

// PowerOff force-expires a domain: on-lost for every subscriber losing its
// set, then the rail off. Diagnostic path.
func (pm *PowerManager) PowerOff(f types.DomainFlag) bool {
	if !pm.state.Has(f) {
		return false
	}
	scratch := pm.state &^ f
	for _, s := range pm.subs {
		if pm.state&s.domains == s.domains && scratch&s.domains != s.domains {
			s.satisfied = false
			if s.onLost != nil {
				s.onLost()
			}
		}
	}
	pm.reg.ClearCountdown(f)
	if d := pm.reg.byFlag(f); d != nil {
		d.d.SetPower(false)
	}
	pm.state = scratch
	pm.publishState()
	return true
}

func (pm *PowerManager) publishState() {
	if pm.conn == nil {
		return
	}
	pm.conn.Publish(bus.T("power", "state"),
		&types.PowerState{Domains: pm.state, TS: pm.plat.Clock.NowMs()}, true)
}
