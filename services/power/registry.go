// services/power/registry.go
package power

import (
	"math/bits"

	"propcore-go/errcode"
	"propcore-go/types"
	"propcore-go/x/mathx"
)

// Domain is one switchable power rail. Drivers live in the domains package;
// the registry owns them for the process lifetime.
type Domain interface {
	// Flag is the rail's identity bit, unique per registered driver.
	Flag() types.DomainFlag
	// Name is a short diagnostic string, unique per registered driver.
	Name() string
	// DefaultTimeout in milliseconds; 0 selects the registry-wide default.
	DefaultTimeout() uint32
	// Setup runs once before the first activation.
	Setup() error
	// SetPower switches the rail. Synchronous and infallible at this layer;
	// platform faults are the driver's problem.
	SetPower(on bool)
}

// entry pairs a driver with its countdown. countdown is milliseconds until
// expiry; 0 means the domain is not scheduled to expire.
type entry struct {
	d         Domain
	countdown uint32
	defMs     uint32
}

// DomainRegistry is the static, insertion-ordered collection of domains and
// their timeout bookkeeping. No removal: domains live as long as the process.
type DomainRegistry struct {
	entries []*entry
	flags   types.DomainSet
}

// Add registers a driver. A duplicate or non-single-bit flag is a
// configuration error and must abort startup.
func (r *DomainRegistry) Add(d Domain) error {
	f := d.Flag()
	if bits.OnesCount8(uint8(f)) != 1 {
		return &errcode.E{C: errcode.InvalidArgs, Op: "registry.Add", Msg: d.Name() + ": flag must be a single bit"}
	}
	if r.flags.Has(f) {
		return &errcode.E{C: errcode.DuplicateDomain, Op: "registry.Add", Msg: d.Name()}
	}
	def := d.DefaultTimeout()
	if def == 0 {
		def = types.DefaultTimeoutMs
	}
	r.entries = append(r.entries, &entry{d: d, defMs: def})
	r.flags |= f
	return nil
}

// SetDefaultTimeout overrides a domain's default hold timeout (config).
func (r *DomainRegistry) SetDefaultTimeout(f types.DomainFlag, ms uint32) {
	if e := r.byFlag(f); e != nil && ms > 0 {
		e.defMs = ms
	}
}

// Flags returns the set of all registered domains.
func (r *DomainRegistry) Flags() types.DomainSet { return r.flags }

// ByName finds a domain flag by its diagnostic name.
func (r *DomainRegistry) ByName(name string) (types.DomainFlag, bool) {
	for _, e := range r.entries {
		if e.d.Name() == name {
			return e.d.Flag(), true
		}
	}
	return types.DomainNone, false
}

func (r *DomainRegistry) byFlag(f types.DomainFlag) *entry {
	for _, e := range r.entries {
		if e.d.Flag() == f {
			return e
		}
	}
	return nil
}

// RequestHold extends a domain's countdown. A zero timeout selects the
// domain default; the floor guards against the tick resolution; and the
// maximum of pending and requested wins, so no holder can shorten another's
// grant.
func (r *DomainRegistry) RequestHold(f types.DomainFlag, timeoutMs uint32) {
	e := r.byFlag(f)
	if e == nil {
		return
	}
	if timeoutMs == 0 {
		timeoutMs = e.defMs
	}
	timeoutMs = mathx.FloorAt(timeoutMs, types.MinTimeoutMs)
	e.countdown = mathx.Max(e.countdown, timeoutMs)
}

// Tick advances one domain's countdown by elapsed milliseconds and reports
// whether it expired this tick. An unscheduled domain (countdown 0) never
// expires; an expiring one saturates to 0.
func (r *DomainRegistry) Tick(f types.DomainFlag, elapsedMs uint32) bool {
	e := r.byFlag(f)
	if e == nil || e.countdown == 0 {
		return false
	}
	if elapsedMs >= e.countdown {
		e.countdown = 0
		return true
	}
	e.countdown -= elapsedMs
	return false
}

// ClearCountdown unschedules a domain (forced power-off paths).
func (r *DomainRegistry) ClearCountdown(f types.DomainFlag) {
	if e := r.byFlag(f); e != nil {
		e.countdown = 0
	}
}

// Remaining reports a domain's countdown in milliseconds.
func (r *DomainRegistry) Remaining(f types.DomainFlag) uint32 {
	if e := r.byFlag(f); e != nil {
		return e.countdown
	}
	return 0
}

// DefaultOf reports a domain's effective default timeout.
func (r *DomainRegistry) DefaultOf(f types.DomainFlag) uint32 {
	if e := r.byFlag(f); e != nil {
		return e.defMs
	}
	return 0
}

// ForEach visits drivers in insertion order.
func (r *DomainRegistry) ForEach(fn func(d Domain)) {
	for _, e := range r.entries {
		fn(e.d)
	}
}
