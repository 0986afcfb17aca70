// services/power/internal/wake/wake.go
package wake

import (
	"sync"
	"sync/atomic"

	"propcore-go/services/power/internal/pwrcore"
	"propcore-go/types"
)

// Sources selects which triggers to arm for one sleep cycle.
type Sources struct {
	Button bool
	Serial bool
	// RTC polls the charger probe at PeriodMs and latches WakeRTC after
	// Debounce consecutive positive samples. Zero PeriodMs disables it.
	RTCPeriodMs uint32
	RTCDebounce uint8
}

// Controller arms and disarms the external wake triggers and records which
// one ended the halt. The record is a write-once-per-cycle cell: the first
// trigger to latch wins and immediately disarms every source, so
// near-simultaneous triggers never race on it.
type Controller struct {
	button pwrcore.WakePin
	serial pwrcore.WakePin
	rtc    pwrcore.RTCAlarm
	probe  pwrcore.ChargerProbe
	notify func() // interrupt-context kick, may be nil

	record  atomic.Uint32 // types.WakeSource
	rtcHits atomic.Uint32 // consecutive positive probe samples

	mu    sync.Mutex
	armed bool
}

// New builds a controller over the platform's wake hardware. notify is
// invoked from the latch path (interrupt context) after the record is
// written; pass nil where the halt instruction returns on its own.
func New(p *pwrcore.Platform) *Controller {
	return &Controller{
		button: p.Button,
		serial: p.SerialRX,
		rtc:    p.RTC,
		probe:  p.Probe,
		notify: p.WakeKick,
	}
}

// Arm clears the wake record and arms the selected sources. Symmetric with
// Disarm: every source armed here is disarmed by the first latch or by the
// Disarm call after wake.
func (c *Controller) Arm(src Sources) {
	c.mu.Lock()
	c.armed = true
	c.mu.Unlock()

	c.record.Store(uint32(types.WakeNone))
	c.rtcHits.Store(0)

	if src.Button && c.button != nil {
		_ = c.button.SetIRQ(pwrcore.EdgeFalling, func() { c.latch(types.WakeButton) })
	}
	if src.Serial && c.serial != nil {
		_ = c.serial.SetIRQ(pwrcore.EdgeRising, func() { c.latch(types.WakeSerial) })
	}
	if src.RTCPeriodMs > 0 && c.rtc != nil {
		deb := src.RTCDebounce
		if deb == 0 {
			deb = 1
		}
		c.rtc.Attach(src.RTCPeriodMs, func() { c.pollCharger(deb) })
	}
}

// Disarm detaches every source. Idempotent; also called after wake in case
// the latch path did not run (spurious halt exit).
func (c *Controller) Disarm() {
	c.mu.Lock()
	if !c.armed {
		c.mu.Unlock()
		return
	}
	c.armed = false
	c.mu.Unlock()

	if c.button != nil {
		_ = c.button.ClearIRQ()
	}
	if c.serial != nil {
		_ = c.serial.ClearIRQ()
	}
	if c.rtc != nil {
		c.rtc.Detach()
	}
}

// Fired reports the recorded wake source for the finished cycle.
func (c *Controller) Fired() types.WakeSource {
	return types.WakeSource(c.record.Load())
}

// latch records the first wake source and disarms everything. Runs in
// interrupt context; the CompareAndSwap makes first-wake-wins explicit, and
// losing writers return without side effects.
func (c *Controller) latch(src types.WakeSource) {
	if !c.record.CompareAndSwap(uint32(types.WakeNone), uint32(src)) {
		return
	}
	c.Disarm()
	if c.notify != nil {
		c.notify()
	}
}

// pollCharger runs one RTC sample: a positive probe counts toward the
// debounce threshold, a negative one resets it and idles the probe pins.
func (c *Controller) pollCharger(debounce uint8) {
	if c.probe == nil {
		return
	}
	if !c.probe.Probe() {
		c.rtcHits.Store(0)
		c.probe.Idle()
		return
	}
	if c.rtcHits.Add(1) >= uint32(debounce) {
		c.latch(types.WakeRTC)
	}
}
