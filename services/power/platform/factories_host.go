// services/power/platform/factories_host.go
//go:build !rp2040 && !rp2350

package platform

import (
	"sync"
	"time"

	"tinygo.org/x/drivers"

	"propcore-go/services/power/internal/pwrcore"
	"propcore-go/types"
	"propcore-go/x/timex"
)

// ----------------------------- GPIO (host) -----------------------------------

// Pin register field encodings used by the host fakes.
const (
	modeAnalog uint8 = 0
	modeOutput uint8 = 1
	modeInput  uint8 = 2
)

// FakePin implements pwrcore.Pin and pwrcore.WakePin for host-side tests.
// The PinState fields mirror what a bank snapshot captures; level is the
// output data latch and deliberately sits outside the snapshot set.
type FakePin struct {
	mu      sync.Mutex
	number  int
	state   pwrcore.PinState
	level   bool
	irqEdge pwrcore.Edge
	irqFunc func()
}

func (p *FakePin) ConfigureOutput(initial bool) {
	p.mu.Lock()
	p.state.Mode = modeOutput
	p.level = initial
	p.mu.Unlock()
}

func (p *FakePin) ConfigureAnalog(pull pwrcore.Pull) {
	p.mu.Lock()
	p.state.Mode = modeAnalog
	p.state.Pull = uint8(pull)
	p.mu.Unlock()
}

// Set drives the output latch and fires a registered IRQ handler when the
// transition matches the armed edge, ISR-style.
func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	edge := p.irqEdge
	p.mu.Unlock()

	fire := (edge == pwrcore.EdgeRising && !old && level) ||
		(edge == pwrcore.EdgeFalling && old && !level)
	if fire && irq != nil {
		irq()
	}
}

func (p *FakePin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

func (p *FakePin) Number() int { return p.number }

func (p *FakePin) SetIRQ(edge pwrcore.Edge, handler func()) error {
	p.mu.Lock()
	p.irqEdge = edge
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) ClearIRQ() error {
	p.mu.Lock()
	p.irqEdge = pwrcore.EdgeNone
	p.irqFunc = nil
	p.mu.Unlock()
	return nil
}

// Armed reports whether an IRQ handler is currently registered.
func (p *FakePin) Armed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.irqFunc != nil
}

// State returns a copy of the snapshot-visible register fields.
func (p *FakePin) State() pwrcore.PinState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetState overwrites the snapshot-visible fields (test hook).
func (p *FakePin) SetState(s pwrcore.PinState) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// HostPinFactory returns stable *FakePin instances per number.
type HostPinFactory struct {
	mu   sync.Mutex
	pins map[int]*FakePin
}

func (f *HostPinFactory) ByNumber(n int) (pwrcore.Pin, bool) {
	p := f.Get(n)
	return p, true
}

// Get exposes the underlying *FakePin for tests (e.g. to drive wake edges).
func (f *HostPinFactory) Get(n int) *FakePin {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pins == nil {
		f.pins = make(map[int]*FakePin)
	}
	p, ok := f.pins[n]
	if !ok {
		p = &FakePin{number: n}
		f.pins[n] = p
	}
	return p
}

// HostBanks snapshots and restores the fake pins bank-wise.
type HostBanks struct {
	pins *HostPinFactory
}

func (b *HostBanks) Snapshot(bank string) (pwrcore.BankSnapshot, error) {
	base, ok := BankBase(bank)
	if !ok {
		return pwrcore.BankSnapshot{}, errUnknownBank(bank)
	}
	snap := pwrcore.BankSnapshot{Bank: bank}
	for i := 0; i < 16; i++ {
		snap.Pins[i] = b.pins.Get(base + i).State()
	}
	return snap, nil
}

func (b *HostBanks) Restore(snap pwrcore.BankSnapshot) error {
	base, ok := BankBase(snap.Bank)
	if !ok {
		return errUnknownBank(snap.Bank)
	}
	for i := 0; i < 16; i++ {
		b.pins.Get(base + i).SetState(snap.Pins[i])
	}
	return nil
}

func (b *HostBanks) SetAnalogMask(bank string, mask uint16) error {
	base, ok := BankBase(bank)
	if !ok {
		return errUnknownBank(bank)
	}
	for i := 0; i < 16; i++ {
		if mask&(1<<i) != 0 {
			b.pins.Get(base + i).ConfigureAnalog(pwrcore.PullNone)
		}
	}
	return nil
}

// ----------------------------- I²C (host) ------------------------------------

// HostI2C implements tinygo drivers.I2C for host-side tests.
type HostI2C struct {
	mu     sync.Mutex
	LastTx struct {
		Addr uint16
		W    []byte
		Rn   int
	}
	Writes int
}

func (h *HostI2C) Tx(addr uint16, w, r []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastTx.Addr = addr
	h.LastTx.W = append([]byte(nil), w...)
	h.LastTx.Rn = len(r)
	h.Writes++
	return nil
}

type hostI2CFactory struct {
	buses map[string]drivers.I2C
}

func (f *hostI2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

// ----------------------------- Sleep machinery (host) -------------------------

// FakeTicker records the periodic-tick gate state.
type FakeTicker struct {
	mu      sync.Mutex
	enabled bool
}

func (t *FakeTicker) Enable() {
	t.mu.Lock()
	t.enabled = true
	t.mu.Unlock()
}

func (t *FakeTicker) Disable() {
	t.mu.Lock()
	t.enabled = false
	t.mu.Unlock()
}

func (t *FakeTicker) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// FakeHalter blocks Halt until Interrupt is called, standing in for the WFI
// instruction returning on a wake interrupt.
type FakeHalter struct {
	wake chan struct{}

	mu       sync.Mutex
	LastMode types.HaltMode
	Halts    int
}

func NewFakeHalter() *FakeHalter {
	return &FakeHalter{wake: make(chan struct{}, 1)}
}

func (h *FakeHalter) Halt(mode types.HaltMode) {
	h.mu.Lock()
	h.LastMode = mode
	h.Halts++
	h.mu.Unlock()
	<-h.wake
}

// Interrupt unblocks a pending or future Halt. Safe from any goroutine.
func (h *FakeHalter) Interrupt() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// FakeRTC drives the attached callback from a timer goroutine and lets tests
// fire it synchronously with Poke.
type FakeRTC struct {
	mu   sync.Mutex
	fn   func()
	stop chan struct{}
}

func (r *FakeRTC) Attach(periodMs uint32, fn func()) {
	r.Detach()
	r.mu.Lock()
	r.fn = fn
	stop := make(chan struct{})
	r.stop = stop
	r.mu.Unlock()

	go func() {
		tk := time.NewTicker(time.Duration(periodMs) * time.Millisecond)
		defer tk.Stop()
		for {
			select {
			case <-stop:
				return
			case <-tk.C:
				r.Poke()
			}
		}
	}()
}

func (r *FakeRTC) Detach() {
	r.mu.Lock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.fn = nil
	r.mu.Unlock()
}

// Poke invokes the attached callback once, as the alarm interrupt would.
func (r *FakeRTC) Poke() {
	r.mu.Lock()
	fn := r.fn
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Attached reports whether an alarm callback is registered.
func (r *FakeRTC) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fn != nil
}

// FakeProbe is a settable charger-present condition.
type FakeProbe struct {
	mu      sync.Mutex
	present bool
	Probes  int
	Idles   int
}

func (p *FakeProbe) SetPresent(v bool) {
	p.mu.Lock()
	p.present = v
	p.mu.Unlock()
}

func (p *FakeProbe) Probe() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Probes++
	return p.present
}

func (p *FakeProbe) Idle() {
	p.mu.Lock()
	p.Idles++
	p.mu.Unlock()
}

type hostClock struct{}

func (hostClock) NowMs() int64 { return timex.UptimeMs() }

// ----------------------------- Assembly ---------------------------------------

// Host bundles the concrete fakes so tests can reach past the interfaces.
type Host struct {
	PinsF  *HostPinFactory
	Banks  *HostBanks
	I2C0   *HostI2C
	Ticker *FakeTicker
	Halter *FakeHalter
	RTC    *FakeRTC
	Probe  *FakeProbe
}

// NewDevice builds the platform for the current target. On the host that is
// the fake platform; the rp2xxx factory file provides the board variant.
func NewDevice() *pwrcore.Platform {
	return NewHost().Platform()
}

// NewHost builds the host platform with inert hardware fakes.
func NewHost() *Host {
	pins := &HostPinFactory{pins: make(map[int]*FakePin)}
	return &Host{
		PinsF:  pins,
		Banks:  &HostBanks{pins: pins},
		I2C0:   &HostI2C{},
		Ticker: &FakeTicker{enabled: true},
		Halter: NewFakeHalter(),
		RTC:    &FakeRTC{},
		Probe:  &FakeProbe{},
	}
}

// Platform assembles the pwrcore view of the host fakes.
func (h *Host) Platform() *pwrcore.Platform {
	return &pwrcore.Platform{
		Pins:     h.PinsF,
		Banks:    h.Banks,
		Buses:    &hostI2CFactory{buses: map[string]drivers.I2C{"i2c0": h.I2C0}},
		Ticker:   h.Ticker,
		Halter:   h.Halter,
		Clock:    hostClock{},
		RTC:      h.RTC,
		Probe:    h.Probe,
		Button:   h.PinsF.Get(PinButton),
		SerialRX: h.PinsF.Get(PinSerialRX),
		WakeKick: h.Halter.Interrupt,
		LowPower: lowPowerPlan(),
	}
}
