// services/power/platform/factories_rp2xxx.go
//go:build rp2040 || rp2350

package platform

import (
	"device/arm"
	"machine"
	"sync"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"

	"propcore-go/services/power/internal/pwrcore"
	"propcore-go/types"
	"propcore-go/x/timex"
)

// -----------------------------------------------------------------------------
// Power platform on the RP2 family. Pin snapshots go through a shadow of the
// configurations this engine applied, since the pad registers are not exposed
// bank-wise by the machine package.
// -----------------------------------------------------------------------------

type rp2Pin struct {
	p machine.Pin
	n int
	f *rp2PinFactory
}

type rp2PinFactory struct {
	mu     sync.Mutex
	shadow map[int]pwrcore.PinState
}

func (f *rp2PinFactory) ByNumber(n int) (pwrcore.Pin, bool) {
	// Constrain to the RP2 user GPIOs (GP0..GP28).
	if n < 0 || n > 28 {
		return nil, false
	}
	return &rp2Pin{p: machine.Pin(n), n: n, f: f}, true
}

func (f *rp2PinFactory) record(n int, st pwrcore.PinState) {
	f.mu.Lock()
	f.shadow[n] = st
	f.mu.Unlock()
}

func (f *rp2PinFactory) stateOf(n int) pwrcore.PinState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shadow[n]
}

func (f *rp2PinFactory) apply(n int, st pwrcore.PinState) {
	// Bank masks span 16 pins each but the RP2 only wires GP0..GP28;
	// machine.Pin.Configure faults past that.
	if n < 0 || n > 28 {
		return
	}
	p := machine.Pin(n)
	switch st.Mode {
	case 1:
		p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	case 2:
		p.Configure(machine.PinConfig{Mode: machine.PinInput})
	default:
		p.Configure(machine.PinConfig{Mode: machine.PinAnalog})
	}
	f.record(n, st)
}

func (r *rp2Pin) ConfigureOutput(initial bool) {
	r.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	r.p.Set(initial)
	r.f.record(r.n, pwrcore.PinState{Mode: 1})
}

func (r *rp2Pin) ConfigureAnalog(pull pwrcore.Pull) {
	r.p.Configure(machine.PinConfig{Mode: machine.PinAnalog})
	r.f.record(r.n, pwrcore.PinState{Mode: 0, Pull: uint8(pull)})
}

func (r *rp2Pin) Set(level bool) { r.p.Set(level) }
func (r *rp2Pin) Get() bool      { return r.p.Get() }
func (r *rp2Pin) Number() int    { return r.n }

func (r *rp2Pin) SetIRQ(edge pwrcore.Edge, handler func()) error {
	var change machine.PinChange
	switch edge {
	case pwrcore.EdgeRising:
		change = machine.PinRising
	case pwrcore.EdgeFalling:
		change = machine.PinFalling
	}
	return r.p.SetInterrupt(change, func(machine.Pin) { handler() })
}

func (r *rp2Pin) ClearIRQ() error {
	var zero machine.PinChange
	return r.p.SetInterrupt(zero, nil)
}

type rp2Banks struct{ f *rp2PinFactory }

func (b *rp2Banks) Snapshot(bank string) (pwrcore.BankSnapshot, error) {
	base, ok := BankBase(bank)
	if !ok {
		return pwrcore.BankSnapshot{}, errUnknownBank(bank)
	}
	snap := pwrcore.BankSnapshot{Bank: bank}
	for i := 0; i < 16; i++ {
		snap.Pins[i] = b.f.stateOf(base + i)
	}
	return snap, nil
}

func (b *rp2Banks) Restore(snap pwrcore.BankSnapshot) error {
	base, ok := BankBase(snap.Bank)
	if !ok {
		return errUnknownBank(snap.Bank)
	}
	for i := 0; i < 16; i++ {
		b.f.apply(base+i, snap.Pins[i])
	}
	return nil
}

func (b *rp2Banks) SetAnalogMask(bank string, mask uint16) error {
	base, ok := BankBase(bank)
	if !ok {
		return errUnknownBank(bank)
	}
	for i := 0; i < 16; i++ {
		if mask&(1<<i) != 0 {
			b.f.apply(base+i, pwrcore.PinState{Mode: 0})
		}
	}
	return nil
}

// ----------------------------- I²C -------------------------------------------

type rp2I2CFactory struct{ buses map[string]drivers.I2C }

func (f *rp2I2CFactory) ByID(id string) (drivers.I2C, bool) {
	b, ok := f.buses[id]
	return b, ok
}

func defaultI2CFactory() pwrcore.I2CBusFactory {
	f := &rp2I2CFactory{buses: make(map[string]drivers.I2C)}
	b0 := machine.I2C0
	_ = b0.Configure(machine.I2CConfig{
		Frequency: 400 * machine.KHz,
		SDA:       machine.I2C0_SDA_PIN,
		SCL:       machine.I2C0_SCL_PIN,
	})
	f.buses["i2c0"] = b0
	return f
}

// ----------------------------- Sleep machinery --------------------------------

type rp2Ticker struct{}

// The evaluation tick is driven by the scheduler goroutine; nothing to gate
// at the hardware level on this target.
func (rp2Ticker) Enable()  {}
func (rp2Ticker) Disable() {}

type rp2Halter struct{}

func (rp2Halter) Halt(mode types.HaltMode) {
	if mode == types.HaltWFE {
		arm.Asm("sev")
		arm.Asm("wfe")
		arm.Asm("wfe")
		return
	}
	arm.Asm("wfi")
}

type rp2Clock struct{}

func (rp2Clock) NowMs() int64 { return timex.UptimeMs() }

// rp2RTC approximates the RTC alarm with a coarse timer goroutine; the
// TinyGo scheduler keeps timers alive across WFI.
type rp2RTC struct {
	mu   sync.Mutex
	stop chan struct{}
}

func (r *rp2RTC) Attach(periodMs uint32, fn func()) {
	r.Detach()
	r.mu.Lock()
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
				fn()
			}
		}
	}()
}

func (r *rp2RTC) Detach() {
	r.mu.Lock()
	if r.stop != nil {
		close(r.stop)
		r.stop = nil
	}
	r.mu.Unlock()
}

// rp2Probe runs the charge-detect sequence on the probe pins.
type rp2Probe struct {
	detect  machine.Pin
	current machine.Pin
	enable  machine.Pin
}

func (p *rp2Probe) Probe() bool {
	p.detect.Configure(machine.PinConfig{Mode: machine.PinInput})
	p.current.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.enable.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.enable.High()
	time.Sleep(2 * time.Millisecond)
	return !p.detect.Get()
}

func (p *rp2Probe) Idle() {
	p.enable.Low()
	p.current.Configure(machine.PinConfig{Mode: machine.PinAnalog})
	p.enable.Configure(machine.PinConfig{Mode: machine.PinAnalog})
}

func drainSerial() {
	var buf [64]byte
	for uartx.UART0.Buffered() > 0 {
		_, _ = uartx.UART0.Read(buf[:])
	}
}

// NewDevice builds the platform for the RP2 target board.
func NewDevice() *pwrcore.Platform {
	pf := &rp2PinFactory{shadow: make(map[int]pwrcore.PinState)}
	button, _ := pf.ByNumber(PinButton)
	serial, _ := pf.ByNumber(PinSerialRX)
	return &pwrcore.Platform{
		Pins:   pf,
		Banks:  &rp2Banks{f: pf},
		Buses:  defaultI2CFactory(),
		Ticker: rp2Ticker{},
		Halter: rp2Halter{},
		Clock:  rp2Clock{},
		RTC:    &rp2RTC{},
		Probe: &rp2Probe{
			detect:  machine.Pin(PinChargeDetect),
			current: machine.Pin(PinChargeCurrent),
			enable:  machine.Pin(PinChargeEnable),
		},
		Button:      button.(pwrcore.WakePin),
		SerialRX:    serial.(pwrcore.WakePin),
		DrainSerial: drainSerial,
		LowPower:    lowPowerPlan(),
	}
}
