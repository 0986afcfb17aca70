// services/power/internal/pwrcore/types.go
package pwrcore

import (
	"tinygo.org/x/drivers"

	"propcore-go/types"
)

// ---- GPIO abstractions ----

type Pull uint8

const (
	PullNone Pull = iota
	PullUp
	PullDown
)

// Pin is one GPIO line as the power engine sees it: a push-pull output while
// its rail is driven, an analog/floating input for lowest leakage otherwise.
type Pin interface {
	ConfigureOutput(initial bool)
	ConfigureAnalog(pull Pull)
	Set(level bool)
	Get() bool
	Number() int
}

// Edge selection for wake IRQs.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
)

// WakePin extends Pin with edge interrupts. Handlers run in interrupt
// context: they must not block and may only touch the wake record.
type WakePin interface {
	Pin
	SetIRQ(edge Edge, handler func()) error
	ClearIRQ() error
}

// PinFactory supplies GPIO pins by the board numbering scheme
// (number = bank*16 + index).
type PinFactory interface {
	ByNumber(n int) (Pin, bool)
}

// ---- I/O bank snapshots ----

// PinState holds the per-pin register fields the sleep protocol is allowed
// to touch. Restore writes these fields and nothing else.
type PinState struct {
	Mode       uint8
	OutputType uint8
	Speed      uint8
	Pull       uint8
	AltFunc    uint8
}

// BankSnapshot captures one I/O bank.
type BankSnapshot struct {
	Bank string
	Pins [16]PinState
}

// BankMask selects pins of one bank for the low-power reconfiguration.
// A set bit means "force this pin to analog/floating".
type BankMask struct {
	Bank string
	Mask uint16
}

// PinBanks provides whole-bank capture and restore around deep sleep.
type PinBanks interface {
	Snapshot(bank string) (BankSnapshot, error)
	// Restore writes back exactly the PinState fields of a snapshot,
	// leaving every other per-pin register field untouched.
	Restore(snap BankSnapshot) error
	SetAnalogMask(bank string, mask uint16) error
}

// ---- Sleep machinery ----

// TickSource gates the periodic evaluation tick around a halt.
type TickSource interface {
	Enable()
	Disable()
}

// Halter suspends the CPU until an armed wake event. If no source is armed
// the halt never returns; that is a configuration bug, not a runtime one.
type Halter interface {
	Halt(mode types.HaltMode)
}

// RTCAlarm delivers a coarse periodic callback while halted. Detach must be
// idempotent.
type RTCAlarm interface {
	Attach(periodMs uint32, fn func())
	Detach()
}

// ChargerProbe samples the external charger-present condition during the RTC
// poll. Probe enables the detect path and reads it; Idle returns the probe
// pins to their low-power state after a negative sample.
type ChargerProbe interface {
	Probe() bool
	Idle()
}

// Clock is the monotonic elapsed-time source for the evaluation tick.
type Clock interface {
	NowMs() int64
}

// ---- Buses ----

// I2CBusFactory injects configured I²C instances by id.
// Uses the TinyGo drivers.I2C interface to remain compatible on MCU builds.
type I2CBusFactory interface {
	ByID(id string) (drivers.I2C, bool)
}

// ---- Assembled platform ----

// Platform bundles everything the power coordinator borrows from the
// hardware layer. Factories in the platform package build one per target.
type Platform struct {
	Pins     PinFactory
	Banks    PinBanks
	Buses    I2CBusFactory
	Ticker   TickSource
	Halter   Halter
	Clock    Clock
	RTC      RTCAlarm
	Probe    ChargerProbe
	Button   WakePin
	SerialRX WakePin
	// WakeKick is called from interrupt context once the wake record has
	// been latched, on targets where the halt does not return on its own
	// (the host fake). Nil where the halt instruction itself returns.
	WakeKick func()
	// DrainSerial discards bytes buffered on the console UART, used after a
	// serial-line wake so the waking noise is not parsed as a command.
	// Optional.
	DrainSerial func()
	// LowPower lists, per bank, the pins parked to analog for the halt.
	// Wake and always-on pins are excluded from the masks.
	LowPower []BankMask
}
