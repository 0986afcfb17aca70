package types

// ------------------------
// Power domains
// ------------------------

// DomainFlag is a single power-rail identity bit. Flags are OR-ed into a
// DomainSet; at most one live driver may carry a given flag.
type DomainFlag uint8

const (
	DomainNone      DomainFlag = 0
	DomainCPU       DomainFlag = 1 << 0
	DomainStorage   DomainFlag = 1 << 1
	DomainBooster   DomainFlag = 1 << 2
	DomainAmplifier DomainFlag = 1 << 3
	DomainPixel     DomainFlag = 1 << 4
	DomainCharger   DomainFlag = 1 << 5
)

// DomainSet is a binary map of DomainFlag bits.
type DomainSet = DomainFlag

// Has reports whether every bit of sub is set in s.
func (s DomainFlag) Has(sub DomainFlag) bool { return s&sub == sub }

// Timeouts, in milliseconds.
const (
	MinTimeoutMs       uint32 = 20 // floor, guards against tick resolution races
	DefaultTimeoutMs   uint32 = 1000
	AmplifierTimeoutMs uint32 = 50
	CPUTimeoutMs       uint32 = 60000
	StorageTimeoutMs   uint32 = 5000 // allow longer for pre-loop mounts
)

// StartupDomains are turned on at Setup and after every wake.
const StartupDomains DomainSet = DomainCPU

// ------------------------
// Wake sources
// ------------------------

// WakeSource identifies the external event credited with ending a sleep
// cycle. Written once per cycle from interrupt context, first writer wins.
type WakeSource uint8

const (
	WakeNone WakeSource = iota
	WakeButton
	WakeSerial
	WakeRTC
)

func (w WakeSource) String() string {
	switch w {
	case WakeButton:
		return "button"
	case WakeSerial:
		return "serial"
	case WakeRTC:
		return "rtc"
	default:
		return "none"
	}
}

// HaltMode selects the CPU halt entry instruction.
type HaltMode uint8

const (
	HaltWFI HaltMode = iota + 1 // wait-for-interrupt
	HaltWFE                     // wait-for-event
)

// ------------------------
// Bus payloads
// ------------------------

// PowerState is the retained payload on the power/state topic.
type PowerState struct {
	Domains DomainSet `json:"domains"`
	TS      int64     `json:"ts_ms"`
}

// WakeReport is published on power/wake after each sleep cycle.
type WakeReport struct {
	Source  WakeSource `json:"source"`
	SleptMs int64      `json:"slept_ms"`
	TS      int64      `json:"ts_ms"`
	Discard bool       `json:"discard,omitempty"` // serial wake: waking bytes dropped
}

// Generic pairing of a bit value with a printable name.
// T is a uint8-like flag type (e.g. DomainFlag).
type BitName[T ~uint8] struct {
	Bit  T
	Name string
}

// BitIter is a zero-alloc iterator over set bits in a value, filtered by a
// table. Caller advances with Next(); no callbacks, no closures.
type BitIter[T ~uint8] struct {
	v     uint8
	i     int
	table []BitName[T]
}

// NewBitIter constructs an iterator over set bits present in v that also exist in table.
func NewBitIter[T ~uint8](v T, table []BitName[T]) BitIter[T] {
	return BitIter[T]{v: uint8(v), table: table}
}

// Next returns the next SET bit: (name, ok). ok=false when done.
func (it *BitIter[T]) Next() (string, bool) {
	for it.i < len(it.table) {
		e := it.table[it.i]
		it.i++
		if (it.v & uint8(e.Bit)) != 0 {
			return e.Name, true
		}
	}
	return "", false
}

// Reset allows reusing the iterator.
func (it *BitIter[T]) Reset() { it.i = 0 }

// DomainTable orders domains for display (ordering is cosmetic).
var DomainTable = [...]BitName[DomainFlag]{
	{DomainCPU, "CPU"},
	{DomainStorage, "SD"},
	{DomainBooster, "BST"},
	{DomainAmplifier, "AMP"},
	{DomainPixel, "PIX"},
	{DomainCharger, "CHG"},
}

// DomainSetString renders a DomainSet as "CPU|SD|..." for diagnostics.
func DomainSetString(s DomainSet) string {
	if s == DomainNone {
		return "none"
	}
	out := ""
	it := NewBitIter(s, DomainTable[:])
	for name, ok := it.Next(); ok; name, ok = it.Next() {
		if out != "" {
			out += "|"
		}
		out += name
	}
	return out
}
