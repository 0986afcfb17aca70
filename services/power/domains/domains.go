// services/power/domains/domains.go
//
// One driver per switchable rail. Each driver carries its identity flag, a
// short diagnostic name and its default hold timeout; SetPower is the only
// operation with hardware side effects.
package domains

import (
	"propcore-go/services/power/internal/pwrcore"
	"propcore-go/types"
)

// CPU is the virtual rail gating deep sleep: its expiry with nothing else
// active sends the whole device to halt. No hardware of its own.
type CPU struct{}

func NewCPU() *CPU { return &CPU{} }

func (*CPU) Flag() types.DomainFlag { return types.DomainCPU }
func (*CPU) Name() string           { return "CPU" }
func (*CPU) DefaultTimeout() uint32 { return types.CPUTimeoutMs }
func (*CPU) Setup() error           { return nil }
func (*CPU) SetPower(bool)          {}

// Storage switches the SD rail. Active low: driving 0 powers the card.
type Storage struct {
	pin pwrcore.Pin
}

func NewStorage(pin pwrcore.Pin) *Storage { return &Storage{pin: pin} }

func (*Storage) Flag() types.DomainFlag { return types.DomainStorage }
func (*Storage) Name() string           { return "SD" }
func (*Storage) DefaultTimeout() uint32 { return types.StorageTimeoutMs }
func (*Storage) Setup() error           { return nil }

func (s *Storage) SetPower(on bool) {
	s.pin.ConfigureOutput(!on)
}

// Booster switches the voltage booster enable line.
type Booster struct {
	pin pwrcore.Pin
}

func NewBooster(pin pwrcore.Pin) *Booster { return &Booster{pin: pin} }

func (*Booster) Flag() types.DomainFlag { return types.DomainBooster }
func (*Booster) Name() string           { return "BST" }
func (*Booster) DefaultTimeout() uint32 { return 0 } // registry default
func (*Booster) Setup() error           { return nil }

func (b *Booster) SetPower(on bool) {
	if on {
		b.pin.ConfigureOutput(true)
		return
	}
	b.pin.Set(false)
}

// Amplifier switches the audio amplifier enable line. Off parks the pin as
// analog input and lets the external pull-down hold the amplifier down.
type Amplifier struct {
	pin pwrcore.Pin
}

func NewAmplifier(pin pwrcore.Pin) *Amplifier { return &Amplifier{pin: pin} }

func (*Amplifier) Flag() types.DomainFlag { return types.DomainAmplifier }
func (*Amplifier) Name() string           { return "AMP" }
func (*Amplifier) DefaultTimeout() uint32 { return types.AmplifierTimeoutMs }
func (*Amplifier) Setup() error           { return nil }

func (a *Amplifier) SetPower(on bool) {
	if on {
		a.pin.ConfigureOutput(true)
		return
	}
	a.pin.ConfigureAnalog(pwrcore.PullDown)
}

// Pixel switches the pixel-strip rail enable. The output mode itself gates
// the rail; analog mode is the lowest-leakage off state.
type Pixel struct {
	pin pwrcore.Pin
}

func NewPixel(pin pwrcore.Pin) *Pixel { return &Pixel{pin: pin} }

func (*Pixel) Flag() types.DomainFlag { return types.DomainPixel }
func (*Pixel) Name() string           { return "PIX" }
func (*Pixel) DefaultTimeout() uint32 { return 0 } // registry default

func (p *Pixel) Setup() error {
	p.pin.ConfigureAnalog(pwrcore.PullNone)
	return nil
}

func (p *Pixel) SetPower(on bool) {
	if on {
		p.pin.ConfigureOutput(true)
		return
	}
	p.pin.ConfigureAnalog(pwrcore.PullNone)
}
