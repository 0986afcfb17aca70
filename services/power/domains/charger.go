// services/power/domains/charger.go
package domains

import (
	"tinygo.org/x/drivers"

	"propcore-go/drivers/ltc4015"
	"propcore-go/types"
)

// Charger gates the battery charge controller over I2C. "Power on" here
// means charging permitted: the rail suspends rather than powers down when
// its hold lapses, so a later grant resumes charging without
// reconfiguration.
type Charger struct {
	dev *ltc4015.Device
}

// NewCharger wires the charge controller on bus at addr (0 selects the
// controller's default address).
func NewCharger(bus drivers.I2C, addr uint16) *Charger {
	return &Charger{dev: ltc4015.New(bus, addr)}
}

func (*Charger) Flag() types.DomainFlag { return types.DomainCharger }
func (*Charger) Name() string           { return "CHG" }
func (*Charger) DefaultTimeout() uint32 { return 0 } // registry default

// Setup parks the controller suspended; charging starts on the first grant.
func (c *Charger) Setup() error {
	return c.dev.SuspendCharging(true)
}

func (c *Charger) SetPower(on bool) {
	// Countdown lapse is not an error path; a NAK leaves the previous
	// charge state until the next transition.
	_ = c.dev.SuspendCharging(!on)
}
