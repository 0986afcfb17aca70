// Package ltc4015 drives the charge-control surface of the LTC4015
// multi-chemistry buck battery charger.
//
// I2C/SMBus word protocol, data-low then data-high. Default 7-bit
// address 0b1101000. Telemetry, coulomb counting and the per-chemistry
// target registers are out of scope here: the power engine only gates
// charging on and off.
package ltc4015

import (
	"tinygo.org/x/drivers"
)

const (
	// AddressDefault is the fixed 7-bit device address.
	AddressDefault = 0x68

	// CONFIG_BITS (0x14), R/W.
	regConfigBits = 0x14
)

// ConfigBits is the CONFIG_BITS register value.
type ConfigBits uint16

const (
	CfgEnableQCount   ConfigBits = 1 << 2
	CfgMPPTEnableI2C  ConfigBits = 1 << 3
	CfgForceMeasSysOn ConfigBits = 1 << 4
	CfgRunBSR         ConfigBits = 1 << 5
	CfgSuspendCharger ConfigBits = 1 << 8
)

func (b ConfigBits) Has(flag ConfigBits) bool { return b&flag != 0 }

// Device talks to one LTC4015. Fixed buffers avoid per-call allocations.
type Device struct {
	i2c  drivers.I2C
	addr uint16
	w    [3]byte
	r    [2]byte
}

// New wires a device on i2c at addr (0 selects AddressDefault).
func New(i2c drivers.I2C, addr uint16) *Device {
	if addr == 0 {
		addr = AddressDefault
	}
	return &Device{i2c: i2c, addr: addr}
}

// ReadConfig reads CONFIG_BITS.
func (d *Device) ReadConfig() (ConfigBits, error) {
	v, err := d.readWord(regConfigBits)
	return ConfigBits(v), err
}

// WriteConfig overwrites CONFIG_BITS.
func (d *Device) WriteConfig(v ConfigBits) error { return d.writeWord(regConfigBits, uint16(v)) }

// UpdateConfig applies a read-modify-write: set wins over clear.
func (d *Device) UpdateConfig(set, clear ConfigBits) error {
	cur, err := d.ReadConfig()
	if err != nil {
		return err
	}
	next := (cur &^ clear) | set
	if next == cur {
		return nil
	}
	return d.WriteConfig(next)
}

// SuspendCharging gates the charger. Suspension pauses charging without
// dropping the device configuration, so resuming needs no reprogramming.
func (d *Device) SuspendCharging(suspend bool) error {
	if suspend {
		return d.UpdateConfig(CfgSuspendCharger, 0)
	}
	return d.UpdateConfig(0, CfgSuspendCharger)
}

// I2C 16-bit word operations, low byte first.

func (d *Device) readWord(reg byte) (uint16, error) {
	d.w[0] = reg
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0]) | uint16(d.r[1])<<8, nil
}

func (d *Device) writeWord(reg byte, val uint16) error {
	d.w[0] = reg
	d.w[1] = byte(val)      // low
	d.w[2] = byte(val >> 8) // high
	return d.i2c.Tx(d.addr, d.w[:3], nil)
}
