package ltc4015

import "testing"

// fakeI2C serves CONFIG_BITS from a register backing store.
type fakeI2C struct {
	cfg    uint16
	reads  int
	writes int
}

func (f *fakeI2C) Tx(addr uint16, w, r []byte) error {
	if len(w) >= 1 && w[0] == regConfigBits {
		switch {
		case len(w) == 3:
			f.cfg = uint16(w[1]) | uint16(w[2])<<8
			f.writes++
		case len(r) == 2:
			r[0] = byte(f.cfg)
			r[1] = byte(f.cfg >> 8)
			f.reads++
		}
	}
	return nil
}

func TestSuspendChargingRoundTrip(t *testing.T) {
	bus := &fakeI2C{}
	d := New(bus, 0)

	if err := d.SuspendCharging(true); err != nil {
		t.Fatal(err)
	}
	if !ConfigBits(bus.cfg).Has(CfgSuspendCharger) {
		t.Fatalf("cfg = %#x, suspend bit not set", bus.cfg)
	}
	if err := d.SuspendCharging(false); err != nil {
		t.Fatal(err)
	}
	if ConfigBits(bus.cfg).Has(CfgSuspendCharger) {
		t.Fatalf("cfg = %#x, suspend bit still set", bus.cfg)
	}
}

func TestUpdateConfigPreservesOtherBits(t *testing.T) {
	bus := &fakeI2C{cfg: uint16(CfgRunBSR | CfgEnableQCount)}
	d := New(bus, 0)

	if err := d.UpdateConfig(CfgSuspendCharger, 0); err != nil {
		t.Fatal(err)
	}
	want := CfgRunBSR | CfgEnableQCount | CfgSuspendCharger
	if ConfigBits(bus.cfg) != want {
		t.Fatalf("cfg = %#x, want %#x", bus.cfg, uint16(want))
	}
}

func TestUpdateConfigSkipsRedundantWrite(t *testing.T) {
	bus := &fakeI2C{cfg: uint16(CfgSuspendCharger)}
	d := New(bus, 0)

	if err := d.UpdateConfig(CfgSuspendCharger, 0); err != nil {
		t.Fatal(err)
	}
	if bus.writes != 0 {
		t.Fatalf("writes = %d for a no-op update", bus.writes)
	}
	if bus.reads != 1 {
		t.Fatalf("reads = %d, want 1", bus.reads)
	}
}
