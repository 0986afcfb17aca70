// services/power/domains/domains_test.go
package domains

import (
	"testing"

	"propcore-go/drivers/ltc4015"
	"propcore-go/services/power/internal/pwrcore"
	"propcore-go/services/power/platform"
)

func TestStorageActiveLow(t *testing.T) {
	var pins platform.HostPinFactory
	s := NewStorage(pins.Get(platform.PinStoragePower))

	s.SetPower(true)
	if pins.Get(platform.PinStoragePower).Get() {
		t.Fatal("SD enable driven high for on (rail is active low)")
	}
	s.SetPower(false)
	if !pins.Get(platform.PinStoragePower).Get() {
		t.Fatal("SD enable driven low for off")
	}
}

func TestAmplifierParksAnalogOff(t *testing.T) {
	var pins platform.HostPinFactory
	pin := pins.Get(platform.PinAmplifier)
	a := NewAmplifier(pin)

	a.SetPower(true)
	if !pin.Get() {
		t.Fatal("amplifier enable not driven high")
	}
	a.SetPower(false)
	if st := pin.State(); st.Pull != uint8(pwrcore.PullDown) {
		t.Fatalf("amplifier off pull = %d, want pull-down", st.Pull)
	}
}

func TestPixelSetupParksAnalog(t *testing.T) {
	var pins platform.HostPinFactory
	pin := pins.Get(platform.PinPixelEnable)
	pin.ConfigureOutput(true)

	p := NewPixel(pin)
	if err := p.Setup(); err != nil {
		t.Fatal(err)
	}
	if st := pin.State(); st.Mode != 0 {
		t.Fatalf("pixel pin mode = %d after setup, want analog", st.Mode)
	}
}

func TestChargerSuspendWireFormat(t *testing.T) {
	i2c := &platform.HostI2C{}
	c := NewCharger(i2c, 0)

	// Setup parks the controller suspended: read CONFIG_BITS (zero on the
	// fake), then write it back with the suspend bit set, low byte first.
	if err := c.Setup(); err != nil {
		t.Fatal(err)
	}
	if i2c.LastTx.Addr != ltc4015.AddressDefault {
		t.Fatalf("addr = %#x, want %#x", i2c.LastTx.Addr, ltc4015.AddressDefault)
	}
	want := []byte{0x14, 0x00, 0x01} // CONFIG_BITS, suspend = bit 8
	if len(i2c.LastTx.W) != 3 || i2c.LastTx.W[0] != want[0] ||
		i2c.LastTx.W[1] != want[1] || i2c.LastTx.W[2] != want[2] {
		t.Fatalf("setup write = %v, want %v", i2c.LastTx.W, want)
	}

	// On: the fake reads back zero, the suspend bit is already clear, so the
	// read-modify-write stops after the read.
	c.SetPower(true)
	if len(i2c.LastTx.W) != 1 || i2c.LastTx.Rn != 2 {
		t.Fatalf("on tx = %v rn=%d, want bare register read", i2c.LastTx.W, i2c.LastTx.Rn)
	}

	c.SetPower(false)
	if len(i2c.LastTx.W) != 3 || i2c.LastTx.W[2] != 0x01 {
		t.Fatalf("off write = %v, suspend bit not set", i2c.LastTx.W)
	}
}
