// services/power/registry_test.go
package power

import (
	"testing"

	"propcore-go/errcode"
	"propcore-go/types"
)

// testDomain is a scriptable rail driver recording its transitions.
type testDomain struct {
	flag  types.DomainFlag
	name  string
	defMs uint32
	log   *[]string
	on    bool
	ons   int
	offs  int
}

func (d *testDomain) Flag() types.DomainFlag { return d.flag }
func (d *testDomain) Name() string           { return d.name }
func (d *testDomain) DefaultTimeout() uint32 { return d.defMs }
func (d *testDomain) Setup() error           { return nil }

func (d *testDomain) SetPower(on bool) {
	d.on = on
	if on {
		d.ons++
	} else {
		d.offs++
	}
	if d.log != nil {
		if on {
			*d.log = append(*d.log, d.name+" on")
		} else {
			*d.log = append(*d.log, d.name+" off")
		}
	}
}

func TestAddRejectsDuplicateFlag(t *testing.T) {
	var r DomainRegistry
	if err := r.Add(&testDomain{flag: types.DomainStorage, name: "SD"}); err != nil {
		t.Fatalf("first add: %v", err)
	}
	err := r.Add(&testDomain{flag: types.DomainStorage, name: "SD2"})
	if errcode.Of(err) != errcode.DuplicateDomain {
		t.Fatalf("want DuplicateDomain, got %v", err)
	}
}

func TestAddRejectsMultiBitFlag(t *testing.T) {
	var r DomainRegistry
	err := r.Add(&testDomain{flag: types.DomainStorage | types.DomainPixel, name: "bad"})
	if errcode.Of(err) != errcode.InvalidArgs {
		t.Fatalf("want InvalidArgs, got %v", err)
	}
}

func TestRequestHoldMaxWins(t *testing.T) {
	var r DomainRegistry
	if err := r.Add(&testDomain{flag: types.DomainStorage, name: "SD", defMs: 5000}); err != nil {
		t.Fatal(err)
	}

	r.RequestHold(types.DomainStorage, 300)
	r.RequestHold(types.DomainStorage, 100) // shorter never shortens
	if got := r.Remaining(types.DomainStorage); got != 300 {
		t.Fatalf("countdown = %d, want 300", got)
	}
	r.RequestHold(types.DomainStorage, 900)
	if got := r.Remaining(types.DomainStorage); got != 900 {
		t.Fatalf("countdown = %d, want 900", got)
	}
}

func TestRequestHoldDefaultAndFloor(t *testing.T) {
	var r DomainRegistry
	if err := r.Add(&testDomain{flag: types.DomainAmplifier, name: "AMP", defMs: 50}); err != nil {
		t.Fatal(err)
	}

	r.RequestHold(types.DomainAmplifier, 0) // 0 selects the driver default
	if got := r.Remaining(types.DomainAmplifier); got != 50 {
		t.Fatalf("countdown = %d, want default 50", got)
	}
	r.ClearCountdown(types.DomainAmplifier)

	r.RequestHold(types.DomainAmplifier, 5) // below floor, clamped up
	if got := r.Remaining(types.DomainAmplifier); got != types.MinTimeoutMs {
		t.Fatalf("countdown = %d, want floor %d", got, types.MinTimeoutMs)
	}
}

func TestRegistryDefaultFallback(t *testing.T) {
	var r DomainRegistry
	// defMs 0 selects the registry-wide default.
	if err := r.Add(&testDomain{flag: types.DomainBooster, name: "BST"}); err != nil {
		t.Fatal(err)
	}
	if got := r.DefaultOf(types.DomainBooster); got != types.DefaultTimeoutMs {
		t.Fatalf("default = %d, want %d", got, types.DefaultTimeoutMs)
	}
}

func TestTickSaturates(t *testing.T) {
	var r DomainRegistry
	if err := r.Add(&testDomain{flag: types.DomainStorage, name: "SD", defMs: 5000}); err != nil {
		t.Fatal(err)
	}

	if r.Tick(types.DomainStorage, 100) {
		t.Fatal("unscheduled domain must never expire")
	}

	r.RequestHold(types.DomainStorage, 100)
	if r.Tick(types.DomainStorage, 60) {
		t.Fatal("expired early")
	}
	if got := r.Remaining(types.DomainStorage); got != 40 {
		t.Fatalf("countdown = %d, want 40", got)
	}
	if !r.Tick(types.DomainStorage, 60) {
		t.Fatal("want expiry when elapsed >= countdown")
	}
	if got := r.Remaining(types.DomainStorage); got != 0 {
		t.Fatalf("countdown = %d after expiry, want 0", got)
	}
	if r.Tick(types.DomainStorage, 60) {
		t.Fatal("second expiry for one grant")
	}
}

func TestByName(t *testing.T) {
	var r DomainRegistry
	if err := r.Add(&testDomain{flag: types.DomainPixel, name: "PIX"}); err != nil {
		t.Fatal(err)
	}
	f, ok := r.ByName("PIX")
	if !ok || f != types.DomainPixel {
		t.Fatalf("ByName(PIX) = %v, %v", f, ok)
	}
	if _, ok := r.ByName("nope"); ok {
		t.Fatal("unknown name resolved")
	}
}

func TestSetDefaultTimeoutOverride(t *testing.T) {
	var r DomainRegistry
	if err := r.Add(&testDomain{flag: types.DomainStorage, name: "SD", defMs: 5000}); err != nil {
		t.Fatal(err)
	}
	r.SetDefaultTimeout(types.DomainStorage, 250)
	r.RequestHold(types.DomainStorage, 0)
	if got := r.Remaining(types.DomainStorage); got != 250 {
		t.Fatalf("countdown = %d, want overridden 250", got)
	}
}
