// services/power/power_test.go
package power

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"propcore-go/services/power/internal/wake"
	"propcore-go/services/power/platform"
	"propcore-go/types"
)

// bench wires a manager over the host fakes with scriptable rail drivers.
type bench struct {
	pm   *PowerManager
	host *platform.Host
	doms map[types.DomainFlag]*testDomain
	log  []string
}

func newBench(t *testing.T, opts Options) *bench {
	t.Helper()
	b := &bench{host: platform.NewHost(), doms: map[types.DomainFlag]*testDomain{}}
	opts.Log = zerolog.Nop()
	opts.Platform = b.host.Platform()
	b.pm = New(opts)

	for _, d := range []*testDomain{
		{flag: types.DomainCPU, name: "CPU", defMs: types.CPUTimeoutMs},
		{flag: types.DomainStorage, name: "SD", defMs: types.StorageTimeoutMs},
		{flag: types.DomainBooster, name: "BST"},
		{flag: types.DomainAmplifier, name: "AMP", defMs: types.AmplifierTimeoutMs},
		{flag: types.DomainPixel, name: "PIX"},
	} {
		d.log = &b.log
		b.doms[d.flag] = d
		if err := b.pm.AddDomain(d); err != nil {
			t.Fatalf("AddDomain(%s): %v", d.name, err)
		}
	}
	if err := b.pm.Setup(); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	b.log = b.log[:0] // drop startup transitions
	return b
}

// pressButtonOnArm fires one button falling edge once the wake sources arm.
func pressButtonOnArm(h *platform.Host) {
	go func() {
		btn := h.PinsF.Get(platform.PinButton)
		for i := 0; i < 10000 && !btn.Armed(); i++ {
			time.Sleep(time.Millisecond)
		}
		btn.Set(true)
		btn.Set(false)
	}()
}

func TestSetupActivatesStartupSet(t *testing.T) {
	b := newBench(t, Options{})
	if got := b.pm.State(); got != types.StartupDomains {
		t.Fatalf("state = %s, want %s",
			types.DomainSetString(got), types.DomainSetString(types.StartupDomains))
	}
	if !b.doms[types.DomainCPU].on {
		t.Fatal("CPU rail not driven on")
	}
	if got := b.pm.Registry().Remaining(types.DomainCPU); got != types.CPUTimeoutMs {
		t.Fatalf("CPU countdown = %d, want default %d", got, types.CPUTimeoutMs)
	}
}

func TestActivateIdempotent(t *testing.T) {
	b := newBench(t, Options{})
	acquired := 0
	if _, err := b.pm.Register(SubscriberSpec{
		Name:       "fx",
		Domains:    types.DomainStorage,
		OnAcquired: func() { acquired++ },
	}); err != nil {
		t.Fatal(err)
	}

	if !b.pm.Activate(types.DomainStorage | types.DomainPixel) {
		t.Fatal("first activate reported no change")
	}
	if acquired != 1 {
		t.Fatalf("acquired = %d after first activate, want 1", acquired)
	}
	if b.pm.Activate(types.DomainStorage | types.DomainPixel) {
		t.Fatal("second activate reported change")
	}
	if acquired != 1 {
		t.Fatalf("acquired = %d after repeat activate, want 1", acquired)
	}
}

func TestRegisterRejectsEmptySet(t *testing.T) {
	b := newBench(t, Options{})
	if _, err := b.pm.Register(SubscriberSpec{Name: "empty"}); err == nil {
		t.Fatal("empty domain set accepted")
	}
}

func TestRequestPowerTimeoutsAlignToFlagOrder(t *testing.T) {
	b := newBench(t, Options{})
	s, err := b.pm.Register(SubscriberSpec{
		Name:    "audio",
		Domains: types.DomainStorage | types.DomainAmplifier,
	})
	if err != nil {
		t.Fatal(err)
	}

	if !s.RequestPower(500, 100) {
		t.Fatal("request reported no transition")
	}
	if !s.IsSatisfied() {
		t.Fatal("subscriber unsatisfied after request")
	}
	reg := b.pm.Registry()
	if got := reg.Remaining(types.DomainStorage); got != 500 {
		t.Fatalf("SD countdown = %d, want 500", got)
	}
	if got := reg.Remaining(types.DomainAmplifier); got != 100 {
		t.Fatalf("AMP countdown = %d, want 100", got)
	}
}

func TestRequestPowerAcquiredFiresAfterAllTransitions(t *testing.T) {
	b := newBench(t, Options{})
	s, err := b.pm.Register(SubscriberSpec{
		Name:    "audio",
		Domains: types.DomainStorage | types.DomainAmplifier,
		OnAcquired: func() {
			b.log = append(b.log, "acquired")
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	s.RequestPower()
	want := []string{"SD on", "AMP on", "acquired"}
	if len(b.log) != len(want) {
		t.Fatalf("events = %v, want %v", b.log, want)
	}
	for i := range want {
		if b.log[i] != want[i] {
			t.Fatalf("events = %v, want %v", b.log, want)
		}
	}

	// Already powered: holds refresh, nothing transitions, no callback.
	b.log = b.log[:0]
	if s.RequestPower() {
		t.Fatal("repeat request reported transition")
	}
	if len(b.log) != 0 {
		t.Fatalf("events on repeat request: %v", b.log)
	}
}

func TestNoExpiryNoChange(t *testing.T) {
	b := newBench(t, Options{})
	lost := 0
	if _, err := b.pm.Register(SubscriberSpec{
		Name:    "core",
		Domains: types.DomainCPU,
		OnLost:  func() { lost++ },
	}); err != nil {
		t.Fatal(err)
	}

	before := b.pm.State()
	for i := 0; i < 100; i++ {
		b.pm.Evaluate(10) // well under the 60 s CPU hold
	}
	if b.pm.State() != before {
		t.Fatalf("state changed: %s", types.DomainSetString(b.pm.State()))
	}
	if lost != 0 || len(b.log) != 0 {
		t.Fatalf("callbacks on no-change ticks: lost=%d events=%v", lost, b.log)
	}
}

func TestOnLostBeforePowerOff(t *testing.T) {
	b := newBench(t, Options{})
	lost := 0
	s, err := b.pm.Register(SubscriberSpec{
		Name:    "audio",
		Domains: types.DomainStorage | types.DomainAmplifier,
		OnLost: func() {
			lost++
			b.log = append(b.log, "lost")
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	s.RequestPower(100, 100)
	b.log = b.log[:0]

	// Both domains expire on the same tick: one on-lost, strictly before
	// either rail switches off, rails off in descending flag order.
	b.pm.Evaluate(100)
	want := []string{"lost", "AMP off", "SD off"}
	if len(b.log) != len(want) {
		t.Fatalf("events = %v, want %v", b.log, want)
	}
	for i := range want {
		if b.log[i] != want[i] {
			t.Fatalf("events = %v, want %v", b.log, want)
		}
	}
	if lost != 1 {
		t.Fatalf("lost = %d, want 1", lost)
	}
	if s.IsSatisfied() {
		t.Fatal("subscriber still satisfied")
	}
}

func TestHoldPausesCountdown(t *testing.T) {
	b := newBench(t, Options{})
	holding := true
	s, err := b.pm.Register(SubscriberSpec{
		Name:    "amp",
		Domains: types.DomainAmplifier,
		Hold:    func() bool { return holding },
	})
	if err != nil {
		t.Fatal(err)
	}
	s.RequestPower() // AMP default 50 ms

	for i := 0; i < 20; i++ {
		b.pm.Evaluate(100) // held: time pauses
	}
	if !b.pm.State().Has(types.DomainAmplifier) {
		t.Fatal("held domain expired")
	}
	if got := b.pm.Registry().Remaining(types.DomainAmplifier); got != types.AmplifierTimeoutMs {
		t.Fatalf("held countdown = %d, want untouched %d", got, types.AmplifierTimeoutMs)
	}

	holding = false
	b.pm.Evaluate(types.AmplifierTimeoutMs)
	if b.pm.State().Has(types.DomainAmplifier) {
		t.Fatal("released domain survived expiry")
	}
}

func TestStorageAmplifierScenario(t *testing.T) {
	b := newBench(t, Options{})
	lost := 0
	s, err := b.pm.Register(SubscriberSpec{
		Name:    "audio",
		Domains: types.DomainStorage | types.DomainAmplifier,
		OnLost:  func() { lost++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	s.RequestPower(500, 100)

	b.pm.Evaluate(150)
	if b.pm.State().Has(types.DomainAmplifier) {
		t.Fatal("AMP still on after 150 ms of a 100 ms hold")
	}
	if !b.pm.State().Has(types.DomainStorage) {
		t.Fatal("SD expired after 150 ms of a 500 ms hold")
	}
	if s.IsSatisfied() {
		t.Fatal("subscriber still satisfied")
	}
	if lost != 1 {
		t.Fatalf("lost = %d, want 1", lost)
	}
	if b.doms[types.DomainAmplifier].on {
		t.Fatal("AMP rail still driven")
	}
}

func TestCPUExpiryEntersSleepAndReactivates(t *testing.T) {
	b := newBench(t, Options{Wake: wake.Sources{Button: true}})
	pressButtonOnArm(b.host)

	// 1200 ticks of 50 ms walk the 60 s CPU hold down to expiry; with no
	// other domain active the manager must halt and come back on the button.
	for i := 0; i < 1200; i++ {
		if b.pm.State() == types.DomainNone {
			t.Fatalf("slept early, tick %d", i)
		}
		b.pm.Evaluate(50)
	}
	if got := b.host.Halter.Halts; got != 1 {
		t.Fatalf("halts = %d, want 1", got)
	}
	if !b.host.Ticker.Enabled() {
		t.Fatal("tick source not re-enabled after wake")
	}
	if got := b.pm.State(); got != types.StartupDomains {
		t.Fatalf("state after wake = %s, want startup set", types.DomainSetString(got))
	}
	if got := b.pm.Registry().Remaining(types.DomainCPU); got != types.CPUTimeoutMs {
		t.Fatalf("CPU countdown after wake = %d, want %d", got, types.CPUTimeoutMs)
	}
	if btn := b.host.PinsF.Get(platform.PinButton); btn.Armed() {
		t.Fatal("button IRQ still armed after wake")
	}
}

func TestLoopSkipsStaleTick(t *testing.T) {
	b := newBench(t, Options{TickMs: 10})
	reg := b.pm.Registry()
	before := reg.Remaining(types.DomainCPU)

	// Backdate the previous tick far enough that the measured elapsed time
	// exceeds the staleness bound; the tick must not touch any countdown.
	b.pm.lastMs = b.pm.plat.Clock.NowMs() - 500
	b.pm.Loop()
	if got := reg.Remaining(types.DomainCPU); got != before {
		t.Fatalf("stale tick decremented countdown: %d -> %d", before, got)
	}
}
