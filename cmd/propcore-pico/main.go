// cmd/propcore-pico/main.go
//
// Firmware entry point: runs the power engine against the target platform
// and reports state and wake events on the console. Build with the rp2040
// or rp2350 tag for hardware; on the host it runs against the fakes.
package main

import (
	"time"

	"github.com/rs/zerolog"

	"propcore-go/bus"
	"propcore-go/config"
	"propcore-go/services/power"
	"propcore-go/services/power/domains"
	"propcore-go/services/power/platform"
	"propcore-go/types"
)

func main() {
	cfg := config.Default()
	plat := platform.NewDevice()

	bb := bus.New(16)
	conn := bb.NewConnection("main")
	stateSub := conn.Subscribe(bus.T("power", "state"))
	wakeSub := conn.Subscribe(bus.T("power", "wake"))

	pm := power.New(power.Options{
		Log:      zerolog.Nop(),
		Platform: plat,
		Bus:      bb.NewConnection("power"),
		Startup:  cfg.StartupSet(),
		Halt:     cfg.HaltMode(),
		Wake: power.WakeSources{
			Button: cfg.Power.Wake.Button,
			Serial: cfg.Power.Wake.Serial,
		},
		TickMs: cfg.Power.TickMs,
	})

	i2c0, _ := plat.Buses.ByID("i2c0")
	storagePin, _ := plat.Pins.ByNumber(platform.PinStoragePower)
	boosterPin, _ := plat.Pins.ByNumber(platform.PinBooster)
	ampPin, _ := plat.Pins.ByNumber(platform.PinAmplifier)
	pixelPin, _ := plat.Pins.ByNumber(platform.PinPixelEnable)

	for _, d := range []power.Domain{
		domains.NewCPU(),
		domains.NewStorage(storagePin),
		domains.NewBooster(boosterPin),
		domains.NewAmplifier(ampPin),
		domains.NewPixel(pixelPin),
		domains.NewCharger(i2c0, 0),
	} {
		if err := pm.AddDomain(d); err != nil {
			println("power: add domain:", d.Name(), err.Error())
			return
		}
	}
	if err := pm.Setup(); err != nil {
		println("power: setup:", err.Error())
		return
	}
	println("power: up, domains", types.DomainSetString(pm.State()))

	go func() {
		for msg := range stateSub.Channel() {
			st := msg.Payload.(*types.PowerState)
			println("power: state", types.DomainSetString(st.Domains))
		}
	}()
	go func() {
		for msg := range wakeSub.Channel() {
			rep := msg.Payload.(*types.WakeReport)
			println("power: wake", rep.Source.String())
		}
	}()

	tick := time.NewTicker(time.Duration(cfg.Power.TickMs) * time.Millisecond)
	defer tick.Stop()
	for range tick.C {
		pm.Loop()
	}
}
