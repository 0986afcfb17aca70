// cmd/propcore/main.go
//
// Host-side harness for the power engine: runs the evaluation tick against
// the fake platform and exposes the diagnostic commands on stdin. On real
// hardware the rp2xxx platform factory takes the place of the host fakes.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"propcore-go/bus"
	"propcore-go/config"
	"propcore-go/services/power"
	"propcore-go/services/power/domains"
	"propcore-go/services/power/platform"
	"propcore-go/types"
)

var (
	configPath string
	wakeAfter  time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "propcore",
		Short:         "Power-domain engine for battery-powered props",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to configuration file")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run the engine with a diagnostic console on stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine()
		},
	}
	run.Flags().DurationVar(&wakeAfter, "wake-after", 3*time.Second,
		"simulated button press this long after entering deep sleep")
	checkCfg := &cobra.Command{
		Use:   "checkconfig",
		Short: "Validate the configuration file and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Printf("ok: startup=%s tick=%dms halt=%s\n",
				types.DomainSetString(cfg.StartupSet()), cfg.Power.TickMs, cfg.Power.Wake.Halt)
			return nil
		},
	}
	root.AddCommand(run, checkCfg)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func setupLogging(cfg config.LogConfig) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	logger := zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05.000",
		NoColor:    !cfg.Colors,
	}).With().Timestamp().Logger()

	switch cfg.GetLevel() {
	case "debug":
		logger = logger.Level(zerolog.DebugLevel)
	case "warn":
		logger = logger.Level(zerolog.WarnLevel)
	case "error":
		logger = logger.Level(zerolog.ErrorLevel)
	default:
		logger = logger.Level(zerolog.InfoLevel)
	}
	return logger
}

func runEngine() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogging(cfg.Log)

	host := platform.NewHost()
	plat := host.Platform()

	timeouts := make(map[types.DomainFlag]uint32, len(cfg.Power.Timeouts))
	for name, ms := range cfg.Power.Timeouts {
		f, ok := config.DomainByName(name)
		if !ok {
			return fmt.Errorf("timeouts: unknown domain %q", name)
		}
		timeouts[f] = ms
	}

	sources := power.WakeSources{
		Button: cfg.Power.Wake.Button,
		Serial: cfg.Power.Wake.Serial,
	}
	// The RTC charger poll only makes sense when a charge limit is set.
	if cfg.Power.Wake.RTCPollMs > 0 && cfg.Power.Wake.ChargerLimitMA > 0 {
		sources.RTCPeriodMs = cfg.Power.Wake.RTCPollMs
		sources.RTCDebounce = cfg.Power.Wake.RTCDebounce
	}

	bb := bus.New(16)
	pm := power.New(power.Options{
		Log:      logger,
		Platform: plat,
		Bus:      bb.NewConnection("power"),
		Startup:  cfg.StartupSet(),
		Halt:     cfg.HaltMode(),
		Wake:     sources,
		TickMs:   cfg.Power.TickMs,
		Timeouts: timeouts,
	})

	i2c0, _ := plat.Buses.ByID("i2c0")
	for _, d := range []power.Domain{
		domains.NewCPU(),
		domains.NewStorage(host.PinsF.Get(platform.PinStoragePower)),
		domains.NewBooster(host.PinsF.Get(platform.PinBooster)),
		domains.NewAmplifier(host.PinsF.Get(platform.PinAmplifier)),
		domains.NewPixel(host.PinsF.Get(platform.PinPixelEnable)),
		domains.NewCharger(i2c0, 0),
	} {
		if err := pm.AddDomain(d); err != nil {
			return err
		}
	}
	if err := pm.Setup(); err != nil {
		return err
	}

	// The engine is single-threaded by contract; the tick goroutine and the
	// console share it under one lock.
	var mu sync.Mutex
	go func() {
		tick := time.NewTicker(time.Duration(cfg.Power.TickMs) * time.Millisecond)
		defer tick.Stop()
		for range tick.C {
			if host.Ticker.Enabled() {
				mu.Lock()
				pm.Loop()
				mu.Unlock()
			}
		}
	}()

	// Stand-in for the physical button: press it a while after each sleep
	// entry so the host harness always comes back.
	go func() {
		btn := host.PinsF.Get(platform.PinButton)
		for {
			for !btn.Armed() {
				time.Sleep(50 * time.Millisecond)
			}
			time.Sleep(wakeAfter)
			btn.Set(true)
			btn.Set(false)
		}
	}()

	logger.Info().Msg("diagnostic console ready (pwr-domains, pwr-subs, deepsleep, ...)")
	sc := bufio.NewScanner(os.Stdin)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		cmd, arg, _ := strings.Cut(line, " ")
		mu.Lock()
		handled := pm.Parse(os.Stdout, cmd, arg)
		mu.Unlock()
		if !handled {
			fmt.Println("unknown command")
		}
	}
	return sc.Err()
}
