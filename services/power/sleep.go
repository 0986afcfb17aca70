// services/power/sleep.go
//
// Deep-sleep entry and exit. The cycle runs Awake -> Preparing -> Halted ->
// Waking -> Awake: park the pins, arm the wake sources, halt, then undo it
// all in reverse once a source fires.
package power

import (
	"propcore-go/bus"
	"propcore-go/errcode"
	"propcore-go/services/power/internal/pwrcore"
	"propcore-go/types"
)

// OnPrepareSleep registers a hook run at the start of every sleep cycle,
// before any hardware is reconfigured. Hooks run in registration order and
// must not block; typical use is flushing state that would be lost across
// the halt.
func (pm *PowerManager) OnPrepareSleep(fn func()) {
	pm.prepare = append(pm.prepare, fn)
}

// sleep runs one full deep-sleep cycle and returns the wake source.
// Called only from the evaluation tick with the power state all-zero.
func (pm *PowerManager) sleep() types.WakeSource {
	pm.log.Info().Msg("entering deep sleep")

	// Preparing
	for _, fn := range pm.prepare {
		fn()
	}
	// A hook may have spun the storage rail back up to flush state. Force it
	// off again so the halt is entered with nothing powered.
	if pm.state.Has(types.DomainStorage) {
		if d := pm.reg.byFlag(types.DomainStorage); d != nil {
			d.d.SetPower(false)
		}
		pm.state &^= types.DomainStorage
		pm.reg.ClearCountdown(types.DomainStorage)
		for _, s := range pm.subs {
			if s.satisfied && !pm.state.Has(s.domains) {
				s.satisfied = false
				if s.onLost != nil {
					s.onLost()
				}
			}
		}
		pm.publishState()
	}
	pm.plat.Ticker.Disable()

	snaps := make([]pwrcore.BankSnapshot, 0, len(pm.plat.LowPower))
	for _, bm := range pm.plat.LowPower {
		snap, err := pm.plat.Banks.Snapshot(bm.Bank)
		if err != nil {
			// Missing bank hardware degrades gracefully: leave its pins as
			// they are rather than park what we cannot restore.
			pm.log.Warn().Err(err).Str("bank", bm.Bank).Msg("bank snapshot failed")
			continue
		}
		snaps = append(snaps, snap)
		if err := pm.plat.Banks.SetAnalogMask(bm.Bank, bm.Mask); err != nil {
			pm.log.Warn().Err(err).Str("bank", bm.Bank).Msg("low-power mask failed")
		}
	}

	pm.wake.Arm(pm.wakeSrc)

	// Halted
	slept := pm.plat.Clock.NowMs()
	pm.plat.Halter.Halt(pm.halt)
	slept = pm.plat.Clock.NowMs() - slept

	// Waking: the firing source already disarmed everything from interrupt
	// context; disarm again in case the halt returned spuriously.
	pm.wake.Disarm()
	src := pm.wake.Fired()

	for i := len(snaps) - 1; i >= 0; i-- {
		if err := pm.plat.Banks.Restore(snaps[i]); err != nil {
			pm.log.Warn().Err(err).Str("bank", snaps[i].Bank).Msg("bank restore failed")
		}
	}
	pm.plat.Ticker.Enable()
	pm.lastMs = pm.plat.Clock.NowMs()

	// A serial wake leaves the waking bytes in the UART buffer; drop them so
	// line noise is not parsed as a command.
	discard := false
	if src == types.WakeSerial && pm.plat.DrainSerial != nil {
		pm.plat.DrainSerial()
		discard = true
		pm.log.Info().Msg("serial wake, pending input disregarded")
	}

	if pm.conn != nil {
		pm.conn.Publish(bus.T("power", "wake"), &types.WakeReport{
			Source:  src,
			SleptMs: slept,
			TS:      pm.plat.Clock.NowMs(),
			Discard: discard,
		}, false)
	}
	return src
}

// ForceSleep powers everything off and enters deep sleep immediately,
// bypassing the countdowns. Refused while the device is actively driving
// its outputs. On wake the startup set is reactivated as usual.
func (pm *PowerManager) ForceSleep() error {
	if pm.outputActive != nil && pm.outputActive() {
		return &errcode.E{C: errcode.SleepRefused, Op: "power.ForceSleep", Msg: "output active"}
	}

	for _, s := range pm.subs {
		if s.satisfied {
			s.satisfied = false
			if s.onLost != nil {
				s.onLost()
			}
		}
	}
	for bit := 7; bit >= 0; bit-- {
		f := types.DomainFlag(1) << uint(bit)
		if !pm.state.Has(f) {
			continue
		}
		pm.reg.ClearCountdown(f)
		if d := pm.reg.byFlag(f); d != nil {
			d.d.SetPower(false)
		}
		pm.state &^= f
	}
	pm.publishState()

	src := pm.sleep()
	pm.log.Info().Str("wake", src.String()).Msg("woke from forced sleep")
	pm.Activate(pm.startup)
	return nil
}
