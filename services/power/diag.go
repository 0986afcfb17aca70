// services/power/diag.go
package power

import (
	"fmt"
	"io"
	"strconv"

	"github.com/google/shlex"

	"propcore-go/types"
)

// Parse dispatches one diagnostic command against the manager, writing
// human-readable lines to w. Reports whether the command was handled.
// Unknown arguments on a handled command print an error line and still
// report handled.
func (pm *PowerManager) Parse(w io.Writer, cmd, arg string) bool {
	switch cmd {
	case "pwr-domains":
		pm.printDomains(w)
		return true
	case "pwr-dom-request":
		name, ms, ok := domainArgs(w, arg)
		if !ok {
			return true
		}
		f, ok := pm.reg.ByName(name)
		if !ok {
			fmt.Fprintf(w, "unknown domain %q\n", name)
			return true
		}
		pm.RequestDomain(f, ms)
		fmt.Fprintf(w, "%s on, countdown %d ms\n", name, pm.reg.Remaining(f))
		return true
	case "pwr-dom-off":
		fields, err := shlex.Split(arg)
		if err != nil || len(fields) != 1 {
			fmt.Fprintln(w, "usage: pwr-dom-off <domain>")
			return true
		}
		f, ok := pm.reg.ByName(fields[0])
		if !ok {
			fmt.Fprintf(w, "unknown domain %q\n", fields[0])
			return true
		}
		if pm.PowerOff(f) {
			fmt.Fprintf(w, "%s off\n", fields[0])
		} else {
			fmt.Fprintf(w, "%s already off\n", fields[0])
		}
		return true
	case "pwr-subs":
		pm.printSubscribers(w)
		return true
	case "pwr-sub-request":
		fields, err := shlex.Split(arg)
		if err != nil || len(fields) != 1 {
			fmt.Fprintln(w, "usage: pwr-sub-request <subscriber>")
			return true
		}
		for _, s := range pm.subs {
			if s.name == fields[0] {
				s.RequestPower()
				fmt.Fprintf(w, "%s requested %s\n", s.name, types.DomainSetString(s.domains))
				return true
			}
		}
		fmt.Fprintf(w, "unknown subscriber %q\n", fields[0])
		return true
	case "deepsleep":
		if err := pm.ForceSleep(); err != nil {
			fmt.Fprintln(w, "sleep refused: output active")
			return true
		}
		fmt.Fprintf(w, "woke: %s\n", pm.wake.Fired().String())
		return true
	}
	return false
}

// RequestDomain force-holds one domain with an explicit timeout (0 selects
// the domain default), powering it on if needed. Diagnostic path.
func (pm *PowerManager) RequestDomain(f types.DomainFlag, timeoutMs uint32) {
	if pm.state.Has(f) {
		pm.reg.RequestHold(f, timeoutMs)
		return
	}
	pm.powerOn(f, timeoutMs)
	pm.notifyAcquired()
	pm.publishState()
}

func (pm *PowerManager) printDomains(w io.Writer) {
	pm.reg.ForEach(func(d Domain) {
		f := d.Flag()
		state := "off"
		if pm.state.Has(f) {
			state = "on"
		}
		fmt.Fprintf(w, "%-4s %-3s countdown=%dms default=%dms\n",
			d.Name(), state, pm.reg.Remaining(f), pm.reg.DefaultOf(f))
	})
}

func (pm *PowerManager) printSubscribers(w io.Writer) {
	for _, s := range pm.subs {
		sat := "unsatisfied"
		if s.IsSatisfied() {
			sat = "satisfied"
		}
		held := ""
		if s.Holds() {
			held = " holding"
		}
		fmt.Fprintf(w, "%-12s %s %s%s\n", s.name, types.DomainSetString(s.domains), sat, held)
	}
}

// domainArgs parses "<domain> [timeoutMs]" for the request command.
func domainArgs(w io.Writer, arg string) (string, uint32, bool) {
	fields, err := shlex.Split(arg)
	if err != nil || len(fields) < 1 || len(fields) > 2 {
		fmt.Fprintln(w, "usage: pwr-dom-request <domain> [timeoutMs]")
		return "", 0, false
	}
	var ms uint32
	if len(fields) == 2 {
		n, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			fmt.Fprintf(w, "bad timeout %q\n", fields[1])
			return "", 0, false
		}
		ms = uint32(n)
	}
	return fields[0], ms, true
}
