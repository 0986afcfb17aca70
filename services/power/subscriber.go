// services/power/subscriber.go
package power

import (
	"propcore-go/errcode"
	"propcore-go/types"
)

// SubscriberSpec declares a feature module's power dependency at
// registration time. Domains is fixed for the subscriber's lifetime and
// must be non-empty. The callbacks and the hold predicate may be nil.
type SubscriberSpec struct {
	Name    string
	Domains types.DomainSet
	// OnAcquired fires once each time the full declared set becomes
	// powered, after every domain transition of the triggering call.
	OnAcquired func()
	// OnLost fires once when the declared set is about to become
	// incomplete, strictly before any rail is switched off, so the
	// callback may still use the hardware briefly.
	OnLost func()
	// Hold, while true, pauses timeout expiry on every declared domain.
	Hold func() bool
}

// Subscriber is a registered feature module. Owned by the manager's
// subscriber registry; lives for the process duration.
type Subscriber struct {
	name    string
	domains types.DomainSet
	// satisfied mirrors "declared set fully powered" as of the last
	// state change, so acquired/lost callbacks fire on edges only.
	satisfied  bool
	onAcquired func()
	onLost     func()
	hold       func() bool

	pm *PowerManager
}

// Name returns the subscriber's diagnostic name.
func (s *Subscriber) Name() string { return s.name }

// Domains returns the declared dependency set.
func (s *Subscriber) Domains() types.DomainSet { return s.domains }

// IsSatisfied reports whether every declared domain is currently powered.
func (s *Subscriber) IsSatisfied() bool {
	return s.pm.State()&s.domains == s.domains
}

// Holds reports the hold predicate.
func (s *Subscriber) Holds() bool {
	return s.hold != nil && s.hold()
}

// RequestPower holds every declared domain, powering on the ones that are
// off. timeouts, if supplied, align to the declared set in ascending flag
// order; missing or zero entries select each domain's default. Reports
// whether at least one domain transitioned off to on; when it did, the
// on-acquired callback has fired after all transitions.
func (s *Subscriber) RequestPower(timeouts ...uint32) bool {
	return s.pm.requestFor(s, timeouts)
}

// Register adds a feature module to the manager. An empty domain set is a
// configuration error and must abort startup. Registering a subscriber
// whose set is already powered marks it satisfied without firing callbacks.
func (pm *PowerManager) Register(spec SubscriberSpec) (*Subscriber, error) {
	if spec.Domains == types.DomainNone {
		return nil, &errcode.E{C: errcode.EmptyDomainSet, Op: "power.Register", Msg: spec.Name}
	}
	s := &Subscriber{
		name:       spec.Name,
		domains:    spec.Domains,
		onAcquired: spec.OnAcquired,
		onLost:     spec.OnLost,
		hold:       spec.Hold,
		pm:         pm,
	}
	s.satisfied = pm.state&s.domains == s.domains
	pm.subs = append(pm.subs, s)
	return s, nil
}

// Subscribers visits registered modules in registration order.
func (pm *PowerManager) Subscribers(fn func(s *Subscriber)) {
	for _, s := range pm.subs {
		fn(s)
	}
}

// heldMask aggregates the declared sets of all holding subscribers.
func (pm *PowerManager) heldMask() types.DomainSet {
	var held types.DomainSet
	for _, s := range pm.subs {
		if s.Holds() {
			held |= s.domains
		}
	}
	return held
}
