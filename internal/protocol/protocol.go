// Package protocol defines the closed set of routing protocols the engine is
// known to run and the configuration shape each of them requires.
package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Protocol identifies a routing protocol with a known profile.
type Protocol string

const (
	AODV Protocol = "AODV"
	DSR  Protocol = "DSR"
	OLSR Protocol = "OLSR"
)

// Default is the profile used when a name is not recognized.
const Default = AODV

// ErrUnknown is returned by Parse for names outside the known set.
var ErrUnknown = errors.New("unknown protocol")

// Known lists every protocol with a profile, in display order.
func Known() []Protocol {
	return []Protocol{AODV, DSR, OLSR}
}

// String implements fmt.Stringer.
func (p Protocol) String() string {
	return string(p)
}

// Parse maps a case-insensitive name onto a known Protocol.
func Parse(name string) (Protocol, error) {
	candidate := Protocol(strings.ToUpper(strings.TrimSpace(name)))
	if _, ok := profiles[candidate]; ok {
		return candidate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknown, name)
}

// Profile is the topology, host and radio shape a protocol needs from the
// configuration artifact.
type Profile struct {
	Protocol Protocol
	// Network is the fully qualified NED network used as topology.
	Network string
	// HostType is assigned to every host in the network.
	HostType string
	// RoutingDirective is an extra ini line selecting the routing module.
	// Empty when the host type embeds the protocol.
	RoutingDirective string
	// OverrideRadio is false for topologies that ship their own radio
	// defaults, which must not be touched.
	OverrideRadio bool
	// Tunable reports whether the protocol exposes route/hello timers.
	Tunable bool
}

var profiles = map[Protocol]Profile{
	AODV: {
		Protocol:      AODV,
		Network:       "inet.examples.aodv.AODVNetwork",
		HostType:      "inet.node.aodv.AODVRouter",
		OverrideRadio: true,
		Tunable:       true,
	},
	DSR: {
		Protocol:         DSR,
		Network:          "inet.examples.manetrouting.dymo.DYMONetwork",
		HostType:         "inet.node.dymo.DYMORouter",
		RoutingDirective: `*.host[*].routingProtocol = "inet.routing.dymo.DYMO"`,
		OverrideRadio:    false,
	},
	OLSR: {
		Protocol:         OLSR,
		Network:          "inet.examples.adhoc.ieee80211.Net80211",
		HostType:         "inet.node.inet.AdhocHost",
		RoutingDirective: `*.host[*].routingProtocol = "inet.routing.extras.olsr.OLSR"`,
		OverrideRadio:    true,
	},
}

// ProfileOf returns the profile of a known protocol.
func ProfileOf(p Protocol) (Profile, bool) {
	profile, ok := profiles[p]
	return profile, ok
}

// Resolve returns the profile for name. For names outside the known set it
// returns the Default profile and reports fellBack = true; callers are
// expected to log that branch.
func Resolve(name string) (profile Profile, fellBack bool) {
	p, err := Parse(name)
	if err != nil {
		return profiles[Default], true
	}
	return profiles[p], false
}
