// Package synth renders the engine's ini configuration for one protocol and
// one parameter set, and writes it to the shared artifact path.
package synth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
	"github.com/specialistvlad/manetbench/internal/params"
	"github.com/specialistvlad/manetbench/internal/protocol"
)

// Options carries the settings that are fixed for a whole session rather
// than varied per trial.
type Options struct {
	// ScalarFile is written into the artifact as output-scalar-file so the
	// extractor can read an explicit path instead of guessing by mtime.
	// Empty leaves the engine's default naming in place.
	ScalarFile string
	// Bitrate of the overridden radio; defaults to 2Mbps.
	Bitrate string
	// CPUTimeLimit caps engine CPU time; defaults to 300s.
	CPUTimeLimit string
}

func (o Options) withDefaults() Options {
	if o.Bitrate == "" {
		o.Bitrate = "2Mbps"
	}
	if o.CPUTimeLimit == "" {
		o.CPUTimeLimit = "300s"
	}
	return o
}

// Render is a pure function of its inputs: identical arguments always give
// byte-identical text.
func Render(profile protocol.Profile, p params.Parameters, opts Options) string {
	opts = opts.withDefaults()
	w := &iniWriter{}

	w.line("[General]")
	w.kv("network", profile.Network)
	w.kv("sim-time-limit", strconv.Itoa(p.Duration)+"s")
	w.kv("cpu-time-limit", opts.CPUTimeLimit)
	w.kv("record-eventlog", "false")
	w.kv("cmdenv-express-mode", "true")

	// One seed drives the run-level seed set and every module RNG.
	w.section("Determinism")
	w.kv("seed-set", strconv.Itoa(p.Seed))
	w.kv("repeat", "1")
	w.kv("num-rngs", "1")
	w.kv("**.rng-0", strconv.Itoa(p.Seed))
	if opts.ScalarFile != "" {
		w.kv("output-scalar-file", quote(filepath.ToSlash(opts.ScalarFile)))
	}

	w.section("Network and hosts")
	w.kv("*.numHosts", strconv.Itoa(p.Nodes))
	w.kv("*.host[*].typename", quote(profile.HostType))
	if profile.RoutingDirective != "" {
		w.line(profile.RoutingDirective)
	}

	if profile.Tunable {
		writeTuning(w, p)
	}
	writeMobility(w, p)
	writeTraffic(w, p)

	w.section("Addressing")
	w.kv("*.configurator.config", `xml("<config><interface hosts='**' address='10.0.0.x' netmask='255.255.255.0'/></config>")`)
	w.kv("*.configurator.addStaticRoutes", "false")
	w.kv("*.configurator.assignAddresses", "true")

	writeRadio(w, profile, p, opts)

	w.section("Recording")
	w.kv("**.scalar-recording", "true")
	w.kv("**.vector-recording", "false")
	w.kv("**.cmdenv-log-level", "info")

	return w.String()
}

func writeTuning(w *iniWriter, p params.Parameters) {
	w.section("Routing timers")
	w.kv("*.host[*].aodv.activeRouteTimeout", num(p.RouteTimeout)+"s")
	w.kv("*.host[*].aodv.helloInterval", num(p.HelloInterval)+"s")
	w.kv("*.host[*].aodv.allowedHelloLoss", strconv.Itoa(p.HelloLoss))
	w.kv("*.host[*].aodv.netDiameter", "35")
	w.kv("*.host[*].aodv.rreqRetries", "2")
	w.kv("*.host[*].aodv.rreqRatelimit", "10")
}

// writeMobility emits RandomWPMobility with its constraint area equal to the
// playground on every axis. Without the constraint area the model picks
// targets outside the playground and the engine aborts scheduling a move
// into the past.
func writeMobility(w *iniWriter, p params.Parameters) {
	area := num(p.AreaSize) + "m"

	w.section("Mobility")
	w.kv("*.host[*].mobilityType", quote("RandomWPMobility"))
	w.kv("*.host[*].mobility.initFromDisplayString", "false")
	w.kv("*.host[*].mobility.updateInterval", "0.1s")
	w.kv("*.host[*].mobility.startTime", "0s")
	w.kv("*.host[*].mobility.speed", fmt.Sprintf("uniform(%smps, %smps)", num(p.MinSpeed), num(p.MaxSpeed)))
	w.kv("*.host[*].mobility.waitTime", fmt.Sprintf("uniform(%ss, %ss)", num(p.PauseTime), num(p.PauseTime)))
	w.kv("*.host[*].mobility.x", fmt.Sprintf("uniform(0m, %s)", area))
	w.kv("*.host[*].mobility.y", fmt.Sprintf("uniform(0m, %s)", area))
	w.kv("*.host[*].mobility.z", "0m")
	w.kv("*.host[*].mobility.constraintAreaMinX", "0m")
	w.kv("*.host[*].mobility.constraintAreaMinY", "0m")
	w.kv("*.host[*].mobility.constraintAreaMinZ", "0m")
	w.kv("*.host[*].mobility.constraintAreaMaxX", area)
	w.kv("*.host[*].mobility.constraintAreaMaxY", area)
	w.kv("*.host[*].mobility.constraintAreaMaxZ", "0m")
	w.kv("**.playgroundSizeX", area)
	w.kv("**.playgroundSizeY", area)
}

func writeTraffic(w *iniWriter, p params.Parameters) {
	pairs := PlanTraffic(p.Nodes, p.TrafficPairs)

	w.section("Traffic")
	w.line(fmt.Sprintf("# %d active pairs over %d hosts", len(pairs), p.Nodes))
	for _, pair := range pairs {
		src := fmt.Sprintf("*.host[%d]", pair.Source)
		dst := fmt.Sprintf("*.host[%d]", pair.Destination)

		w.line(fmt.Sprintf("# pair %d: host[%d] -> host[%d]", pair.Index+1, pair.Source, pair.Destination))
		w.kv(src+".numUdpApps", "1")
		w.kv(src+".udpApp[0].typename", quote("UDPBasicApp"))
		w.kv(src+".udpApp[0].destAddresses", quote(fmt.Sprintf("host[%d]", pair.Destination)))
		w.kv(src+".udpApp[0].destPort", strconv.Itoa(pair.Port))
		w.kv(src+".udpApp[0].messageLength", "512B")
		w.kv(src+".udpApp[0].sendInterval", "0.5s")
		w.kv(src+".udpApp[0].startTime", num(pair.StartTime)+"s")
		w.kv(dst+".numUdpApps", "1")
		w.kv(dst+".udpApp[0].typename", quote("UDPSink"))
		w.kv(dst+".udpApp[0].localPort", strconv.Itoa(pair.Port))
	}
}

func writeRadio(w *iniWriter, profile protocol.Profile, p params.Parameters, opts Options) {
	w.section("Radio")
	if !profile.OverrideRadio {
		w.line("# topology radio defaults are kept for " + profile.Protocol.String())
		return
	}
	w.kv("*.host[*].wlan[*].typename", quote("IdealWirelessNic"))
	w.kv("*.host[*].wlan[*].bitrate", opts.Bitrate)
	w.kv("*.host[*].wlan[*].mac.useAck", "false")
	w.kv("*.host[*].wlan[*].mac.fullDuplex", "false")
	w.kv("*.host[*].wlan[*].radio.transmitter.typename", quote("IdealTransmitter"))
	w.kv("*.host[*].wlan[*].radio.transmitter.communicationRange", num(p.RadioRange)+"m")
	w.kv("*.host[*].wlan[*].radio.transmitter.power", "1mW")
	w.kv("*.host[*].wlan[*].radio.transmitter.headerBitLength", "100b")
}

// WriteError reports that the artifact could not be written. It aborts the
// current action rather than a single trial.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write configuration %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Synthesizer owns the shared artifact path.
type Synthesizer struct {
	Path    string
	Options Options
}

// New creates a Synthesizer writing to path.
func New(path string, opts Options) *Synthesizer {
	return &Synthesizer{Path: path, Options: opts}
}

// Write renders the artifact for name and p and overwrites the shared path.
// Unknown names fall back to the default profile; the fallback is logged.
func (s *Synthesizer) Write(ctx context.Context, name string, p params.Parameters, scalarFile string) (protocol.Profile, error) {
	logger := ctxlog.FromContext(ctx)

	profile, fellBack := protocol.Resolve(name)
	if fellBack {
		logger.Warn("Unrecognized protocol, using default profile.", "requested", name, "profile", profile.Protocol)
	}

	opts := s.Options
	opts.ScalarFile = scalarFile
	text := Render(profile, p, opts)

	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return profile, &WriteError{Path: s.Path, Err: err}
	}
	if err := os.WriteFile(s.Path, []byte(text), 0o644); err != nil {
		return profile, &WriteError{Path: s.Path, Err: err}
	}
	logger.Debug("Configuration written.", "path", s.Path, "network", profile.Network, "host_type", profile.HostType, "bytes", len(text))
	return profile, nil
}

type iniWriter struct {
	b strings.Builder
}

func (w *iniWriter) line(s string) {
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *iniWriter) kv(key, value string) {
	w.line(key + " = " + value)
}

func (w *iniWriter) section(title string) {
	w.line("")
	w.line("# --- " + title + " ---")
}

func (w *iniWriter) String() string {
	return w.b.String()
}

func quote(s string) string {
	return `"` + s + `"`
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
