// Package results reads the engine's scalar result file and reduces it to the
// application-layer metrics of one trial.
package results

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/specialistvlad/manetbench/internal/ctxlog"
)

// AppMarker selects module paths that belong to the traffic applications.
// Routing, MAC and hello traffic never match it.
const AppMarker = "udpApp"

var (
	sentStats     = []string{"sentPk:count", "packetSent:count"}
	receivedStats = []string{"rcvdPk:count", "packetReceived:count"}
	delayStats    = []string{"endToEndDelay:mean", "delay:mean", "pingRtt:mean"}
	hopStats      = []string{"hopCount:mean", "numHops:mean"}
)

// Metrics are the application-layer figures of one trial.
type Metrics struct {
	Sent     int64
	Received int64
	// DeliveryRatio is a percentage. It is not clamped: a value above 100
	// means the counters are inconsistent and is logged.
	DeliveryRatio float64
	DelayMs       float64
	HopCount      float64
	// Artifact is the file the figures were read from, empty when none.
	Artifact string
}

// Anomalous reports a delivery ratio above 100%.
func (m Metrics) Anomalous() bool { return m.DeliveryRatio > 100 }

// ParseError reports that a result file exists but could not be read.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("read results %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse reduces scalar records read from r. Counters and delay come only
// from modules whose path contains AppMarker; hop count is read from any
// module. Counters are summed over every endpoint; delay and hop count take
// the first nonzero sample.
func Parse(r io.Reader) (Metrics, error) {
	var m Metrics
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		fields := splitFields(strings.TrimSpace(scanner.Text()))
		if len(fields) < 4 || fields[0] != "scalar" {
			continue
		}
		module, stat, value := fields[1], fields[2], fields[3]
		// Hop count is recorded below the application layer.
		if matches(stat, hopStats) {
			if v, err := strconv.ParseFloat(value, 64); err == nil && m.HopCount == 0 {
				m.HopCount = v
			}
			continue
		}
		if !strings.Contains(module, AppMarker) {
			continue
		}

		switch {
		case matches(stat, sentStats):
			if n, ok := parseCount(value); ok {
				m.Sent += n
			}
		case matches(stat, receivedStats):
			if n, ok := parseCount(value); ok {
				m.Received += n
			}
		case matches(stat, delayStats):
			if v, err := strconv.ParseFloat(value, 64); err == nil && m.DelayMs == 0 {
				m.DelayMs = v * 1000
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Metrics{}, err
	}

	m.DeliveryRatio = DeliveryRatio(m.Sent, m.Received)
	m.DelayMs = round2(m.DelayMs)
	m.HopCount = round2(m.HopCount)
	return m, nil
}

// DeliveryRatio is received/sent as a percentage rounded to two decimals, or
// 0 when nothing was sent.
func DeliveryRatio(sent, received int64) float64 {
	if sent <= 0 {
		return 0
	}
	return round2(float64(received) / float64(sent) * 100)
}

// ParseFile parses the result file at path.
func ParseFile(path string) (Metrics, error) {
	f, err := os.Open(path)
	if err != nil {
		return Metrics{}, &ParseError{Path: path, Err: err}
	}
	defer f.Close()

	m, err := Parse(f)
	if err != nil {
		return Metrics{}, &ParseError{Path: path, Err: err}
	}
	m.Artifact = path
	return m, nil
}

// Latest returns the newest *.sca file in dir modified at or after since.
// It returns "" when there is none.
func Latest(dir string, since time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	var (
		newest    string
		newestMod time.Time
	)
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sca" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		mod := info.ModTime()
		if mod.Before(since) {
			continue
		}
		if newest == "" || mod.After(newestMod) {
			newest = filepath.Join(dir, e.Name())
			newestMod = mod
		}
	}
	return newest, nil
}

// Extractor locates and parses the result file of one trial.
type Extractor struct {
	// Dir is searched when the explicit per-trial file is missing.
	Dir string
}

// NewExtractor creates an Extractor with a fallback directory.
func NewExtractor(dir string) *Extractor {
	return &Extractor{Dir: dir}
}

// Extract reads the file at path. When it does not exist, the newest result
// file written since the trial started is used instead. A trial without any
// result file yields zero Metrics and no error.
func (e *Extractor) Extract(ctx context.Context, path string, since time.Time) (Metrics, error) {
	logger := ctxlog.FromContext(ctx)

	target := path
	if target == "" || !exists(target) {
		fallback, err := Latest(e.Dir, since)
		if err != nil {
			return Metrics{}, &ParseError{Path: e.Dir, Err: err}
		}
		if fallback == "" {
			logger.Warn("No result file found.", "expected", path, "dir", e.Dir)
			return Metrics{}, nil
		}
		logger.Info("Expected result file missing, using newest file from this trial.", "expected", path, "found", fallback)
		target = fallback
	}

	m, err := ParseFile(target)
	if err != nil {
		return Metrics{}, err
	}
	if m.Anomalous() {
		logger.Warn("Delivery ratio exceeds 100%, counters look inconsistent.", "pdr", m.DeliveryRatio, "sent", m.Sent, "received", m.Received)
	}
	logger.Debug("Results parsed.", "file", target, "sent", m.Sent, "received", m.Received, "pdr", m.DeliveryRatio)
	return m, nil
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func matches(stat string, names []string) bool {
	for _, n := range names {
		if strings.Contains(stat, n) {
			return true
		}
	}
	return false
}

func parseCount(s string) (int64, bool) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == math.Trunc(v) {
		return int64(v), true
	}
	return 0, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// splitFields splits on whitespace and keeps double-quoted tokens whole,
// with the quotes removed.
func splitFields(line string) []string {
	var (
		fields  []string
		b       strings.Builder
		quoted  bool
		pending bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case !quoted && (r == ' ' || r == '\t'):
			if pending {
				fields = append(fields, b.String())
				b.Reset()
				pending = false
			}
		default:
			b.WriteRune(r)
			pending = true
		}
	}
	if pending {
		fields = append(fields, b.String())
	}
	return fields
}
