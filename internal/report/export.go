package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/specialistvlad/manetbench/internal/params"
	"github.com/specialistvlad/manetbench/internal/stats"
	"github.com/specialistvlad/manetbench/internal/trial"
)

// Document is the exported form of one action.
type Document struct {
	Generated  time.Time     `yaml:"generated"`
	Mode       string        `yaml:"mode"`
	Parameters ParametersDoc `yaml:"parameters"`
	Trials     []TrialDoc    `yaml:"trials,omitempty"`
	Summaries  []SummaryDoc  `yaml:"summaries"`
	Ranking    []string      `yaml:"ranking,omitempty"`
	Warnings   []string      `yaml:"warnings,omitempty"`
}

// ParametersDoc mirrors params.Parameters with stable key names.
type ParametersDoc struct {
	Nodes         int     `yaml:"nodes"`
	Duration      int     `yaml:"duration"`
	AreaSize      float64 `yaml:"area_size"`
	RadioRange    float64 `yaml:"radio_range"`
	MinSpeed      float64 `yaml:"min_speed"`
	MaxSpeed      float64 `yaml:"max_speed"`
	PauseTime     float64 `yaml:"pause_time"`
	TrafficPairs  int     `yaml:"traffic_pairs"`
	RouteTimeout  float64 `yaml:"route_timeout"`
	HelloInterval float64 `yaml:"hello_interval"`
	HelloLoss     int     `yaml:"hello_loss"`
}

// TrialDoc is one exported trial.
type TrialDoc struct {
	Protocol string  `yaml:"protocol"`
	Seed     int     `yaml:"seed"`
	PDR      float64 `yaml:"pdr"`
	Sent     int64   `yaml:"sent"`
	Received int64   `yaml:"received"`
	DelayMs  float64 `yaml:"delay_ms"`
	Hops     float64 `yaml:"hops"`
	Outcome  string  `yaml:"outcome"`
	Stage    string  `yaml:"failed_stage,omitempty"`
}

// SummaryDoc is one exported protocol summary.
type SummaryDoc struct {
	Protocol string    `yaml:"protocol"`
	Valid    int       `yaml:"valid"`
	Total    int       `yaml:"total"`
	Mean     float64   `yaml:"mean"`
	StdDev   float64   `yaml:"stddev"`
	Min      float64   `yaml:"min"`
	Max      float64   `yaml:"max"`
	Samples  []float64 `yaml:"samples,flow"`
}

// NewDocument assembles a Document. comparison may be nil in single mode.
func NewDocument(mode string, p params.Parameters, recs []trial.Record, summaries []stats.Summary, comparison *stats.Comparison) Document {
	doc := Document{
		Generated: time.Now().UTC().Truncate(time.Second),
		Mode:      mode,
		Parameters: ParametersDoc{
			Nodes: p.Nodes, Duration: p.Duration, AreaSize: p.AreaSize, RadioRange: p.RadioRange,
			MinSpeed: p.MinSpeed, MaxSpeed: p.MaxSpeed, PauseTime: p.PauseTime, TrafficPairs: p.TrafficPairs,
			RouteTimeout: p.RouteTimeout, HelloInterval: p.HelloInterval, HelloLoss: p.HelloLoss,
		},
		Warnings: Warnings(recs),
	}
	for _, r := range recs {
		doc.Trials = append(doc.Trials, TrialDoc{
			Protocol: r.Protocol.String(),
			Seed:     r.Seed,
			PDR:      r.Metrics.DeliveryRatio,
			Sent:     r.Metrics.Sent,
			Received: r.Metrics.Received,
			DelayMs:  r.Metrics.DelayMs,
			Hops:     r.Metrics.HopCount,
			Outcome:  r.Result.Outcome.String(),
			Stage:    string(r.Stage),
		})
	}
	for _, s := range summaries {
		doc.Summaries = append(doc.Summaries, SummaryDoc{
			Protocol: s.Protocol.String(), Valid: s.Valid, Total: s.Total,
			Mean: s.Mean, StdDev: s.StdDev, Min: s.Min, Max: s.Max, Samples: s.Samples,
		})
	}
	if comparison != nil {
		for _, s := range comparison.Ranked {
			doc.Ranking = append(doc.Ranking, s.Protocol.String())
		}
	}
	return doc
}

// Marshal encodes doc as YAML.
func Marshal(doc Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

// WriteFile writes doc to path, creating parent directories.
func WriteFile(path string, doc Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}
