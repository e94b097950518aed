// Package params holds the per-trial simulation parameters and the
// validation that turns operator-supplied values into them.
package params

import (
	"errors"
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Parameters is the full parameter set of a single trial. It is a value
// type; copies are independent and nothing in the module mutates one after
// it has been handed to a batch.
type Parameters struct {
	Nodes         int
	Duration      int // simulated seconds
	AreaSize      float64
	RadioRange    float64
	MinSpeed      float64
	MaxSpeed      float64
	PauseTime     float64
	TrafficPairs  int
	RouteTimeout  float64
	HelloInterval float64
	HelloLoss     int
	Seed          int
}

// Defaults mirrors the values the operator panel starts with.
func Defaults() Parameters {
	return Parameters{
		Nodes:         20,
		Duration:      100,
		AreaSize:      500,
		RadioRange:    150,
		MinSpeed:      1.0,
		MaxSpeed:      5.0,
		PauseTime:     2.0,
		TrafficPairs:  3,
		RouteTimeout:  3.0,
		HelloInterval: 1.0,
		HelloLoss:     2,
		Seed:          0,
	}
}

// WithSeed returns a copy of p that differs only in its seed.
func (p Parameters) WithSeed(seed int) Parameters {
	p.Seed = seed
	return p
}

// ValidationError reports an operator value that could not be used.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

type field struct {
	integer bool
	setInt  func(*Parameters, int)
	setNum  func(*Parameters, float64)
}

var fields = map[string]field{
	"nodes":          {integer: true, setInt: func(p *Parameters, v int) { p.Nodes = v }},
	"duration":       {integer: true, setInt: func(p *Parameters, v int) { p.Duration = v }},
	"area_size":      {setNum: func(p *Parameters, v float64) { p.AreaSize = v }},
	"radio_range":    {setNum: func(p *Parameters, v float64) { p.RadioRange = v }},
	"min_speed":      {setNum: func(p *Parameters, v float64) { p.MinSpeed = v }},
	"max_speed":      {setNum: func(p *Parameters, v float64) { p.MaxSpeed = v }},
	"pause_time":     {setNum: func(p *Parameters, v float64) { p.PauseTime = v }},
	"traffic_pairs":  {integer: true, setInt: func(p *Parameters, v int) { p.TrafficPairs = v }},
	"route_timeout":  {setNum: func(p *Parameters, v float64) { p.RouteTimeout = v }},
	"hello_interval": {setNum: func(p *Parameters, v float64) { p.HelloInterval = v }},
	"hello_loss":     {integer: true, setInt: func(p *Parameters, v int) { p.HelloLoss = v }},
	"seed":           {integer: true, setInt: func(p *Parameters, v int) { p.Seed = v }},
}

// Keys returns the accepted parameter names, sorted.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Apply overlays values onto base. Every value must convert to a number
// (strings such as "20" are accepted, "twenty" is not) and integer fields
// must be whole. All problems are reported together, and the result is
// checked with Validate.
func Apply(base Parameters, values map[string]cty.Value) (Parameters, error) {
	out := base
	var errs []error

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		raw := values[key]
		f, ok := fields[key]
		if !ok {
			errs = append(errs, &ValidationError{Field: key, Reason: "unknown parameter"})
			continue
		}
		num, err := toNumber(raw)
		if err != nil {
			errs = append(errs, &ValidationError{Field: key, Value: display(raw), Reason: "must be numeric"})
			continue
		}
		if f.integer {
			var i int
			if err := gocty.FromCtyValue(num, &i); err != nil {
				errs = append(errs, &ValidationError{Field: key, Value: display(raw), Reason: "must be a whole number"})
				continue
			}
			f.setInt(&out, i)
			continue
		}
		var v float64
		if err := gocty.FromCtyValue(num, &v); err != nil {
			errs = append(errs, &ValidationError{Field: key, Value: display(raw), Reason: "must be numeric"})
			continue
		}
		f.setNum(&out, v)
	}

	if len(errs) > 0 {
		return base, errors.Join(errs...)
	}
	if err := out.Validate(); err != nil {
		return base, err
	}
	return out, nil
}

// ApplyStrings is Apply for plain key=value input such as command-line flags.
func ApplyStrings(base Parameters, values map[string]string) (Parameters, error) {
	converted := make(map[string]cty.Value, len(values))
	for k, v := range values {
		converted[k] = cty.StringVal(v)
	}
	return Apply(base, converted)
}

// Validate checks the ranges the engine can work with.
func (p Parameters) Validate() error {
	var errs []error
	check := func(ok bool, field, reason string) {
		if !ok {
			errs = append(errs, &ValidationError{Field: field, Reason: reason})
		}
	}
	check(p.Nodes >= 2, "nodes", "at least 2 nodes are required")
	check(p.Duration > 0, "duration", "must be positive")
	check(p.AreaSize > 0, "area_size", "must be positive")
	check(p.RadioRange > 0, "radio_range", "must be positive")
	check(p.MinSpeed >= 0, "min_speed", "must not be negative")
	check(p.MaxSpeed >= p.MinSpeed, "max_speed", "must not be below min_speed")
	check(p.PauseTime >= 0, "pause_time", "must not be negative")
	check(p.TrafficPairs >= 1, "traffic_pairs", "at least one pair is required")
	check(p.RouteTimeout > 0, "route_timeout", "must be positive")
	check(p.HelloInterval > 0, "hello_interval", "must be positive")
	check(p.HelloLoss >= 1, "hello_loss", "must be at least 1")
	check(p.Seed >= 0, "seed", "must not be negative")
	return errors.Join(errs...)
}

func toNumber(v cty.Value) (cty.Value, error) {
	if v.IsNull() || !v.IsKnown() {
		return cty.NilVal, errors.New("value is null or unknown")
	}
	return convert.Convert(v, cty.Number)
}

func display(v cty.Value) string {
	if v.IsNull() || !v.IsKnown() {
		return ""
	}
	if v.Type() == cty.String {
		return v.AsString()
	}
	if v.Type() == cty.Number {
		return v.AsBigFloat().Text('f', -1)
	}
	return v.Type().FriendlyName()
}
