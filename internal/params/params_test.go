package params

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestWithSeed_LeavesOriginalUntouched(t *testing.T) {
	base := Defaults()
	seeded := base.WithSeed(42)

	assert.Equal(t, 0, base.Seed)
	assert.Equal(t, 42, seeded.Seed)
	seeded.Seed = base.Seed
	assert.Equal(t, base, seeded)
}

func TestApply(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		values  map[string]cty.Value
		want    func(p *Parameters)
		wantErr string
	}{
		{
			name: "numbers and numeric strings",
			values: map[string]cty.Value{
				"nodes":         cty.NumberIntVal(10),
				"area_size":     cty.StringVal("750"),
				"max_speed":     cty.NumberFloatVal(10.5),
				"traffic_pairs": cty.StringVal("4"),
			},
			want: func(p *Parameters) {
				p.Nodes = 10
				p.AreaSize = 750
				p.MaxSpeed = 10.5
				p.TrafficPairs = 4
			},
		},
		{
			name:    "non numeric string",
			values:  map[string]cty.Value{"nodes": cty.StringVal("twenty")},
			wantErr: `invalid nodes "twenty": must be numeric`,
		},
		{
			name:    "fractional integer",
			values:  map[string]cty.Value{"hello_loss": cty.NumberFloatVal(2.5)},
			wantErr: "must be a whole number",
		},
		{
			name:    "unknown key",
			values:  map[string]cty.Value{"bitrate": cty.StringVal("2")},
			wantErr: "invalid bitrate: unknown parameter",
		},
		{
			name:    "range violation",
			values:  map[string]cty.Value{"min_speed": cty.NumberIntVal(8), "max_speed": cty.NumberIntVal(4)},
			wantErr: "must not be below min_speed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Apply(Defaults(), tc.values)
			if tc.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
				var vErr *ValidationError
				assert.True(t, errors.As(err, &vErr), "expected a ValidationError in %v", err)
				assert.Equal(t, Defaults(), got, "base must be returned on error")
				return
			}
			require.NoError(t, err)
			want := Defaults()
			tc.want(&want)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("Parameters mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestApplyStrings_ReportsEveryBadField(t *testing.T) {
	_, err := ApplyStrings(Defaults(), map[string]string{
		"nodes": "x",
		"seed":  "y",
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid nodes")
	assert.Contains(t, err.Error(), "invalid seed")
}

func TestKeys_CoverEveryOperatorParameter(t *testing.T) {
	assert.Equal(t, []string{
		"area_size", "duration", "hello_interval", "hello_loss", "max_speed", "min_speed",
		"nodes", "pause_time", "radio_range", "route_timeout", "seed", "traffic_pairs",
	}, Keys())
}
