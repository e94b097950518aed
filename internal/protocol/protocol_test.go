package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		input   string
		want    Protocol
		wantErr bool
	}{
		{name: "exact", input: "AODV", want: AODV},
		{name: "lower case", input: "dsr", want: DSR},
		{name: "padded", input: "  olsr ", want: OLSR},
		{name: "unknown", input: "BATMAN", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Parse(tc.input)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrUnknown)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestResolve_KnownProtocolsDoNotFallBack(t *testing.T) {
	for _, p := range Known() {
		profile, fellBack := Resolve(string(p))
		assert.False(t, fellBack, "protocol %s", p)
		assert.Equal(t, p, profile.Protocol)
		assert.NotEmpty(t, profile.Network)
		assert.NotEmpty(t, profile.HostType)
	}
}

func TestResolve_UnknownFallsBackToDefault(t *testing.T) {
	profile, fellBack := Resolve("ZRP")

	require.True(t, fellBack)
	want, _ := ProfileOf(Default)
	assert.Equal(t, want, profile)
}

func TestProfiles_RadioAndTuningPolicy(t *testing.T) {
	aodv, _ := ProfileOf(AODV)
	dsr, _ := ProfileOf(DSR)
	olsr, _ := ProfileOf(OLSR)

	assert.True(t, aodv.OverrideRadio)
	assert.True(t, aodv.Tunable)
	assert.Empty(t, aodv.RoutingDirective)

	assert.False(t, dsr.OverrideRadio, "DSR topology carries its own radio defaults")
	assert.False(t, dsr.Tunable)
	assert.Contains(t, dsr.RoutingDirective, "DYMO")

	assert.True(t, olsr.OverrideRadio)
	assert.Contains(t, olsr.RoutingDirective, "OLSR")
}
