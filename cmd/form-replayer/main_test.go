package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveOptions(t *testing.T) {
	cases := []struct {
		name       string
		headless   bool
		noHeadless bool
		startRow   int
		want       replayOptions
		wantErr    bool
	}{
		{name: "defaults", headless: true, want: replayOptions{headless: true}},
		{name: "no-headless", headless: true, noHeadless: true, want: replayOptions{headless: false}},
		{name: "headless=false", headless: false, want: replayOptions{headless: false}},
		{name: "both off", headless: false, noHeadless: true, want: replayOptions{headless: false}},
		{name: "start row", headless: true, startRow: 12, want: replayOptions{headless: true, startRow: 12}},
		{name: "negative start row", headless: true, startRow: -1, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveOptions(tc.headless, tc.noHeadless, tc.startRow)
			if tc.wantErr {
				require.ErrorContains(t, err, "--start-row")
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestRootCmd_FlagDefaults(t *testing.T) {
	f := rootCmd.Flags()
	headless, err := f.GetBool("headless")
	require.NoError(t, err)
	require.True(t, headless)

	noHeadless, err := f.GetBool("no-headless")
	require.NoError(t, err)
	require.False(t, noHeadless)

	startRow, err := f.GetInt("start-row")
	require.NoError(t, err)
	require.Zero(t, startRow)
}
