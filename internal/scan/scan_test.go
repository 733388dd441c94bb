// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package scan

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	keyA = "SHA=" + hexA
	keyB = "SHA=" + hexB
	hexA = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	hexB = "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func warning(key string) string {
	return "warning: No connection quality information for host '" + key + "'"
}

func TestScan(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Hostkey
	}{
		{
			name:  "single warning",
			input: warning(keyA),
			want:  []Hostkey{keyA},
		},
		{
			name: "duplicates preserved in input order",
			input: strings.Join([]string{
				warning(keyB),
				"unrelated noise",
				warning(keyA),
				warning(keyB),
			}, "\n"),
			want: []Hostkey{keyB, keyA, keyB},
		},
		{
			name:  "two warnings on one line",
			input: warning(keyA) + " " + warning(keyB),
			want:  []Hostkey{keyA, keyB},
		},
		{
			name:  "no matches",
			input: "error: something else entirely\nanother line\n",
			want:  nil,
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "truncated digest is not extracted",
			input: warning("SHA=" + hexA[:63]),
			want:  nil,
		},
		{
			name:  "uppercase digest is not extracted",
			input: warning("SHA=" + strings.ToUpper(hexA)),
			want:  nil,
		},
		{
			name:  "missing tag prefix is not extracted",
			input: "No connection quality information for host '" + hexA + "'",
			want:  nil,
		},
		{
			name:  "case-sensitive phrase",
			input: "no connection quality information for host '" + keyA + "'",
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Scan(strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestScanOverlongLines(t *testing.T) {
	// A multi-megabyte line must not abort the scan, and a warning on
	// such a line is still extracted.
	long := strings.Repeat("x", 2*1024*1024)
	input := strings.Join([]string{
		long,
		warning(keyA),
		long + " " + warning(keyB),
	}, "\n")

	got, err := Scan(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, []Hostkey{keyA, keyB}, got)
}

func TestScanIsIdempotent(t *testing.T) {
	input := warning(keyB) + "\n" + warning(keyA) + "\n" + warning(keyB) + "\n"

	first, err := Scan(strings.NewReader(input))
	require.NoError(t, err)
	second, err := Scan(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, Unique(first), Unique(second))
}

func TestUnique(t *testing.T) {
	got := Unique([]Hostkey{keyB, keyA, keyB, keyA, keyB})

	require.Len(t, got, 2)
	assert.Equal(t, []Hostkey{keyA, keyB}, got)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }))
}

func TestUniqueEmpty(t *testing.T) {
	assert.Nil(t, Unique(nil))
}

func TestHostkeyHex(t *testing.T) {
	assert.Equal(t, hexA, Hostkey(keyA).Hex())
}
