// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scan extracts host keys from hub log text.
package scan

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
)

// hostkeyTag prefixes every key as it appears in logs and in the hub
// key store.
const hostkeyTag = "SHA="

// warningRe matches the connection-quality warning cf-hub logs for hosts
// it has no telemetry for. The embedded key is a SHA-256 digest, tagged
// and single-quoted. Matching is case-sensitive and line-oriented;
// malformed or truncated keys never match.
var warningRe = regexp.MustCompile(`No connection quality information for host 'SHA=([0-9a-f]{64})'`)

// Hostkey is a SHA-256 tagged identifier referencing a managed host,
// e.g. "SHA=ab12...".
type Hostkey string

// Hex returns the bare 64-character digest with the tag prefix stripped.
func (k Hostkey) Hex() string {
	return strings.TrimPrefix(string(k), hostkeyTag)
}

func (k Hostkey) String() string { return string(k) }

// Scan reads r line by line and returns every host key embedded in a
// connection-quality warning, in input order, duplicates included.
// Lines without the warning are skipped silently. Line length is
// unbounded; hub logs occasionally embed whole policy bundles in one
// line and those lines must be skipped, not turned into a read error.
func Scan(r io.Reader) ([]Hostkey, error) {
	br := bufio.NewReader(r)

	var keys []Hostkey
	for {
		line, err := br.ReadString('\n')
		for _, m := range warningRe.FindAllStringSubmatch(line, -1) {
			keys = append(keys, Hostkey(hostkeyTag+m[1]))
		}
		if err == io.EOF {
			return keys, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading log input: %w", err)
		}
	}
}

// Unique collapses duplicates and sorts lexicographically, so repeated
// runs over the same input process keys in the same order.
func Unique(keys []Hostkey) []Hostkey {
	seen := make(map[Hostkey]bool, len(keys))
	var unique []Hostkey
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, k)
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })
	return unique
}
