// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cfkey invokes the external cf-key utility to remove host keys
// from the hub's local key store.
package cfkey

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/pdiddy/hostkey-reaper/internal/scan"
)

// DefaultBin is the cf-key binary name resolved on PATH when no explicit
// path is configured.
const DefaultBin = "cf-key"

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunCombined(ctx context.Context, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunCombined(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Runner removes host keys through cf-key.
type Runner struct {
	bin  string
	exec executor
}

// NewRunner creates a Runner for the given cf-key binary (DefaultBin when
// empty). It verifies the binary is resolvable before returning, so a
// missing cf-key fails at setup rather than on the first confirmed key.
func NewRunner(bin string) (*Runner, error) {
	return newRunner(bin, &osExecutor{})
}

func newRunner(bin string, exec executor) (*Runner, error) {
	if bin == "" {
		bin = DefaultBin
	}
	if _, err := exec.LookPath(bin); err != nil {
		return nil, fmt.Errorf("cf-key binary not found: %w", err)
	}
	return &Runner{bin: bin, exec: exec}, nil
}

// Remove purges key from the hub key store, forcing removal of keys that
// still have entries in lastseen data. It returns the command's combined
// output; on a non-zero exit the output is returned alongside the error
// so the operator sees what cf-key reported.
func (r *Runner) Remove(ctx context.Context, key scan.Hostkey) (string, error) {
	out, err := r.exec.RunCombined(ctx, r.bin, "--remove-keys", string(key), "--force-removal")
	output := strings.TrimSpace(string(out))
	if err != nil {
		return output, fmt.Errorf("cf-key --remove-keys %s: %w", key, err)
	}
	return output, nil
}
