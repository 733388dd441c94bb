// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reaper drives the cleanup pipeline: scan the log for flagged
// host keys, confirm each against the hub database, purge confirmed keys
// through cf-key, and optionally record them in a module-protocol report.
package reaper

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pdiddy/hostkey-reaper/internal/report"
	"github.com/pdiddy/hostkey-reaper/internal/scan"
	"github.com/pdiddy/hostkey-reaper/pkg/types"
)

// Verifier checks the hub database for a qualifying deletion record.
type Verifier interface {
	ConfirmDeleted(ctx context.Context, key scan.Hostkey) (bool, error)
}

// KeyRemover purges a host key from the hub key store.
type KeyRemover interface {
	Remove(ctx context.Context, key scan.Hostkey) (string, error)
}

// Options control one cleanup run.
type Options struct {
	// Limit caps how many keys reach the database check, counted across
	// confirmed and unconfirmed outcomes in processing order. Zero means
	// no cap.
	Limit int

	// DryRun records intent without invoking cf-key.
	DryRun bool

	// ReportPath, when non-empty, is the final location of the
	// module-protocol report.
	ReportPath string
}

// Reaper wires the pipeline stages together.
type Reaper struct {
	verifier Verifier
	remover  KeyRemover
	log      *zap.Logger
	out      io.Writer
}

// New creates a Reaper. remover may be nil for dry-run use; the run then
// never touches cf-key.
func New(verifier Verifier, remover KeyRemover, log *zap.Logger, out io.Writer) *Reaper {
	return &Reaper{verifier: verifier, remover: remover, log: log, out: out}
}

// Run executes one pass over the scanned keys (raw matches, duplicates
// included; the caller scans the log so a zero-match run never needs a
// database connection or a cf-key binary). Per-key query and purge
// failures are logged and skipped; only staging-file setup and report
// relocation errors are returned. The summary reflects every key's
// terminal state regardless of such skips.
func (r *Reaper) Run(ctx context.Context, keys []scan.Hostkey, opts Options) (types.RunSummary, error) {
	var summary types.RunSummary

	unique := scan.Unique(keys)
	summary.Matched = len(keys)
	summary.Unique = len(unique)

	if len(unique) == 0 {
		fmt.Fprintln(r.out, "no flagged host keys found")
		return summary, nil
	}

	var rep *report.Writer
	if opts.ReportPath != "" {
		var err error
		rep, err = report.NewWriter(opts.ReportPath)
		if err != nil {
			return summary, err
		}
		defer rep.Discard()
	}

	for _, key := range unique {
		select {
		case <-ctx.Done():
			return summary, ctx.Err()
		default:
		}

		if opts.Limit > 0 && summary.Evaluated >= opts.Limit {
			fmt.Fprintf(r.out, "limit of %d reached, %d key(s) left unprocessed\n",
				opts.Limit, summary.Unique-summary.Evaluated)
			break
		}
		summary.Evaluated++

		confirmed, err := r.verifier.ConfirmDeleted(ctx, key)
		if err != nil {
			summary.QueryFailed++
			r.log.Warn("deletion check failed, skipping key",
				zap.String("hostkey", key.String()), zap.Error(err))
			continue
		}
		if !confirmed {
			summary.NotEligible++
			fmt.Fprintf(r.out, "kept    %s (no deletion record past retention)\n", key)
			continue
		}
		summary.Confirmed++

		if err := r.purge(ctx, key, opts.DryRun, rep, &summary); err != nil {
			return summary, err
		}
	}

	if rep != nil {
		if err := rep.Commit(); err != nil {
			return summary, err
		}
	}

	fmt.Fprintf(r.out, "\nevaluated: %d, purged: %d, simulated: %d, kept: %d, query failures: %d, purge failures: %d\n",
		summary.Evaluated, summary.Purged, summary.Simulated,
		summary.NotEligible, summary.QueryFailed, summary.PurgeFailed)

	return summary, nil
}

func (r *Reaper) purge(ctx context.Context, key scan.Hostkey, dryRun bool, rep *report.Writer, summary *types.RunSummary) error {
	if dryRun {
		summary.Simulated++
		summary.PurgedKeys = append(summary.PurgedKeys, key.String())
		fmt.Fprintf(r.out, "dry-run %s\n", key)
		return r.record(rep, key)
	}

	out, err := r.remover.Remove(ctx, key)
	if err != nil {
		summary.PurgeFailed++
		r.log.Warn("key removal failed",
			zap.String("hostkey", key.String()),
			zap.String("output", out),
			zap.Error(err))
		return nil
	}

	summary.Purged++
	summary.PurgedKeys = append(summary.PurgedKeys, key.String())
	fmt.Fprintf(r.out, "purged  %s\n", key)
	if out != "" {
		fmt.Fprintln(r.out, out)
	}
	return r.record(rep, key)
}

func (r *Reaper) record(rep *report.Writer, key scan.Hostkey) error {
	if rep == nil {
		return nil
	}
	return rep.Add(key)
}
