// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RunSummary holds the per-outcome counts from one cleanup run. It is
// printed at the end of the run and optionally exported as YAML.
type RunSummary struct {
	// Matched is the total number of pattern matches in the input,
	// duplicates included.
	Matched int `json:"matched" yaml:"matched"`

	// Unique is the number of distinct host keys after deduplication.
	Unique int `json:"unique" yaml:"unique"`

	// Evaluated is the number of keys that reached the database check.
	// With --limit this can be smaller than Unique.
	Evaluated int `json:"evaluated" yaml:"evaluated"`

	// Confirmed counts keys whose deletion record is past the retention
	// window.
	Confirmed int `json:"confirmed" yaml:"confirmed"`

	// NotEligible counts keys with no qualifying deletion record.
	NotEligible int `json:"not_eligible" yaml:"not_eligible"`

	// QueryFailed counts keys whose database check errored.
	QueryFailed int `json:"query_failed" yaml:"query_failed"`

	// Purged counts keys removed by cf-key.
	Purged int `json:"purged" yaml:"purged"`

	// PurgeFailed counts keys where cf-key returned an error.
	PurgeFailed int `json:"purge_failed" yaml:"purge_failed"`

	// Simulated counts confirmed keys skipped because of --dry-run.
	Simulated int `json:"simulated" yaml:"simulated"`

	// PurgedKeys lists the keys that were purged (or, in dry-run mode,
	// would have been), in processing order.
	PurgedKeys []string `json:"purged_keys,omitempty" yaml:"purged_keys,omitempty"`
}
