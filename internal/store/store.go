// Package store provides the durable key-value layer the consistency
// engine persists through. The engine treats it as an opaque string map:
// every value is JSON text under a fixed key, and the engine never
// depends on anything beyond get/set of strings and string lists.
package store

import "context"

// Store is the persistence boundary. Implementations must return the
// zero value (empty string, nil list) for absent keys rather than an
// error; an error means the read itself failed.
type Store interface {
	// GetString returns the value for key, or "" if the key is absent
	GetString(ctx context.Context, key string) (string, error)

	// SetString durably writes the value for key
	SetString(ctx context.Context, key, value string) error

	// GetStringList returns the list for key, or nil if the key is absent
	GetStringList(ctx context.Context, key string) ([]string, error)

	// SetStringList durably writes the list for key
	SetStringList(ctx context.Context, key string, values []string) error

	// Close releases the underlying resources
	Close() error
}

// Persistence keys. These are a stable on-disk contract: renaming one
// orphans previously saved state.
const (
	// KeyMissions holds the live mission list (active and completed)
	KeyMissions = "missions"

	// KeyDeletedMissions holds soft-deleted missions
	KeyDeletedMissions = "deleted_missions"

	// KeyMissionsBackup holds the pre-repair snapshot for manual restore
	KeyMissionsBackup = "missions_backup"

	// KeyHealthChecks holds registered health-check metadata
	KeyHealthChecks = "ai_guardian_health_checks"

	// KeyRepairs holds registered repair-action metadata
	KeyRepairs = "ai_guardian_repairs"

	// KeyLearningHistory holds the runtime-learning audit trail
	KeyLearningHistory = "ai_guardian_learning_history"

	// KeyIssueFrequency holds the issue-name occurrence counts
	KeyIssueFrequency = "ai_guardian_issue_frequency"

	// KeyIssueFeed holds the recent structured guardian events
	KeyIssueFeed = "mechanicum_issues"

	// KeyRepairLog holds the bounded repair history ring
	KeyRepairLog = "mission_repair_log"

	// KeySuggestions holds the pending/resolved repair suggestions
	KeySuggestions = "guardian_suggestions"

	// KeyPendingSimulations holds sandbox reports staged for commit
	KeyPendingSimulations = "guardian_pending_simulations"

	// KeySchemaVersion records which payload schema wrote the store
	KeySchemaVersion = "guardian_schema_version"
)
