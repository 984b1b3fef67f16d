package audit

import (
	"time"

	"github.com/rs/zerolog"
)

// RetentionJob prunes audit records older than the configured horizon.
// Registered with the background scheduler; the trail stays replayable for
// the horizon and bounded in size beyond it.
type RetentionJob struct {
	repo    *Repository
	horizon time.Duration
	log     zerolog.Logger
}

// NewRetentionJob creates an audit retention job
func NewRetentionJob(repo *Repository, horizon time.Duration, log zerolog.Logger) *RetentionJob {
	if horizon <= 0 {
		horizon = 30 * 24 * time.Hour
	}
	return &RetentionJob{
		repo:    repo,
		horizon: horizon,
		log:     log.With().Str("job", "audit_retention").Logger(),
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "audit_retention"
}

// Run prunes expired audit records
func (j *RetentionJob) Run() error {
	removed, err := j.repo.PruneOlderThan(time.Now().Add(-j.horizon))
	if err != nil {
		return err
	}
	j.log.Debug().Int64("removed", removed).Msg("Audit retention completed")
	return nil
}
