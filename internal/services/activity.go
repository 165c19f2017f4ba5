package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/repositories"
	"example.com/backstage/services/fridge/internal/search"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ActivityLog is the append-only audit sink
type ActivityLog struct {
	repo    *repositories.ActivityRepository
	indexer search.Indexer
	now     Clock
}

// NewActivityLog creates an activity log. indexer may be nil.
func NewActivityLog(repo *repositories.ActivityRepository, indexer search.Indexer, now Clock) *ActivityLog {
	if indexer == nil {
		indexer = search.NopIndexer{}
	}
	if now == nil {
		now = SystemClock
	}
	return &ActivityLog{repo: repo, indexer: indexer, now: now}
}

// WithTx returns a log that appends inside tx. Entries written through it
// are not projected to search since the transaction may still roll back.
func (a *ActivityLog) WithTx(tx *gorm.DB) *ActivityLog {
	return &ActivityLog{repo: a.repo.WithTx(tx), indexer: search.NopIndexer{}, now: a.now}
}

// Append records message, attributed to the actor in ctx if any
func (a *ActivityLog) Append(ctx context.Context, message string) (*models.Activity, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.InvalidArgument("activity message is required")
	}

	entry := &models.Activity{
		ID:         uuid.New(),
		Action:     message,
		OccurredAt: a.now().UTC(),
	}
	if uid, ok := ActorFrom(ctx); ok {
		entry.UID = &uid
	}

	if err := a.repo.Create(ctx, entry); err != nil {
		return nil, apperrors.Storage(err, "failed to record activity")
	}

	if err := a.indexer.IndexActivity(ctx, entry); err != nil {
		log.Warn().Err(err).Str("activity_id", entry.ID.String()).Msg("Failed to index activity")
	}

	return entry, nil
}

// Appendf formats and appends a message. Failures are logged, not returned.
func (a *ActivityLog) Appendf(ctx context.Context, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if _, err := a.Append(ctx, message); err != nil {
		log.Error().Err(err).Str("action", message).Msg("Failed to append activity")
	}
}

// List returns entries newest first, optionally bounded by [from, to]
func (a *ActivityLog) List(ctx context.Context, from, to *time.Time) ([]models.Activity, error) {
	if from != nil && to != nil && from.After(*to) {
		return nil, apperrors.InvalidArgument("from must not be after to")
	}
	entries, err := a.repo.List(ctx, from, to)
	if err != nil {
		return nil, apperrors.Storage(err, "failed to fetch activity")
	}
	return entries, nil
}
