// Package summary generates the weekly natural-language digest of a
// user's interaction history.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicetutor/backend/internal/metrics"
	"github.com/voicetutor/backend/internal/storage/models"
	"github.com/voicetutor/backend/pkg/logger"
)

// ErrNoInteractions means the user had no logged interactions in the
// period; no record is created in that case.
var ErrNoInteractions = errors.New("no interactions found for the user")

// TextGenerator produces the digest text. Generation failures are not
// retried here and propagate to the caller: there is no meaningful
// degraded output for a requested summary.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Store is the persistence surface for summaries and the interaction
// log they digest.
type Store interface {
	GetWeeklySummary(username string, periodStart, periodEnd time.Time) (*models.WeeklySummary, error)
	CreateWeeklySummaryIfAbsent(summary *models.WeeklySummary) (*models.WeeklySummary, error)
	GetInteractionsForPeriod(username string, start, end time.Time) ([]models.Interaction, error)
	GetActiveUsernames(start, end time.Time) ([]string, error)
}

type Orchestrator struct {
	store     Store
	generator TextGenerator
}

func NewOrchestrator(store Store, generator TextGenerator) *Orchestrator {
	return &Orchestrator{
		store:     store,
		generator: generator,
	}
}

// PeriodBounds computes the summary period for a reference day: the
// most recent Monday on or before it, through the following Sunday.
// Bounds are midnight UTC dates, never user-supplied.
func PeriodBounds(today time.Time) (time.Time, time.Time) {
	today = today.UTC().Truncate(24 * time.Hour)

	// time.Weekday counts Sunday as 0; the period starts on Monday.
	offset := (int(today.Weekday()) + 6) % 7
	start := today.AddDate(0, 0, -offset)
	end := start.AddDate(0, 0, 6)

	return start, end
}

// GenerateForUser returns the summary for the user's current week,
// creating it if this is the first request for the period. A second
// request for the same period returns the stored record unchanged.
func (o *Orchestrator) GenerateForUser(ctx context.Context, username string, now time.Time) (*models.WeeklySummary, error) {
	periodStart, periodEnd := PeriodBounds(now)

	existing, err := o.store.GetWeeklySummary(username, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		metrics.SummariesGenerated.WithLabelValues("existing").Inc()
		return existing, nil
	}

	interactions, err := o.store.GetInteractionsForPeriod(username, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}
	if len(interactions) == 0 {
		metrics.SummariesGenerated.WithLabelValues("empty").Inc()
		return nil, ErrNoInteractions
	}

	responses := make([]string, 0, len(interactions))
	for _, interaction := range interactions {
		responses = append(responses, interaction.AgentResponse)
	}

	prompt := buildPrompt(username, periodStart, periodEnd, responses)

	text, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		metrics.SummariesGenerated.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to generate weekly summary: %w", err)
	}

	record := &models.WeeklySummary{
		ID:          uuid.New().String(),
		Username:    username,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		SummaryText: text,
		CreatedAt:   time.Now(),
	}

	// Create-if-absent: a concurrent request for the same period may
	// have won the race; either way the stored row comes back.
	stored, err := o.store.CreateWeeklySummaryIfAbsent(record)
	if err != nil {
		return nil, err
	}

	metrics.SummariesGenerated.WithLabelValues("created").Inc()
	logger.Info("Weekly summary generated",
		zap.String("username", username),
		zap.Time("period_start", periodStart),
		zap.Time("period_end", periodEnd),
		zap.Int("interactions", len(interactions)),
	)

	return stored, nil
}

// GenerateForActiveUsers runs the digest for every user with at least
// one interaction in the current period. Per-user failures are logged
// and skipped so one bad account does not stall the batch.
func (o *Orchestrator) GenerateForActiveUsers(ctx context.Context, now time.Time) error {
	periodStart, periodEnd := PeriodBounds(now)

	usernames, err := o.store.GetActiveUsernames(periodStart, periodEnd)
	if err != nil {
		return fmt.Errorf("failed to list active users: %w", err)
	}

	for _, username := range usernames {
		if _, err := o.GenerateForUser(ctx, username, now); err != nil && !errors.Is(err, ErrNoInteractions) {
			logger.Error("Scheduled summary failed",
				zap.String("username", username),
				zap.Error(err),
			)
		}
	}

	return nil
}

func buildPrompt(username string, start, end time.Time, responses []string) string {
	return fmt.Sprintf(
		"Summarize the following agent responses from the user '%s' between %s and %s:\n\n%s\n\nProvide a concise summary of the key points and topics discussed.",
		username,
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
		strings.Join(responses, "\n"),
	)
}
