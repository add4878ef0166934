package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eventman/backend/pkg/mailer"
	"github.com/eventman/backend/pkg/queue"
)

// Processor consumes decision notification jobs: sends the email and records
// the outcome.
type Processor struct {
	repo   *Repository
	sender mailer.Sender
	queue  *queue.Queue
	logger *zap.Logger
}

// NewProcessor creates a notification processor.
func NewProcessor(repo *Repository, sender mailer.Sender, q *queue.Queue, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{repo: repo, sender: sender, queue: q, logger: logger}
}

// Process executes one decision email job.
func (p *Processor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeDecisionEmail {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.DecisionEmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.Body); err != nil {
		if logErr := p.repo.RecordFailed(ctx, payload.RequestID, payload.RecipientEmail, payload.Subject, err.Error()); logErr != nil {
			p.logger.Warn("record failed notification", zap.Error(logErr))
		}
		return fmt.Errorf("send decision email: %w", err)
	}

	if err := p.repo.RecordSent(ctx, payload.RequestID, payload.RecipientEmail, payload.Subject, time.Now()); err != nil {
		p.logger.Warn("record sent notification", zap.Error(err))
	}
	p.logger.Info("decision email sent",
		zap.Int64("request_id", payload.RequestID),
		zap.String("recipient", payload.RecipientEmail),
	)
	return nil
}

// Run consumes jobs until ctx is cancelled. Failed jobs are retried with
// backoff through the queue.
func (p *Processor) Run(ctx context.Context) {
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}
		if job == nil {
			continue
		}
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.Error(err), zap.String("job_id", job.ID))
			if err := p.queue.Retry(ctx, job); err != nil {
				p.logger.Error("retry failed", zap.Error(err), zap.String("job_id", job.ID))
			}
		}
	}
}
