// Package processor handles incoming linkage request messages. It is the
// adapter seam between the Kafka transport and the linkage service; the
// engine itself never sees a Kafka message.
package processor

import (
	"context"
	"errors"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/linkage"
	"github.com/Ramsey-B/stem/pkg/tracing"
)

// Processor handles message processing for linkage requests
type Processor struct {
	logger  ectologger.Logger
	service *linkage.Service
}

// NewProcessor creates a new message processor
func NewProcessor(logger ectologger.Logger, service *linkage.Service) *Processor {
	return &Processor{
		logger:  logger,
		service: service,
	}
}

// HandleMessage processes one linkage request message. A returned error
// leaves the message uncommitted for redelivery; the fingerprint check in the
// service keeps redeliveries idempotent. Permanent failures (bad
// configuration) are swallowed after the run is marked failed, since they
// never improve on retry.
func (p *Processor) HandleMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.Processor.HandleMessage")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"topic":      msg.Topic,
		"offset":     msg.Offset,
		"tenant_id":  msg.GetTenantID(),
		"request_id": msg.GetRequestID(),
	})

	if msg.Request == nil {
		log.Warn("Message without parsed linkage request, skipping")
		return nil
	}

	req := *msg.Request
	if req.TenantID == "" {
		req.TenantID = msg.GetTenantID()
	}
	if req.TenantID == "" {
		log.Warn("Linkage request without tenant id, skipping")
		return nil
	}

	result, err := p.service.ExecuteRequest(ctx, req)
	if err != nil {
		if errors.Is(err, linkage.ErrInvalidConfiguration) {
			// run is persisted as failed and run.failed emitted; commit
			log.WithError(err).Warn("Dropping linkage request with invalid configuration")
			return nil
		}
		log.WithError(err).Error("Failed to execute linkage request")
		return err
	}

	if result.Duplicate {
		log.WithFields(map[string]any{"run_id": result.Run.ID}).Debug("Duplicate linkage request, already processed")
		return nil
	}

	log.WithFields(map[string]any{
		"run_id":      result.Run.ID,
		"match_count": len(result.Report.Matches),
	}).Info("Processed linkage request")

	return nil
}
