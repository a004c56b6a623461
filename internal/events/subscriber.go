// Package events wires the service into the résumé event stream. When a user
// uploads or replaces a résumé, their cached recommendations are built on a
// stale skill set and must be dropped.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ajeetk7ev/JobLytic/internal/config"
	"github.com/ajeetk7ev/JobLytic/internal/recommend"
	"github.com/ajeetk7ev/JobLytic/internal/telemetry"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("joblytic/events")

// resumeUpdated is the payload published on the résumé subject by the
// profile service.
type resumeUpdated struct {
	UserID   string `json:"userId"`
	ResumeID string `json:"resumeId"`
}

type Handler struct {
	logger  *zap.Logger
	nc      *nats.Conn
	service *recommend.Service
	subject string
	queue   string
	sub     *nats.Subscription
}

func NewHandler(logger *zap.Logger, nc *nats.Conn, cfg *config.Config, service *recommend.Service) *Handler {
	return &Handler{
		logger:  logger,
		nc:      nc,
		service: service,
		subject: cfg.ResumeSubject,
		queue:   cfg.ResumeQueueGroup,
	}
}

func (h *Handler) RegisterSubscriptions(lc fx.Lifecycle) error {
	sub, err := h.nc.QueueSubscribe(h.subject, h.queue, h.handleResumeUpdated)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", h.subject, err)
	}

	h.sub = sub
	h.logger.Info("Registered NATS subscriptions", zap.String("subject", h.subject))

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return h.sub.Unsubscribe()
		},
	})

	return nil
}

func (h *Handler) handleResumeUpdated(msg *nats.Msg) {
	ctx, span := tracer.Start(context.Background(), "handleResumeUpdated")
	defer span.End()

	var event resumeUpdated
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		h.logger.Error("Failed to decode resume event",
			zap.Error(err),
			zap.String("subject", msg.Subject),
		)
		return
	}
	if event.UserID == "" {
		h.logger.Warn("Resume event without user id", zap.String("subject", msg.Subject))
		return
	}

	if err := h.service.InvalidateUser(ctx, event.UserID); err != nil {
		h.logger.Error("Failed to invalidate recommendations",
			zap.Error(err),
			zap.String("user_id", event.UserID),
		)
		return
	}

	h.logger.Info("Invalidated recommendations after resume update",
		zap.String("user_id", event.UserID),
	)
}
