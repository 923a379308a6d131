package services

import (
	"context"

	"go.uber.org/zap"

	"tablebot/config"
	"tablebot/models"
	"tablebot/store"
)

const rateLimitKeyPrefix = "rate_limit:help:"

// HelpService handles help requests from participants and their completion
// by mentors.
type HelpService struct {
	queue     *HelpQueue
	tables    *TableService
	notifier  *Notifier
	events    *EventBus
	store     store.Store
	cfg       *config.Config
	log       *zap.Logger
}

// NewHelpService creates the help service.
func NewHelpService(
	queue *HelpQueue,
	tables *TableService,
	notifier *Notifier,
	events *EventBus,
	s store.Store,
	cfg *config.Config,
	log *zap.Logger,
) *HelpService {
	return &HelpService{
		queue:     queue,
		tables:    tables,
		notifier:  notifier,
		events:    events,
		store:     s,
		cfg:       cfg,
		log:       log.With(zap.String("component", "help")),
	}
}

// Request queues a help request for participantID and notifies the mentors.
// The request is attributed to the table whose role the participant holds,
// or to displayName when they have none. A failed notification is logged; the request stays
// queued.
func (s *HelpService) Request(ctx context.Context, participantID, displayName, description, link string) (models.HelpRequest, error) {
	if description == "" {
		return models.HelpRequest{}, &ValidationError{Field: "description"}
	}
	if err := s.allow(ctx, participantID); err != nil {
		return models.HelpRequest{}, err
	}

	state, err := s.tables.State(ctx, participantID)
	if err != nil {
		return models.HelpRequest{}, err
	}
	attribution := state.Label()
	if state.IsTeamless() {
		attribution = displayName
	}

	req, err := s.queue.enqueue(ctx, description, link, attribution)
	if err != nil {
		return models.HelpRequest{}, err
	}

	if err := s.notifier.NewRequest(ctx, participantID, req); err != nil {
		s.log.Error("notify mentors", zap.String("id", req.ID), zap.Error(err))
	}

	s.events.Publish(ctx, models.Event{
		Type:          models.HelpRequestCreated,
		ParticipantID: participantID,
		Label:         labelOf(attribution),
		RequestID:     req.ID,
		Description:   description,
	})
	return req, nil
}

// List returns the pending requests, oldest first.
func (s *HelpService) List(ctx context.Context) ([]models.HelpRequest, error) {
	return s.queue.ListPending(ctx)
}

// Complete removes request id on behalf of helperID. Unknown ids succeed.
func (s *HelpService) Complete(ctx context.Context, id, helperID string) error {
	if id == "" {
		return &ValidationError{Field: "id"}
	}
	if err := s.queue.Complete(ctx, id); err != nil {
		return err
	}

	s.events.Publish(ctx, models.Event{
		Type:          models.HelpRequestCompleted,
		ParticipantID: helperID,
		RequestID:     id,
	})
	return nil
}

// allow counts the request against the participant's window.
func (s *HelpService) allow(ctx context.Context, participantID string) error {
	if s.cfg.RequestRateLimit <= 0 {
		return nil
	}
	count, err := s.store.Incr(ctx, rateLimitKeyPrefix+participantID, s.cfg.RequestRateWindow)
	if err != nil {
		return err
	}
	if count > int64(s.cfg.RequestRateLimit) {
		s.log.Info("help request rate limited", zap.String("participant", participantID), zap.Int64("count", count))
		return ErrRateLimited
	}
	return nil
}

func labelOf(attribution string) string {
	if _, ok := models.ParseTableLabel(attribution); ok {
		return attribution
	}
	return ""
}
