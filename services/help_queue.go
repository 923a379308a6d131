package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"iter"
	"math/big"
	"sort"
	"time"

	"go.uber.org/zap"

	"tablebot/models"
	"tablebot/store"
)

const (
	idAlphabet    = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxIDAttempts = 5
)

// ErrIDExhausted no free request id was found within the attempt budget.
var ErrIDExhausted = errors.New("could not allocate a free help request id")

// HelpQueue pending help requests, one store list per request.
type HelpQueue struct {
	store store.Store
	log   *zap.Logger
	now   func() time.Time
	newID func() (string, error)
}

// NewHelpQueue creates the queue over s.
func NewHelpQueue(s store.Store, log *zap.Logger) *HelpQueue {
	return &HelpQueue{
		store: s,
		log:   log.With(zap.String("component", "help_queue")),
		now:   time.Now,
		newID: randomID,
	}
}

// Enqueue stores a new request and returns its id. The record is written in
// one list push so readers never see it half written.
func (q *HelpQueue) Enqueue(ctx context.Context, description, link, attribution string) (string, error) {
	req, err := q.enqueue(ctx, description, link, attribution)
	return req.ID, err
}

func (q *HelpQueue) enqueue(ctx context.Context, description, link, attribution string) (models.HelpRequest, error) {
	if description == "" {
		return models.HelpRequest{}, &ValidationError{Field: "description"}
	}

	id, err := q.freeID(ctx)
	if err != nil {
		return models.HelpRequest{}, err
	}

	req := models.HelpRequest{
		ID:          id,
		Description: description,
		Link:        link,
		Attribution: attribution,
		CreatedAt:   q.now().UnixMilli(),
	}
	if err := q.store.ListPush(ctx, models.HelpRequestKey(id), req.Fields()...); err != nil {
		return models.HelpRequest{}, err
	}

	q.log.Info("help request queued", zap.String("id", id), zap.String("attribution", attribution))
	return req, nil
}

// Get returns one pending request. ok is false when it does not exist or
// cannot be decoded.
func (q *HelpQueue) Get(ctx context.Context, id string) (models.HelpRequest, bool, error) {
	key := models.HelpRequestKey(id)
	fields, err := q.store.ListRange(ctx, key, 0, -1)
	if errors.Is(err, store.ErrWrongType) {
		return models.HelpRequest{}, false, nil
	}
	if err != nil {
		return models.HelpRequest{}, false, err
	}
	if len(fields) == 0 {
		return models.HelpRequest{}, false, nil
	}
	req, err := models.DecodeHelpRequest(key, fields)
	if err != nil {
		q.log.Debug("skipping undecodable help request", zap.Error(err))
		return models.HelpRequest{}, false, nil
	}
	return req, true, nil
}

// Pending yields every decodable pending request in store order. Records that
// vanish, fail to decode, carry a zero timestamp or are not lists are skipped.
// Store failures are yielded as an error and end the sequence. Every range
// starts a fresh scan.
func (q *HelpQueue) Pending(ctx context.Context) iter.Seq2[models.HelpRequest, error] {
	return func(yield func(models.HelpRequest, error) bool) {
		for key, err := range q.store.Scan(ctx, models.HelpRequestKeyPrefix) {
			if err != nil {
				yield(models.HelpRequest{}, err)
				return
			}

			fields, err := q.store.ListRange(ctx, key, 0, -1)
			if errors.Is(err, store.ErrWrongType) {
				q.log.Debug("skipping help request key of another type", zap.String("key", key))
				continue
			}
			if err != nil {
				yield(models.HelpRequest{}, err)
				return
			}
			req, err := models.DecodeHelpRequest(key, fields)
			if err != nil {
				q.log.Debug("skipping undecodable help request", zap.Error(err))
				continue
			}
			if !yield(req, nil) {
				return
			}
		}
	}
}

// ListPending collects Pending, oldest first.
func (q *HelpQueue) ListPending(ctx context.Context) ([]models.HelpRequest, error) {
	var out []models.HelpRequest
	for req, err := range q.Pending(ctx) {
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Complete removes the request. Unknown ids succeed.
func (q *HelpQueue) Complete(ctx context.Context, id string) error {
	if err := q.store.Delete(ctx, models.HelpRequestKey(id)); err != nil {
		return err
	}
	q.log.Info("help request completed", zap.String("id", id))
	return nil
}

func (q *HelpQueue) freeID(ctx context.Context) (string, error) {
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := q.newID()
		if err != nil {
			return "", fmt.Errorf("generate id: %w", err)
		}
		taken, err := q.store.Exists(ctx, models.HelpRequestKey(id))
		if err != nil {
			return "", err
		}
		if !taken {
			return id, nil
		}
		q.log.Warn("help request id collision, regenerating", zap.String("id", id))
	}
	return "", ErrIDExhausted
}

// randomID draws HelpRequestIDLength characters uniformly from idAlphabet.
func randomID() (string, error) {
	buf := make([]byte, models.HelpRequestIDLength)
	size := big.NewInt(int64(len(idAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			return "", err
		}
		buf[i] = idAlphabet[n.Int64()]
	}
	return string(buf), nil
}
