package services

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"tablebot/config"
	"tablebot/models"
	"tablebot/platform"
)

// TableService moves participants between Teamless and a table.
//
// The platform role grants are the membership signal; the directory follows
// them and is repaired whenever the two disagree. Role grants are applied
// before the directory write, so join and leave may be re-issued after any
// partial failure.
type TableService struct {
	platform    platform.Platform
	directory   *Directory
	provisioner *Provisioner
	events      *EventBus
	cfg         *config.Config
	log         *zap.Logger
}

// NewTableService creates the table service.
func NewTableService(
	p platform.Platform,
	directory *Directory,
	provisioner *Provisioner,
	events *EventBus,
	cfg *config.Config,
	log *zap.Logger,
) *TableService {
	return &TableService{
		platform:    p,
		directory:   directory,
		provisioner: provisioner,
		events:      events,
		cfg:         cfg,
		log:         log.With(zap.String("component", "tables")),
	}
}

// State returns the participant's membership, repairing the directory if it
// disagrees with the platform.
func (s *TableService) State(ctx context.Context, participantID string) (models.Membership, error) {
	state, _, err := s.resolve(ctx, participantID)
	return state, err
}

// Join seats the participant at table n.
func (s *TableService) Join(ctx context.Context, participantID string, n int64) (models.TableHandle, error) {
	if n < 0 {
		return models.TableHandle{}, &ValidationError{Field: "table_number", Reason: "must not be negative"}
	}

	state, _, err := s.resolve(ctx, participantID)
	if err != nil {
		return models.TableHandle{}, err
	}
	if !state.IsTeamless() {
		return models.TableHandle{}, &PreconditionError{Err: ErrAlreadyGrouped, Label: state.Label()}
	}

	handle, err := s.provisioner.EnsureTable(ctx, n)
	if err != nil {
		return models.TableHandle{}, err
	}

	// grant first: a lost directory write is repaired on the next resolve
	if err := s.platform.AddRole(ctx, participantID, handle.RoleID); err != nil {
		return models.TableHandle{}, err
	}
	if err := s.platform.RemoveRole(ctx, participantID, s.cfg.TeamlessRoleID); err != nil {
		return models.TableHandle{}, err
	}
	if err := s.directory.Set(ctx, participantID, handle.Label); err != nil {
		return models.TableHandle{}, err
	}

	s.log.Info("participant joined table",
		zap.String("participant", participantID), zap.String("label", handle.Label))
	s.events.Publish(ctx, models.Event{
		Type:          models.TableJoined,
		ParticipantID: participantID,
		Label:         handle.Label,
	})

	return handle, nil
}

// Leave removes the participant from table n. The participant returns to
// Teamless once no table role is left. The table's role and channel are kept
// for reuse.
func (s *TableService) Leave(ctx context.Context, participantID string, n int64) (string, error) {
	if n < 0 {
		return "", &ValidationError{Field: "table_number", Reason: "must not be negative"}
	}
	label := models.TableLabel(n)

	_, held, err := s.resolve(ctx, participantID)
	if err != nil {
		return "", err
	}
	roles, ok := held[label]
	if !ok {
		return "", &PreconditionError{Err: ErrNotInGroup, Label: label}
	}

	for _, role := range roles {
		if err := s.platform.RemoveRole(ctx, participantID, role.ID); err != nil {
			return "", err
		}
	}
	delete(held, label)

	if len(held) == 0 {
		if err := s.platform.AddRole(ctx, participantID, s.cfg.TeamlessRoleID); err != nil {
			return "", err
		}
		if err := s.directory.Clear(ctx, participantID); err != nil {
			return "", err
		}
	} else {
		// still seated elsewhere
		remaining := pickLabel(held, "")
		if err := s.directory.Set(ctx, participantID, remaining); err != nil {
			return "", err
		}
	}

	s.log.Info("participant left table",
		zap.String("participant", participantID), zap.String("label", label))
	s.events.Publish(ctx, models.Event{
		Type:          models.TableLeft,
		ParticipantID: participantID,
		Label:         label,
	})

	return label, nil
}

// resolve derives the membership from the participant's table roles and
// returns every held table role keyed by label.
func (s *TableService) resolve(ctx context.Context, participantID string) (models.Membership, map[string][]platform.Role, error) {
	roles, err := s.platform.MemberRoles(ctx, participantID)
	if err != nil {
		return models.Membership{}, nil, err
	}

	byLabel := make(map[string][]platform.Role)
	for _, r := range roles {
		if _, ok := models.ParseTableLabel(r.Name); ok {
			byLabel[r.Name] = append(byLabel[r.Name], r)
		}
	}

	recorded, hasRecord, err := s.directory.Get(ctx, participantID)
	if err != nil {
		return models.Membership{}, nil, err
	}

	if len(byLabel) == 0 {
		if hasRecord {
			s.log.Warn("directory lists a table the participant does not hold, clearing",
				zap.String("participant", participantID), zap.String("label", recorded))
			if err := s.directory.Clear(ctx, participantID); err != nil {
				return models.Membership{}, nil, err
			}
		}
		return models.Teamless(), nil, nil
	}

	label := pickLabel(byLabel, recorded)
	if !hasRecord || recorded != label {
		s.log.Warn("directory out of sync with roles, repairing",
			zap.String("participant", participantID), zap.String("recorded", recorded), zap.String("label", label))
		if err := s.directory.Set(ctx, participantID, label); err != nil {
			return models.Membership{}, nil, err
		}
	}
	return models.Assigned(label), byLabel, nil
}

// pickLabel chooses among held table labels: the recorded one when held,
// otherwise the lowest table number.
func pickLabel(byLabel map[string][]platform.Role, recorded string) string {
	if _, ok := byLabel[recorded]; ok {
		return recorded
	}
	labels := make([]string, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		a, _ := models.ParseTableLabel(labels[i])
		b, _ := models.ParseTableLabel(labels[j])
		return a < b
	})
	return labels[0]
}
