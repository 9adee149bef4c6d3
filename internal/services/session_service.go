package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/realtime"
	pgrepo "github.com/yoockh/convopilot/internal/repositories/postgres"
	"github.com/yoockh/convopilot/internal/utils"
	"gorm.io/datatypes"
)

// SessionEventLog is the append-only lifecycle history. The Mongo
// repository implements it.
type SessionEventLog interface {
	Record(ctx context.Context, e models.SessionEvent) error
	ListBySession(ctx context.Context, sessionID, userID string, limit int64) ([]models.SessionEvent, error)
}

type CreateSessionInput struct {
	Title               string
	Topic               string
	DifficultyLevel     models.DifficultyLevel
	ConversationContext string
}

// UpdateSessionInput is a partial update; status moves only through the
// lifecycle operations.
type UpdateSessionInput struct {
	Title               *string
	Topic               *string
	DifficultyLevel     *models.DifficultyLevel
	ConversationContext *string
}

type SessionService interface {
	Create(ctx context.Context, userID string, in CreateSessionInput) (*models.ConversationSession, error)
	Get(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error)
	Update(ctx context.Context, sessionID, userID string, in UpdateSessionInput) (*models.ConversationSession, error)

	End(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error)
	Pause(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error)
	Resume(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error)
	Cancel(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error)

	// UpdateConversation overwrites the transcript of sessionID without an
	// ownership check; ReplaceConversation is the caller-scoped variant.
	UpdateConversation(ctx context.Context, sessionID string, turns []models.ConversationTurn) error
	ReplaceConversation(ctx context.Context, sessionID, userID string, turns []models.ConversationTurn) error
	Conversation(ctx context.Context, sessionID, userID string) ([]models.ConversationTurn, error)

	IncrementMessageCount(ctx context.Context, sessionID string, isUserMessage bool) error

	ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSession, error)
	ListActive(ctx context.Context, userID string) ([]models.ConversationSession, error)
	Events(ctx context.Context, sessionID, userID string) ([]models.SessionEvent, error)

	Statistics(ctx context.Context, userID string, days int) (*SessionStatistics, error)
}

type sessionService struct {
	sessions  pgrepo.SessionRepository
	userLangs pgrepo.UserLanguageRepository
	tx        pgrepo.Transactor
	events    SessionEventLog    // optional
	publisher realtime.Publisher // optional
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewSessionService(
	sessions pgrepo.SessionRepository,
	userLangs pgrepo.UserLanguageRepository,
	tx pgrepo.Transactor,
	events SessionEventLog,
	publisher realtime.Publisher,
	log logrus.FieldLogger,
) SessionService {
	return &sessionService{
		sessions:  sessions,
		userLangs: userLangs,
		tx:        tx,
		events:    events,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *sessionService) Create(ctx context.Context, userID string, in CreateSessionInput) (*models.ConversationSession, error) {
	const op = "SessionService.Create"

	in.Title = strings.TrimSpace(in.Title)
	in.Topic = strings.TrimSpace(in.Topic)
	if userID == "" || in.Title == "" || in.Topic == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id, title, and topic are required", nil)
	}
	if !in.DifficultyLevel.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid difficulty level", nil)
	}

	current, err := s.userLangs.Current(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeInvalidArgument, op, "user has no current target language", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to resolve target language", err)
	}

	now := s.now()
	cs := &models.ConversationSession{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Title:               in.Title,
		Topic:               in.Topic,
		DifficultyLevel:     in.DifficultyLevel,
		TargetLanguageID:    current.LanguageID,
		ConversationContext: in.ConversationContext,
		FullConversation:    datatypes.NewJSONType([]models.ConversationTurn{}),
		Status:              models.SessionActive,
		CreatedAt:           now,
		UpdatedAt:           now,
		StartedAt:           &now,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.sessions.Create(ctx, cs); err != nil {
			return err
		}
		return s.userLangs.TouchPracticed(ctx, userID, current.LanguageID, now)
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}
	cs.TargetLanguage = current.Language

	s.record(ctx, cs, "")
	return cs, nil
}

func (s *sessionService) Get(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	const op = "SessionService.Get"

	if sessionID == "" || userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and user_id are required", nil)
	}
	cs, err := s.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return cs, nil
}

func (s *sessionService) Update(ctx context.Context, sessionID, userID string, in UpdateSessionInput) (*models.ConversationSession, error) {
	const op = "SessionService.Update"

	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title must not be empty", nil)
	}
	if in.Topic != nil && strings.TrimSpace(*in.Topic) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "topic must not be empty", nil)
	}
	if in.DifficultyLevel != nil && !in.DifficultyLevel.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid difficulty level", nil)
	}

	var out *models.ConversationSession
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cs, err := s.sessions.LockForUser(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		if in.Title != nil {
			cs.Title = strings.TrimSpace(*in.Title)
		}
		if in.Topic != nil {
			cs.Topic = strings.TrimSpace(*in.Topic)
		}
		if in.DifficultyLevel != nil {
			cs.DifficultyLevel = *in.DifficultyLevel
		}
		if in.ConversationContext != nil {
			cs.ConversationContext = *in.ConversationContext
		}
		cs.UpdatedAt = s.now()
		if err := s.sessions.Save(ctx, cs); err != nil {
			return err
		}
		out = cs
		return nil
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update session", err)
	}
	return out, nil
}

func (s *sessionService) End(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	return s.transition(ctx, "SessionService.End", sessionID, userID, models.SessionCompleted)
}

func (s *sessionService) Pause(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	return s.transition(ctx, "SessionService.Pause", sessionID, userID, models.SessionPaused)
}

func (s *sessionService) Resume(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	return s.transition(ctx, "SessionService.Resume", sessionID, userID, models.SessionActive)
}

func (s *sessionService) Cancel(ctx context.Context, sessionID, userID string) (*models.ConversationSession, error) {
	return s.transition(ctx, "SessionService.Cancel", sessionID, userID, models.SessionCancelled)
}

// transition locks the caller's row and applies next. A missing row, a row
// owned by someone else and a forbidden move all report not-found.
func (s *sessionService) transition(ctx context.Context, op, sessionID, userID string, next models.SessionStatus) (*models.ConversationSession, error) {
	if sessionID == "" || userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id and user_id are required", nil)
	}

	var out *models.ConversationSession
	var from models.SessionStatus
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cs, err := s.sessions.LockForUser(ctx, sessionID, userID)
		if err != nil {
			return err
		}
		from = cs.Status
		if !cs.ApplyTransition(next, s.now()) {
			return utils.ErrNotFound
		}
		if err := s.sessions.Save(ctx, cs); err != nil {
			return err
		}
		out = cs
		return nil
	})
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update session status", err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": out.ID,
		"from":       from,
		"to":         out.Status,
	}).Info("session transitioned")
	s.record(ctx, out, from)
	return out, nil
}

// record writes the lifecycle event and notifies live listeners. Failures
// are logged only.
func (s *sessionService) record(ctx context.Context, cs *models.ConversationSession, from models.SessionStatus) {
	if s.events != nil {
		e := models.SessionEvent{
			SessionID: cs.ID,
			UserID:    cs.UserID,
			Type:      models.EventType(from, cs.Status),
			From:      from,
			To:        cs.Status,
			At:        cs.UpdatedAt,
		}
		if err := s.events.Record(ctx, e); err != nil {
			s.log.WithError(err).WithField("session_id", cs.ID).Warn("failed to record session event")
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, cs.ID, realtime.StatusFrame(cs)); err != nil {
			s.log.WithError(err).WithField("session_id", cs.ID).Warn("failed to publish session status")
		}
	}
}

func (s *sessionService) UpdateConversation(ctx context.Context, sessionID string, turns []models.ConversationTurn) error {
	const op = "SessionService.UpdateConversation"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := s.sessions.UpdateConversation(ctx, sessionID, turns, s.now()); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to update conversation", err)
	}
	return nil
}

func (s *sessionService) ReplaceConversation(ctx context.Context, sessionID, userID string, turns []models.ConversationTurn) error {
	const op = "SessionService.ReplaceConversation"

	for i := range turns {
		if !models.MessageType(turns[i].Role).Valid() {
			return utils.E(utils.CodeInvalidArgument, op, "invalid turn role: "+turns[i].Role, nil)
		}
		if a := turns[i].Analysis; a != nil && !models.ValidComplexity(a.ComplexityScore) {
			return utils.E(utils.CodeInvalidArgument, op, "complexity_score must be between 1 and 10", nil)
		}
	}

	if _, err := s.Get(ctx, sessionID, userID); err != nil {
		return err
	}
	return s.UpdateConversation(ctx, sessionID, turns)
}

func (s *sessionService) Conversation(ctx context.Context, sessionID, userID string) ([]models.ConversationTurn, error) {
	cs, err := s.Get(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}
	return cs.Transcript(), nil
}

func (s *sessionService) IncrementMessageCount(ctx context.Context, sessionID string, isUserMessage bool) error {
	const op = "SessionService.IncrementMessageCount"

	if err := s.sessions.IncrementMessageCount(ctx, sessionID, isUserMessage, s.now()); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to increment message count", err)
	}
	return nil
}

func (s *sessionService) ListForUser(ctx context.Context, userID string, limit, offset int) ([]models.ConversationSession, error) {
	const op = "SessionService.ListForUser"

	rows, err := s.sessions.ListForUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	if rows == nil {
		rows = []models.ConversationSession{}
	}
	return rows, nil
}

func (s *sessionService) ListActive(ctx context.Context, userID string) ([]models.ConversationSession, error) {
	const op = "SessionService.ListActive"

	rows, err := s.sessions.ListActive(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list active sessions", err)
	}
	if rows == nil {
		rows = []models.ConversationSession{}
	}
	return rows, nil
}

func (s *sessionService) Events(ctx context.Context, sessionID, userID string) ([]models.SessionEvent, error) {
	const op = "SessionService.Events"

	if _, err := s.Get(ctx, sessionID, userID); err != nil {
		return nil, err
	}
	if s.events == nil {
		return []models.SessionEvent{}, nil
	}
	rows, err := s.events.ListBySession(ctx, sessionID, userID, 0)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "session history unavailable", err)
	}
	return rows, nil
}
