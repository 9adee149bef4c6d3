package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/providers/llm"
	"github.com/yoockh/convopilot/internal/providers/stt"
	"github.com/yoockh/convopilot/internal/realtime"
	pgrepo "github.com/yoockh/convopilot/internal/repositories/postgres"
	"github.com/yoockh/convopilot/internal/storage"
	"github.com/yoockh/convopilot/internal/utils"
)

const (
	MaxMessageLength = 10000
	MaxVoiceBytes    = 10 << 20
	voiceURLTTL      = 15 * time.Minute
)

var errSessionNotActive = errors.New("session is not active")

type AppendMessageInput struct {
	Content     string
	MessageType models.MessageType // defaults to user
}

type MessageService interface {
	Append(ctx context.Context, userID, sessionID string, in AppendMessageInput) (*models.Message, error)
	AppendVoice(ctx context.Context, userID, sessionID string, audio []byte, contentType string) (*models.Message, error)
	List(ctx context.Context, userID, sessionID string, limit int) ([]models.Message, error)
	RecordAnalysis(ctx context.Context, userID, messageID string, a models.MessageAnalysis) (*models.Message, error)
	Analyze(ctx context.Context, userID, messageID string) (*models.Message, error)
	VoiceURL(ctx context.Context, userID, messageID string) (string, error)
}

// MessageDeps holds the optional collaborators of the message service. Nil
// members disable the features that need them.
type MessageDeps struct {
	STT       stt.Provider
	Uploader  storage.Uploader
	Signer    storage.Signer
	Analyzer  llm.Analyzer
	Publisher realtime.Publisher
	Queue     AnalysisQueue // background analysis of user messages
}

// AnalysisQueue hands a stored user message to the background analyzer.
type AnalysisQueue interface {
	Enqueue(ctx context.Context, userID, messageID string) error
}

type messageService struct {
	messages  pgrepo.MessageRepository
	sessions  pgrepo.SessionRepository
	userLangs pgrepo.UserLanguageRepository
	tx        pgrepo.Transactor
	deps      MessageDeps
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewMessageService(
	messages pgrepo.MessageRepository,
	sessions pgrepo.SessionRepository,
	userLangs pgrepo.UserLanguageRepository,
	tx pgrepo.Transactor,
	deps MessageDeps,
	log logrus.FieldLogger,
) MessageService {
	return &messageService{
		messages:  messages,
		sessions:  sessions,
		userLangs: userLangs,
		tx:        tx,
		deps:      deps,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *messageService) Append(ctx context.Context, userID, sessionID string, in AppendMessageInput) (*models.Message, error) {
	const op = "MessageService.Append"

	if in.MessageType == "" {
		in.MessageType = models.MessageUser
	}
	if !in.MessageType.Valid() {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid message type", nil)
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "content is required", nil)
	}
	if len(in.Content) > MaxMessageLength {
		return nil, utils.E(utils.CodeInvalidArgument, op, "content is too long", nil)
	}

	m := &models.Message{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Content:     in.Content,
		MessageType: in.MessageType,
	}
	return s.insert(ctx, op, userID, m)
}

// insert stores m and bumps the session counters in one transaction. The
// session row lock orders concurrent appends.
func (s *messageService) insert(ctx context.Context, op, userID string, m *models.Message) (*models.Message, error) {
	m.Measure()
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		cs, err := s.sessions.LockForUser(ctx, m.SessionID, userID)
		if err != nil {
			return err
		}
		if cs.Status != models.SessionActive {
			return errSessionNotActive
		}

		now := s.now()
		m.CreatedAt = now
		if err := s.messages.Insert(ctx, m); err != nil {
			return err
		}
		return s.sessions.IncrementMessageCount(ctx, m.SessionID, m.MessageType == models.MessageUser, now)
	})
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrNotFound):
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		case errors.Is(err, errSessionNotActive):
			return nil, utils.E(utils.CodeConflict, op, "session is not active", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to append message", err)
	}

	s.publish(ctx, m)
	if s.deps.Queue != nil && s.deps.Analyzer != nil && m.MessageType == models.MessageUser {
		if err := s.deps.Queue.Enqueue(ctx, userID, m.ID); err != nil {
			s.log.WithError(err).WithField("message_id", m.ID).Warn("failed to queue message analysis")
		}
	}
	return m, nil
}

func (s *messageService) publish(ctx context.Context, m *models.Message) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.Publish(ctx, m.SessionID, realtime.MessageFrame(m)); err != nil {
		s.log.WithError(err).WithField("session_id", m.SessionID).Warn("failed to publish message")
	}
}

func (s *messageService) AppendVoice(ctx context.Context, userID, sessionID string, audio []byte, contentType string) (*models.Message, error) {
	const op = "MessageService.AppendVoice"

	if s.deps.STT == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "speech recognition is not configured", nil)
	}
	if len(audio) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio is required", nil)
	}
	if len(audio) > MaxVoiceBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "audio is too large", nil)
	}

	cs, err := s.sessions.GetForUser(ctx, sessionID, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	if cs.Status != models.SessionActive {
		return nil, utils.E(utils.CodeConflict, op, "session is not active", nil)
	}

	langCode := ""
	if cs.TargetLanguage != nil {
		langCode = cs.TargetLanguage.Code
	}
	text, conf, err := s.deps.STT.Transcribe(ctx, audio, contentType, stt.LanguageTag(langCode))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "speech recognition failed", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "no speech recognized", nil)
	}

	m := &models.Message{
		ID:          uuid.NewString(),
		SessionID:   sessionID,
		Content:     text,
		MessageType: models.MessageUser,
	}

	if s.deps.Uploader != nil {
		name := storage.VoiceObjectName(userID, sessionID, m.ID, storage.ExtensionFor(contentType))
		path, err := s.deps.Uploader.Upload(ctx, name, contentType, bytes.NewReader(audio))
		if err != nil {
			// the transcript is still worth keeping
			s.log.WithError(err).WithField("session_id", sessionID).Warn("voice upload failed")
		} else {
			m.AudioPath = &path
		}
	}

	s.log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"confidence": conf,
	}).Debug("voice message transcribed")

	out, err := s.insert(ctx, op, userID, m)
	if err != nil && m.AudioPath != nil {
		// the session may have left active since the check above
		if derr := s.deps.Uploader.Delete(ctx, *m.AudioPath); derr != nil {
			s.log.WithError(derr).WithField("object", *m.AudioPath).Warn("failed to delete orphaned voice clip")
		}
	}
	return out, err
}

func (s *messageService) List(ctx context.Context, userID, sessionID string, limit int) ([]models.Message, error) {
	const op = "MessageService.List"

	if _, err := s.sessions.GetForUser(ctx, sessionID, userID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}

	rows, err := s.messages.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list messages", err)
	}
	if rows == nil {
		rows = []models.Message{}
	}
	return rows, nil
}

// owned loads a message and its session, scoped to userID.
func (s *messageService) owned(ctx context.Context, op, userID, messageID string) (*models.Message, *models.ConversationSession, error) {
	m, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, nil, utils.E(utils.CodeNotFound, op, "message not found", err)
		}
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to get message", err)
	}
	cs, err := s.sessions.GetForUser(ctx, m.SessionID, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, nil, utils.E(utils.CodeNotFound, op, "message not found", err)
		}
		return nil, nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	return m, cs, nil
}

func (s *messageService) RecordAnalysis(ctx context.Context, userID, messageID string, a models.MessageAnalysis) (*models.Message, error) {
	const op = "MessageService.RecordAnalysis"

	if !models.ValidComplexity(a.ComplexityScore) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "complexity_score must be between 1 and 10", nil)
	}
	m, _, err := s.owned(ctx, op, userID, messageID)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, op, m, a)
}

func (s *messageService) record(ctx context.Context, op string, m *models.Message, a models.MessageAnalysis) (*models.Message, error) {
	now := s.now()
	if err := s.messages.RecordAnalysis(ctx, m.ID, a, now); err != nil {
		switch {
		case errors.Is(err, utils.ErrConflict):
			return nil, utils.E(utils.CodeConflict, op, "message already analyzed", err)
		case errors.Is(err, utils.ErrNotFound):
			return nil, utils.E(utils.CodeNotFound, op, "message not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to record analysis", err)
	}

	out, err := s.messages.GetByID(ctx, m.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to reload message", err)
	}
	s.publish(ctx, out)
	return out, nil
}

func (s *messageService) Analyze(ctx context.Context, userID, messageID string) (*models.Message, error) {
	const op = "MessageService.Analyze"

	if s.deps.Analyzer == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "message analysis is not configured", nil)
	}
	m, cs, err := s.owned(ctx, op, userID, messageID)
	if err != nil {
		return nil, err
	}
	if m.MessageType != models.MessageUser {
		return nil, utils.E(utils.CodeInvalidArgument, op, "only user messages can be analyzed", nil)
	}
	if m.Analyzed() {
		return nil, utils.E(utils.CodeConflict, op, "message already analyzed", nil)
	}

	req := llm.AnalysisRequest{Content: m.Content, Topic: cs.Topic}
	if cs.TargetLanguage != nil {
		req.TargetLanguage = cs.TargetLanguage.Name
	}
	if cur, err := s.userLangs.Current(ctx, userID); err == nil && cur.LanguageID == cs.TargetLanguageID {
		req.Proficiency = string(cur.ProficiencyLevel)
	}

	a, err := s.deps.Analyzer.Analyze(ctx, req)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "analysis failed", err)
	}
	return s.record(ctx, op, m, *a)
}

func (s *messageService) VoiceURL(ctx context.Context, userID, messageID string) (string, error) {
	const op = "MessageService.VoiceURL"

	if s.deps.Signer == nil {
		return "", utils.E(utils.CodeUnavailable, op, "voice storage is not configured", nil)
	}
	m, _, err := s.owned(ctx, op, userID, messageID)
	if err != nil {
		return "", err
	}
	if m.AudioPath == nil {
		return "", utils.E(utils.CodeNotFound, op, "message has no audio", nil)
	}

	url, err := s.deps.Signer.SignedGetURL(ctx, *m.AudioPath, voiceURLTTL)
	if err != nil {
		return "", utils.E(utils.CodeInternal, op, "failed to sign audio url", err)
	}
	return url, nil
}
