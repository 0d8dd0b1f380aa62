// Package services – ConsultService
//
// This file implements ConsultService, the orchestrator behind the chat
// endpoint. It assembles the prompt (system instruction, stored transcript,
// current message), invokes the external model, post-processes the reply
// (registration extraction), and records the side effects: transcript
// appends and a chat-log row. The external call is the only thing that can
// take long; one attempt, no retries.
//
// Observability: the public method is OpenTelemetry-instrumented; spans
// include the session identifier and the conversation step marker.
package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/englishschool-ru/go-school-backend/internal/domain"
	"github.com/englishschool-ru/go-school-backend/internal/llm"
	"github.com/englishschool-ru/go-school-backend/internal/repo"
	"github.com/englishschool-ru/go-school-backend/internal/session"
)

// Registrar is the slice of RegistrationService the extractor path needs.
type Registrar interface {
	Register(ctx context.Context, in RegistrationInput) (*domain.CourseRegistration, error)
}

// ConsultRequest is one validated chat turn from the client.
type ConsultRequest struct {
	Message string
	Profile Profile
	// Step is a caller-opaque UI marker; the server echoes it back unchanged.
	Step string
}

// RegistrationOutcome reports what the extractor did with a model reply.
type RegistrationOutcome struct {
	Success        bool `json:"success"`
	RegistrationID uint `json:"registrationId,omitempty"`
}

// ConsultResult is the visible outcome of one chat turn.
type ConsultResult struct {
	Message      string
	Step         string
	Registration *RegistrationOutcome
}

// ConsultService coordinates prompt assembly, the external model call, and
// reply post-processing for the consultation chat.
type ConsultService struct {
	// DB is the GORM handle used for chat-log persistence.
	DB *gorm.DB
	// Sessions stores per-visitor transcripts.
	Sessions session.Store
	// LLM is the completion client; nil means no credential is configured
	// and every request gets the fixed fallback message.
	LLM llm.Completer
	// Registrar persists registrations extracted from replies.
	Registrar Registrar

	// HistoryLimit caps how many transcript turns are sent to the model.
	HistoryLimit int
	// MaxMessageRunes caps the inbound message length (0 disables the check).
	MaxMessageRunes int

	// locks serializes turns per session so concurrent requests with the same
	// token cannot interleave transcript reads and writes. Idle entries are
	// evicted opportunistically, like the session store's own sessions.
	lockMu sync.Mutex
	locks  map[string]*sessionLock
	lockN  uint64
}

// sessionLock is one per-session turn mutex plus its eviction bookkeeping.
type sessionLock struct {
	mu       sync.Mutex
	lastSeen time.Time
}

// sessionLockTTL must exceed any possible turn duration: entries are only
// removed after being idle this long, so an in-flight holder is never evicted.
const sessionLockTTL = time.Hour

// lockSession acquires the per-session mutex and returns its unlock func.
// GC of idle entries runs after a threshold of acquisitions, before the
// requested entry is touched.
func (s *ConsultService) lockSession(sessionID string) func() {
	now := time.Now()

	s.lockMu.Lock()
	if s.locks == nil {
		s.locks = make(map[string]*sessionLock)
	}
	s.lockN++
	if s.lockN >= 1000 {
		for k, l := range s.locks {
			if now.Sub(l.lastSeen) >= sessionLockTTL {
				delete(s.locks, k)
			}
		}
		s.lockN = 0
	}

	l, ok := s.locks[sessionID]
	if !ok {
		l = &sessionLock{}
		s.locks[sessionID] = l
	}
	l.lastSeen = now
	s.lockMu.Unlock()

	l.mu.Lock()
	return l.mu.Unlock
}

// NewConsultService constructs a ConsultService with the default history cap.
func NewConsultService(db *gorm.DB, store session.Store, completer llm.Completer, reg Registrar) *ConsultService {
	return &ConsultService{
		DB:              db,
		Sessions:        store,
		LLM:             completer,
		Registrar:       reg,
		HistoryLimit:    10,
		MaxMessageRunes: 2000,
	}
}

// Consult runs one chat turn for sessionID.
//
// Outcomes:
//   - no completer configured: the fixed fallback text, no external call,
//     no transcript or chat-log writes;
//   - model call fails: ErrCompletionFailed wrapping the cause (the handler
//     turns this into a generic apology);
//   - success: the visible reply (marker stripped, confirmation or apology
//     appended when a registration command was present), with the user and
//     assistant turns appended to the session and a chat-log row written.
func (s *ConsultService) Consult(ctx context.Context, sessionID string, req ConsultRequest) (*ConsultResult, error) {
	tr := otel.Tracer("services/ConsultService")
	ctx, span := tr.Start(ctx, "Consult",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("chat.step", req.Step),
		),
	)
	defer span.End()

	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(msg) > s.MaxMessageRunes {
		return nil, ErrMessageTooLong
	}

	if s.LLM == nil {
		return &ConsultResult{Message: FallbackMessage, Step: req.Step}, nil
	}

	unlock := s.lockSession(sessionID)
	defer unlock()

	reply, err := s.LLM.Complete(ctx, s.buildMessages(sessionID, req.Profile, msg))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}

	visible, outcome := s.postProcess(ctx, reply)

	s.Sessions.Append(sessionID,
		session.Turn{Role: session.RoleUser, Content: msg},
		session.Turn{Role: session.RoleAssistant, Content: visible},
	)

	if _, lerr := repo.CreateChatLog(ctx, s.DB, sessionID, msg, visible, req.Step); lerr != nil {
		// A lost log line must not break the conversation.
		log.Warn().Err(lerr).Str("session_id", sessionID).Msg("chat log insert failed")
	}

	return &ConsultResult{Message: visible, Step: req.Step, Registration: outcome}, nil
}

// buildMessages concatenates the system instruction, the trimmed stored
// transcript, and the current user message.
func (s *ConsultService) buildMessages(sessionID string, p Profile, msg string) []llm.Message {
	history := s.Sessions.Snapshot(sessionID)
	if limit := s.HistoryLimit; limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: systemPrompt(p)})
	for _, t := range history {
		role := llm.RoleUser
		if t.Role == session.RoleAssistant {
			role = llm.RoleAssistant
		}
		out = append(out, llm.Message{Role: role, Content: t.Content})
	}
	out = append(out, llm.Message{Role: llm.RoleUser, Content: msg})
	return out
}

// postProcess runs the registration extractor over the raw model reply and
// returns the visible text plus the extraction outcome (nil when the reply
// carried no command).
func (s *ConsultService) postProcess(ctx context.Context, reply string) (string, *RegistrationOutcome) {
	payload, cleaned, found := extractCommand(reply)
	if !found {
		return cleaned, nil
	}

	parsed, err := parseCommand(payload)
	if err != nil {
		log.Warn().Err(err).Msg("registration command unparseable")
		return appendSentence(cleaned, registrationApology), &RegistrationOutcome{Success: false}
	}
	if missing := parsed.missingFields(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("registration command incomplete")
		return appendSentence(cleaned, registrationApology), &RegistrationOutcome{Success: false}
	}

	reg, err := s.Registrar.Register(ctx, RegistrationInput{
		Name:       parsed.Name,
		Phone:      parsed.Phone,
		Email:      parsed.Email,
		Age:        parsed.Age,
		Level:      parsed.Level,
		Goals:      parsed.Goals,
		Experience: parsed.Experience,
		Program:    parsed.Program,
	})
	if err != nil {
		log.Error().Err(err).Msg("extracted registration insert failed")
		return appendSentence(cleaned, registrationApology), &RegistrationOutcome{Success: false}
	}

	return appendSentence(cleaned, confirmationSentence(reg)), &RegistrationOutcome{
		Success:        true,
		RegistrationID: reg.ID,
	}
}

// registrationApology is appended when a command was present but could not
// be turned into a registration.
const registrationApology = "К сожалению, не удалось оформить заявку автоматически. " +
	"Пожалуйста, оставьте контакты через форму на сайте, и мы запишем вас вручную."

// confirmationSentence names the generated identifier and the program.
func confirmationSentence(reg *domain.CourseRegistration) string {
	label := reg.Program
	if pr, ok := programByKey(reg.Program); ok {
		label = pr.Title
	}
	return fmt.Sprintf("Ваша заявка №%d на программу «%s» принята! Мы свяжемся с вами в ближайшее время.", reg.ID, label)
}

// appendSentence joins the visible reply and a trailing sentence, coping
// with replies that became empty after marker removal.
func appendSentence(text, sentence string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return sentence
	}
	return text + "\n\n" + sentence
}
