package chat

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	apperr "github.com/zohaibmohd/marginfi-ai-chatbot/internal/errors"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/report"
	"github.com/zohaibmohd/marginfi-ai-chatbot/internal/router"
)

// apology is the only thing an end user sees when the completion service
// fails; the real error goes to the log.
const apology = "Sorry, I'm having trouble answering right now. Please try again in a moment."

// DefaultSessionID is used when the caller does not name a session.
const DefaultSessionID = "default"

// SnapshotSource is the cache surface the orchestrator needs.
type SnapshotSource interface {
	Get(ctx context.Context) (*report.Collection, error)
	Invalidate()
}

// Orchestrator answers chat messages. With a completion client configured it
// sends history plus a snapshot context blob upstream; without one it falls
// back to the deterministic query router.
type Orchestrator struct {
	snapshots SnapshotSource
	sessions  *SessionStore
	completer Completer
	log       zerolog.Logger
}

func NewOrchestrator(snapshots SnapshotSource, sessions *SessionStore, completer Completer, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		snapshots: snapshots,
		sessions:  sessions,
		completer: completer,
		log:       log.With().Str("component", "chat").Logger(),
	}
}

// Reply handles one user message for a session.
func (o *Orchestrator) Reply(ctx context.Context, sessionID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", apperr.New(apperr.CodeValidation, "message is required")
	}
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	collection, err := o.snapshots.Get(ctx)
	if err != nil {
		// No snapshot at all; the router renders the no-data answer.
		o.log.Warn().Err(err).Msg("no snapshot available for chat")
		collection = nil
	}

	reply := o.compose(ctx, sessionID, message, collection)

	if err := o.remember(sessionID, message, reply); err != nil {
		return "", err
	}
	return reply, nil
}

func (o *Orchestrator) compose(ctx context.Context, sessionID, message string, collection *report.Collection) string {
	if o.completer == nil {
		return router.Answer(message, collection)
	}

	var history []Message
	if o.sessions != nil {
		var err error
		history, err = o.sessions.History(sessionID)
		if err != nil {
			o.log.Error().Err(err).Str("session", sessionID).Msg("history read failed, continuing without it")
			history = nil
		}
	}

	messages := BuildMessages(snapshotContext(collection), history, message)
	reply, err := o.completer.Complete(ctx, messages)
	if err != nil {
		o.log.Error().Err(err).Msg("completion failed")
		return apology
	}
	return reply
}

func (o *Orchestrator) remember(sessionID, message, reply string) error {
	if o.sessions == nil {
		return nil
	}
	if err := o.sessions.Append(sessionID, Message{Role: RoleUser, Content: message}); err != nil {
		return err
	}
	return o.sessions.Append(sessionID, Message{Role: RoleAssistant, Content: reply})
}

// ClearSession drops one session's history.
func (o *Orchestrator) ClearSession(sessionID string) error {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	if o.sessions == nil {
		return nil
	}
	return o.sessions.Clear(sessionID)
}

// Reset forces the next read to refetch the snapshot.
func (o *Orchestrator) Reset() {
	o.snapshots.Invalidate()
}

// snapshotContext renders the full bank listing the completion service is
// allowed to quote from.
func snapshotContext(c *report.Collection) string {
	if c == nil || len(c.Reports) == 0 {
		return "No bank data is currently available."
	}
	return router.Answer("show all banks", c)
}
