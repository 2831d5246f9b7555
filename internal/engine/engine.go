package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"maestro/internal/capability"
	"maestro/internal/config"
	"maestro/internal/decompose"
	"maestro/internal/notify"
	"maestro/internal/reflection"
	"maestro/internal/router"
	"maestro/internal/state"
	"maestro/pkg/models"
)

var (
	// ErrSourceBlocked indicates the request came from a blocked source.
	// No session is created.
	ErrSourceBlocked = errors.New("request source is blocked")
	// ErrDuplicateMessage indicates the external message ID was already
	// processed. No session is created.
	ErrDuplicateMessage = errors.New("duplicate message")
)

// Request is one raw assistant request handed to the engine.
type Request struct {
	// Source identifies where the request came from (channel, user, hook).
	Source string
	// MessageID is the external message identifier, if any.
	MessageID string
	// Text is the natural-language request.
	Text string
}

// Engine runs sessions through the full lifecycle. One Engine serves many
// sessions; each Process call is independent and safe to run concurrently.
type Engine struct {
	router     *router.Router
	registry   *capability.Registry
	decomposer *decompose.Decomposer
	retry      *RetryCoordinator
	store      state.Store
	notifier   notify.Notifier
	reflector  *reflection.Engine
	emitter    *EventEmitter
	logger     *DebugLogger

	parallelLimit    int
	sessionTimeout   time.Duration
	reflectionWindow time.Duration
	blockedSources   map[string]bool

	// seenMessages suppresses duplicate message IDs within this engine's
	// lifetime; the store extends suppression across restarts.
	seenMu       sync.Mutex
	seenMessages map[string]bool

	newID func() string
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches a persistent session store. Without one the engine
// runs in-memory only.
func WithStore(s state.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithNotifier attaches an outbound notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithReflector attaches a reflection engine, run after each session's
// aggregation over the reflection window.
func WithReflector(r *reflection.Engine) Option {
	return func(e *Engine) { e.reflector = r }
}

// WithEmitter attaches an event emitter for observers.
func WithEmitter(em *EventEmitter) Option {
	return func(e *Engine) { e.emitter = em }
}

// WithLogger attaches a debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(e *Engine) {
		e.logger = l
		setPackageLogger(l)
	}
}

// WithIDGenerator overrides session ID generation. Used in tests for
// reproducible unit IDs.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithClock overrides the engine's time source.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// New creates an Engine from the given config, classifier, and collaborator
// registry.
func New(cfg *config.Config, classifier router.Classifier, registry *capability.Registry, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}

	blocked := make(map[string]bool, len(cfg.Router.BlockedSources))
	for _, s := range cfg.Router.BlockedSources {
		blocked[s] = true
	}

	e := &Engine{
		router:           router.New(classifier, cfg.Router.ConfidenceFloor),
		registry:         registry,
		decomposer:       decompose.New(),
		retry:            NewRetryCoordinator(cfg.Engine.MaxRetryAttempts, cfg.Engine.RetryBackoffBase, cfg.Engine.RetryBackoffMax),
		logger:           NopLogger(),
		parallelLimit:    cfg.Engine.ParallelExecutionLimit,
		sessionTimeout:   cfg.Engine.SessionTimeout,
		reflectionWindow: 24 * time.Hour,
		blockedSources:   blocked,
		seenMessages:     make(map[string]bool),
		newID:            newSessionID,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

// newSessionID generates a short random session identifier.
func newSessionID() string {
	return uuid.New().String()[:8]
}

// Process runs one request end to end and returns the finished session.
//
// Blocked sources and duplicate message IDs are rejected before any session
// exists. Classification and cycle errors end the session in FAILED; unit
// failures do not fail the session, they surface in its outcome.
func (e *Engine) Process(ctx context.Context, req Request) (*models.Session, error) {
	if req.Source != "" && e.blockedSources[req.Source] {
		e.logger.Log("[engine] dropping request from blocked source %q", req.Source)
		return nil, ErrSourceBlocked
	}
	if req.MessageID != "" {
		dup, err := e.markSeen(req.MessageID)
		if err != nil {
			return nil, fmt.Errorf("duplicate check: %w", err)
		}
		if dup {
			e.logger.Log("[engine] dropping duplicate message %q", req.MessageID)
			return nil, ErrDuplicateMessage
		}
	}

	sess := &models.Session{
		ID:        e.newID(),
		RawInput:  req.Text,
		Source:    req.Source,
		MessageID: req.MessageID,
		Status:    models.SessionReceived,
		CreatedAt: e.now(),
	}
	if e.store != nil {
		if err := e.store.CreateSession(sess); err != nil {
			return nil, fmt.Errorf("persist session: %w", err)
		}
	}
	e.emit(Event{Type: EventSessionReceived, SessionID: sess.ID, Message: strings.TrimSpace(req.Text)})
	e.logger.Log("[engine] session %s received from %q", sess.ID, req.Source)

	intent, err := e.router.Classify(ctx, req.Text)
	if err != nil {
		return sess, e.failSession(ctx, sess, err)
	}
	sess.Status = models.SessionIntentAnalyzed
	e.persistSession(sess)
	e.emit(Event{
		Type:       EventIntentAnalyzed,
		SessionID:  sess.ID,
		Capability: intent.Kind,
		Message:    fmt.Sprintf("kind=%s compound=%v confidence=%.2f", intent.Kind, intent.IsCompound, intent.Confidence),
	})

	g, err := e.decomposer.Decompose(sess.ID, intent, req.Text)
	if err != nil {
		return sess, e.failSession(ctx, sess, err)
	}
	if intent.IsCompound {
		sess.Status = models.SessionDecomposed
		e.persistSession(sess)
	}

	for _, u := range g.Units() {
		sess.UnitIDs = append(sess.UnitIDs, u.ID)
		if e.store != nil {
			if err := e.store.CreateTaskUnit(u); err != nil {
				return sess, e.failSession(ctx, sess, fmt.Errorf("persist unit %s: %w", u.ID, err))
			}
		}
	}
	e.logger.Log("[engine] session %s decomposed into %d unit(s)", sess.ID, g.Size())

	sess.Status = models.SessionExecuting
	e.persistSession(sess)

	runCtx := ctx
	if e.sessionTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.sessionTimeout)
		defer cancel()
	}
	if err := e.runGraph(runCtx, sess, g); err != nil {
		// Timeout or cancellation: remaining units were settled by the run
		// loop. The session still aggregates whatever completed.
		e.logger.Log("[engine] session %s run loop stopped early: %v", sess.ID, err)
	}

	sess.Status = models.SessionAggregating
	e.persistSession(sess)
	sess.Outcome, sess.Summary = Aggregate(g)
	e.logger.Log("[engine] session %s aggregated: %s", sess.ID, sess.Outcome)

	sess.Status = models.SessionReflected
	e.persistSession(sess)
	if e.reflector != nil {
		if report, err := e.reflector.Report(e.reflectionWindow); err != nil {
			e.logger.Log("[engine] session %s reflection failed: %v", sess.ID, err)
		} else if e.notifier != nil {
			if err := e.notifier.NotifyReflection(ctx, notify.ReflectionNotification{Report: report}); err != nil {
				e.logger.Log("[engine] session %s reflection notify failed: %v", sess.ID, err)
			}
		}
	}

	completed := e.now()
	if e.notifier != nil {
		err := e.notifier.NotifyOutcome(ctx, notify.OutcomeNotification{
			SessionID:   sess.ID,
			Outcome:     sess.Outcome,
			Summary:     sess.Summary,
			CompletedAt: completed,
		})
		if err != nil {
			// Notification loss never changes session state.
			e.logger.Log("[engine] session %s outcome notify failed: %v", sess.ID, err)
		}
	}
	sess.Status = models.SessionNotified
	e.persistSession(sess)

	sess.Status = models.SessionDone
	sess.CompletedAt = &completed
	e.persistSession(sess)
	e.emit(Event{Type: EventSessionDone, SessionID: sess.ID, Message: string(sess.Outcome)})
	e.logger.Log("[engine] session %s done in %s", sess.ID, sess.Duration())

	return sess, nil
}

// markSeen records a message ID and reports whether it was already seen,
// consulting the store when one is attached.
func (e *Engine) markSeen(messageID string) (bool, error) {
	e.seenMu.Lock()
	defer e.seenMu.Unlock()

	if e.seenMessages[messageID] {
		return true, nil
	}
	if e.store != nil {
		dup, err := e.store.HasMessageID(messageID)
		if err != nil {
			return false, err
		}
		if dup {
			e.seenMessages[messageID] = true
			return true, nil
		}
	}
	e.seenMessages[messageID] = true
	return false, nil
}

// failSession moves a session to FAILED with the given cause.
func (e *Engine) failSession(ctx context.Context, sess *models.Session, cause error) error {
	completed := e.now()
	sess.Status = models.SessionFailed
	sess.Outcome = models.OutcomeFailure
	sess.Summary = cause.Error()
	sess.CompletedAt = &completed
	e.persistSession(sess)
	e.logger.Log("[engine] session %s failed: %v", sess.ID, cause)

	if e.notifier != nil {
		notifyErr := e.notifier.NotifyOutcome(ctx, notify.OutcomeNotification{
			SessionID:   sess.ID,
			Outcome:     models.OutcomeFailure,
			Summary:     sess.Summary,
			CompletedAt: completed,
		})
		if notifyErr != nil {
			e.logger.Log("[engine] session %s failure notify failed: %v", sess.ID, notifyErr)
		}
	}
	e.emit(Event{Type: EventSessionDone, SessionID: sess.ID, Err: cause})
	return cause
}

// persistSession writes the session when a store is attached. Persistence
// failures are logged, not fatal: the in-memory session remains authoritative
// for the current run.
func (e *Engine) persistSession(sess *models.Session) {
	if e.store == nil {
		return
	}
	if err := e.store.UpdateSession(sess); err != nil {
		e.logger.Log("[engine] persist session %s: %v", sess.ID, err)
	}
}

// persistUnit writes a unit when a store is attached.
func (e *Engine) persistUnit(u *models.TaskUnit) {
	if e.store == nil {
		return
	}
	if err := e.store.UpdateTaskUnit(u); err != nil {
		e.logger.Log("[engine] persist unit %s: %v", u.ID, err)
	}
}

// emit sends an event when an emitter is attached.
func (e *Engine) emit(ev Event) {
	if e.emitter == nil {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = e.now()
	}
	e.emitter.Emit(ev)
}
