// ABOUTME: Admission controller orchestrating quota, gate, dispatch, and logging.
// ABOUTME: Guarantees the per-user slot is released on every exit path.

package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/heliomancer/aplmint/internal/dispatch"
	"github.com/heliomancer/aplmint/internal/gate"
	"github.com/heliomancer/aplmint/internal/models"
	"github.com/heliomancer/aplmint/internal/quota"
	"github.com/heliomancer/aplmint/internal/store"
)

// Admission outcomes, also used as metric labels.
const (
	OutcomeCompleted   = "completed"
	OutcomeFailed      = "failed"       // admitted, but dispatch or logging failed
	OutcomeDeniedQuota = "denied_quota"
	OutcomeDeniedBusy  = "denied_busy"
	OutcomeAborted     = "aborted" // infrastructure failure before admission
)

// Request is one inbound message from the transport layer.
type Request struct {
	UserID   int64
	Username string // display label, may be empty
	ChatID   int64
	Prompt   string
}

// Outcome describes how a request terminated. Reply is the text that was
// sent (or attempted) to the user; Err carries the internal error for
// failed and aborted outcomes and is never shown to the user.
type Outcome struct {
	Status string
	Reply  string
	Err    error
}

// Transport delivers replies and progress indicators back to the user.
type Transport interface {
	// SendReply sends the terminal reply for a request.
	SendReply(ctx context.Context, chatID int64, text string) error

	// SendTyping emits a non-terminal "working" indicator.
	SendTyping(ctx context.Context, chatID int64) error
}

// Dispatcher issues one completion call to the external provider.
type Dispatcher interface {
	Complete(ctx context.Context, prompt, modelID string) (string, error)
}

// QueryLog is what the controller needs from storage: append-only log
// writes for completed requests.
type QueryLog interface {
	AppendQueryLog(ctx context.Context, entry *store.QueryLogEntry) error
}

// Recorder receives admission telemetry. Satisfied by *metrics.Metrics.
type Recorder interface {
	RecordRequest(outcome string)
	RecordDispatch(model string, elapsed time.Duration)
	RecordDispatchFailure(kind string)
}

// Controller decides, for each inbound request, whether it may proceed,
// serializes each user's own requests, dispatches admitted requests, and
// reconciles state afterward. It owns all mutation of the in-flight set.
type Controller struct {
	gate       *gate.Gate
	quota      *quota.Tracker
	prefs      *models.Prefs
	dispatcher Dispatcher
	transport  Transport
	logs       QueryLog
	recorder   Recorder
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the controller's time source for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		c.recorder = r
	}
}

// New creates an admission controller over its collaborators.
func New(g *gate.Gate, q *quota.Tracker, prefs *models.Prefs, d Dispatcher, t Transport, logs QueryLog, logger *slog.Logger, opts ...Option) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		gate:       g,
		quota:      q,
		prefs:      prefs,
		dispatcher: d,
		transport:  t,
		logs:       logs,
		logger:     logger.With("component", "admission"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Gate exposes the in-flight gate for observability (metrics, health).
func (c *Controller) Gate() *gate.Gate {
	return c.gate
}

// Handle runs the full request lifecycle: quota check, gate acquisition,
// model resolution, dispatch, logging, reply, release. Exactly one terminal
// reply is sent per request. It never returns an error to the serving loop;
// every failure is converted to a fixed user-facing message.
func (c *Controller) Handle(ctx context.Context, req *Request) Outcome {
	outcome := func() (out Outcome) {
		// A panic anywhere in the lifecycle must not take down the serving
		// loop. The deferred gate release inside handle has already run by
		// the time this recover fires.
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("panic handling request", "user_id", req.UserID, "panic", r)
				out = Outcome{Status: OutcomeFailed, Reply: msgInternalError, Err: fmt.Errorf("panic: %v", r)}
				c.deliver(ctx, req, out.Reply)
			}
		}()
		return c.handle(ctx, req)
	}()

	if c.recorder != nil {
		c.recorder.RecordRequest(outcome.Status)
	}
	return outcome
}

func (c *Controller) handle(ctx context.Context, req *Request) Outcome {
	// Quota check. Runs before any gate interaction; a store outage aborts
	// the request rather than guessing a count of zero.
	exceeded, err := c.quota.Exceeded(ctx, req.UserID)
	if err != nil {
		c.logger.Error("quota check failed", "user_id", req.UserID, "error", err)
		out := Outcome{Status: OutcomeAborted, Reply: msgInternalError, Err: err}
		c.deliver(ctx, req, out.Reply)
		return out
	}
	if exceeded {
		c.logger.Warn("daily limit reached", "user_id", req.UserID, "username", req.Username)
		out := Outcome{Status: OutcomeDeniedQuota, Reply: quotaExceededMessage(c.quota.Limit())}
		c.deliver(ctx, req, out.Reply)
		return out
	}

	// Gate check. Atomic check-and-insert; a denial mutates nothing.
	if !c.gate.TryAcquire(req.UserID) {
		c.logger.Info("concurrent request rejected", "user_id", req.UserID, "username", req.Username)
		out := Outcome{Status: OutcomeDeniedBusy, Reply: msgBusy}
		c.deliver(ctx, req, out.Reply)
		return out
	}
	// The slot is held from here on. Deferring the release immediately
	// after acquisition means no exit path, including a panic in dispatch
	// or logging, can leave the user locked out. The terminal reply is
	// delivered before this defer fires: the release stays the last
	// action of the lifecycle even when delivery fails.
	defer c.gate.Release(req.UserID)

	out := c.process(ctx, req)
	c.deliver(ctx, req, out.Reply)
	return out
}

// deliver sends the terminal reply, logging (never propagating) delivery
// failures.
func (c *Controller) deliver(ctx context.Context, req *Request, reply string) {
	if reply == "" {
		return
	}
	if err := c.transport.SendReply(ctx, req.ChatID, reply); err != nil {
		c.logger.Warn("reply delivery failed",
			"user_id", req.UserID,
			"chat_id", req.ChatID,
			"error", err,
		)
	}
}

// process runs the admitted portion of the lifecycle: resolve model,
// dispatch, log. The caller holds (and will release) the user's slot.
func (c *Controller) process(ctx context.Context, req *Request) Outcome {
	model, err := c.prefs.Selected(ctx, req.UserID)
	if err != nil {
		c.logger.Error("model resolution failed", "user_id", req.UserID, "error", err)
		return Outcome{Status: OutcomeFailed, Reply: msgInternalError, Err: err}
	}

	if err := c.transport.SendTyping(ctx, req.ChatID); err != nil {
		// Progress indicator only; the request proceeds without it.
		c.logger.Debug("typing indicator failed", "chat_id", req.ChatID, "error", err)
	}

	started := c.now()
	text, err := c.dispatcher.Complete(ctx, req.Prompt, model)
	if c.recorder != nil {
		c.recorder.RecordDispatch(model, c.now().Sub(started))
	}
	if err != nil {
		return c.dispatchFailure(req, model, err)
	}

	// Log before the reply goes out: quota counts successful completions,
	// and the gate is still held here, so a follow-up request from the
	// same user cannot race the log write.
	entry := &store.QueryLogEntry{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		Username:  req.Username,
		ChatID:    req.ChatID,
		Model:     model,
		CreatedAt: c.now(),
	}
	if err := c.logs.AppendQueryLog(ctx, entry); err != nil {
		c.logger.Error("query log append failed", "user_id", req.UserID, "error", err)
		return Outcome{Status: OutcomeFailed, Reply: msgInternalError, Err: err}
	}

	c.logger.Info("query completed",
		"user_id", req.UserID,
		"username", req.Username,
		"model", model,
	)
	return Outcome{Status: OutcomeCompleted, Reply: text}
}

// dispatchFailure maps a classified dispatch error to its fixed user-facing
// message. No query log entry is written for failed completions.
func (c *Controller) dispatchFailure(req *Request, model string, err error) Outcome {
	var kind, reply string
	switch {
	case errors.Is(err, dispatch.ErrProviderRejected):
		kind, reply = "provider_rejected", msgProviderError
	case errors.Is(err, dispatch.ErrNetworkUnreachable):
		kind, reply = "network_unreachable", msgNetworkError
	default:
		kind, reply = "unexpected", msgInternalError
	}

	if c.recorder != nil {
		c.recorder.RecordDispatchFailure(kind)
	}
	c.logger.Error("completion dispatch failed",
		"user_id", req.UserID,
		"model", model,
		"kind", kind,
		"error", err,
	)
	return Outcome{Status: OutcomeFailed, Reply: reply, Err: fmt.Errorf("dispatching completion: %w", err)}
}
