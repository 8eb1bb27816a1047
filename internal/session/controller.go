// Package session owns the timed exam attempt: the phase router, the
// countdown, and the finalize-and-submit step. Everything else in the client
// is stateless request/response; this package is where the invariants live.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vqbank/vqb/internal/api"
	"github.com/vqbank/vqb/internal/model"
)

// Phase is the top-level state of the exam flow.
type Phase int

const (
	PhaseNoSession Phase = iota
	PhaseInProgress
	PhaseResultSummary
	PhaseResultDetail
)

func (p Phase) String() string {
	switch p {
	case PhaseNoSession:
		return "no-session"
	case PhaseInProgress:
		return "in-progress"
	case PhaseResultSummary:
		return "result-summary"
	case PhaseResultDetail:
		return "result-detail"
	default:
		return "unknown"
	}
}

// noSessionHint explains the most common reason a start request is rejected.
const noSessionHint = "To start an exam, make sure there are enough questions available in the question bank. At least 40% of the required questions must match your selected criteria."

var (
	// ErrNotInProgress is returned when an operation requires a running exam.
	ErrNotInProgress = errors.New("no exam in progress")

	// ErrSubmissionInFlight is returned when finish is called while a
	// previous submission has not come back yet.
	ErrSubmissionInFlight = errors.New("submission already in flight")

	// ErrAlreadyFinalized is returned when the session was already submitted.
	ErrAlreadyFinalized = errors.New("session already finalized")
)

// Backend is the slice of the API client the controller needs.
type Backend interface {
	StartExam(ctx context.Context, req model.ExamRequest) (*model.ExamSession, error)
	FinishExam(ctx context.Context, sess *model.ExamSession) (*api.FinishOutcome, error)
	DetailResult(ctx context.Context, sessionID string) (*model.DetailResult, error)
}

// Mirror is the durable local copy of the active session. The controller is
// its only writer: one save when the session is created, one clear when the
// finish submission succeeds.
type Mirror interface {
	SaveSession(sess *model.ExamSession) error
	LoadSession() (*model.ExamSession, error)
	ClearSession() error
}

// Guard is the navigation lock held for exactly as long as an exam is in
// progress, so the user cannot wander off and silently lose a timed attempt.
type Guard interface {
	Acquire()
	Release()
}

// NopGuard is a Guard that does nothing.
type NopGuard struct{}

func (NopGuard) Acquire() {}
func (NopGuard) Release() {}

// Controller drives one exam attempt through its phases. All methods are safe
// for concurrent use; the countdown expiry races the user's own finish and
// the controller guarantees at most one submission wins.
type Controller struct {
	backend Backend
	mirror  Mirror
	guard   Guard
	logger  *slog.Logger

	now  func() time.Time
	tick time.Duration

	mu           sync.Mutex
	phase        Phase
	session      *model.ExamSession
	answers      []string
	countdown    *Countdown
	guardHeld    bool
	submitting   bool
	finalized    bool
	result       *model.Result
	detail       *model.DetailResult
	finishMsg    string
	noSessionMsg string
}

// NewController creates a controller in the NoSession phase.
func NewController(backend Backend, mirror Mirror, guard Guard, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		backend: backend,
		mirror:  mirror,
		guard:   guard,
		logger:  logger,
		now:     time.Now,
		tick:    time.Second,
		phase:   PhaseNoSession,
	}
}

// Init resolves the initial phase. A mirrored session always wins so a
// restarted client resumes the attempt instead of starting a duplicate; only
// when no mirror exists does a non-nil request start a fresh session. With
// neither, the controller stays in NoSession with an explanatory message.
func (c *Controller) Init(ctx context.Context, req *model.ExamRequest) (Phase, error) {
	mirrored, err := c.mirror.LoadSession()
	if err != nil {
		return PhaseNoSession, fmt.Errorf("load mirrored session: %w", err)
	}
	if mirrored != nil {
		c.logger.Info("resuming mirrored exam session", "session_id", mirrored.ID)
		c.mu.Lock()
		c.enterInProgress(mirrored)
		c.mu.Unlock()
		return PhaseInProgress, nil
	}

	if req == nil {
		c.mu.Lock()
		c.noSessionMsg = "No exam details found. " + noSessionHint
		c.mu.Unlock()
		return PhaseNoSession, nil
	}

	if err := req.Validate(); err != nil {
		c.mu.Lock()
		c.noSessionMsg = err.Error()
		c.mu.Unlock()
		return PhaseNoSession, err
	}

	sess, err := c.backend.StartExam(ctx, *req)
	if err != nil {
		if api.IsUnauthenticated(err) {
			// No mirror is written; the caller redirects to login.
			return PhaseNoSession, err
		}
		c.mu.Lock()
		c.noSessionMsg = startFailureMessage(err)
		c.mu.Unlock()
		return PhaseNoSession, err
	}

	if sess.StartTime.IsZero() {
		sess.StartTime = c.now()
	}
	if sess.Status == "" {
		sess.Status = model.StatusInProgress
	}
	if err := c.mirror.SaveSession(sess); err != nil {
		return PhaseNoSession, fmt.Errorf("mirror new session: %w", err)
	}
	c.logger.Info("exam session started",
		"session_id", sess.ID,
		"subject", sess.Subject.Name,
		"questions", len(sess.Questions),
		"duration_min", sess.Duration)

	c.mu.Lock()
	c.enterInProgress(sess)
	c.mu.Unlock()
	return PhaseInProgress, nil
}

func startFailureMessage(err error) string {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message + " " + noSessionHint
	}
	return noSessionHint
}

// enterInProgress wires the countdown and the navigation guard. Caller holds
// c.mu. Remaining time is derived from wall clock so a resumed session keeps
// counting from where it was, not from the full duration.
func (c *Controller) enterInProgress(sess *model.ExamSession) {
	c.session = sess
	c.answers = make([]string, len(sess.Questions))
	for i, q := range sess.Questions {
		c.answers[i] = q.UserAnswer
	}

	remaining := sess.Duration*60 - int(c.now().Sub(sess.StartTime).Seconds())
	if remaining < 0 {
		remaining = 0
	}

	c.guard.Acquire()
	c.guardHeld = true
	c.phase = PhaseInProgress
	c.countdown = NewCountdown(remaining, c.tick, func() {
		c.expire()
	})
	c.countdown.Start()
}

// expire is the countdown's terminal callback: submit whatever is answered
// as Completed. Losing the race against a manual finish is fine; the flags
// inside Finish make the second submission a no-op.
func (c *Controller) expire() {
	c.logger.Info("exam time expired, auto-submitting")
	if _, err := c.Finish(context.Background(), model.StatusCompleted); err != nil &&
		!errors.Is(err, ErrAlreadyFinalized) && !errors.Is(err, ErrSubmissionInFlight) {
		c.logger.Error("auto-submit failed", "error", err)
	}
}

// RecordAnswer stores the answer for question i. Later writes to the same
// index win. Only valid while the exam is in progress.
func (c *Controller) RecordAnswer(i int, answer string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseInProgress {
		return ErrNotInProgress
	}
	if i < 0 || i >= len(c.answers) {
		return fmt.Errorf("question index %d out of range [0, %d)", i, len(c.answers))
	}
	c.answers[i] = answer
	return nil
}

// Answer returns the currently recorded answer for question i.
func (c *Controller) Answer(i int) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.answers) {
		return ""
	}
	return c.answers[i]
}

// Answered returns how many questions have a non-empty answer.
func (c *Controller) Answered() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, a := range c.answers {
		if a != "" {
			n++
		}
	}
	return n
}

// Finish stops the clock, finalizes the session with the given terminal
// status, and submits it. At most one submission succeeds per attempt: the
// countdown is stopped synchronously before finalizing, so a pending expiry
// can no longer fire, and the in-flight and finalized flags reject the
// raced duplicate. A failed submission leaves the attempt open for retry.
func (c *Controller) Finish(ctx context.Context, status model.SessionStatus) (*api.FinishOutcome, error) {
	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		return nil, ErrAlreadyFinalized
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if c.phase != PhaseInProgress {
		c.mu.Unlock()
		return nil, ErrNotInProgress
	}

	c.countdown.Stop()
	remaining := c.countdown.Remaining()
	snapshot := c.finalize(status, remaining)
	c.submitting = true
	c.mu.Unlock()

	outcome, err := c.backend.FinishExam(ctx, snapshot)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		c.logger.Error("finish submission failed", "session_id", snapshot.ID, "error", err)
		return nil, err
	}

	c.finalized = true
	if err := c.mirror.ClearSession(); err != nil {
		c.logger.Error("clear mirrored session failed", "error", err)
	}
	c.releaseGuard()
	c.session = snapshot
	c.finishMsg = outcome.Message

	if outcome.Result != nil {
		c.result = outcome.Result
		c.phase = PhaseResultSummary
	} else {
		c.phase = PhaseNoSession
		c.noSessionMsg = outcome.Message
	}
	c.logger.Info("exam session submitted",
		"session_id", snapshot.ID,
		"status", string(status),
		"time_taken", snapshot.TimeTaken)
	return outcome, nil
}

// finalize builds the submission snapshot: end time stamped, elapsed time
// formatted, recorded answers folded in with empty strings for unanswered
// questions. Caller holds c.mu.
func (c *Controller) finalize(status model.SessionStatus, remaining int) *model.ExamSession {
	snapshot := *c.session
	end := c.now()
	snapshot.EndTime = &end
	snapshot.Status = status
	snapshot.TimeTaken = FormatTimeTaken(snapshot.Duration*60 - remaining)

	snapshot.Questions = make([]model.QuestionAttempt, len(c.session.Questions))
	copy(snapshot.Questions, c.session.Questions)
	for i := range snapshot.Questions {
		snapshot.Questions[i].UserAnswer = c.answers[i]
	}
	return &snapshot
}

// ViewDetail fetches the graded per-question breakdown and moves to the
// detail phase. On failure the controller stays on the summary and the error
// is surfaced to the caller.
func (c *Controller) ViewDetail(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseResultSummary {
		c.mu.Unlock()
		return fmt.Errorf("no result to detail in phase %s", c.phase)
	}
	sessionID := c.result.ExamSession.ID
	if sessionID == "" {
		sessionID = c.session.ID
	}
	c.mu.Unlock()

	detail, err := c.backend.DetailResult(ctx, sessionID)
	if err != nil {
		c.logger.Warn("detail fetch failed, staying on summary", "error", err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != PhaseResultSummary {
		return nil
	}
	c.detail = detail
	c.phase = PhaseResultDetail
	return nil
}

// Back returns from the detail view to the summary.
func (c *Controller) Back() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == PhaseResultDetail {
		c.phase = PhaseResultSummary
	}
}

// Close tears the controller down: the countdown is cancelled and the guard
// released on every exit path. The mirror is left intact so an in-progress
// attempt survives the restart.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdown != nil {
		c.countdown.Stop()
	}
	c.releaseGuard()
}

// releaseGuard releases the navigation lock at most once. Caller holds c.mu.
func (c *Controller) releaseGuard() {
	if c.guardHeld {
		c.guard.Release()
		c.guardHeld = false
	}
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Session returns the active or finalized session.
func (c *Controller) Session() *model.ExamSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Result returns the graded summary, or nil before submission.
func (c *Controller) Result() *model.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// Detail returns the per-question breakdown, or nil before ViewDetail.
func (c *Controller) Detail() *model.DetailResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detail
}

// FinishMessage returns the backend's message from the finish submission.
func (c *Controller) FinishMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finishMsg
}

// NoSessionMessage explains why no exam is running.
func (c *Controller) NoSessionMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noSessionMsg
}

// Remaining returns the seconds left on the exam clock, or zero when no
// countdown exists.
func (c *Controller) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.countdown == nil {
		return 0
	}
	return c.countdown.Remaining()
}

// Clock returns the remaining time as "m:ss".
func (c *Controller) Clock() string {
	return FormatClock(c.Remaining())
}
