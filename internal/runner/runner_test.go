package runner

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vqbank/vqb/internal/api"
	"github.com/vqbank/vqb/internal/i18n"
	"github.com/vqbank/vqb/internal/model"
	"github.com/vqbank/vqb/internal/session"
)

func testContext(t *testing.T) context.Context {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}
	return i18n.WithLocalizer(context.Background(), i18n.NewLocalizer("en"))
}

type scriptBackend struct {
	mu            sync.Mutex
	startResp     *model.ExamSession
	finishOutcome *api.FinishOutcome
	finishPayload *model.ExamSession
	detailResp    *model.DetailResult
	detailErr     error
}

func (b *scriptBackend) StartExam(_ context.Context, _ model.ExamRequest) (*model.ExamSession, error) {
	return b.startResp, nil
}

func (b *scriptBackend) FinishExam(_ context.Context, sess *model.ExamSession) (*api.FinishOutcome, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finishPayload = sess
	return b.finishOutcome, nil
}

func (b *scriptBackend) DetailResult(_ context.Context, _ string) (*model.DetailResult, error) {
	return b.detailResp, b.detailErr
}

type memMirror struct {
	mu   sync.Mutex
	sess *model.ExamSession
}

func (m *memMirror) SaveSession(sess *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess
	return nil
}

func (m *memMirror) LoadSession() (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess, nil
}

func (m *memMirror) ClearSession() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

// liveSession builds a freshly started session so the countdown has the full
// duration left.
func liveSession(n int) *model.ExamSession {
	qs := make([]model.QuestionAttempt, n)
	for i := range qs {
		qs[i] = model.QuestionAttempt{
			Question: model.Question{
				ID:           fmt.Sprintf("q%d", i+1),
				QuestionText: fmt.Sprintf("Question %d?", i+1),
				QuestionType: model.QuestionTypeMCQ,
				Options:      []string{"A", "B", "C"},
			},
		}
	}
	return &model.ExamSession{
		ID:             "sess1",
		Subject:        model.SubjectRef{ID: "subj1", Name: "Physics"},
		TopicList:      []model.Topic{{ID: "t1", Name: "Optics"}},
		Duration:       10,
		TotalQuestions: n,
		StartTime:      time.Now(),
		Status:         model.StatusInProgress,
		Questions:      qs,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func examRequest() *model.ExamRequest {
	return &model.ExamRequest{
		SubjectID:      "subj1",
		SelectedTopics: []string{"t1"},
		Duration:       10,
		TotalQuestions: 2,
		QuestionType:   model.QuestionTypeMCQ,
		Difficulty:     model.DifficultyEasy,
	}
}

func TestRunHappyPathScript(t *testing.T) {
	ctx := testContext(t)

	detail := liveSession(2)
	yes := true
	detail.Questions[0].IsCorrect = &yes
	detail.Questions[0].Feedback = "Well reasoned."

	backend := &scriptBackend{
		startResp: liveSession(2),
		finishOutcome: &api.FinishOutcome{
			Message: "Result ready",
			Result: &model.Result{
				ID:             "r1",
				CorrectAnswers: 2,
				Percentage:     100,
				IsPass:         true,
				ExamSession:    model.ExamSession{ID: "sess1"},
			},
		},
		detailResp: detail,
	}
	mirror := &memMirror{}
	ctrl := session.NewController(backend, mirror, session.NopGuard{}, quietLogger())

	var out bytes.Buffer
	in := strings.NewReader("A\nB\n:finish\ny\n")
	r := New(ctrl, in, &out)

	if err := r.Run(ctx, examRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if backend.finishPayload == nil {
		t.Fatal("no submission reached the backend")
	}
	if got := backend.finishPayload.Questions[0].UserAnswer; got != "A" {
		t.Errorf("question 1 submitted %q, want A", got)
	}
	if got := backend.finishPayload.Questions[1].UserAnswer; got != "B" {
		t.Errorf("question 2 submitted %q, want B", got)
	}
	if backend.finishPayload.Status != model.StatusCompleted {
		t.Errorf("submitted status = %s, want Completed", backend.finishPayload.Status)
	}

	output := out.String()
	for _, want := range []string{
		"Question 1 of 2",
		"Exam submitted.",
		"Score: 100%",
		"Result: PASS",
		"feedback: Well reasoned.",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
	if mirror.sess != nil {
		t.Error("mirror not cleared after successful finish")
	}
}

func TestRunCancelScript(t *testing.T) {
	ctx := testContext(t)

	backend := &scriptBackend{
		startResp:     liveSession(3),
		finishOutcome: &api.FinishOutcome{Message: "Cancelled"},
	}
	ctrl := session.NewController(backend, &memMirror{}, session.NopGuard{}, quietLogger())

	var out bytes.Buffer
	in := strings.NewReader("A\n:cancel\n")
	r := New(ctrl, in, &out)

	if err := r.Run(ctx, examRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if backend.finishPayload.Status != model.StatusCancelled {
		t.Errorf("submitted status = %s, want Cancelled", backend.finishPayload.Status)
	}
	var empty int
	for _, q := range backend.finishPayload.Questions {
		if q.UserAnswer == "" {
			empty++
		}
	}
	if empty != 2 {
		t.Errorf("%d questions submitted blank, want 2", empty)
	}
	if !strings.Contains(out.String(), "Exam cancelled.") {
		t.Errorf("output missing cancel confirmation:\n%s", out.String())
	}
}

func TestRunNoSession(t *testing.T) {
	ctx := testContext(t)

	ctrl := session.NewController(&scriptBackend{}, &memMirror{}, session.NopGuard{}, quietLogger())

	var out bytes.Buffer
	r := New(ctrl, strings.NewReader(""), &out)

	if err := r.Run(ctx, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "No exam session available.") {
		t.Errorf("output missing no-session message:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "40%") {
		t.Errorf("output missing availability hint:\n%s", out.String())
	}
}

func TestRunDetailFailureKeepsSummary(t *testing.T) {
	ctx := testContext(t)

	backend := &scriptBackend{
		startResp: liveSession(1),
		finishOutcome: &api.FinishOutcome{
			Message: "Result ready",
			Result:  &model.Result{ID: "r1", Percentage: 0, ExamSession: model.ExamSession{ID: "sess1"}},
		},
		detailErr: fmt.Errorf("detail unavailable"),
	}
	ctrl := session.NewController(backend, &memMirror{}, session.NopGuard{}, quietLogger())

	var out bytes.Buffer
	// Try the detail view once, fail, then give up.
	in := strings.NewReader("A\n:finish\ny\nn\n")
	r := New(ctrl, in, &out)

	if err := r.Run(ctx, examRequest()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "Could not load the detailed result.") {
		t.Errorf("output missing recoverable detail notice:\n%s", out.String())
	}
}

type fakeEvaluator struct {
	calls []string
}

func (f *fakeEvaluator) EvaluateResponse(_ context.Context, questionID, answer string) (*api.Evaluation, error) {
	f.calls = append(f.calls, questionID+"="+answer)
	return &api.Evaluation{IsCorrect: answer == "A", Message: "The answer is A."}, nil
}

func TestPractice(t *testing.T) {
	ctx := testContext(t)

	questions := []model.Question{
		{ID: "q1", QuestionText: "First?", Options: []string{"A", "B"}},
		{ID: "q2", QuestionText: "Second?", Options: []string{"A", "B"}},
		{ID: "q3", QuestionText: "Third?"},
	}
	ev := &fakeEvaluator{}

	var out bytes.Buffer
	// Answer the first, skip the second, answer the third.
	in := strings.NewReader("A\n\nB\n")
	if err := Practice(ctx, ev, questions, in, &out); err != nil {
		t.Fatalf("Practice: %v", err)
	}

	if len(ev.calls) != 2 {
		t.Fatalf("evaluator called %d times, want 2 (skips are not graded)", len(ev.calls))
	}
	if ev.calls[0] != "q1=A" || ev.calls[1] != "q3=B" {
		t.Errorf("evaluator calls = %v", ev.calls)
	}
	output := out.String()
	if !strings.Contains(output, "Correct!") {
		t.Errorf("output missing correct verdict:\n%s", output)
	}
	if !strings.Contains(output, "Incorrect.") {
		t.Errorf("output missing incorrect verdict:\n%s", output)
	}
}

func TestPracticeQuit(t *testing.T) {
	ctx := testContext(t)

	ev := &fakeEvaluator{}
	questions := []model.Question{{ID: "q1", QuestionText: "First?"}, {ID: "q2", QuestionText: "Second?"}}

	var out bytes.Buffer
	in := strings.NewReader(":quit\n")
	if err := Practice(ctx, ev, questions, in, &out); err != nil {
		t.Fatalf("Practice: %v", err)
	}
	if len(ev.calls) != 0 {
		t.Errorf("evaluator called %d times after quit, want 0", len(ev.calls))
	}
}
