// Package runner drives the interactive terminal flows: the timed exam loop
// over the session controller, the result views, and untimed practice.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vqbank/vqb/internal/api"
	"github.com/vqbank/vqb/internal/i18n"
	"github.com/vqbank/vqb/internal/model"
	"github.com/vqbank/vqb/internal/session"
)

// Evaluator grades a single practice answer remotely.
type Evaluator interface {
	EvaluateResponse(ctx context.Context, questionID, answer string) (*api.Evaluation, error)
}

// Runner reads commands from in and renders to out. Input lines starting
// with ':' are commands; anything else is recorded as the answer to the
// current question.
type Runner struct {
	ctrl *session.Controller
	in   *bufio.Scanner
	out  io.Writer
}

func New(ctrl *session.Controller, in io.Reader, out io.Writer) *Runner {
	return &Runner{
		ctrl: ctrl,
		in:   bufio.NewScanner(in),
		out:  out,
	}
}

// Run resolves the initial phase and walks the exam through to its result
// views. A nil request means resume-only: without a mirrored session the
// runner prints the no-session explanation and returns.
func (r *Runner) Run(ctx context.Context, req *model.ExamRequest) error {
	phase, err := r.ctrl.Init(ctx, req)
	if err != nil {
		if api.IsUnauthenticated(err) {
			fmt.Fprintln(r.out, i18n.T(ctx, "LoginRequired"))
			return err
		}
		fmt.Fprintln(r.out, r.ctrl.NoSessionMessage())
		return err
	}
	defer r.ctrl.Close()

	if phase != session.PhaseInProgress {
		fmt.Fprintln(r.out, i18n.T(ctx, "NoExamSession"))
		if msg := r.ctrl.NoSessionMessage(); msg != "" {
			fmt.Fprintln(r.out, msg)
		}
		return nil
	}

	if err := r.examLoop(ctx); err != nil {
		return err
	}
	return r.resultViews(ctx)
}

// examLoop shows one question at a time until the exam is finished,
// cancelled, timed out, or the input runs dry. EOF leaves the attempt open;
// the mirrored session resumes it on the next run.
func (r *Runner) examLoop(ctx context.Context) error {
	sess := r.ctrl.Session()
	fmt.Fprintf(r.out, "%s: %s (%s)\n", i18n.T(ctx, "AppTitle"), sess.Subject.Name, strings.Join(sess.TopicNames(), ", "))
	fmt.Fprintln(r.out, i18n.Td(ctx, "TimeRemaining", map[string]any{"Clock": r.ctrl.Clock()}))

	i := 0
	for {
		if r.ctrl.Phase() != session.PhaseInProgress {
			fmt.Fprintln(r.out, i18n.T(ctx, "TimeExpired"))
			return nil
		}

		r.printQuestion(ctx, sess, i)
		line, ok := r.readLine()
		if !ok {
			return nil
		}

		switch {
		case line == ":finish":
			done, err := r.finish(ctx, model.StatusCompleted)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case line == ":cancel":
			done, err := r.finish(ctx, model.StatusCancelled)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		case line == ":next" || line == "":
			i = clamp(i+1, len(sess.Questions))
		case line == ":prev":
			i = clamp(i-1, len(sess.Questions))
		case strings.HasPrefix(line, ":goto "):
			n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, ":goto ")))
			if err != nil || n < 1 || n > len(sess.Questions) {
				fmt.Fprintf(r.out, "usage: :goto N (1..%d)\n", len(sess.Questions))
				continue
			}
			i = n - 1
		case line == ":time":
			fmt.Fprintln(r.out, i18n.Td(ctx, "TimeRemaining", map[string]any{"Clock": r.ctrl.Clock()}))
		case line == ":status":
			fmt.Fprintln(r.out, i18n.Tp(ctx, "AnsweredCount", r.ctrl.Answered()))
		case strings.HasPrefix(line, ":"):
			fmt.Fprintln(r.out, "commands: :next :prev :goto N :time :status :finish :cancel")
		default:
			if err := r.ctrl.RecordAnswer(i, line); err != nil {
				if errors.Is(err, session.ErrNotInProgress) {
					fmt.Fprintln(r.out, i18n.T(ctx, "TimeExpired"))
					return nil
				}
				fmt.Fprintln(r.out, err)
				continue
			}
			i = clamp(i+1, len(sess.Questions))
		}
	}
}

// finish submits with the given terminal status. A failed submission keeps
// the attempt open so the user can retry; losing the race against the timer
// counts as done.
func (r *Runner) finish(ctx context.Context, status model.SessionStatus) (bool, error) {
	_, err := r.ctrl.Finish(ctx, status)
	switch {
	case err == nil:
		if status == model.StatusCancelled {
			fmt.Fprintln(r.out, i18n.T(ctx, "ExamCancelled"))
		} else {
			fmt.Fprintln(r.out, i18n.T(ctx, "ExamSubmitted"))
		}
		return true, nil
	case errors.Is(err, session.ErrAlreadyFinalized), errors.Is(err, session.ErrNotInProgress):
		fmt.Fprintln(r.out, i18n.T(ctx, "TimeExpired"))
		return true, nil
	case errors.Is(err, session.ErrSubmissionInFlight):
		return false, nil
	default:
		fmt.Fprintf(r.out, "submission failed: %v (answers kept, try again)\n", err)
		return false, nil
	}
}

func (r *Runner) printQuestion(ctx context.Context, sess *model.ExamSession, i int) {
	q := sess.Questions[i].Question
	fmt.Fprintf(r.out, "\n%s\n", i18n.Td(ctx, "QuestionHeader", map[string]any{"Index": i + 1, "Total": len(sess.Questions)}))
	fmt.Fprintln(r.out, q.QuestionText)
	for _, opt := range q.Options {
		fmt.Fprintf(r.out, "  - %s\n", opt)
	}
	if cur := r.ctrl.Answer(i); cur != "" {
		fmt.Fprintf(r.out, "  [current answer: %s]\n", cur)
	}
	fmt.Fprint(r.out, "> ")
}

// resultViews renders the graded summary and, on request, the per-question
// detail. A failed detail fetch leaves the summary up and can be retried.
func (r *Runner) resultViews(ctx context.Context) error {
	if r.ctrl.Phase() != session.PhaseResultSummary {
		if msg := r.ctrl.FinishMessage(); msg != "" {
			fmt.Fprintln(r.out, msg)
		}
		return nil
	}

	r.printSummary(ctx)
	for {
		fmt.Fprint(r.out, "View detailed result? [y/N] ")
		line, ok := r.readLine()
		if !ok || !strings.EqualFold(line, "y") {
			return nil
		}
		if err := r.ctrl.ViewDetail(ctx); err != nil {
			fmt.Fprintln(r.out, i18n.T(ctx, "DetailUnavailable"))
			continue
		}
		r.printDetail(ctx)
		r.ctrl.Back()
		return nil
	}
}

func (r *Runner) printSummary(ctx context.Context) {
	res := r.ctrl.Result()
	sess := r.ctrl.Session()

	fmt.Fprintln(r.out, i18n.Td(ctx, "ResultScore", map[string]any{
		"Percentage": strconv.FormatFloat(res.Percentage, 'f', -1, 64),
		"Correct":    res.CorrectAnswers,
	}))
	if res.IsPass {
		fmt.Fprintln(r.out, i18n.T(ctx, "ResultPass"))
	} else {
		fmt.Fprintln(r.out, i18n.T(ctx, "ResultFail"))
	}
	fmt.Fprintln(r.out, i18n.Td(ctx, "TimeTaken", map[string]any{"TimeTaken": sess.TimeTaken}))
	fmt.Fprintf(r.out, "Started:  %s\n", session.FormatDateTime(sess.StartTime))
	if sess.EndTime != nil {
		fmt.Fprintf(r.out, "Finished: %s\n", session.FormatDateTime(*sess.EndTime))
	}
}

func (r *Runner) printDetail(ctx context.Context) {
	detail := r.ctrl.Detail()
	for i, qa := range detail.Questions {
		fmt.Fprintf(r.out, "\n%s\n", i18n.Td(ctx, "QuestionHeader", map[string]any{"Index": i + 1, "Total": len(detail.Questions)}))
		fmt.Fprintln(r.out, qa.Question.QuestionText)
		fmt.Fprintf(r.out, "  your answer: %s\n", orDash(qa.UserAnswer))
		if qa.IsCorrect != nil {
			if *qa.IsCorrect {
				fmt.Fprintln(r.out, "  verdict: correct")
			} else {
				fmt.Fprintln(r.out, "  verdict: incorrect")
				if qa.Question.CorrectAnswer != "" {
					fmt.Fprintf(r.out, "  correct answer: %s\n", qa.Question.CorrectAnswer)
				}
			}
		}
		if qa.Feedback != "" {
			fmt.Fprintf(r.out, "  feedback: %s\n", qa.Feedback)
		}
		if qa.Question.Explanation != "" {
			fmt.Fprintf(r.out, "  explanation: %s\n", qa.Question.Explanation)
		}
	}
}

// Practice runs the untimed loop: each answer is graded immediately by the
// backend. Blank input skips a question; ":quit" ends the session.
func Practice(ctx context.Context, ev Evaluator, questions []model.Question, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for i, q := range questions {
		fmt.Fprintf(out, "\n%s\n", i18n.Td(ctx, "QuestionHeader", map[string]any{"Index": i + 1, "Total": len(questions)}))
		fmt.Fprintln(out, q.QuestionText)
		for _, opt := range q.Options {
			fmt.Fprintf(out, "  - %s\n", opt)
		}
		fmt.Fprint(out, "> ")

		if !sc.Scan() {
			return sc.Err()
		}
		answer := strings.TrimSpace(sc.Text())
		if answer == ":quit" {
			return nil
		}
		if answer == "" {
			continue
		}

		verdict, err := ev.EvaluateResponse(ctx, q.ID, answer)
		if err != nil {
			fmt.Fprintf(out, "evaluation failed: %v\n", err)
			continue
		}
		if verdict.IsCorrect {
			fmt.Fprintln(out, i18n.T(ctx, "PracticeCorrect"))
		} else {
			fmt.Fprintln(out, i18n.T(ctx, "PracticeIncorrect"))
		}
		if verdict.Message != "" {
			fmt.Fprintln(out, verdict.Message)
		}
	}
	return nil
}

func (r *Runner) readLine() (string, bool) {
	if !r.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(r.in.Text()), true
}

// clamp keeps a question index inside [0, n).
func clamp(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
