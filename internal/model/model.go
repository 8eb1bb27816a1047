package model

import (
	"time"
)

// QuestionType represents the kind of questions requested for an exam.
type QuestionType string

const (
	QuestionTypeMCQ         QuestionType = "MCQ"
	QuestionTypeDescriptive QuestionType = "Descriptive"
	QuestionTypeBoth        QuestionType = "Both"
)

// Difficulty represents a question difficulty filter.
type Difficulty string

const (
	DifficultyAll    Difficulty = "All"
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// SessionStatus represents the status of an exam session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "InProgress"
	StatusCompleted  SessionStatus = "Completed"
	StatusCancelled  SessionStatus = "Cancelled"
)

// Exam sizing limits. The backend enforces these as well; the client checks
// them up front so a bad request never leaves the machine.
const (
	MaxExamQuestions = 40
	MaxExamDuration  = 60 // minutes

	maxMCQQuestions         = 35
	maxDescriptiveQuestions = 23
	maxMixedQuestions       = 30
)

// MaxQuestionsFor returns the per-type question cap, bounded by
// MaxExamQuestions.
func MaxQuestionsFor(qt QuestionType) int {
	var limit int
	switch qt {
	case QuestionTypeMCQ:
		limit = maxMCQQuestions
	case QuestionTypeDescriptive:
		limit = maxDescriptiveQuestions
	case QuestionTypeBoth:
		limit = maxMixedQuestions
	default:
		limit = MaxExamQuestions
	}
	if limit > MaxExamQuestions {
		limit = MaxExamQuestions
	}
	return limit
}

// ExamRequest is the set of parameters used to request a new timed exam.
// Built once from CLI flags, consumed by the start-exam call, then discarded.
type ExamRequest struct {
	Subject        string       `json:"subject"`
	SubjectID      string       `json:"subjectId" validate:"required"`
	SelectedTopics []string     `json:"selectedTopics" validate:"required,min=1,dive,required"`
	Duration       int          `json:"duration" validate:"required,min=1,max=60"`
	TotalQuestions int          `json:"totalQuestions" validate:"required,min=1"`
	QuestionType   QuestionType `json:"questionType" validate:"required,oneof=MCQ Descriptive Both"`
	Difficulty     Difficulty   `json:"difficulty" validate:"required,oneof=All Easy Medium Hard"`
}

// SubjectRef is a populated subject reference as embedded by the backend.
type SubjectRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// UserRef is a populated user reference as embedded by the backend.
type UserRef struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Topic is one topic of a subject.
type Topic struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Subject is one subject of the question bank.
type Subject struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Question is a read-only question owned by the question bank.
type Question struct {
	ID            string       `json:"_id"`
	QuestionText  string       `json:"questionText"`
	QuestionType  QuestionType `json:"questionType"`
	Options       []string     `json:"options,omitempty"`
	CorrectAnswer string       `json:"correctAnswer,omitempty"`
	Explanation   string       `json:"explanation,omitempty"`
	Difficulty    Difficulty   `json:"difficulty,omitempty"`
}

// QuestionAttempt pairs a question with the user's answer and, once graded,
// the correctness verdict and feedback.
type QuestionAttempt struct {
	ID         string   `json:"_id,omitempty"`
	Question   Question `json:"questionId"`
	UserAnswer string   `json:"userAnswer"`
	IsCorrect  *bool    `json:"isCorrect,omitempty"`
	Feedback   string   `json:"feedback,omitempty"`
}

// ExamSession is the backend-issued record of one exam attempt. The ordering
// of Questions is stable and defines the navigation index.
type ExamSession struct {
	ID             string            `json:"_id"`
	User           UserRef           `json:"userId"`
	Subject        SubjectRef        `json:"subjectId"`
	TopicList      []Topic           `json:"topicList"`
	Difficulty     Difficulty        `json:"difficulty"`
	Duration       int               `json:"duration"` // minutes
	TotalQuestions int               `json:"totalQuestions"`
	StartTime      time.Time         `json:"startTime"`
	EndTime        *time.Time        `json:"endTime,omitempty"`
	TimeTaken      string            `json:"timeTaken,omitempty"` // "M min S sec"
	Status         SessionStatus     `json:"status"`
	Questions      []QuestionAttempt `json:"questions"`
}

// TopicNames returns the names of the session's topics in order.
func (s *ExamSession) TopicNames() []string {
	names := make([]string, 0, len(s.TopicList))
	for _, t := range s.TopicList {
		names = append(names, t.Name)
	}
	return names
}

// Result is the summary view model returned after a graded submission.
type Result struct {
	ID             string      `json:"_id"`
	User           UserRef     `json:"userId"`
	CorrectAnswers int         `json:"correctAnswers"`
	Percentage     float64     `json:"percentage"`
	IsPass         bool        `json:"isPass"`
	Date           time.Time   `json:"date"`
	ExamSession    ExamSession `json:"examSessionId"`
}

// DetailResult is the graded exam session with per-question verdicts,
// feedback, and explanations. The backend returns the session record itself.
type DetailResult = ExamSession

// ResultRow is one line of the student's result history.
type ResultRow struct {
	ResultID    string    `json:"resultId"`
	SubjectName string    `json:"subjectName"`
	Topics      string    `json:"topics"`
	Date        time.Time `json:"date"`
	Percentage  float64   `json:"percentage"`
	IsPass      bool      `json:"isPass"`
}

// User is the authenticated user's profile.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Notification is a broadcast message shown to users.
type Notification struct {
	ID        string    `json:"_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	IsReadBy  []string  `json:"isReadBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReadBy reports whether the given user has read the notification.
func (n *Notification) ReadBy(userID string) bool {
	for _, id := range n.IsReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// SupportRequest is a user-submitted support ticket.
type SupportRequest struct {
	ID          string    `json:"_id,omitempty"`
	Subject     string    `json:"subject"`
	MessageText string    `json:"messageText"`
	Status      string    `json:"status,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
}
