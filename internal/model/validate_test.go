package model

import (
	"strings"
	"testing"
)

func validRequest() ExamRequest {
	return ExamRequest{
		Subject:        "Physics",
		SubjectID:      "subj1",
		SelectedTopics: []string{"t1", "t2"},
		Duration:       10,
		TotalQuestions: 5,
		QuestionType:   QuestionTypeMCQ,
		Difficulty:     DifficultyEasy,
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validRequest().Validate(); err != nil {
		t.Errorf("valid request rejected: %v", err)
	}
}

func TestValidateQuestionCaps(t *testing.T) {
	tests := []struct {
		qt     QuestionType
		limit  int
		reject int
	}{
		{QuestionTypeMCQ, 35, 36},
		{QuestionTypeDescriptive, 23, 24},
		{QuestionTypeBoth, 30, 31},
	}
	for _, tt := range tests {
		t.Run(string(tt.qt), func(t *testing.T) {
			req := validRequest()
			req.QuestionType = tt.qt

			req.TotalQuestions = tt.limit
			if err := req.Validate(); err != nil {
				t.Errorf("%d questions at the %s cap rejected: %v", tt.limit, tt.qt, err)
			}

			req.TotalQuestions = tt.reject
			err := req.Validate()
			if err == nil {
				t.Fatalf("%d questions over the %s cap accepted", tt.reject, tt.qt)
			}
			if !strings.Contains(err.Error(), "totalQuestions") {
				t.Errorf("cap violation error %q does not name totalQuestions", err)
			}
		})
	}
}

func TestValidateDuration(t *testing.T) {
	for _, d := range []int{0, -1, 61, 120} {
		req := validRequest()
		req.Duration = d
		if err := req.Validate(); err == nil {
			t.Errorf("duration %d accepted, want rejection", d)
		}
	}
	for _, d := range []int{1, 30, 60} {
		req := validRequest()
		req.Duration = d
		if err := req.Validate(); err != nil {
			t.Errorf("duration %d rejected: %v", d, err)
		}
	}
}

func TestValidateTopicsRequired(t *testing.T) {
	req := validRequest()
	req.SelectedTopics = nil
	if err := req.Validate(); err == nil {
		t.Error("request without topics accepted")
	}

	req.SelectedTopics = []string{}
	if err := req.Validate(); err == nil {
		t.Error("request with empty topic list accepted")
	}

	req.SelectedTopics = []string{""}
	if err := req.Validate(); err == nil {
		t.Error("request with blank topic id accepted")
	}
}

func TestValidateEnums(t *testing.T) {
	req := validRequest()
	req.QuestionType = "Essay"
	if err := req.Validate(); err == nil {
		t.Error("unknown question type accepted")
	}

	req = validRequest()
	req.Difficulty = "Impossible"
	if err := req.Validate(); err == nil {
		t.Error("unknown difficulty accepted")
	}
}

func TestValidateReportsAllViolations(t *testing.T) {
	req := ExamRequest{}
	err := req.Validate()
	if err == nil {
		t.Fatal("zero-value request accepted")
	}
	if !strings.Contains(err.Error(), ";") {
		t.Errorf("expected multiple joined violations, got %q", err)
	}
}

func TestMaxQuestionsFor(t *testing.T) {
	tests := []struct {
		qt   QuestionType
		want int
	}{
		{QuestionTypeMCQ, 35},
		{QuestionTypeDescriptive, 23},
		{QuestionTypeBoth, 30},
		{"", MaxExamQuestions},
	}
	for _, tt := range tests {
		if got := MaxQuestionsFor(tt.qt); got != tt.want {
			t.Errorf("MaxQuestionsFor(%q) = %d, want %d", tt.qt, got, tt.want)
		}
	}
}
