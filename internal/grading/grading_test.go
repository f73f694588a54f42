package grading

import (
	"testing"

	"github.com/google/uuid"

	"github.com/examdesk/examdesk-backend/internal/model"
)

func question(t model.QuestionType, correct model.AnswerValue, maxScore float64) model.Question {
	return model.Question{
		ID:             uuid.New(),
		Title:          "q",
		Type:           t,
		CorrectAnswers: correct,
		MaxScore:       maxScore,
	}
}

func TestGradeSingleChoice(t *testing.T) {
	q := question(model.QuestionTypeSingleChoice, model.TextAnswer("A"), 2)
	qid := q.ID.String()

	tests := []struct {
		name    string
		answers map[string]model.AnswerValue
		want    float64
	}{
		{"correct", map[string]model.AnswerValue{qid: model.TextAnswer("A")}, 2},
		{"incorrect", map[string]model.AnswerValue{qid: model.TextAnswer("B")}, 0},
		{"missing", map[string]model.AnswerValue{}, 0},
		{"wrong shape", map[string]model.AnswerValue{qid: model.ChoicesAnswer([]string{"A"})}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scores, total := Grade(tt.answers, []model.Question{q})
			if scores[qid] == nil {
				t.Fatalf("expected score entry for %s", qid)
			}
			if *scores[qid] != tt.want {
				t.Errorf("score = %g, want %g", *scores[qid], tt.want)
			}
			if total != tt.want {
				t.Errorf("total = %g, want %g", total, tt.want)
			}
		})
	}
}

func TestGradeMultiChoiceSetEquality(t *testing.T) {
	q := question(model.QuestionTypeMultiChoice, model.ChoicesAnswer([]string{"A", "C"}), 3)
	qid := q.ID.String()

	tests := []struct {
		name   string
		answer model.AnswerValue
		want   float64
	}{
		{"exact match", model.ChoicesAnswer([]string{"A", "C"}), 3},
		{"order irrelevant", model.ChoicesAnswer([]string{"C", "A"}), 3},
		{"proper subset", model.ChoicesAnswer([]string{"A"}), 0},
		{"superset", model.ChoicesAnswer([]string{"A", "B", "C"}), 0},
		{"disjoint", model.ChoicesAnswer([]string{"B", "D"}), 0},
		{"string instead of list", model.TextAnswer("A"), 0},
		{"duplicates collapse", model.ChoicesAnswer([]string{"A", "A", "C"}), 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, total := Grade(map[string]model.AnswerValue{qid: tt.answer}, []model.Question{q})
			if total != tt.want {
				t.Errorf("total = %g, want %g", total, tt.want)
			}
		})
	}
}

func TestGradeManualQuestionsStayUngraded(t *testing.T) {
	text := question(model.QuestionTypeText, model.AnswerValue{}, 5)
	image := question(model.QuestionTypeImageUpload, model.AnswerValue{}, 4)
	single := question(model.QuestionTypeSingleChoice, model.TextAnswer("1"), 2)

	answers := map[string]model.AnswerValue{
		text.ID.String():   model.TextAnswer("an essay"),
		image.ID.String():  model.TextAnswer("/uploads/photo.png"),
		single.ID.String(): model.TextAnswer("1"),
	}

	scores, total := Grade(answers, []model.Question{text, image, single})

	if scores[text.ID.String()] != nil {
		t.Error("text question should be ungraded (nil)")
	}
	if scores[image.ID.String()] != nil {
		t.Error("image question should be ungraded (nil)")
	}
	if got := scores[single.ID.String()]; got == nil || *got != 2 {
		t.Errorf("single choice score = %v, want 2", got)
	}
	if total != 2 {
		t.Errorf("total = %g, want 2 (ungraded questions excluded)", total)
	}
}

func TestTotalSkipsNilEntries(t *testing.T) {
	two, three := 2.0, 3.0
	scores := map[string]*float64{
		"a": &two,
		"b": nil,
		"c": &three,
	}
	if got := Total(scores); got != 5 {
		t.Errorf("Total = %g, want 5", got)
	}
}

func TestMaxTotalCountsAllQuestions(t *testing.T) {
	qs := []model.Question{
		question(model.QuestionTypeSingleChoice, model.TextAnswer("A"), 2),
		question(model.QuestionTypeText, model.AnswerValue{}, 5),
	}
	if got := MaxTotal(qs); got != 7 {
		t.Errorf("MaxTotal = %g, want 7 (denominator includes ungraded types)", got)
	}
}

func TestValidateManualScoreBounds(t *testing.T) {
	q := question(model.QuestionTypeText, model.AnswerValue{}, 5)

	for _, score := range []float64{0, 2.5, 5} {
		if err := ValidateManualScore(&q, score); err != nil {
			t.Errorf("score %g should be accepted: %v", score, err)
		}
	}
	for _, score := range []float64{-1, 5.01, 6} {
		if err := ValidateManualScore(&q, score); err == nil {
			t.Errorf("score %g should be rejected", score)
		}
	}
}
