// Package grading computes automatic correctness for objective question
// types and aggregates per-question scores into session totals.
package grading

import (
	"errors"
	"fmt"

	"github.com/examdesk/examdesk-backend/internal/model"
)

// ErrScoreOutOfRange is returned when a manual score falls outside the
// question's [0, MaxScore] range.
var ErrScoreOutOfRange = errors.New("score out of range")

// Grade scores the submitted answers against the exam's questions.
//
// single_choice is correct iff the answer string equals the stored correct
// answer exactly; multi_choice iff the submitted selection equals the
// correct set (order-independent, no partial credit). Both award MaxScore
// or 0. text and image_upload questions get a nil entry: they stay
// ungraded until an admin scores them and contribute nothing to the total.
//
// Every question gets an entry in the returned map, including questions
// the student never answered.
func Grade(answers map[string]model.AnswerValue, questions []model.Question) (map[string]*float64, float64) {
	scores := make(map[string]*float64, len(questions))
	total := 0.0

	for i := range questions {
		q := &questions[i]
		qid := q.ID.String()

		if !q.Type.AutoGradable() {
			scores[qid] = nil
			continue
		}

		score := 0.0
		if correct(answers[qid], q) {
			score = q.MaxScore
		}
		s := score
		scores[qid] = &s
		total += score
	}

	return scores, total
}

func correct(ans model.AnswerValue, q *model.Question) bool {
	switch q.Type {
	case model.QuestionTypeSingleChoice:
		got, ok := ans.Text()
		if !ok {
			return false
		}
		want, ok := q.CorrectAnswers.Text()
		return ok && got == want

	case model.QuestionTypeMultiChoice:
		got, ok := ans.Choices()
		if !ok {
			return false
		}
		want, ok := q.CorrectAnswers.Choices()
		return ok && setEqual(got, want)
	}
	return false
}

// setEqual compares two selections as sets. Duplicates on either side
// collapse, matching set semantics.
func setEqual(a, b []string) bool {
	as := make(map[string]struct{}, len(a))
	for _, v := range a {
		as[v] = struct{}{}
	}
	bs := make(map[string]struct{}, len(b))
	for _, v := range b {
		bs[v] = struct{}{}
	}
	if len(as) != len(bs) {
		return false
	}
	for v := range as {
		if _, ok := bs[v]; !ok {
			return false
		}
	}
	return true
}

// Total sums the known per-question scores. Nil entries (ungraded manual
// questions) are skipped: they contribute nothing to the numerator.
func Total(scores map[string]*float64) float64 {
	total := 0.0
	for _, s := range scores {
		if s != nil {
			total += *s
		}
	}
	return total
}

// MaxTotal sums MaxScore over all questions regardless of grading status.
// This is the denominator reported alongside session totals.
func MaxTotal(questions []model.Question) float64 {
	total := 0.0
	for i := range questions {
		total += questions[i].MaxScore
	}
	return total
}

// ValidateManualScore checks the bounds for an admin-assigned score.
func ValidateManualScore(q *model.Question, score float64) error {
	if score < 0 || score > q.MaxScore {
		return fmt.Errorf("%w: %g not in [0, %g]", ErrScoreOutOfRange, score, q.MaxScore)
	}
	return nil
}
