package service

import (
	"errors"
	"testing"

	"github.com/examdesk/examdesk-backend/internal/model"
)

func TestValidateAnswerShape(t *testing.T) {
	cases := []struct {
		name    string
		q       model.Question
		wantErr error
	}{
		{
			name: "single choice ok",
			q: model.Question{
				Type:           model.QuestionTypeSingleChoice,
				Options:        []string{"a", "b"},
				CorrectAnswers: model.TextAnswer("a"),
			},
		},
		{
			name: "single choice list answer",
			q: model.Question{
				Type:           model.QuestionTypeSingleChoice,
				Options:        []string{"a", "b"},
				CorrectAnswers: model.ChoicesAnswer([]string{"a"}),
			},
			wantErr: ErrBadAnswerShape,
		},
		{
			name: "single choice answer not offered",
			q: model.Question{
				Type:           model.QuestionTypeSingleChoice,
				Options:        []string{"a", "b"},
				CorrectAnswers: model.TextAnswer("z"),
			},
			wantErr: ErrAnswerNotInOption,
		},
		{
			name: "single choice too few options",
			q: model.Question{
				Type:           model.QuestionTypeSingleChoice,
				Options:        []string{"a"},
				CorrectAnswers: model.TextAnswer("a"),
			},
			wantErr: ErrOptionsRequired,
		},
		{
			name: "multi choice ok",
			q: model.Question{
				Type:           model.QuestionTypeMultiChoice,
				Options:        []string{"a", "b", "c"},
				CorrectAnswers: model.ChoicesAnswer([]string{"a", "c"}),
			},
		},
		{
			name: "multi choice string answer",
			q: model.Question{
				Type:           model.QuestionTypeMultiChoice,
				Options:        []string{"a", "b"},
				CorrectAnswers: model.TextAnswer("a"),
			},
			wantErr: ErrBadAnswerShape,
		},
		{
			name: "multi choice empty selection",
			q: model.Question{
				Type:           model.QuestionTypeMultiChoice,
				Options:        []string{"a", "b"},
				CorrectAnswers: model.ChoicesAnswer([]string{}),
			},
			wantErr: ErrBadAnswerShape,
		},
		{
			name: "text with no key ok",
			q: model.Question{
				Type: model.QuestionTypeText,
			},
		},
		{
			name: "text with stray key",
			q: model.Question{
				Type:           model.QuestionTypeText,
				CorrectAnswers: model.TextAnswer("anything"),
			},
			wantErr: ErrBadAnswerShape,
		},
		{
			name: "image upload with no key ok",
			q: model.Question{
				Type: model.QuestionTypeImageUpload,
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateAnswerShape(&tc.q)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}
