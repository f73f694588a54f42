package model

import (
	"encoding/json"
	"testing"
)

func TestAnswerValueShapes(t *testing.T) {
	text := TextAnswer("B")
	if got, ok := text.Text(); !ok || got != "B" {
		t.Fatalf("Text() = %q, %v; want \"B\", true", got, ok)
	}
	if _, ok := text.Choices(); ok {
		t.Fatal("a string answer must not read as choices")
	}

	choices := ChoicesAnswer([]string{"a", "c"})
	if got, ok := choices.Choices(); !ok || len(got) != 2 {
		t.Fatalf("Choices() = %v, %v; want [a c], true", got, ok)
	}
	if _, ok := choices.Text(); ok {
		t.Fatal("a list answer must not read as text")
	}

	var empty AnswerValue
	if !empty.IsNull() {
		t.Fatal("zero value should be null")
	}
	if _, ok := empty.Text(); ok {
		t.Fatal("null answer must not read as text")
	}
}

func TestAnswerValueRoundTripsUnknownShapes(t *testing.T) {
	// Values arrive from clients as arbitrary JSON; the raw bytes must
	// survive decode/encode untouched so graders see what was sent.
	payload := []byte(`{"answers":{"q1":"B","q2":["x","y"],"q3":null}}`)

	var body struct {
		Answers map[string]AnswerValue `json:"answers"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got, ok := body.Answers["q1"].Text(); !ok || got != "B" {
		t.Fatalf("q1 = %q, %v", got, ok)
	}
	if got, ok := body.Answers["q2"].Choices(); !ok || got[1] != "y" {
		t.Fatalf("q2 = %v, %v", got, ok)
	}
	if !body.Answers["q3"].IsNull() {
		t.Fatal("q3 should be null")
	}

	out, err := json.Marshal(body.Answers["q2"])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `["x","y"]` {
		t.Fatalf("q2 re-encoded as %s", out)
	}
}

func TestQuestionSanitizeStripsAnswerKey(t *testing.T) {
	q := Question{
		Title:          "Pick one",
		Type:           QuestionTypeSingleChoice,
		Options:        []string{"a", "b"},
		CorrectAnswers: TextAnswer("a"),
		MaxScore:       2,
	}

	out, err := json.Marshal(q.Sanitize())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var asMap map[string]any
	if err := json.Unmarshal(out, &asMap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, leaked := asMap["correct_answers"]; leaked {
		t.Fatal("sanitized question leaked the answer key")
	}
}
