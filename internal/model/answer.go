package model

import (
	"bytes"
	"encoding/json"
)

// AnswerValue holds a student's answer for one question. The JSON shape
// depends on the question type: a plain string for single_choice, text and
// image_upload (the uploaded media URL), or an array of strings for
// multi_choice. Readers must go through Text/Choices and check the ok flag
// instead of assuming a shape.
type AnswerValue struct {
	raw json.RawMessage
}

// TextAnswer builds an AnswerValue from a plain string.
func TextAnswer(s string) AnswerValue {
	raw, _ := json.Marshal(s)
	return AnswerValue{raw: raw}
}

// ChoicesAnswer builds an AnswerValue from a list of selected options.
func ChoicesAnswer(choices []string) AnswerValue {
	raw, _ := json.Marshal(choices)
	return AnswerValue{raw: raw}
}

// IsNull reports whether the value is absent or JSON null.
func (v AnswerValue) IsNull() bool {
	return len(v.raw) == 0 || bytes.Equal(v.raw, []byte("null"))
}

// Text returns the answer as a string. ok is false when the underlying
// value is absent or not a JSON string.
func (v AnswerValue) Text() (string, bool) {
	if v.IsNull() {
		return "", false
	}
	var s string
	if err := json.Unmarshal(v.raw, &s); err != nil {
		return "", false
	}
	return s, true
}

// Choices returns the answer as a list of option strings. ok is false when
// the underlying value is absent or not a JSON array of strings.
func (v AnswerValue) Choices() ([]string, bool) {
	if v.IsNull() {
		return nil, false
	}
	var list []string
	if err := json.Unmarshal(v.raw, &list); err != nil {
		return nil, false
	}
	return list, true
}

// MarshalJSON implements json.Marshaler.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if len(v.raw) == 0 {
		return []byte("null"), nil
	}
	return v.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler. The raw bytes are kept as-is;
// interpretation is deferred to the reader, which knows the question type.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	v.raw = append(v.raw[:0], data...)
	return nil
}
