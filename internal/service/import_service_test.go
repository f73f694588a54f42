package service

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/examdesk/examdesk-backend/internal/model"
)

func buildWorkbook(t *testing.T, rows [][]interface{}) *bytes.Buffer {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)

	header := TemplateHeader()
	for i, col := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			t.Fatalf("set header: %v", err)
		}
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				t.Fatalf("set cell: %v", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestParseWorkbook(t *testing.T) {
	svc := &ImportService{}

	buf := buildWorkbook(t, [][]interface{}{
		{"What is 2+2?", "Arithmetic", "easy", "single_choice", `["3","4"]`, `"4"`, 1, "math"},
		{"Select primes", "", "medium", "multi_choice", `["2","3","4"]`, `["2","3"]`, 2, "math,primes"},
		{"Explain gravity", "", "hard", "text", "", "", 5, "physics"},
	})

	preview, err := svc.Parse(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(preview.Errors) != 0 {
		t.Fatalf("errors = %+v, want none", preview.Errors)
	}
	if len(preview.Questions) != 3 {
		t.Fatalf("parsed %d questions, want 3", len(preview.Questions))
	}

	q := preview.Questions[0]
	if q.Type != model.QuestionTypeSingleChoice || q.MaxScore != 1 {
		t.Fatalf("row 2 parsed as %+v", q)
	}
	if got, ok := q.CorrectAnswers.Text(); !ok || got != "4" {
		t.Fatalf("row 2 answer = %q, %v", got, ok)
	}

	multi := preview.Questions[1]
	if got, ok := multi.CorrectAnswers.Choices(); !ok || len(got) != 2 {
		t.Fatalf("row 3 answer = %v, %v", got, ok)
	}
	if len(multi.Tags) != 2 {
		t.Fatalf("row 3 tags = %v", multi.Tags)
	}

	manual := preview.Questions[2]
	if !manual.CorrectAnswers.IsNull() {
		t.Fatal("text question should have no answer key")
	}
}

func TestParseWorkbookReportsRowErrors(t *testing.T) {
	svc := &ImportService{}

	buf := buildWorkbook(t, [][]interface{}{
		{"", "", "", "single_choice", `["a","b"]`, `"a"`, 1, ""},                      // missing title
		{"Bad type", "", "", "essay", "", "", 1, ""},                                  // unknown type
		{"Bad score", "", "", "text", "", "", "lots", ""},                             // non-numeric score
		{"Answer not offered", "", "", "single_choice", `["a","b"]`, `"z"`, 1, ""},    // key outside options
		{"Good row", "", "easy", "single_choice", `["a","b"]`, `"b"`, 1.5, "ok,row"},  // valid
		{"Wrong shape", "", "", "multi_choice", `["a","b"]`, `"a"`, 1, ""},            // string for multi
	})

	preview, err := svc.Parse(buf)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if len(preview.Questions) != 1 {
		t.Fatalf("parsed %d questions, want only the valid row", len(preview.Questions))
	}
	if preview.Questions[0].Title != "Good row" {
		t.Fatalf("kept %q", preview.Questions[0].Title)
	}
	if len(preview.Errors) != 5 {
		t.Fatalf("got %d row errors, want 5: %+v", len(preview.Errors), preview.Errors)
	}
	// Row numbers refer to the spreadsheet, header included.
	if preview.Errors[0].Row != 2 {
		t.Fatalf("first error row = %d, want 2", preview.Errors[0].Row)
	}
}

func TestParseWorkbookRejectsEmptySheet(t *testing.T) {
	svc := &ImportService{}

	buf := buildWorkbook(t, nil)
	if _, err := svc.Parse(buf); err == nil {
		t.Fatal("expected an error for a sheet with only a header")
	}
}
