package generator

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lox/kenny/internal/questions"
)

const curveballCategory = "Curveball"

// parseQuestion extracts a question from model output. Models often wrap JSON
// in a markdown fence, so one is stripped when present.
func parseQuestion(content string) (questions.Question, error) {
	body := stripFence(content)
	if !gjson.Valid(body) {
		return questions.Question{}, fmt.Errorf("invalid json: %w", ErrMalformed)
	}

	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return questions.Question{}, fmt.Errorf("expected json object: %w", ErrMalformed)
	}

	q := questions.Question{
		Category: strings.TrimSpace(doc.Get("category").String()),
		Text:     strings.TrimSpace(doc.Get("question").String()),
		Answer:   strings.TrimSpace(doc.Get("answer").String()),
	}
	if q.Text == "" {
		return questions.Question{}, fmt.Errorf("missing question: %w", ErrMalformed)
	}
	if q.Answer == "" {
		return questions.Question{}, fmt.Errorf("missing answer: %w", ErrMalformed)
	}
	if q.Category == "" {
		q.Category = curveballCategory
	}
	return q, nil
}

func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the info string, e.g. ```json.
	if nl := strings.IndexByte(s, '\n'); nl != -1 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
