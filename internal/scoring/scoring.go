// Package scoring grades multiple-choice answer sets against a question
// set that still carries its answer keys. It is pure so the offline
// collaborator and tests can share it.
package scoring

import (
	"strings"

	"github.com/innovorex/learnify-engine/internal/backend"
)

// ChoiceLabel maps an option index to its display label: 0 -> "A",
// 1 -> "B", and so on. Indexes past "Z" wrap to double letters ("AA").
func ChoiceLabel(i int) string {
	if i < 0 {
		return ""
	}
	label := ""
	for {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
		if i < 0 {
			return label
		}
	}
}

// LabelIndex is the inverse of ChoiceLabel; unknown labels return -1.
func LabelIndex(label string) int {
	label = strings.ToUpper(strings.TrimSpace(label))
	if label == "" {
		return -1
	}
	n := 0
	for _, r := range label {
		if r < 'A' || r > 'Z' {
			return -1
		}
		n = n*26 + int(r-'A') + 1
	}
	return n - 1
}

// Score grades answers against questions. Questions with no matching
// answer entry are graded as the empty choice (always wrong); the
// submission pipeline is responsible for applying any default-choice
// policy before calling Score. Review items are emitted in question
// order with answer keys exposed.
func Score(questions []backend.Question, answers []backend.Answer) backend.ScoreResult {
	byQuestion := make(map[string]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = strings.ToUpper(strings.TrimSpace(a.SelectedAnswer))
	}

	res := backend.ScoreResult{
		Total:  len(questions),
		Review: make([]backend.ReviewItem, 0, len(questions)),
	}
	for _, q := range questions {
		selected := byQuestion[q.ID]
		correct := strings.ToUpper(strings.TrimSpace(q.CorrectAnswer))
		ok := selected != "" && selected == correct
		if ok {
			res.Correct++
		}
		res.Review = append(res.Review, backend.ReviewItem{
			QuestionID:    q.ID,
			Question:      q.Text,
			Options:       q.Options,
			UserAnswer:    selected,
			CorrectAnswer: correct,
			IsCorrect:     ok,
		})
	}
	if res.Total > 0 {
		res.Percentage = float64(res.Correct) / float64(res.Total) * 100
	}
	return res
}
