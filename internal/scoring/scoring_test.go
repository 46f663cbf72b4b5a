package scoring

import (
	"testing"

	"github.com/innovorex/learnify-engine/internal/backend"
)

func TestChoiceLabel(t *testing.T) {
	tests := []struct {
		idx  int
		want string
	}{
		{0, "A"}, {1, "B"}, {3, "D"}, {25, "Z"}, {26, "AA"}, {27, "AB"}, {-1, ""},
	}
	for _, tc := range tests {
		if got := ChoiceLabel(tc.idx); got != tc.want {
			t.Errorf("ChoiceLabel(%d) = %q, want %q", tc.idx, got, tc.want)
		}
	}
}

func TestLabelIndexRoundTrip(t *testing.T) {
	for i := 0; i < 60; i++ {
		if got := LabelIndex(ChoiceLabel(i)); got != i {
			t.Fatalf("LabelIndex(ChoiceLabel(%d)) = %d", i, got)
		}
	}
	if got := LabelIndex("?"); got != -1 {
		t.Errorf("LabelIndex(?) = %d, want -1", got)
	}
	if got := LabelIndex(" b "); got != 1 {
		t.Errorf("LabelIndex(' b ') = %d, want 1", got)
	}
}

func TestScore(t *testing.T) {
	questions := []backend.Question{
		{ID: "q1", Text: "1+1?", Options: []string{"1", "2", "3", "4"}, CorrectAnswer: "B"},
		{ID: "q2", Text: "2+2?", Options: []string{"2", "3", "4", "5"}, CorrectAnswer: "C"},
		{ID: "q3", Text: "3+3?", Options: []string{"4", "5", "6", "7"}, CorrectAnswer: "C"},
	}
	answers := []backend.Answer{
		{QuestionID: "q1", SelectedAnswer: "b"}, // case-insensitive
		{QuestionID: "q2", SelectedAnswer: "A"},
		// q3 unanswered
	}

	res := Score(questions, answers)
	if res.Total != 3 || res.Correct != 1 {
		t.Fatalf("got total=%d correct=%d, want 3/1", res.Total, res.Correct)
	}
	if want := 100.0 / 3; res.Percentage < want-0.01 || res.Percentage > want+0.01 {
		t.Fatalf("percentage = %v", res.Percentage)
	}
	if len(res.Review) != 3 {
		t.Fatalf("review length = %d", len(res.Review))
	}
	if !res.Review[0].IsCorrect || res.Review[1].IsCorrect || res.Review[2].IsCorrect {
		t.Fatalf("review correctness flags wrong: %+v", res.Review)
	}
	if res.Review[2].UserAnswer != "" || res.Review[2].CorrectAnswer != "C" {
		t.Fatalf("unanswered review item wrong: %+v", res.Review[2])
	}
}

func TestScoreEmptyQuestionSet(t *testing.T) {
	res := Score(nil, nil)
	if res.Total != 0 || res.Percentage != 0 {
		t.Fatalf("empty set: %+v", res)
	}
}
