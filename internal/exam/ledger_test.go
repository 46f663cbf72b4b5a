package exam

import "testing"

func TestLedgerLastWriteWins(t *testing.T) {
	l := NewLedger([]string{"q1", "q2"})
	if err := l.Select("q1", "A"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := l.Select("q1", "C"); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	got, ok := l.Selected("q1")
	if !ok || got != "C" {
		t.Fatalf("selected = %q, %t, want C", got, ok)
	}
	if answered, _ := l.Progress(); answered != 1 {
		t.Fatalf("answered = %d, want 1 (reselection must not double-count)", answered)
	}
}

func TestLedgerRejectsUnknownQuestion(t *testing.T) {
	l := NewLedger([]string{"q1"})
	if err := l.Select("nope", "A"); err != ErrUnknownQuestion {
		t.Fatalf("err = %v, want ErrUnknownQuestion", err)
	}
	if answered, total := l.Progress(); answered != 0 || total != 1 {
		t.Fatalf("progress = %d/%d, want 0/1", answered, total)
	}
}

func TestLedgerExportOrderedWithDefault(t *testing.T) {
	l := NewLedger([]string{"q1", "q2", "q3"})
	if err := l.Select("q2", "B"); err != nil {
		t.Fatalf("select: %v", err)
	}

	out := l.Export("A")
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}
	want := []struct{ id, choice string }{
		{"q1", "A"}, {"q2", "B"}, {"q3", "A"},
	}
	for i, w := range want {
		if out[i].QuestionID != w.id || out[i].SelectedAnswer != w.choice {
			t.Errorf("export[%d] = %s=%q, want %s=%q",
				i, out[i].QuestionID, out[i].SelectedAnswer, w.id, w.choice)
		}
	}
}

func TestLedgerExportEmptyDefaultLeavesUnanswered(t *testing.T) {
	l := NewLedger([]string{"q1", "q2"})
	if err := l.Select("q1", "D"); err != nil {
		t.Fatalf("select: %v", err)
	}
	out := l.Export("")
	if out[1].SelectedAnswer != "" {
		t.Fatalf("unanswered choice = %q, want empty", out[1].SelectedAnswer)
	}
}
