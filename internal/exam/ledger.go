package exam

import (
	"sync"

	"github.com/innovorex/learnify-engine/internal/backend"
)

// Ledger tracks the single selected choice per question for one attempt.
// Selection is last-write-wins with no history. The ledger does not
// validate that a label names one of the question's options; that is the
// caller's concern.
type Ledger struct {
	mu       sync.RWMutex
	order    []string
	selected map[string]string
}

// NewLedger builds a ledger over an ordered question-ID set.
func NewLedger(questionIDs []string) *Ledger {
	order := make([]string, len(questionIDs))
	copy(order, questionIDs)
	return &Ledger{order: order, selected: make(map[string]string, len(questionIDs))}
}

// Select records a choice for a question, overwriting any prior choice.
func (l *Ledger) Select(questionID, label string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.knows(questionID) {
		return ErrUnknownQuestion
	}
	l.selected[questionID] = label
	return nil
}

func (l *Ledger) knows(questionID string) bool {
	for _, id := range l.order {
		if id == questionID {
			return true
		}
	}
	return false
}

// Selected returns the recorded choice for a question, if any.
func (l *Ledger) Selected(questionID string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.selected[questionID]
	return v, ok
}

// Progress reports answered and total question counts.
func (l *Ledger) Progress() (answered, total int) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.selected), len(l.order)
}

// Export produces the ordered submission payload. Questions with no
// recorded choice receive defaultChoice; pass "" to submit them as
// explicitly unanswered.
func (l *Ledger) Export(defaultChoice string) []backend.Answer {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]backend.Answer, 0, len(l.order))
	for _, id := range l.order {
		choice, ok := l.selected[id]
		if !ok {
			choice = defaultChoice
		}
		out = append(out, backend.Answer{QuestionID: id, SelectedAnswer: choice})
	}
	return out
}
