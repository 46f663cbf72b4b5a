// Package progression implements the sequential module-gating state
// machine for multi-module courses: topic completion, exam eligibility,
// pass/fail outcomes, next-module unlocking, course completion, and
// certificate issuance.
package progression

import "time"

// ModuleStatus is a module's lifecycle state within one enrollment.
type ModuleStatus string

const (
	StatusLocked       ModuleStatus = "locked"
	StatusNotStarted   ModuleStatus = "not_started" // unlocked, no topics done
	StatusInProgress   ModuleStatus = "in_progress"
	StatusExamEligible ModuleStatus = "exam_eligible"
	StatusCompleted    ModuleStatus = "completed"
)

// DefaultPassPercent is the module exam pass threshold applied when a
// course definition does not override it.
const DefaultPassPercent = 60.0

// Topic is a content sub-unit of a module. Topic numbers order display
// only; completion order is unconstrained.
type Topic struct {
	ID     string `json:"id"`
	Number int    `json:"number"`
	Title  string `json:"title"`
}

// ModuleDef is the static definition of one course module. Number fixes
// the module's position in the strict unlock sequence.
type ModuleDef struct {
	ID          string  `json:"id"`
	Number      int     `json:"number"`
	Title       string  `json:"title"`
	PassPercent float64 `json:"pass_percent"`
	Topics      []Topic `json:"topics"`
}

// CourseDef groups an ordered module sequence.
type CourseDef struct {
	ID      string      `json:"id"`
	Title   string      `json:"title"`
	Modules []ModuleDef `json:"modules"`
}

// Enrollment ties a user to a course.
type Enrollment struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"created_at"`
}

// ModuleState is the live per-enrollment state of one module.
type ModuleState struct {
	ModuleID        string          `json:"module_id"`
	Status          ModuleStatus    `json:"status"`
	Percent         float64         `json:"percent"`
	CompletedTopics map[string]bool `json:"completed_topics"`
	BestScore       float64         `json:"best_score"`
	LatestScore     float64         `json:"latest_score"`
	Attempts        int             `json:"attempts"`
	Passed          bool            `json:"passed"`
}

// TopicProgress is returned from a topic-completion event.
type TopicProgress struct {
	ModuleID        string  `json:"module_id"`
	ModulePercent   float64 `json:"module_progress_percentage"`
	TopicsCompleted int     `json:"topics_completed"`
	TotalTopics     int     `json:"total_topics"`
	ExamEligible    bool    `json:"exam_eligible"`
}

// ModuleOutcome is returned from a module-exam result event.
type ModuleOutcome struct {
	ModuleID           string  `json:"module_id"`
	Passed             bool    `json:"passed"`
	Correct            int     `json:"correct"`
	Total              int     `json:"total"`
	Percentage         float64 `json:"percentage"`
	ModuleCompleted    bool    `json:"module_completed"`
	NextModuleUnlocked string  `json:"next_module_unlocked,omitempty"`
	CourseCompleted    bool    `json:"course_completed"`
}

// CourseProgress is the aggregate view read by module lists and gating
// checks.
type CourseProgress struct {
	Enrollment       Enrollment    `json:"enrollment"`
	Course           CourseDef     `json:"course"`
	Modules          []ModuleState `json:"modules"`
	ModulesCompleted int           `json:"modules_completed"`
	TotalModules     int           `json:"total_modules"`
}

func (m ModuleState) unlocked() bool {
	return m.Status != StatusLocked
}

// passPercent resolves the effective threshold for a module definition.
func (d ModuleDef) passPercent() float64 {
	if d.PassPercent > 0 {
		return d.PassPercent
	}
	return DefaultPassPercent
}
