package progression

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/innovorex/learnify-engine/internal/backend"
	"github.com/innovorex/learnify-engine/internal/events"
)

// Service is the module-progression state machine. All transitions are
// guarded and applied under one lock so a reader never observes a
// completed-topic count inconsistent with the module percentage, and no
// event ordering can break the sequential-unlock invariant.
type Service struct {
	mu          sync.Mutex
	store       Store
	certs       *CertificateTrigger
	events      events.Recorder
	now         func() time.Time
	maxAttempts int // 0 = unlimited retakes
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithEvents wires a domain-event recorder.
func WithEvents(rec events.Recorder) ServiceOption {
	return func(s *Service) { s.events = rec }
}

// WithNow injects the time source (tests).
func WithNow(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithMaxAttempts caps module-exam retakes; zero leaves them unlimited.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) { s.maxAttempts = n }
}

// NewService builds the progression service over a store and certificate
// trigger.
func NewService(store Store, certs *CertificateTrigger, opts ...ServiceOption) *Service {
	s := &Service{store: store, certs: certs, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Enroll creates an enrollment with the first module unlocked and every
// later module locked. Serialized under the service lock so two racing
// enrollments of the same (user, course) cannot both pass the duplicate
// check.
func (s *Service) Enroll(ctx context.Context, userID, courseID string) (Enrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	course, err := s.store.GetCourse(ctx, courseID)
	if err != nil {
		return Enrollment{}, err
	}
	course = sortedCourse(course)
	if _, err := s.store.FindEnrollment(ctx, userID, courseID); err == nil {
		return Enrollment{}, ErrAlreadyEnrolled
	}

	e := Enrollment{
		ID:        uuid.NewString(),
		UserID:    userID,
		CourseID:  courseID,
		CreatedAt: s.now(),
	}
	initial := make([]ModuleState, 0, len(course.Modules))
	for i, m := range course.Modules {
		status := StatusLocked
		if i == 0 {
			status = StatusNotStarted
		}
		initial = append(initial, ModuleState{
			ModuleID:        m.ID,
			Status:          status,
			CompletedTopics: map[string]bool{},
		})
	}
	if err := s.store.CreateEnrollment(ctx, e, initial); err != nil {
		return Enrollment{}, err
	}
	s.record(ctx, events.TypeEnrolled, e.ID, e)
	return e, nil
}

// Enrollment returns the enrollment record.
func (s *Service) Enrollment(ctx context.Context, enrollmentID string) (Enrollment, error) {
	return s.store.GetEnrollment(ctx, enrollmentID)
}

// Progress returns the aggregate course view for an enrollment.
func (s *Service) Progress(ctx context.Context, enrollmentID string) (CourseProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked(ctx, enrollmentID)
}

func (s *Service) progressLocked(ctx context.Context, enrollmentID string) (CourseProgress, error) {
	e, err := s.store.GetEnrollment(ctx, enrollmentID)
	if err != nil {
		return CourseProgress{}, err
	}
	course, err := s.store.GetCourse(ctx, e.CourseID)
	if err != nil {
		return CourseProgress{}, err
	}
	course = sortedCourse(course)
	states, err := s.store.GetModuleStates(ctx, enrollmentID)
	if err != nil {
		return CourseProgress{}, err
	}
	ordered := orderStates(course, states)
	done := 0
	for _, st := range ordered {
		if st.Status == StatusCompleted {
			done++
		}
	}
	return CourseProgress{
		Enrollment:       e,
		Course:           course,
		Modules:          ordered,
		ModulesCompleted: done,
		TotalModules:     len(course.Modules),
	}, nil
}

// CompleteTopic marks a topic complete and recomputes the owning module's
// percentage. Re-completing a finished topic returns ErrAlreadyCompleted
// alongside the current progress; callers surface it as informational,
// not a failure.
func (s *Service) CompleteTopic(ctx context.Context, enrollmentID, topicID string) (TopicProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, err := s.progressLocked(ctx, enrollmentID)
	if err != nil {
		return TopicProgress{}, err
	}
	moduleDef, ok := findTopicModule(cp.Course, topicID)
	if !ok {
		return TopicProgress{}, ErrNotFound
	}
	st, ok := stateFor(cp.Modules, moduleDef.ID)
	if !ok {
		return TopicProgress{}, ErrNotFound
	}
	if !st.unlocked() {
		return TopicProgress{}, ErrLocked
	}

	progress := func() TopicProgress {
		return TopicProgress{
			ModuleID:        moduleDef.ID,
			ModulePercent:   st.Percent,
			TopicsCompleted: len(st.CompletedTopics),
			TotalTopics:     len(moduleDef.Topics),
			ExamEligible:    st.Status == StatusExamEligible,
		}
	}

	if st.CompletedTopics[topicID] {
		return progress(), ErrAlreadyCompleted
	}

	if st.CompletedTopics == nil {
		st.CompletedTopics = map[string]bool{}
	}
	st.CompletedTopics[topicID] = true
	st.Percent = percent(len(st.CompletedTopics), len(moduleDef.Topics))
	switch {
	case len(st.CompletedTopics) >= len(moduleDef.Topics):
		if st.Status != StatusCompleted {
			st.Status = StatusExamEligible
		}
	case st.Status == StatusNotStarted:
		st.Status = StatusInProgress
	}
	if err := s.store.SaveModuleState(ctx, enrollmentID, st); err != nil {
		return TopicProgress{}, err
	}
	s.record(ctx, events.TypeTopicCompleted, enrollmentID, map[string]string{
		"module_id": moduleDef.ID, "topic_id": topicID,
	})
	return progress(), nil
}

// ExamEntryGuard rejects module-exam start for locked modules and for
// unlocked modules whose topics are not all complete.
func (s *Service) ExamEntryGuard(ctx context.Context, enrollmentID, moduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, err := s.progressLocked(ctx, enrollmentID)
	if err != nil {
		return err
	}
	st, ok := stateFor(cp.Modules, moduleID)
	if !ok {
		return ErrNotFound
	}
	if !st.unlocked() {
		return ErrLocked
	}
	if st.Status != StatusExamEligible && st.Status != StatusCompleted {
		return ErrTopicsIncomplete
	}
	if s.maxAttempts > 0 && !st.Passed && st.Attempts >= s.maxAttempts {
		return ErrAttemptsExhausted
	}
	return nil
}

// ContentEntryGuard rejects topic-content viewing for locked modules.
func (s *Service) ContentEntryGuard(ctx context.Context, enrollmentID, moduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, err := s.progressLocked(ctx, enrollmentID)
	if err != nil {
		return err
	}
	st, ok := stateFor(cp.Modules, moduleID)
	if !ok {
		return ErrNotFound
	}
	if !st.unlocked() {
		return ErrLocked
	}
	return nil
}

// OnModuleExamResult records a scored module exam. A passing score
// completes the module and unlocks its successor; a failing score leaves
// the module exam-eligible with unlimited retakes. When the final module
// completes, the course completes and the certificate trigger runs.
func (s *Service) OnModuleExamResult(ctx context.Context, enrollmentID, moduleID string, res backend.ScoreResult) (ModuleOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp, err := s.progressLocked(ctx, enrollmentID)
	if err != nil {
		return ModuleOutcome{}, err
	}
	idx := moduleIndex(cp.Course, moduleID)
	if idx < 0 {
		return ModuleOutcome{}, ErrNotFound
	}
	def := cp.Course.Modules[idx]
	st, ok := stateFor(cp.Modules, moduleID)
	if !ok {
		return ModuleOutcome{}, ErrNotFound
	}

	st.Attempts++
	st.LatestScore = res.Percentage
	if res.Percentage > st.BestScore {
		st.BestScore = res.Percentage
	}

	out := ModuleOutcome{
		ModuleID:   moduleID,
		Correct:    res.Correct,
		Total:      res.Total,
		Percentage: res.Percentage,
		Passed:     res.Percentage >= def.passPercent(),
	}

	if out.Passed && st.Status != StatusCompleted {
		st.Status = StatusCompleted
		st.Passed = true
		out.ModuleCompleted = true
	}
	if err := s.store.SaveModuleState(ctx, enrollmentID, st); err != nil {
		return ModuleOutcome{}, err
	}

	if out.ModuleCompleted {
		s.record(ctx, events.TypeModuleCompleted, enrollmentID, out)
		if next := idx + 1; next < len(cp.Course.Modules) {
			ns, ok := stateFor(cp.Modules, cp.Course.Modules[next].ID)
			if ok && ns.Status == StatusLocked {
				ns.Status = StatusNotStarted
				if err := s.store.SaveModuleState(ctx, enrollmentID, ns); err != nil {
					return ModuleOutcome{}, err
				}
				out.NextModuleUnlocked = ns.ModuleID
			}
		} else if s.allCompleted(ctx, enrollmentID, cp.Course) {
			if err := s.store.SetEnrollmentCompleted(ctx, enrollmentID); err != nil {
				return ModuleOutcome{}, err
			}
			out.CourseCompleted = true
			s.record(ctx, events.TypeCourseCompleted, enrollmentID, nil)
			if s.certs != nil {
				if _, err := s.certs.IssueIfEligible(ctx, enrollmentID); err != nil {
					// Issuance failure must not roll back progression; the
					// next IssueIfEligible call retries.
					s.record(ctx, events.TypeCertificateError, enrollmentID,
						map[string]string{"error": err.Error()})
				}
			}
		}
	}
	return out, nil
}

func (s *Service) allCompleted(ctx context.Context, enrollmentID string, course CourseDef) bool {
	states, err := s.store.GetModuleStates(ctx, enrollmentID)
	if err != nil {
		return false
	}
	ordered := orderStates(course, states)
	if len(ordered) != len(course.Modules) {
		return false
	}
	for _, st := range ordered {
		if st.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Certificate returns the issued certificate for an enrollment, or
// ErrNotFound while none exists.
func (s *Service) Certificate(ctx context.Context, enrollmentID string) (backend.Certificate, error) {
	return s.store.GetCertificate(ctx, enrollmentID)
}

func (s *Service) record(ctx context.Context, typ, key string, data interface{}) {
	if s.events != nil {
		s.events.Record(ctx, typ, key, data)
	}
}

func percent(done, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(done) / float64(total) * 100
}

func findTopicModule(course CourseDef, topicID string) (ModuleDef, bool) {
	for _, m := range course.Modules {
		for _, t := range m.Topics {
			if t.ID == topicID {
				return m, true
			}
		}
	}
	return ModuleDef{}, false
}

func moduleIndex(course CourseDef, moduleID string) int {
	for i, m := range course.Modules {
		if m.ID == moduleID {
			return i
		}
	}
	return -1
}

func stateFor(states []ModuleState, moduleID string) (ModuleState, bool) {
	for _, st := range states {
		if st.ModuleID == moduleID {
			return st, true
		}
	}
	return ModuleState{}, false
}

// sortedCourse returns the course with its modules ordered by number.
// The store's slice is copied, never sorted in place.
func sortedCourse(course CourseDef) CourseDef {
	mods := append([]ModuleDef(nil), course.Modules...)
	sort.SliceStable(mods, func(i, j int) bool {
		return mods[i].Number < mods[j].Number
	})
	course.Modules = mods
	return course
}

// orderStates aligns stored module states with the course's module
// order; the caller passes a course already sorted by sortedCourse.
func orderStates(course CourseDef, states []ModuleState) []ModuleState {
	out := make([]ModuleState, 0, len(course.Modules))
	for _, m := range course.Modules {
		if st, ok := stateFor(states, m.ID); ok {
			out = append(out, st)
		} else {
			out = append(out, ModuleState{ModuleID: m.ID, Status: StatusLocked, CompletedTopics: map[string]bool{}})
		}
	}
	return out
}

// String renderings keep log lines readable.
func (o ModuleOutcome) String() string {
	return fmt.Sprintf("module=%s passed=%t score=%.1f%% completed=%t next=%s course_done=%t",
		o.ModuleID, o.Passed, o.Percentage, o.ModuleCompleted, o.NextModuleUnlocked, o.CourseCompleted)
}
