package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// RemoteService talks JSON/HTTP to the upstream education platform in
// online mode. Endpoint shapes follow the platform API; wire format
// beyond these contracts is the platform's business.
type RemoteService struct {
	client *resty.Client
}

// NewRemoteService builds the online collaborator client. token, when
// non-empty, is sent as a bearer credential on every request.
func NewRemoteService(baseURL, token string, timeout time.Duration) *RemoteService {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if token != "" {
		c.SetAuthToken(token)
	}
	return &RemoteService{client: c}
}

func (s *RemoteService) Info(ctx context.Context, targetID string) (AssessmentInfo, error) {
	var info AssessmentInfo
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&info).
		Get("/api/assessments/" + targetID)
	if err != nil {
		return AssessmentInfo{}, fmt.Errorf("assessment info %s: %w", targetID, err)
	}
	if err := checkStatus(resp); err != nil {
		return AssessmentInfo{}, err
	}
	return info, nil
}

func (s *RemoteService) FetchQuestions(ctx context.Context, assessmentID string) ([]Question, error) {
	var out struct {
		Questions []Question `json:"questions"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/assessments/" + assessmentID + "/questions")
	if err != nil {
		return nil, fmt.Errorf("fetch questions %s: %w", assessmentID, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (s *RemoteService) ModuleExamQuestions(ctx context.Context, moduleID string) ([]Question, error) {
	var out struct {
		Questions []Question `json:"questions"`
	}
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/api/modules/" + moduleID + "/exam")
	if err != nil {
		return nil, fmt.Errorf("module exam %s: %w", moduleID, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

func (s *RemoteService) Score(ctx context.Context, targetID string, answers []Answer) (ScoreResult, error) {
	var out ScoreResult
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"answers": answers}).
		SetResult(&out).
		Post("/api/assessments/" + targetID + "/submissions")
	if err != nil {
		return ScoreResult{}, fmt.Errorf("submit answers %s: %w", targetID, err)
	}
	if err := checkStatus(resp); err != nil {
		return ScoreResult{}, err
	}
	return out, nil
}

func (s *RemoteService) IssueCertificate(ctx context.Context, enrollmentID string) (Certificate, error) {
	var out Certificate
	resp, err := s.client.R().
		SetContext(ctx).
		SetResult(&out).
		Post("/api/enrollments/" + enrollmentID + "/certificate")
	if err != nil {
		return Certificate{}, fmt.Errorf("issue certificate %s: %w", enrollmentID, err)
	}
	if err := checkStatus(resp); err != nil {
		return Certificate{}, err
	}
	return out, nil
}

func checkStatus(resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return ErrNotFound
	case resp.IsError():
		return fmt.Errorf("platform returned %s: %s", resp.Status(), resp.String())
	}
	return nil
}
