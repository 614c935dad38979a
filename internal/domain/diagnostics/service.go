package diagnostics

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
)

type Service struct {
	tests    LabTestRepository
	requests LabRequestRepository
}

func NewService(tests LabTestRepository, requests LabRequestRepository) *Service {
	return &Service{tests: tests, requests: requests}
}

// -- Catalog --

func (s *Service) CreateTest(ctx context.Context, t *LabTest) error {
	t.Code = strings.ToUpper(strings.TrimSpace(t.Code))
	t.Name = strings.TrimSpace(t.Name)
	if t.Code == "" {
		return apperr.Validation("code is required")
	}
	if t.Name == "" {
		return apperr.Validation("name is required")
	}
	if t.Price < 0 {
		return apperr.Validation("price must not be negative")
	}
	if _, err := s.tests.GetByCode(ctx, t.Code); err == nil {
		return apperr.InvalidState("lab test %s already exists", t.Code)
	}
	return s.tests.Create(ctx, t)
}

func (s *Service) GetTest(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	return s.tests.GetByID(ctx, id)
}

func (s *Service) ListTests(ctx context.Context) ([]*LabTest, error) {
	return s.tests.List(ctx)
}

// -- Requests --

// Order creates a pending request for testID against a visit.
func (s *Service) Order(ctx context.Context, visitID, patientID, testID uuid.UUID, requestedBy string) (*LabRequest, error) {
	t, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	lr := &LabRequest{
		VisitID:     visitID,
		PatientID:   patientID,
		TestID:      t.ID,
		TestName:    t.Name,
		Price:       t.Price,
		Status:      StatusPending,
		RequestedBy: requestedBy,
	}
	if err := s.requests.Create(ctx, lr); err != nil {
		return nil, err
	}
	return lr, nil
}

// Advance moves a request forward. A result may only be recorded when the
// request completes.
func (s *Service) Advance(ctx context.Context, id uuid.UUID, status, result string) (*LabRequest, error) {
	lr, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ValidateTransition(lr.Status, status) {
		return nil, apperr.InvalidState("lab request cannot move from %s to %s", lr.Status, status)
	}
	result = strings.TrimSpace(result)
	if result != "" && status != StatusCompleted {
		return nil, apperr.Validation("result can only be recorded on completion")
	}

	now := time.Now().UTC()
	switch status {
	case StatusSampleCollected:
		lr.CollectedAt = &now
	case StatusCompleted:
		if lr.CollectedAt == nil {
			lr.CollectedAt = &now
		}
		lr.CompletedAt = &now
		lr.Result = result
	}
	lr.Status = status
	if err := s.requests.Update(ctx, lr); err != nil {
		return nil, err
	}
	return lr, nil
}

func (s *Service) GetRequest(ctx context.Context, id uuid.UUID) (*LabRequest, error) {
	return s.requests.GetByID(ctx, id)
}

func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabRequest, error) {
	return s.requests.ListByVisit(ctx, visitID)
}

// HasOpenRequests reports whether any request of the visit is not completed.
func (s *Service) HasOpenRequests(ctx context.Context, visitID uuid.UUID) (bool, error) {
	list, err := s.requests.ListByVisit(ctx, visitID)
	if err != nil {
		return false, err
	}
	for _, lr := range list {
		if lr.Open() {
			return true, nil
		}
	}
	return false, nil
}
