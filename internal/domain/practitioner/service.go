package practitioner

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.Name = strings.TrimSpace(d.Name)
	d.Department = strings.TrimSpace(d.Department)
	if d.Name == "" {
		return apperr.Validation("name is required")
	}
	if d.Department == "" {
		return apperr.Validation("department is required")
	}
	if d.ConsultationFee < 0 {
		return apperr.Validation("consultation_fee must not be negative")
	}
	d.Active = true
	return s.repo.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, params ListParams) ([]*Doctor, int, error) {
	return s.repo.List(ctx, params)
}
