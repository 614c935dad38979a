package patient

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/sequence"
)

const mrnScope = "mrn"

type Service struct {
	repo Repository
	seq  sequence.Generator
	tx   db.Transactor
}

func NewService(repo Repository, seq sequence.Generator, tx db.Transactor) *Service {
	return &Service{repo: repo, seq: seq, tx: tx}
}

// CheckDuplicates returns every active patient sharing phone. Patients whose
// name also matches are listed first.
func (s *Service) CheckDuplicates(ctx context.Context, name, phone string) ([]*Patient, error) {
	digits := NormalizePhone(phone)
	if digits == "" {
		return nil, nil
	}
	found, err := s.repo.FindByPhone(ctx, digits)
	if err != nil {
		return nil, err
	}

	var out []*Patient
	for _, p := range found {
		if p.Matches(name, phone) {
			out = append(out, p)
		}
	}
	want := normalizeName(name)
	sort.SliceStable(out, func(i, j int) bool {
		return normalizeName(out[i].Name) == want && normalizeName(out[j].Name) != want
	})
	return out, nil
}

// Register creates a patient with the next MRN. Unless force is set, a
// registration colliding with existing patients fails with *DuplicateError.
func (s *Service) Register(ctx context.Context, p *Patient, force bool) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.Gender = strings.ToLower(p.Gender)
	if p.Name == "" {
		return apperr.Validation("name is required")
	}
	if NormalizePhone(p.Phone) == "" {
		return apperr.Validation("phone is required")
	}
	if !validGenders[p.Gender] {
		return apperr.Validation("invalid gender: %s", p.Gender)
	}

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if !force {
			dups, err := s.CheckDuplicates(ctx, p.Name, p.Phone)
			if err != nil {
				return err
			}
			if len(dups) > 0 {
				return &DuplicateError{Candidates: dups}
			}
		}
		n, err := s.seq.Next(ctx, mrnScope)
		if err != nil {
			return err
		}
		p.MRN = formatMRN(n)
		p.IsDeleted = false
		return s.repo.Create(ctx, p)
	})
}

// Get returns a patient, including soft-deleted ones, so historical visits
// still resolve.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

// GetActive returns a patient that has not been deleted.
func (s *Service) GetActive(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, apperr.NotFound("patient", id)
	}
	return p, nil
}

func (s *Service) List(ctx context.Context, params ListParams) ([]*Patient, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.repo.SoftDelete(ctx, id)
}
