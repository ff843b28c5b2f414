package citizen

import (
	"context"
	"fmt"
	"time"

	"github.com/p2p-lanes/MuOS-API/internal/domain"
	"github.com/p2p-lanes/MuOS-API/internal/pkg/id"
)

// DynamoDB attribute names used in partial update maps.
const (
	fieldSecondaryEmail = "secondary_email"
	fieldPhone          = "phone"
	fieldFirstName      = "first_name"
	fieldLastName       = "last_name"
	fieldTelegram       = "telegram"
	fieldOrganization   = "organization"
)

type Service interface {
	Signup(ctx context.Context, req domain.CreateCitizenRequest) (*domain.Citizen, error)
	Get(ctx context.Context, citizenID string) (*domain.Citizen, error)
	Update(ctx context.Context, citizenID string, req domain.UpdateCitizenRequest) (*domain.Citizen, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Citizen, string, error)
}

type citizenStore interface {
	Put(ctx context.Context, c *domain.Citizen) error
	Get(ctx context.Context, citizenID string) (*domain.Citizen, error)
	GetByEmail(ctx context.Context, email string) (*domain.Citizen, error)
	Update(ctx context.Context, citizenID string, updates map[string]interface{}) error
	ScanPage(ctx context.Context, limit int32, cursor string) ([]domain.Citizen, string, error)
}

type service struct {
	repo citizenStore
}

func NewService(repo citizenStore) Service {
	return &service{repo: repo}
}

func (s *service) Signup(ctx context.Context, req domain.CreateCitizenRequest) (*domain.Citizen, error) {
	if _, err := s.repo.GetByEmail(ctx, req.PrimaryEmail); err == nil {
		return nil, fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	now := time.Now().UTC()
	c := &domain.Citizen{
		CitizenID:      id.New(),
		PrimaryEmail:   req.PrimaryEmail,
		SecondaryEmail: req.SecondaryEmail,
		Phone:          req.Phone,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Telegram:       req.Telegram,
		Organization:   req.Organization,
		Enable:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Put(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) Get(ctx context.Context, citizenID string) (*domain.Citizen, error) {
	return s.repo.Get(ctx, citizenID)
}

func (s *service) Update(ctx context.Context, citizenID string, req domain.UpdateCitizenRequest) (*domain.Citizen, error) {
	updates := map[string]interface{}{}
	if req.SecondaryEmail != nil {
		updates[fieldSecondaryEmail] = *req.SecondaryEmail
	}
	if req.Phone != nil {
		updates[fieldPhone] = *req.Phone
	}
	if req.FirstName != nil {
		updates[fieldFirstName] = *req.FirstName
	}
	if req.LastName != nil {
		updates[fieldLastName] = *req.LastName
	}
	if req.Telegram != nil {
		updates[fieldTelegram] = *req.Telegram
	}
	if req.Organization != nil {
		updates[fieldOrganization] = *req.Organization
	}
	if len(updates) == 0 {
		return s.repo.Get(ctx, citizenID)
	}
	if err := s.repo.Update(ctx, citizenID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, citizenID)
}

func (s *service) List(ctx context.Context, limit int, cursor string) ([]domain.Citizen, string, error) {
	if limit < 1 {
		limit = 50
	}
	return s.repo.ScanPage(ctx, int32(limit), cursor)
}
