package code

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/p2p-lanes/MuOS-API/internal/domain"
	"github.com/p2p-lanes/MuOS-API/internal/pkg/id"
	"golang.org/x/crypto/bcrypt"
)

// IssueOptions carries per-purpose metadata attached at issuance.
type IssueOptions struct {
	// Owner restricts redemption to one citizen. Mandatory for the
	// account-link purpose, empty for login.
	Owner string
	// AppName records which third-party flow requested the code; it is
	// carried through redemption into the token claims.
	AppName string
}

// Issued is the result of issuing a code. Value is returned exactly once,
// for out-of-band delivery — it is never stored in clear.
type Issued struct {
	Value      string
	CodeID     string
	Purpose    domain.CodePurpose
	SubjectKey string
}

// Service is the verification-code engine: it issues, expires and
// single-use-consumes short numeric codes. Delivery is the caller's
// problem; Rollback compensates when delivery fails.
type Service interface {
	Issue(ctx context.Context, purpose domain.CodePurpose, subjectKey string, opts IssueOptions) (*Issued, error)
	Redeem(ctx context.Context, purpose domain.CodePurpose, subjectKey, value, requesterID string) (*domain.VerificationCode, error)
	Invalidate(ctx context.Context, purpose domain.CodePurpose, subjectKey string) error
	Rollback(ctx context.Context, issued *Issued) error
}

type codeStore interface {
	Put(ctx context.Context, c *domain.VerificationCode) error
	Get(ctx context.Context, purpose domain.CodePurpose, subjectKey string) (*domain.VerificationCode, error)
	Consume(ctx context.Context, purpose domain.CodePurpose, subjectKey, codeID string) error
	Delete(ctx context.Context, purpose domain.CodePurpose, subjectKey string) error
	DeleteIssued(ctx context.Context, purpose domain.CodePurpose, subjectKey, codeID string) error
}

type service struct {
	repo codeStore
	ttl  time.Duration
}

func NewService(repo codeStore, ttl time.Duration) Service {
	return &service{repo: repo, ttl: ttl}
}

// Issue generates a uniformly random 6-digit code and stores its bcrypt
// hash. The put overwrites any previous row for (purpose, subject), so a
// reissue invalidates the prior code even inside its expiry window.
func (s *service) Issue(ctx context.Context, purpose domain.CodePurpose, subjectKey string, opts IssueOptions) (*Issued, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return nil, err
	}
	value := fmt.Sprintf("%06d", n.Int64())

	hash, err := bcrypt.GenerateFromPassword([]byte(value), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &domain.VerificationCode{
		SubjectKey:     subjectKey,
		Purpose:        purpose,
		CodeID:         id.New(),
		CodeHash:       string(hash),
		Consumed:       false,
		OwnerCitizenID: opts.Owner,
		AppName:        opts.AppName,
		CreatedAt:      now.Unix(),
		ExpiresAt:      now.Add(s.ttl).Unix(),
	}
	if err := s.repo.Put(ctx, c); err != nil {
		return nil, err
	}
	return &Issued{Value: value, CodeID: c.CodeID, Purpose: purpose, SubjectKey: subjectKey}, nil
}

// Redeem validates and consumes the active code for (purpose, subject).
// Consumption is a conditional write keyed on the code id, so concurrent
// duplicate redemptions resolve to exactly one winner. A correct but
// expired code is consumed anyway, closing the replay window, and still
// reported as expired.
//
// Missing, mismatched and already-consumed codes all surface as
// ErrUnauthorized — clients only ever learn "invalid or expired".
func (s *service) Redeem(ctx context.Context, purpose domain.CodePurpose, subjectKey, value, requesterID string) (*domain.VerificationCode, error) {
	c, err := s.repo.Get(ctx, purpose, subjectKey)
	if err != nil {
		return nil, fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
	}
	if c.Consumed {
		return nil, fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.CodeHash), []byte(value)) != nil {
		return nil, fmt.Errorf("invalid code: %w", domain.ErrUnauthorized)
	}
	if time.Now().Unix() > c.ExpiresAt {
		// Best effort — the row is inert either way once expired.
		_ = s.repo.Consume(ctx, purpose, subjectKey, c.CodeID)
		return nil, fmt.Errorf("code expired: %w", domain.ErrExpired)
	}
	if c.OwnerCitizenID != "" && c.OwnerCitizenID != requesterID {
		return nil, fmt.Errorf("code may only be redeemed by its owner: %w", domain.ErrForbidden)
	}
	if err := s.repo.Consume(ctx, purpose, subjectKey, c.CodeID); err != nil {
		return nil, err
	}
	return c, nil
}

// Invalidate unconditionally removes the active code for a subject.
func (s *service) Invalidate(ctx context.Context, purpose domain.CodePurpose, subjectKey string) error {
	return s.repo.Delete(ctx, purpose, subjectKey)
}

// Rollback removes a just-issued code after a delivery failure. It is a
// no-op when a newer code has already replaced the issued one.
func (s *service) Rollback(ctx context.Context, issued *Issued) error {
	return s.repo.DeleteIssued(ctx, issued.Purpose, issued.SubjectKey, issued.CodeID)
}
