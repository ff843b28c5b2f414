package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/p2p-lanes/MuOS-API/internal/application/code"
	"github.com/p2p-lanes/MuOS-API/internal/domain"
	"github.com/p2p-lanes/MuOS-API/internal/pkg/id"
)

type AuthenticateRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type LoginRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// LoginResult is the token payload returned to a successfully
// authenticated citizen.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Service drives the passwordless login flow: a third-party app asks for
// a code on behalf of one of its users, the citizen mails the code back
// through the app, and a bearer token comes out.
type Service interface {
	AuthenticateThirdParty(ctx context.Context, apiKey, email string) error
	Login(ctx context.Context, email, codeValue string) (*LoginResult, error)
}

type citizenStore interface {
	GetByEmail(ctx context.Context, email string) (*domain.Citizen, error)
	Update(ctx context.Context, citizenID string, updates map[string]interface{}) error
}

type appStore interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.ThirdPartyApp, error)
}

type emailLogStore interface {
	Put(ctx context.Context, l *domain.EmailLog) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type smsSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type tokenSigner interface {
	Sign(citizenID, email, appName string) (string, error)
}

type ServiceDeps struct {
	Codes       code.Service
	CitizenRepo citizenStore
	AppRepo     appStore
	EmailLogs   emailLogStore
	Mailer      mailer
	SMSSender   smsSender
	JWTProvider tokenSigner
}

type service struct {
	codes       code.Service
	citizenRepo citizenStore
	appRepo     appStore
	emailLogs   emailLogStore
	mailer      mailer
	smsSender   smsSender
	jwtProvider tokenSigner
}

func NewService(deps ServiceDeps) Service {
	return &service{
		codes:       deps.Codes,
		citizenRepo: deps.CitizenRepo,
		appRepo:     deps.AppRepo,
		emailLogs:   deps.EmailLogs,
		mailer:      deps.Mailer,
		smsSender:   deps.SMSSender,
		jwtProvider: deps.JWTProvider,
	}
}

// AuthenticateThirdParty issues a login code for the citizen with the
// given email, on behalf of the application that owns the API key. The
// code is delivered to the citizen's primary email; if the mail bounces
// the code is withdrawn so a later attempt starts clean.
func (s *service) AuthenticateThirdParty(ctx context.Context, apiKey, email string) error {
	app, err := s.appRepo.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return err
	}
	citizen, err := s.citizenRepo.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("citizen not found: %w", domain.ErrNotFound)
	}

	issued, err := s.codes.Issue(ctx, domain.PurposeLogin, citizen.PrimaryEmail, code.IssueOptions{
		AppName: app.Name,
	})
	if err != nil {
		return err
	}

	subject := fmt.Sprintf("Your %s login code", app.Name)
	body := fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", issued.Value)
	if err := s.mailer.SendEmail(citizen.PrimaryEmail, subject, body); err != nil {
		if rbErr := s.codes.Rollback(ctx, issued); rbErr != nil {
			slog.Warn("failed to roll back undelivered login code", "citizen_id", citizen.CitizenID, "err", rbErr)
		}
		s.logEmail(ctx, citizen.PrimaryEmail, domain.EmailEventThirdPartyCode, citizen.CitizenID, issued.CodeID, "failed")
		return fmt.Errorf("could not deliver login code: %w", domain.ErrDeliveryFailed)
	}
	s.logEmail(ctx, citizen.PrimaryEmail, domain.EmailEventThirdPartyCode, citizen.CitizenID, issued.CodeID, "sent")

	// Second channel, best effort only.
	if citizen.Phone != nil && citizen.PhoneConfirmed {
		if err := s.smsSender.SendSMS(ctx, *citizen.Phone, "Your verification code is "+issued.Value); err != nil {
			slog.Warn("failed to send login code SMS", "citizen_id", citizen.CitizenID, "err", err)
		}
	}
	return nil
}

// Login redeems a login code and mints a bearer token. The token carries
// the app name the code was issued for, so third-party logins stay
// attributable downstream.
func (s *service) Login(ctx context.Context, email, codeValue string) (*LoginResult, error) {
	redeemed, err := s.codes.Redeem(ctx, domain.PurposeLogin, email, codeValue, "")
	if err != nil {
		return nil, err
	}
	citizen, err := s.citizenRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("citizen not found: %w", domain.ErrNotFound)
	}

	// Redeeming a mailed code proves control of the mailbox.
	if !citizen.EmailValidated {
		if err := s.citizenRepo.Update(ctx, citizen.CitizenID, map[string]interface{}{
			"email_validated": true,
		}); err != nil {
			slog.Warn("failed to mark email validated", "citizen_id", citizen.CitizenID, "err", err)
		}
	}

	token, err := s.jwtProvider.Sign(citizen.CitizenID, citizen.PrimaryEmail, redeemed.AppName)
	if err != nil {
		return nil, err
	}
	return &LoginResult{AccessToken: token, TokenType: "Bearer"}, nil
}

func (s *service) logEmail(ctx context.Context, receiver, event, citizenID, entityID, status string) {
	l := &domain.EmailLog{
		EmailLogID: id.New(),
		Receiver:   receiver,
		Event:      event,
		CitizenID:  citizenID,
		EntityType: "verification_code",
		EntityID:   entityID,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.emailLogs.Put(ctx, l); err != nil {
		slog.Warn("failed to write email log", "event", event, "err", err)
	}
}
