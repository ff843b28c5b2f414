package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/p2p-lanes/MuOS-API/internal/application/code"
	"github.com/p2p-lanes/MuOS-API/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockCodes struct{ mock.Mock }

func (m *mockCodes) Issue(ctx context.Context, purpose domain.CodePurpose, subjectKey string, opts code.IssueOptions) (*code.Issued, error) {
	args := m.Called(ctx, purpose, subjectKey, opts)
	if i, _ := args.Get(0).(*code.Issued); i != nil {
		return i, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodes) Redeem(ctx context.Context, purpose domain.CodePurpose, subjectKey, value, requesterID string) (*domain.VerificationCode, error) {
	args := m.Called(ctx, purpose, subjectKey, value, requesterID)
	if c, _ := args.Get(0).(*domain.VerificationCode); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCodes) Invalidate(ctx context.Context, purpose domain.CodePurpose, subjectKey string) error {
	return m.Called(ctx, purpose, subjectKey).Error(0)
}
func (m *mockCodes) Rollback(ctx context.Context, issued *code.Issued) error {
	return m.Called(ctx, issued).Error(0)
}

type mockCitizenStore struct{ mock.Mock }

func (m *mockCitizenStore) GetByEmail(ctx context.Context, email string) (*domain.Citizen, error) {
	args := m.Called(ctx, email)
	if c, _ := args.Get(0).(*domain.Citizen); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockCitizenStore) Update(ctx context.Context, citizenID string, updates map[string]interface{}) error {
	return m.Called(ctx, citizenID, updates).Error(0)
}

type mockAppStore struct{ mock.Mock }

func (m *mockAppStore) GetByAPIKey(ctx context.Context, apiKey string) (*domain.ThirdPartyApp, error) {
	args := m.Called(ctx, apiKey)
	if a, _ := args.Get(0).(*domain.ThirdPartyApp); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockEmailLogStore struct{ mock.Mock }

func (m *mockEmailLogStore) Put(ctx context.Context, l *domain.EmailLog) error {
	return m.Called(ctx, l).Error(0)
}

type mockMailer struct{ mock.Mock }

func (m *mockMailer) SendEmail(to, subject, body string) error {
	return m.Called(to, subject, body).Error(0)
}

type mockSMSSender struct{ mock.Mock }

func (m *mockSMSSender) SendSMS(ctx context.Context, to, message string) error {
	return m.Called(ctx, to, message).Error(0)
}

type mockJWTSigner struct{ mock.Mock }

func (m *mockJWTSigner) Sign(citizenID, email, appName string) (string, error) {
	args := m.Called(citizenID, email, appName)
	return args.String(0), args.Error(1)
}

func newService(cs *mockCodes, cz *mockCitizenStore, as *mockAppStore, el *mockEmailLogStore, ml *mockMailer, sms *mockSMSSender, jwt *mockJWTSigner) Service {
	return NewService(ServiceDeps{
		Codes:       cs,
		CitizenRepo: cz,
		AppRepo:     as,
		EmailLogs:   el,
		Mailer:      ml,
		SMSSender:   sms,
		JWTProvider: jwt,
	})
}

// --- AuthenticateThirdParty ---

func TestAuthenticateThirdParty_BadAPIKey(t *testing.T) {
	as := &mockAppStore{}
	as.On("GetByAPIKey", mock.Anything, "nope").Return(nil, domain.ErrUnauthorized)

	svc := newService(nil, nil, as, nil, nil, nil, nil)
	err := svc.AuthenticateThirdParty(context.Background(), "nope", "a@b.com")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestAuthenticateThirdParty_CitizenNotFound(t *testing.T) {
	as := &mockAppStore{}
	cz := &mockCitizenStore{}
	as.On("GetByAPIKey", mock.Anything, "key").Return(&domain.ThirdPartyApp{Name: "event-portal"}, nil)
	cz.On("GetByEmail", mock.Anything, "a@b.com").Return(nil, domain.ErrNotFound)

	svc := newService(nil, cz, as, nil, nil, nil, nil)
	err := svc.AuthenticateThirdParty(context.Background(), "key", "a@b.com")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestAuthenticateThirdParty_HappyPath_AttachesAppName(t *testing.T) {
	as := &mockAppStore{}
	cz := &mockCitizenStore{}
	cs := &mockCodes{}
	el := &mockEmailLogStore{}
	ml := &mockMailer{}

	as.On("GetByAPIKey", mock.Anything, "key").Return(&domain.ThirdPartyApp{Name: "event-portal"}, nil)
	cz.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.Citizen{CitizenID: "u1", PrimaryEmail: "a@b.com"}, nil)
	cs.On("Issue", mock.Anything, domain.PurposeLogin, "a@b.com", code.IssueOptions{AppName: "event-portal"}).
		Return(&code.Issued{Value: "123456", CodeID: "c1", Purpose: domain.PurposeLogin, SubjectKey: "a@b.com"}, nil)
	ml.On("SendEmail", "a@b.com", "Your event-portal login code", mock.Anything).Return(nil)
	el.On("Put", mock.Anything, mock.MatchedBy(func(l *domain.EmailLog) bool {
		return l.Status == "sent" && l.Event == domain.EmailEventThirdPartyCode && l.CitizenID == "u1"
	})).Return(nil)

	svc := newService(cs, cz, as, el, ml, nil, nil)
	err := svc.AuthenticateThirdParty(context.Background(), "key", "a@b.com")

	require.NoError(t, err)
	cs.AssertExpectations(t)
	ml.AssertExpectations(t)
	el.AssertExpectations(t)
}

func TestAuthenticateThirdParty_MailFailure_RollsBackCode(t *testing.T) {
	as := &mockAppStore{}
	cz := &mockCitizenStore{}
	cs := &mockCodes{}
	el := &mockEmailLogStore{}
	ml := &mockMailer{}

	as.On("GetByAPIKey", mock.Anything, "key").Return(&domain.ThirdPartyApp{Name: "event-portal"}, nil)
	cz.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.Citizen{CitizenID: "u1", PrimaryEmail: "a@b.com"}, nil)
	issued := &code.Issued{Value: "123456", CodeID: "c1", Purpose: domain.PurposeLogin, SubjectKey: "a@b.com"}
	cs.On("Issue", mock.Anything, domain.PurposeLogin, "a@b.com", mock.Anything).Return(issued, nil)
	ml.On("SendEmail", "a@b.com", mock.Anything, mock.Anything).Return(errors.New("smtp down"))
	cs.On("Rollback", mock.Anything, issued).Return(nil)
	el.On("Put", mock.Anything, mock.MatchedBy(func(l *domain.EmailLog) bool {
		return l.Status == "failed"
	})).Return(nil)

	svc := newService(cs, cz, as, el, ml, nil, nil)
	err := svc.AuthenticateThirdParty(context.Background(), "key", "a@b.com")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDeliveryFailed))
	cs.AssertExpectations(t)
}

func TestAuthenticateThirdParty_ConfirmedPhone_GetsSMSCopy(t *testing.T) {
	as := &mockAppStore{}
	cz := &mockCitizenStore{}
	cs := &mockCodes{}
	el := &mockEmailLogStore{}
	ml := &mockMailer{}
	sms := &mockSMSSender{}

	phone := "+5491122334455"
	as.On("GetByAPIKey", mock.Anything, "key").Return(&domain.ThirdPartyApp{Name: "event-portal"}, nil)
	cz.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.Citizen{
		CitizenID: "u1", PrimaryEmail: "a@b.com", Phone: &phone, PhoneConfirmed: true,
	}, nil)
	cs.On("Issue", mock.Anything, domain.PurposeLogin, "a@b.com", mock.Anything).
		Return(&code.Issued{Value: "123456", CodeID: "c1", Purpose: domain.PurposeLogin, SubjectKey: "a@b.com"}, nil)
	ml.On("SendEmail", "a@b.com", mock.Anything, mock.Anything).Return(nil)
	el.On("Put", mock.Anything, mock.Anything).Return(nil)
	sms.On("SendSMS", mock.Anything, phone, mock.Anything).Return(nil)

	svc := newService(cs, cz, as, el, ml, sms, nil)
	err := svc.AuthenticateThirdParty(context.Background(), "key", "a@b.com")

	require.NoError(t, err)
	sms.AssertExpectations(t)
}

// --- Login ---

func TestLogin_InvalidCode(t *testing.T) {
	cs := &mockCodes{}
	cs.On("Redeem", mock.Anything, domain.PurposeLogin, "a@b.com", "000000", "").
		Return(nil, domain.ErrUnauthorized)

	svc := newService(cs, nil, nil, nil, nil, nil, nil)
	_, err := svc.Login(context.Background(), "a@b.com", "000000")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUnauthorized))
}

func TestLogin_ExpiredCode(t *testing.T) {
	cs := &mockCodes{}
	cs.On("Redeem", mock.Anything, domain.PurposeLogin, "a@b.com", "123456", "").
		Return(nil, domain.ErrExpired)

	svc := newService(cs, nil, nil, nil, nil, nil, nil)
	_, err := svc.Login(context.Background(), "a@b.com", "123456")

	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrExpired))
}

func TestLogin_HappyPath_TokenCarriesAppName(t *testing.T) {
	cs := &mockCodes{}
	cz := &mockCitizenStore{}
	jwt := &mockJWTSigner{}

	cs.On("Redeem", mock.Anything, domain.PurposeLogin, "a@b.com", "123456", "").
		Return(&domain.VerificationCode{CodeID: "c1", AppName: "event-portal"}, nil)
	cz.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.Citizen{
		CitizenID: "u1", PrimaryEmail: "a@b.com", EmailValidated: true,
	}, nil)
	jwt.On("Sign", "u1", "a@b.com", "event-portal").Return("signed-token", nil)

	svc := newService(cs, cz, nil, nil, nil, nil, jwt)
	result, err := svc.Login(context.Background(), "a@b.com", "123456")

	require.NoError(t, err)
	assert.Equal(t, "signed-token", result.AccessToken)
	assert.Equal(t, "Bearer", result.TokenType)
	jwt.AssertExpectations(t)
}

func TestLogin_FirstLogin_MarksEmailValidated(t *testing.T) {
	cs := &mockCodes{}
	cz := &mockCitizenStore{}
	jwt := &mockJWTSigner{}

	cs.On("Redeem", mock.Anything, domain.PurposeLogin, "a@b.com", "123456", "").
		Return(&domain.VerificationCode{CodeID: "c1"}, nil)
	cz.On("GetByEmail", mock.Anything, "a@b.com").Return(&domain.Citizen{
		CitizenID: "u1", PrimaryEmail: "a@b.com", EmailValidated: false,
	}, nil)
	cz.On("Update", mock.Anything, "u1", mock.MatchedBy(func(m map[string]interface{}) bool {
		v, ok := m["email_validated"].(bool)
		return ok && v
	})).Return(nil)
	jwt.On("Sign", "u1", "a@b.com", "").Return("signed-token", nil)

	svc := newService(cs, cz, nil, nil, nil, nil, jwt)
	_, err := svc.Login(context.Background(), "a@b.com", "123456")

	require.NoError(t, err)
	cz.AssertExpectations(t)
}
