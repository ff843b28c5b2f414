package cluster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/p2p-lanes/MuOS-API/internal/application/code"
	"github.com/p2p-lanes/MuOS-API/internal/domain"
	"github.com/p2p-lanes/MuOS-API/internal/pkg/id"
)

// Membership can change between observing it and locking it, so merge and
// leave re-resolve after acquisition and retry a bounded number of times.
const maxLockAttempts = 3

type InitiateRequest struct {
	TargetEmail string `json:"target_email" validate:"required,email"`
}

type VerifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Service manages account clusters: groups of citizen accounts one
// person has proven to own. Linking is initiated by one account, proven
// by a code mailed to the other, and committed as an atomic merge.
type Service interface {
	Initiate(ctx context.Context, initiatorID, targetEmail string) (*domain.LinkRequest, error)
	Verify(ctx context.Context, requesterID, codeValue string) (*domain.ClusterInfo, error)
	Get(ctx context.Context, citizenID string) (*domain.ClusterInfo, error)
	LinkedCitizenIDs(ctx context.Context, citizenID string) ([]string, error)
	Leave(ctx context.Context, citizenID string) error
}

type memberStore interface {
	GetMember(ctx context.Context, citizenID string) (*domain.ClusterMember, error)
	ListByCluster(ctx context.Context, clusterID string) ([]domain.ClusterMember, error)
	Commit(ctx context.Context, upserts []domain.ClusterMember, removals []string) error
}

type requestStore interface {
	Put(ctx context.Context, lr *domain.LinkRequest) error
	Get(ctx context.Context, initiatorID string) (*domain.LinkRequest, error)
	SetStatus(ctx context.Context, initiatorID string, status domain.LinkRequestStatus) error
	Delete(ctx context.Context, initiatorID string) error
}

type citizenStore interface {
	Get(ctx context.Context, citizenID string) (*domain.Citizen, error)
	GetByEmail(ctx context.Context, email string) (*domain.Citizen, error)
}

type emailLogStore interface {
	Put(ctx context.Context, l *domain.EmailLog) error
}

type mailer interface {
	SendEmail(to, subject, body string) error
}

type locker interface {
	AcquireAll(ctx context.Context, keys ...string) (func(), error)
}

type ServiceDeps struct {
	MemberRepo  memberStore
	RequestRepo requestStore
	CitizenRepo citizenStore
	EmailLogs   emailLogStore
	Codes       code.Service
	Mailer      mailer
	Locks       locker
}

type service struct {
	members  memberStore
	requests requestStore
	citizens citizenStore
	logs     emailLogStore
	codes    code.Service
	mailer   mailer
	locks    locker
}

func NewService(deps ServiceDeps) Service {
	return &service{
		members:  deps.MemberRepo,
		requests: deps.RequestRepo,
		citizens: deps.CitizenRepo,
		logs:     deps.EmailLogs,
		codes:    deps.Codes,
		mailer:   deps.Mailer,
		locks:    deps.Locks,
	}
}

// Initiate starts linking the initiator's account to the account behind
// targetEmail. The proof code goes to the TARGET's mailbox — redeeming
// it later proves the initiator controls both inboxes. Any previous
// pending request by the same initiator is superseded.
func (s *service) Initiate(ctx context.Context, initiatorID, targetEmail string) (*domain.LinkRequest, error) {
	initiator, err := s.citizens.Get(ctx, initiatorID)
	if err != nil {
		return nil, fmt.Errorf("initiator not found: %w", domain.ErrNotFound)
	}
	target, err := s.citizens.GetByEmail(ctx, targetEmail)
	if err != nil {
		return nil, fmt.Errorf("no citizen with that email: %w", domain.ErrNotFound)
	}
	if target.CitizenID == initiatorID {
		return nil, fmt.Errorf("cannot link an account to itself: %w", domain.ErrBadRequest)
	}

	initMem, err := s.resolve(ctx, initiatorID)
	if err != nil {
		return nil, err
	}
	targetMem, err := s.resolve(ctx, target.CitizenID)
	if err != nil {
		return nil, err
	}
	if initMem != nil && targetMem != nil && initMem.ClusterID == targetMem.ClusterID {
		return nil, fmt.Errorf("accounts are already linked: %w", domain.ErrBadRequest)
	}

	// Supersede the initiator's previous attempt; its code must die with it.
	if prev, err := s.requests.Get(ctx, initiatorID); err == nil && prev.Status == domain.LinkStatusPending {
		if err := s.codes.Invalidate(ctx, domain.PurposeAccountLink, prev.PairKey()); err != nil {
			slog.Warn("failed to invalidate superseded link code", "initiator_id", initiatorID, "err", err)
		}
	}

	now := time.Now().UTC()
	req := &domain.LinkRequest{
		InitiatorCitizenID: initiatorID,
		RequestID:          id.New(),
		TargetCitizenID:    target.CitizenID,
		TargetEmail:        target.PrimaryEmail,
		Status:             domain.LinkStatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.requests.Put(ctx, req); err != nil {
		return nil, err
	}

	issued, err := s.codes.Issue(ctx, domain.PurposeAccountLink, req.PairKey(), code.IssueOptions{
		Owner: initiatorID,
	})
	if err != nil {
		if delErr := s.requests.Delete(ctx, initiatorID); delErr != nil {
			slog.Warn("failed to delete link request without a code", "request_id", req.RequestID, "err", delErr)
		}
		return nil, err
	}

	subject := "Account link verification"
	body := fmt.Sprintf(
		"%s %s (%s) wants to link their account with yours. Share the code %s with them only if that person is you. The code expires in 5 minutes.",
		initiator.FirstName, initiator.LastName, initiator.PrimaryEmail, issued.Value,
	)
	if err := s.mailer.SendEmail(target.PrimaryEmail, subject, body); err != nil {
		if rbErr := s.codes.Rollback(ctx, issued); rbErr != nil {
			slog.Warn("failed to roll back undelivered link code", "request_id", req.RequestID, "err", rbErr)
		}
		if delErr := s.requests.Delete(ctx, initiatorID); delErr != nil {
			slog.Warn("failed to delete undelivered link request", "request_id", req.RequestID, "err", delErr)
		}
		s.logEmail(ctx, target.PrimaryEmail, target.CitizenID, req.RequestID, "failed")
		return nil, fmt.Errorf("could not deliver verification code: %w", domain.ErrDeliveryFailed)
	}
	s.logEmail(ctx, target.PrimaryEmail, target.CitizenID, req.RequestID, "sent")
	return req, nil
}

// Verify redeems the link code for the requester's pending request and
// merges both memberships. Only the initiator may verify; the code was
// mailed to the target, so possession of both proves common ownership.
// The code is consumed inside the merge's critical section, so a
// Conflict from lock contention leaves it live and the same code works
// on retry.
func (s *service) Verify(ctx context.Context, requesterID, codeValue string) (*domain.ClusterInfo, error) {
	req, err := s.requests.Get(ctx, requesterID)
	if err != nil || req.Status != domain.LinkStatusPending {
		return nil, fmt.Errorf("no pending link request: %w", domain.ErrNotFound)
	}

	redeem := func(ctx context.Context) error {
		_, err := s.codes.Redeem(ctx, domain.PurposeAccountLink, req.PairKey(), codeValue, requesterID)
		return err
	}
	clusterID, err := s.merge(ctx, requesterID, req.TargetCitizenID, redeem)
	if err != nil {
		if errors.Is(err, domain.ErrExpired) {
			if stErr := s.requests.SetStatus(ctx, requesterID, domain.LinkStatusExpired); stErr != nil {
				slog.Warn("failed to expire link request", "request_id", req.RequestID, "err", stErr)
			}
		}
		return nil, err
	}
	if err := s.requests.SetStatus(ctx, requesterID, domain.LinkStatusVerified); err != nil {
		slog.Warn("failed to mark link request verified", "request_id", req.RequestID, "err", err)
	}
	return s.info(ctx, clusterID)
}

// Get returns the citizen's cluster, or a synthetic singleton when they
// have never linked anything.
func (s *service) Get(ctx context.Context, citizenID string) (*domain.ClusterInfo, error) {
	mem, err := s.resolve(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		return &domain.ClusterInfo{
			CitizenIDs:  []string{citizenID},
			MemberCount: 1,
		}, nil
	}
	return s.info(ctx, mem.ClusterID)
}

// LinkedCitizenIDs is the aggregation contract: every citizen id whose
// data should be folded together with the given one, itself included.
func (s *service) LinkedCitizenIDs(ctx context.Context, citizenID string) ([]string, error) {
	info, err := s.Get(ctx, citizenID)
	if err != nil {
		return nil, err
	}
	return info.CitizenIDs, nil
}

// Leave removes the citizen from their cluster. A cluster needs at least
// two members to mean anything, so leaving a pair dissolves it entirely.
func (s *service) Leave(ctx context.Context, citizenID string) error {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		mem, err := s.resolve(ctx, citizenID)
		if err != nil {
			return err
		}
		if mem == nil {
			return fmt.Errorf("citizen is not in a cluster: %w", domain.ErrNotFound)
		}

		release, err := s.locks.AcquireAll(ctx, clusterKey(mem.ClusterID))
		if err != nil {
			return err
		}
		fresh, err := s.resolve(ctx, citizenID)
		if err != nil {
			release()
			return err
		}
		if fresh == nil || fresh.ClusterID != mem.ClusterID {
			release()
			continue
		}

		members, err := s.members.ListByCluster(ctx, mem.ClusterID)
		if err != nil {
			release()
			return err
		}
		removals := []string{citizenID}
		if len(members) <= 2 {
			removals = removals[:0]
			for _, m := range members {
				removals = append(removals, m.CitizenID)
			}
		}
		err = s.members.Commit(ctx, nil, removals)
		release()
		return err
	}
	return fmt.Errorf("cluster membership kept changing: %w", domain.ErrConflict)
}

// merge unions the memberships of a (the initiator) and b under locks
// covering both sides. Lock keys are taken from current membership, so
// after acquisition membership is re-resolved: if it moved, the locks
// protect the wrong thing and the attempt restarts. redeem runs only
// once the locks are confirmed, right before the commit; every Conflict
// path exits earlier, before anything was consumed.
func (s *service) merge(ctx context.Context, aID, bID string, redeem func(context.Context) error) (string, error) {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		aMem, err := s.resolve(ctx, aID)
		if err != nil {
			return "", err
		}
		bMem, err := s.resolve(ctx, bID)
		if err != nil {
			return "", err
		}

		release, err := s.locks.AcquireAll(ctx, lockKey(aID, aMem), lockKey(bID, bMem))
		if err != nil {
			return "", err
		}

		aFresh, err := s.resolve(ctx, aID)
		if err != nil {
			release()
			return "", err
		}
		bFresh, err := s.resolve(ctx, bID)
		if err != nil {
			release()
			return "", err
		}
		if lockKey(aID, aFresh) != lockKey(aID, aMem) || lockKey(bID, bFresh) != lockKey(bID, bMem) {
			release()
			continue
		}

		if err := redeem(ctx); err != nil {
			release()
			return "", err
		}

		clusterID, upserts, err := s.plan(ctx, aID, aFresh, bID, bFresh)
		if err != nil {
			release()
			return "", err
		}
		err = s.members.Commit(ctx, upserts, nil)
		release()
		if err != nil {
			return "", err
		}
		return clusterID, nil
	}
	return "", fmt.Errorf("cluster membership kept changing: %w", domain.ErrConflict)
}

// plan computes the union. The initiator's cluster survives a
// two-cluster merge; membership rows are keyed by citizen id, so moving
// a citizen is an upsert of the same row with the surviving cluster id.
func (s *service) plan(ctx context.Context, aID string, aMem *domain.ClusterMember, bID string, bMem *domain.ClusterMember) (string, []domain.ClusterMember, error) {
	now := time.Now().UTC()

	switch {
	case aMem == nil && bMem == nil:
		clusterID := id.New()
		return clusterID, []domain.ClusterMember{
			{CitizenID: aID, ClusterID: clusterID, CreatedAt: now},
			{CitizenID: bID, ClusterID: clusterID, CreatedAt: now},
		}, nil

	case aMem != nil && bMem == nil:
		return aMem.ClusterID, []domain.ClusterMember{
			{CitizenID: bID, ClusterID: aMem.ClusterID, CreatedAt: now},
		}, nil

	case aMem == nil && bMem != nil:
		return bMem.ClusterID, []domain.ClusterMember{
			{CitizenID: aID, ClusterID: bMem.ClusterID, CreatedAt: now},
		}, nil

	case aMem.ClusterID == bMem.ClusterID:
		// Raced with another link that already joined them.
		return aMem.ClusterID, nil, nil

	default:
		absorbed, err := s.members.ListByCluster(ctx, bMem.ClusterID)
		if err != nil {
			return "", nil, err
		}
		upserts := make([]domain.ClusterMember, 0, len(absorbed))
		for _, m := range absorbed {
			upserts = append(upserts, domain.ClusterMember{
				CitizenID: m.CitizenID,
				ClusterID: aMem.ClusterID,
				CreatedAt: m.CreatedAt,
			})
		}
		return aMem.ClusterID, upserts, nil
	}
}

func (s *service) info(ctx context.Context, clusterID string) (*domain.ClusterInfo, error) {
	members, err := s.members.ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	info := &domain.ClusterInfo{
		ClusterID:   clusterID,
		MemberCount: len(members),
	}
	for _, m := range members {
		info.CitizenIDs = append(info.CitizenIDs, m.CitizenID)
		if info.CreatedAt == nil || m.CreatedAt.Before(*info.CreatedAt) {
			created := m.CreatedAt
			info.CreatedAt = &created
		}
	}
	sort.Strings(info.CitizenIDs)
	return info, nil
}

// resolve maps "no membership row" to nil, which the merge planner reads
// as an implicit singleton.
func (s *service) resolve(ctx context.Context, citizenID string) (*domain.ClusterMember, error) {
	mem, err := s.members.GetMember(ctx, citizenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return mem, nil
}

func (s *service) logEmail(ctx context.Context, receiver, citizenID, requestID, status string) {
	l := &domain.EmailLog{
		EmailLogID: id.New(),
		Receiver:   receiver,
		Event:      domain.EmailEventClusterJoinCode,
		CitizenID:  citizenID,
		EntityType: "link_request",
		EntityID:   requestID,
		Status:     status,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.logs.Put(ctx, l); err != nil {
		slog.Warn("failed to write email log", "event", l.Event, "err", err)
	}
}

// lockKey derives the lock to take for one side of a merge: the cluster
// when the citizen has one, the citizen itself otherwise. "citizen#"
// sorts before "cluster#", so unclustered sides are always locked first.
func lockKey(citizenID string, mem *domain.ClusterMember) string {
	if mem == nil {
		return "citizen#" + citizenID
	}
	return clusterKey(mem.ClusterID)
}

func clusterKey(clusterID string) string {
	return "cluster#" + clusterID
}
