/**
 * @description
 * BankAccountService owns the portal session and exposes account lookups.
 * It is the only writer of the session value. Logins are single-flight: any
 * number of concurrent callers that need a session share one login attempt.
 *
 * @notes
 * - Session invalidation is compare-and-clear so a stale observer can never
 *   discard a session another caller has just obtained.
 * - A lookup that hits an expired session re-logs in once and retries once.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nguyenkhoa0721/lookup-bank/internal/domain"
	"golang.org/x/sync/singleflight"
)

const loginFlightKey = "login"

// LoginRunner performs a complete portal login.
type LoginRunner interface {
	Login(ctx context.Context) (string, error)
}

// EventPublisher publishes lifecycle events. Satisfied by rabbitmq.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, exchange, routingKey string, body interface{}) error
}

// ServiceConfig holds the orchestrator settings.
type ServiceConfig struct {
	DeviceID    string
	SelfBankBin string
	// DebitAccount is sent as the inquiry's debit account. Empty means the
	// credit account is reused, as the portal accepts.
	DebitAccount   string
	LoginTimeout   time.Duration
	EventsExchange string
}

// BankAccountService resolves account holder names through the portal.
type BankAccountService struct {
	portal    Portal
	auth      LoginRunner
	refs      RefNoSource
	publisher EventPublisher
	cfg       ServiceConfig
	logger    *slog.Logger

	mu      sync.RWMutex
	session string

	logins singleflight.Group
}

// NewBankAccountService creates a new BankAccountService. publisher may be nil.
func NewBankAccountService(portal Portal, auth LoginRunner, refs RefNoSource, publisher EventPublisher, cfg ServiceConfig, logger *slog.Logger) *BankAccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BankAccountService{
		portal:    portal,
		auth:      auth,
		refs:      refs,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger.With("component", "bank_account_service"),
	}
}

// DeviceID returns the per-process device identity.
func (s *BankAccountService) DeviceID() string { return s.cfg.DeviceID }

// Session returns the current session, or "" when none exists.
func (s *BankAccountService) Session() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

func (s *BankAccountService) setSession(session string) {
	s.mu.Lock()
	s.session = session
	s.mu.Unlock()
}

// InvalidateSession clears the session only if it still equals stale.
func (s *BankAccountService) InvalidateSession(stale string) bool {
	if stale == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session != stale {
		return false
	}
	s.session = ""
	return true
}

// EnsureSession returns the current session, logging in first if there is none.
func (s *BankAccountService) EnsureSession(ctx context.Context) (string, error) {
	if session := s.Session(); session != "" {
		return session, nil
	}
	return s.login(ctx, "")
}

// Relogin replaces a session the portal rejected. If another caller already
// replaced it, that session is returned without a new login.
func (s *BankAccountService) Relogin(ctx context.Context, stale string) (string, error) {
	if s.InvalidateSession(stale) {
		s.publish(ctx, domain.EventSessionExpired, "")
	}
	return s.login(ctx, stale)
}

func (s *BankAccountService) login(ctx context.Context, stale string) (string, error) {
	ch := s.logins.DoChan(loginFlightKey, func() (interface{}, error) {
		if current := s.Session(); current != "" && current != stale {
			return current, nil
		}

		// The shared attempt must outlive any single waiting caller.
		var (
			loginCtx context.Context
			cancel   context.CancelFunc
		)
		if s.cfg.LoginTimeout > 0 {
			loginCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.cfg.LoginTimeout)
		} else {
			loginCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
		}
		defer cancel()

		session, err := s.auth.Login(loginCtx)
		if err != nil {
			s.publish(loginCtx, domain.EventLoginFailed, err.Error())
			return nil, err
		}
		s.setSession(session)
		s.publish(loginCtx, domain.EventLoginSucceeded, "")
		return session, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// LookupAccount resolves the holder name of req.AccountNo at bank req.BankBin.
func (s *BankAccountService) LookupAccount(ctx context.Context, req domain.LookupRequest) (*domain.LookupResult, error) {
	if err := req.Validate(); err != nil {
		return nil, &domain.LookupError{BankBin: req.BankBin, AccountNo: req.AccountNo, Err: err}
	}
	fail := func(err error) (*domain.LookupResult, error) {
		return nil, &domain.LookupError{BankBin: req.BankBin, AccountNo: req.AccountNo, Err: err}
	}

	session, err := s.EnsureSession(ctx)
	if err != nil {
		return fail(err)
	}

	result, err := s.inquire(ctx, req, session)
	if errors.Is(err, domain.ErrSessionExpired) {
		s.logger.Info("session expired during inquiry, logging in again")
		session, err = s.Relogin(ctx, session)
		if err != nil {
			return fail(err)
		}
		result, err = s.inquire(ctx, req, session)
		if errors.Is(err, domain.ErrSessionExpired) && s.InvalidateSession(session) {
			// Drop the fresh session too so the next caller logs in instead of reusing it.
			s.publish(ctx, domain.EventSessionExpired, "retry")
		}
	}
	if err != nil {
		return fail(err)
	}
	return result, nil
}

func (s *BankAccountService) inquire(ctx context.Context, req domain.LookupRequest, session string) (*domain.LookupResult, error) {
	inquiryType := domain.InquiryTypeFast
	if req.BankBin == s.cfg.SelfBankBin {
		inquiryType = domain.InquiryTypeInHouse
	}
	debitAccount := s.cfg.DebitAccount
	if debitAccount == "" {
		debitAccount = req.AccountNo
	}

	resp, err := s.portal.InquiryAccountName(ctx, domain.InquiryRequest{
		CreditAccount:     req.AccountNo,
		CreditAccountType: "ACCOUNT",
		BankCode:          req.BankBin,
		DebitAccount:      debitAccount,
		Type:              inquiryType,
		SessionID:         session,
		RefNo:             s.refs.Next(),
		DeviceIDCommon:    s.cfg.DeviceID,
	})
	if err != nil {
		return nil, fmt.Errorf("inquiry: %w", err)
	}
	if !resp.Result.Succeeded() {
		return nil, domain.NewPortalError("inquiryAccountName", resp.Result)
	}
	return &domain.LookupResult{
		AccountNo:   req.AccountNo,
		AccountName: resp.BenName,
		BankBin:     req.BankBin,
	}, nil
}

// Ping sends the keep-alive probe with the current session.
func (s *BankAccountService) Ping(ctx context.Context) error {
	session := s.Session()
	if session == "" {
		return domain.ErrNoSession
	}
	resp, err := s.portal.GetFavorBeneficiaryList(ctx, domain.KeepAliveRequest{
		TransactionType: "PAYMENT",
		SearchType:      "LATEST",
		SessionID:       session,
		RefNo:           s.refs.Next(),
		DeviceIDCommon:  s.cfg.DeviceID,
	})
	if err != nil {
		return fmt.Errorf("keep-alive: %w", err)
	}
	if !resp.Result.Succeeded() {
		perr := domain.NewPortalError("getFavorBeneficiaryList", resp.Result)
		if errors.Is(perr, domain.ErrSessionExpired) && s.InvalidateSession(session) {
			s.publish(ctx, domain.EventSessionExpired, "keep-alive")
		}
		return perr
	}
	return nil
}

func (s *BankAccountService) publish(ctx context.Context, event, reason string) {
	if s.publisher == nil || s.cfg.EventsExchange == "" {
		return
	}
	body := domain.SessionEvent{
		Event:      event,
		DeviceID:   s.cfg.DeviceID,
		Reason:     reason,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, s.cfg.EventsExchange, event, body); err != nil {
		s.logger.Warn("failed to publish session event", "event", event, "error", err)
	}
}
