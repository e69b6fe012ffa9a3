/**
 * @description
 * The session authenticator drives one portal login from captcha fetch to
 * session issue. A login is a loop of attempts; each attempt walks
 * fetching_challenge → solving → encoding → submitting and either yields a
 * session, asks for a restart with a fresh challenge, or fails.
 *
 * @notes
 * - Restarts happen on a malformed OCR result and on the portal's transient
 *   captcha code (GW283). A captcha solution is never reused.
 * - The loop is bounded by MaxAttempts and by the caller's context.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nguyenkhoa0721/lookup-bank/internal/domain"
	"github.com/nguyenkhoa0721/lookup-bank/pkg/captcha"
	"github.com/nguyenkhoa0721/lookup-bank/pkg/encoder"
)

// DefaultAuthen2FA is the constant second-factor marker the portal web client sends.
const DefaultAuthen2FA = "c7a1beebb9400375bb187daa33de9659"

type loginState string

const (
	stateFetchingChallenge loginState = "fetching_challenge"
	stateSolving           loginState = "solving"
	stateEncoding          loginState = "encoding"
	stateSubmitting        loginState = "submitting"
	stateAuthenticated     loginState = "authenticated"
	stateRetrying          loginState = "retrying"
	stateFailed            loginState = "failed"
)

// Portal is the subset of the portal client used by this package.
type Portal interface {
	GetCaptchaImage(ctx context.Context, req domain.CaptchaRequest) (*domain.CaptchaResponse, error)
	DoLogin(ctx context.Context, req domain.LoginRequest, refNo, deviceID string) (*domain.LoginResponse, error)
	InquiryAccountName(ctx context.Context, req domain.InquiryRequest) (*domain.InquiryResponse, error)
	GetFavorBeneficiaryList(ctx context.Context, req domain.KeepAliveRequest) (*domain.KeepAliveResponse, error)
}

// ImagePreprocessor normalizes a raw captcha image.
type ImagePreprocessor interface {
	Process(raw []byte) ([]byte, error)
}

// CaptchaSolver turns a preprocessed captcha into a validated solution.
type CaptchaSolver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

// PayloadEncoder produces the encrypted login body.
type PayloadEncoder interface {
	Encode(ctx context.Context, payload domain.LoginPayload) (string, error)
}

// RefNoSource yields unique per-request correlation ids.
type RefNoSource interface {
	Next() string
}

// Credentials are the portal login credentials.
type Credentials struct {
	Username string
	Password string
}

// AuthenticatorConfig holds the tunables of the login loop.
type AuthenticatorConfig struct {
	Credentials Credentials
	DeviceID    string
	// MaxAttempts bounds the number of fresh challenges per login. Zero means unbounded.
	MaxAttempts int
	Authen2FA   string
}

// Authenticator performs full captcha-driven logins.
type Authenticator struct {
	portal       Portal
	preprocessor ImagePreprocessor
	solver       CaptchaSolver
	encoder      PayloadEncoder
	refs         RefNoSource
	cfg          AuthenticatorConfig
	passwordHash string
	logger       *slog.Logger
}

// NewAuthenticator creates a new Authenticator.
func NewAuthenticator(portal Portal, preprocessor ImagePreprocessor, solver CaptchaSolver, enc PayloadEncoder, refs RefNoSource, cfg AuthenticatorConfig, logger *slog.Logger) *Authenticator {
	if cfg.Authen2FA == "" {
		cfg.Authen2FA = DefaultAuthen2FA
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{
		portal:       portal,
		preprocessor: preprocessor,
		solver:       solver,
		encoder:      enc,
		refs:         refs,
		cfg:          cfg,
		passwordHash: encoder.HashPassword(cfg.Credentials.Password),
		logger:       logger.With("component", "authenticator"),
	}
}

// Login runs attempts until one yields a session, one fails hard, the attempt
// budget is exhausted, or ctx is done.
func (a *Authenticator) Login(ctx context.Context) (string, error) {
	for attempt := 1; a.cfg.MaxAttempts <= 0 || attempt <= a.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("login: %w", err)
		}

		session, err := a.attempt(ctx, attempt)
		if err == nil {
			a.logger.Info("login succeeded", "state", stateAuthenticated, "attempt", attempt)
			return session, nil
		}
		if errors.Is(err, captcha.ErrRejected) || errors.Is(err, domain.ErrTransientLogin) {
			a.logger.Debug("restarting login with a fresh challenge", "state", stateRetrying, "attempt", attempt, "error", err)
			continue
		}
		a.logger.Warn("login failed", "state", stateFailed, "attempt", attempt, "error", err)
		return "", err
	}
	return "", fmt.Errorf("%w after %d attempts", domain.ErrLoginAttemptsExhausted, a.cfg.MaxAttempts)
}

func (a *Authenticator) attempt(ctx context.Context, n int) (string, error) {
	refNo := a.refs.Next()
	log := a.logger.With("attempt", n, "ref_no", refNo)

	log.Debug("login transition", "state", stateFetchingChallenge)
	challenge, err := a.portal.GetCaptchaImage(ctx, domain.CaptchaRequest{
		RefNo:          refNo,
		DeviceIDCommon: a.cfg.DeviceID,
		SessionID:      "",
	})
	if err != nil {
		return "", fmt.Errorf("fetch captcha: %w", err)
	}
	if challenge.ImageString == "" {
		if challenge.Result.ResponseCode != "" && !challenge.Result.Succeeded() {
			return "", &domain.LoginError{Code: challenge.Result.ResponseCode, Message: challenge.Result.Message}
		}
		return "", errors.New("fetch captcha: empty image")
	}
	raw, err := captcha.DecodeImageString(challenge.ImageString)
	if err != nil {
		return "", err
	}

	log.Debug("login transition", "state", stateSolving)
	image, err := a.preprocessor.Process(raw)
	if err != nil {
		return "", err
	}
	solution, err := a.solver.Solve(ctx, image)
	if err != nil {
		return "", err
	}

	log.Debug("login transition", "state", stateEncoding)
	dataEnc, err := a.encoder.Encode(ctx, domain.LoginPayload{
		UserID:            a.cfg.Credentials.Username,
		Password:          a.passwordHash,
		Captcha:           solution,
		IBAuthen2FAString: a.cfg.Authen2FA,
		SessionID:         nil,
		RefNo:             refNo,
		DeviceIDCommon:    a.cfg.DeviceID,
	})
	if err != nil {
		return "", err
	}

	log.Debug("login transition", "state", stateSubmitting)
	resp, err := a.portal.DoLogin(ctx, domain.LoginRequest{DataEnc: dataEnc}, refNo, a.cfg.DeviceID)
	if err != nil {
		return "", fmt.Errorf("submit login: %w", err)
	}
	if resp.Result.Succeeded() && resp.SessionID != "" {
		return resp.SessionID, nil
	}
	if resp.Result.ResponseCode == domain.ResponseCodeCaptchaInvalid {
		return "", domain.NewPortalError("doLogin", resp.Result)
	}
	return "", &domain.LoginError{Code: resp.Result.ResponseCode, Message: resp.Result.Message}
}
