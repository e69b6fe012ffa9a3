package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/nguyenkhoa0721/lookup-bank/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type portalStub struct {
	mu sync.Mutex

	captchaFn   func(req domain.CaptchaRequest) (*domain.CaptchaResponse, error)
	loginFn     func(req domain.LoginRequest) (*domain.LoginResponse, error)
	inquiryFn   func(req domain.InquiryRequest) (*domain.InquiryResponse, error)
	keepAliveFn func(req domain.KeepAliveRequest) (*domain.KeepAliveResponse, error)

	captchaReqs   []domain.CaptchaRequest
	loginReqs     []domain.LoginRequest
	inquiryReqs   []domain.InquiryRequest
	keepAliveReqs []domain.KeepAliveRequest
}

func (p *portalStub) GetCaptchaImage(ctx context.Context, req domain.CaptchaRequest) (*domain.CaptchaResponse, error) {
	p.mu.Lock()
	p.captchaReqs = append(p.captchaReqs, req)
	p.mu.Unlock()
	if p.captchaFn != nil {
		return p.captchaFn(req)
	}
	return &domain.CaptchaResponse{ImageString: "aW1n", Result: domain.ResultBlock{Ok: true, ResponseCode: "00"}}, nil
}

func (p *portalStub) DoLogin(ctx context.Context, req domain.LoginRequest, refNo, deviceID string) (*domain.LoginResponse, error) {
	p.mu.Lock()
	p.loginReqs = append(p.loginReqs, req)
	p.mu.Unlock()
	if p.loginFn != nil {
		return p.loginFn(req)
	}
	return &domain.LoginResponse{SessionID: "S1", Result: domain.ResultBlock{Ok: true, ResponseCode: "00"}}, nil
}

func (p *portalStub) InquiryAccountName(ctx context.Context, req domain.InquiryRequest) (*domain.InquiryResponse, error) {
	p.mu.Lock()
	p.inquiryReqs = append(p.inquiryReqs, req)
	p.mu.Unlock()
	if p.inquiryFn != nil {
		return p.inquiryFn(req)
	}
	return &domain.InquiryResponse{BenName: "NGUYEN VAN A", Result: domain.ResultBlock{Ok: true, ResponseCode: "00"}}, nil
}

func (p *portalStub) GetFavorBeneficiaryList(ctx context.Context, req domain.KeepAliveRequest) (*domain.KeepAliveResponse, error) {
	p.mu.Lock()
	p.keepAliveReqs = append(p.keepAliveReqs, req)
	p.mu.Unlock()
	if p.keepAliveFn != nil {
		return p.keepAliveFn(req)
	}
	return &domain.KeepAliveResponse{Result: domain.ResultBlock{Ok: true, ResponseCode: "00"}}, nil
}

func (p *portalStub) inquiries() []domain.InquiryRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.InquiryRequest(nil), p.inquiryReqs...)
}

type passthroughPreprocessor struct{}

func (passthroughPreprocessor) Process(raw []byte) ([]byte, error) { return raw, nil }

type solverStub struct {
	mu      sync.Mutex
	answers []solverAnswer
	calls   int
}

type solverAnswer struct {
	solution string
	err      error
}

func (s *solverStub) Solve(ctx context.Context, image []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.answers) == 0 {
		return "AB12C3", nil
	}
	a := s.answers[0]
	if len(s.answers) > 1 {
		s.answers = s.answers[1:]
	}
	return a.solution, a.err
}

type encoderStub struct {
	mu       sync.Mutex
	payloads []domain.LoginPayload
	err      error
}

func (e *encoderStub) Encode(ctx context.Context, payload domain.LoginPayload) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return "", e.err
	}
	e.payloads = append(e.payloads, payload)
	return "enc:" + payload.Captcha, nil
}

type seqRefs struct{ n atomic.Int64 }

func (r *seqRefs) Next() string { return fmt.Sprintf("REF-%d", r.n.Add(1)) }

type loginStub struct {
	calls   atomic.Int32
	block   chan struct{}
	results []loginResult
	mu      sync.Mutex
}

type loginResult struct {
	session string
	err     error
}

func (l *loginStub) Login(ctx context.Context) (string, error) {
	l.calls.Add(1)
	if l.block != nil {
		select {
		case <-l.block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.results) == 0 {
		return "S1", nil
	}
	r := l.results[0]
	if len(l.results) > 1 {
		l.results = l.results[1:]
	}
	return r.session, r.err
}

type publisherStub struct {
	mu     sync.Mutex
	events []string
}

func (p *publisherStub) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *publisherStub) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}
