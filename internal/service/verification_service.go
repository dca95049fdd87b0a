package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kleymenovo/survey-api/internal/models"
	appErrors "github.com/kleymenovo/survey-api/pkg/errors"
)

type verificationRepository interface {
	LatestForPair(ctx context.Context, email, sessionID string) (*models.VerificationCode, error)
	InvalidateUnused(ctx context.Context, email, sessionID string) error
	Insert(ctx context.Context, code *models.VerificationCode) error
	FindUnused(ctx context.Context, email, code, sessionID string) (*models.VerificationCode, error)
	MarkUsed(ctx context.Context, id string) error
}

type verificationSessionReader interface {
	GetBySessionID(ctx context.Context, sessionID string) (*models.SurveyResponse, error)
	GetAnswer(ctx context.Context, responseID string, questionID int) (*models.Answer, error)
}

// CodeSender delivers an issued code. Delivery failure never
// retroactively invalidates the stored code.
type CodeSender interface {
	SendCode(email, code, name string) error
}

// VerificationService drives the one-time-code state machine per
// (email, session) pair: throttled issuance, lazy expiry, single-use
// verification. There is deliberately no attempt counter or lockout on
// verification; the issuance throttle is the only rate control.
type VerificationService struct {
	repo           verificationRepository
	sessions       verificationSessionReader
	sender         CodeSender
	questions      models.QuestionMap
	resendInterval time.Duration
	codeTTL        time.Duration
	logger         *zap.Logger
	now            func() time.Time
}

// NewVerificationService constructs the service.
func NewVerificationService(
	repo verificationRepository,
	sessions verificationSessionReader,
	sender CodeSender,
	questions models.QuestionMap,
	resendInterval, codeTTL time.Duration,
	logger *zap.Logger,
) *VerificationService {
	if resendInterval <= 0 {
		resendInterval = 120 * time.Second
	}
	if codeTTL <= 0 {
		codeTTL = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{
		repo:           repo,
		sessions:       sessions,
		sender:         sender,
		questions:      questions,
		resendInterval: resendInterval,
		codeTTL:        codeTTL,
		logger:         logger,
		now:            time.Now,
	}
}

// IssueResult reports the outcome of an issuance attempt. The code
// itself is never part of the result; it only travels by mail.
type IssueResult struct {
	Throttled        bool `json:"throttled"`
	SecondsRemaining int  `json:"seconds_remaining,omitempty"`
}

// Issue generates and delivers a fresh code for the pair, denying
// requests spaced closer than the resend interval. Issuing invalidates
// every prior unused code for the pair first.
func (s *VerificationService) Issue(ctx context.Context, email, sessionID string) (*IssueResult, error) {
	allowed, remaining, err := s.allowance(ctx, email, sessionID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &IssueResult{Throttled: true, SecondsRemaining: remaining}, nil
	}

	if err := s.repo.InvalidateUnused(ctx, email, sessionID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate previous codes")
	}

	code, err := generateCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate code")
	}

	issuedAt := s.now().UTC()
	row := &models.VerificationCode{
		Email:         email,
		Code:          code,
		SessionID:     sessionID,
		CreatedAt:     issuedAt,
		ExpiresAt:     issuedAt.Add(s.codeTTL),
		LastRequestAt: issuedAt,
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store code")
	}

	if err := s.sender.SendCode(email, code, s.displayName(ctx, sessionID)); err != nil {
		// The stored code stays valid; the user can retry delivery or
		// wait out the resend interval for a fresh one.
		s.logger.Warn("code delivery failed", zap.String("session_id", sessionID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrDeliveryFailed.Code, appErrors.ErrDeliveryFailed.Status, "failed to send code, try again later")
	}

	return &IssueResult{}, nil
}

// Verify consumes a code. An unknown or already-used code is
// InvalidCode; a known but stale one is Expired and stays unused until
// a later issuance supersedes it.
func (s *VerificationService) Verify(ctx context.Context, email, code, sessionID string) error {
	row, err := s.repo.FindUnused(ctx, email, code, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrInvalidCode, "неверный код")
	}
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up code")
	}

	if s.now().UTC().After(row.ExpiresAt) {
		return appErrors.Clone(appErrors.ErrCodeExpired, "код истёк")
	}

	if err := s.repo.MarkUsed(ctx, row.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume code")
	}
	return nil
}

// Allowance is the read-only projection of the resend throttle.
type Allowance struct {
	Allowed          bool `json:"allowed"`
	SecondsRemaining int  `json:"seconds_remaining"`
}

// CanIssue pre-flights the resend button without side effects.
func (s *VerificationService) CanIssue(ctx context.Context, email, sessionID string) (*Allowance, error) {
	allowed, remaining, err := s.allowance(ctx, email, sessionID)
	if err != nil {
		return nil, err
	}
	return &Allowance{Allowed: allowed, SecondsRemaining: remaining}, nil
}

func (s *VerificationService) allowance(ctx context.Context, email, sessionID string) (bool, int, error) {
	latest, err := s.repo.LatestForPair(ctx, email, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return true, 0, nil
	}
	if err != nil {
		return false, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up previous codes")
	}

	elapsed := s.now().UTC().Sub(latest.LastRequestAt)
	if elapsed >= s.resendInterval {
		return true, 0, nil
	}
	return false, int(s.resendInterval.Seconds()) - int(elapsed.Seconds()), nil
}

// displayName pulls the respondent's first name token for the mail
// greeting; best effort only.
func (s *VerificationService) displayName(ctx context.Context, sessionID string) string {
	resp, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		return ""
	}
	ans, err := s.sessions.GetAnswer(ctx, resp.ID, s.questions.FullNameID)
	if err != nil {
		return ""
	}
	fields := strings.Fields(ans.Value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// generateCode draws a uniformly random 6-digit code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
