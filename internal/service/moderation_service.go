package service

import (
	"context"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"
)

const (
	minCommentLength = 10
	maxCommentLength = 2000
	repeatRunLimit   = 5
)

var (
	allDigitsRe   = regexp.MustCompile(`^[0-9]+$`)
	allLatinRe    = regexp.MustCompile(`^[a-zA-Z]+$`)
	hasCyrillicRe = regexp.MustCompile(`[а-яёА-ЯЁ]`)
)

// ClassifierVerdict is the reply of the external moderation capability.
type ClassifierVerdict struct {
	Approved bool
	Reason   string
}

// Classifier is the pluggable external moderation capability. Swapping
// the implementation is the single point where a stricter fail-closed
// policy could be selected.
type Classifier interface {
	Classify(ctx context.Context, text string) (ClassifierVerdict, error)
}

// ModerationService gates free-text comments through a deterministic
// pre-filter and an optional external classifier. Classifier failures
// are contained: the comment is approved and the failure only logged.
type ModerationService struct {
	classifier Classifier
	metrics    *MetricsService
	logger     *zap.Logger
}

// NewModerationService constructs the gate. A nil classifier skips the
// external stage entirely.
func NewModerationService(classifier Classifier, metrics *MetricsService, logger *zap.Logger) *ModerationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ModerationService{classifier: classifier, metrics: metrics, logger: logger}
}

// BasicValidation applies the deterministic pre-filter. Rejections are
// authoritative and carry a specific human-readable reason.
func (s *ModerationService) BasicValidation(text string) (bool, string) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false, "комментарий пустой"
	}
	length := utf8.RuneCountInString(trimmed)
	if length < minCommentLength {
		return false, "комментарий слишком короткий (минимум 10 символов)"
	}
	if length > maxCommentLength {
		return false, "комментарий слишком длинный (максимум 2000 символов)"
	}
	if hasRepeatedRun(trimmed, repeatRunLimit) {
		return false, "слишком много повторяющихся символов"
	}
	if allDigitsRe.MatchString(trimmed) {
		return false, "комментарий состоит только из цифр"
	}
	if allLatinRe.MatchString(trimmed) {
		return false, "комментарий должен содержать русские буквы"
	}
	if len(strings.Fields(trimmed)) < 2 {
		return false, "комментарий должен содержать минимум 2 слова"
	}
	if !hasCyrillicRe.MatchString(trimmed) {
		return false, "комментарий должен содержать русские буквы"
	}
	return true, "OK"
}

// Review runs the full two-stage pipeline. Stage two only rejects what
// stage one passed, and only by an explicit negative verdict.
func (s *ModerationService) Review(ctx context.Context, text string) (bool, string) {
	approved, reason := s.review(ctx, text)
	if approved {
		s.metrics.RecordModeration("approved")
	} else {
		s.metrics.RecordModeration("rejected")
	}
	return approved, reason
}

func (s *ModerationService) review(ctx context.Context, text string) (bool, string) {
	ok, reason := s.BasicValidation(text)
	if !ok {
		return false, reason
	}
	if s.classifier == nil {
		return true, "OK"
	}
	verdict, err := s.classifier.Classify(ctx, text)
	if err != nil {
		// Fail-open: the external capability must never block honest users.
		s.logger.Warn("comment classifier unavailable, approving", zap.Error(err))
		return true, "OK"
	}
	if !verdict.Approved {
		return false, verdict.Reason
	}
	return true, "OK"
}

// Toxicity returns a 0.0-1.0 additive heuristic. It is informational
// only and never gates submission.
func (s *ModerationService) Toxicity(text string) float64 {
	if text == "" {
		return 0.0
	}

	score := 0.0
	if hasRepeatedRun(text, repeatRunLimit) {
		score += 0.2
	}
	if allDigitsRe.MatchString(text) {
		score += 0.2
	}
	if allLatinRe.MatchString(text) {
		score += 0.2
	}
	if utf8.RuneCountInString(strings.TrimSpace(text)) < minCommentLength {
		score += 0.3
	}

	var upper, total int
	for _, r := range text {
		total++
		if unicode.IsUpper(r) {
			upper++
		}
	}
	if total > 0 && float64(upper)/float64(total) > 0.5 {
		score += 0.3
	}

	if score > 1.0 {
		return 1.0
	}
	return score
}

// hasRepeatedRun reports a run of at least limit identical runes.
func hasRepeatedRun(text string, limit int) bool {
	var prev rune
	run := 0
	for _, r := range text {
		if r == prev {
			run++
		} else {
			prev = r
			run = 1
		}
		if run >= limit {
			return true
		}
	}
	return false
}
