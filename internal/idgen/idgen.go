// Package idgen mints the short human-facing order and invoice numbers.
// Both are a fixed prefix plus a random suffix, redrawn under a bounded
// retry whenever the candidate already exists in the store. The store's
// unique constraints remain the backstop for two generators drawing the
// same suffix concurrently.
package idgen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"commerce-backoffice/internal/util"

	"go.uber.org/zap"
)

const (
	maxAttempts   = 100
	invoicePrefix = "Retail"
)

// ErrGenerationExhausted means no unique number was found within the attempt
// cap. The addressable space for the current time window is close to full;
// callers may retry after backoff.
var ErrGenerationExhausted = errors.New("identifier space exhausted after maximum attempts")

// UniquenessChecker reads the persisted store at generation time
type UniquenessChecker interface {
	OrderNumberExists(ctx context.Context, number string) (bool, error)
	InvoiceNumberExists(ctx context.Context, number string) (bool, error)
}

type Generator struct {
	checker UniquenessChecker
	now     func() time.Time
	randInt func(n int) int
	logger  *zap.Logger
}

// NewGenerator creates a generator backed by the given uniqueness check
func NewGenerator(checker UniquenessChecker) *Generator {
	return &Generator{
		checker: checker,
		now:     time.Now,
		randInt: rand.Intn,
		logger:  util.GetLogger(),
	}
}

// GenerateOrderNumber returns a unique 7-character order number: a 4-char
// time prefix (zero-padded year, month, day, hour, truncated) plus a 3-digit
// random suffix. Only the suffix is redrawn on collision, so at most 1000
// numbers exist per prefix window.
func (g *Generator) GenerateOrderNumber(ctx context.Context) (string, error) {
	now := g.now()
	stamp := fmt.Sprintf("%02d%02d%02d%02d",
		now.Year()%100, int(now.Month()), now.Day(), now.Hour())
	prefix := stamp[:4]

	return g.generate(ctx, "order", prefix, 1000, 3, g.checker.OrderNumberExists)
}

// GenerateInvoiceNumber returns a unique invoice number: a fixed textual
// prefix plus a 5-digit random suffix.
func (g *Generator) GenerateInvoiceNumber(ctx context.Context) (string, error) {
	return g.generate(ctx, "invoice", invoicePrefix, 100000, 5, g.checker.InvoiceNumberExists)
}

func (g *Generator) generate(
	ctx context.Context,
	kind, prefix string,
	space, digits int,
	exists func(context.Context, string) (bool, error),
) (string, error) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		candidate := fmt.Sprintf("%s%0*d", prefix, digits, g.randInt(space))

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("uniqueness check failed: %w", err)
		}
		if !taken {
			return candidate, nil
		}

		util.NumberCollisionsTotal.WithLabelValues(kind).Inc()
		g.logger.Warn("identifier collision, redrawing suffix",
			zap.String("kind", kind),
			zap.String("candidate", candidate),
			zap.Int("attempt", attempt))
	}

	util.NumberExhaustedTotal.WithLabelValues(kind).Inc()
	return "", fmt.Errorf("%s number: %w", kind, ErrGenerationExhausted)
}
