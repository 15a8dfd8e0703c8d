package idgen

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChecker struct {
	takenOrders   map[string]bool
	takenInvoices map[string]bool
	err           error
}

func (f *fakeChecker) OrderNumberExists(_ context.Context, n string) (bool, error) {
	return f.takenOrders[n], f.err
}

func (f *fakeChecker) InvoiceNumberExists(_ context.Context, n string) (bool, error) {
	return f.takenInvoices[n], f.err
}

func testGenerator(checker UniquenessChecker, at time.Time, draws []int) *Generator {
	i := 0
	return &Generator{
		checker: checker,
		now:     func() time.Time { return at },
		randInt: func(n int) int {
			d := draws[i%len(draws)]
			i++
			return d % n
		},
		logger: zap.NewNop(),
	}
}

func TestGenerateOrderNumberFormat(t *testing.T) {
	at := time.Date(2026, 9, 1, 14, 30, 0, 0, time.UTC)
	g := testGenerator(&fakeChecker{}, at, []int{7})

	n, err := g.GenerateOrderNumber(context.Background())
	require.NoError(t, err)

	// Prefix is YYMMDDHH truncated to 4 chars: "26" + "09" = "2609".
	assert.Equal(t, "2609007", n)
	assert.Len(t, n, 7)
}

func TestGenerateOrderNumberZeroPadsSuffix(t *testing.T) {
	at := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)
	g := testGenerator(&fakeChecker{}, at, []int{0})

	n, err := g.GenerateOrderNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2601000", n)
}

func TestGenerateOrderNumberRedrawsOnCollision(t *testing.T) {
	at := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	checker := &fakeChecker{takenOrders: map[string]bool{"2609111": true}}
	g := testGenerator(checker, at, []int{111, 222})

	n, err := g.GenerateOrderNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2609222", n)
}

func TestGenerateOrderNumberExhausted(t *testing.T) {
	at := time.Date(2026, 9, 1, 14, 0, 0, 0, time.UTC)
	checker := &fakeChecker{takenOrders: map[string]bool{"2609555": true}}
	g := testGenerator(checker, at, []int{555}) // every draw collides

	_, err := g.GenerateOrderNumber(context.Background())
	assert.ErrorIs(t, err, ErrGenerationExhausted)
}

func TestGenerateInvoiceNumber(t *testing.T) {
	g := testGenerator(&fakeChecker{}, time.Now(), []int{42})

	n, err := g.GenerateInvoiceNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Retail00042", n)
}

func TestGenerateInvoiceNumberRedrawsOnCollision(t *testing.T) {
	checker := &fakeChecker{takenInvoices: map[string]bool{"Retail00042": true}}
	g := testGenerator(checker, time.Now(), []int{42, 99999})

	n, err := g.GenerateInvoiceNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Retail99999", n)
}

func TestGenerateSurfacesCheckerError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("connection reset")}
	g := testGenerator(checker, time.Now(), []int{1})

	_, err := g.GenerateOrderNumber(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrGenerationExhausted)
}
