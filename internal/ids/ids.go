// Package ids mints correlation identifiers and allocates invoice numbers.
package ids

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kharcha-app/kharcha/internal/domain"
	"github.com/kharcha-app/kharcha/internal/ledger"
)

// Kind selects the correlation id prefix.
type Kind string

const (
	KindExpense     Kind = "EXP"
	KindTransaction Kind = "TXN"
	KindInvoice     Kind = "INV"
	KindTransfer    Kind = "TRF"
	KindAdjustment  Kind = "ADJ"
)

const (
	mintAttempts   = 8
	fallbackMarker = "T"
)

// Generator produces correlation ids of the form PREFIX-<unix millis>-<random>.
// The timestamp component never goes backwards for a given Generator.
type Generator struct {
	mu     sync.Mutex
	last   int64
	now    func() time.Time
	random func() string
}

// NewGenerator returns a generator using the wall clock and uuid randomness.
func NewGenerator() *Generator {
	return &Generator{
		now: time.Now,
		random: func() string {
			return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
		},
	}
}

func (g *Generator) tick() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := g.now().UnixMilli()
	if ms <= g.last {
		ms = g.last + 1
	}
	g.last = ms
	return ms
}

// Format builds an id without checking it against the ledger.
func (g *Generator) Format(kind Kind) domain.CorrelationID {
	return domain.CorrelationID(fmt.Sprintf("%s-%d-%s", kind, g.tick(), g.random()))
}

// NewID mints an id that no record in tx carries yet.
func (g *Generator) NewID(ctx context.Context, tx ledger.Tx, kind Kind) (domain.CorrelationID, error) {
	for i := 0; i < mintAttempts; i++ {
		id := g.Format(kind)
		used, err := tx.CorrelationInUse(ctx, id)
		if err != nil {
			return "", fmt.Errorf("check correlation id: %w", err)
		}
		if !used {
			return id, nil
		}
	}
	return "", fmt.Errorf("could not mint a unique %s correlation id", kind)
}

// NumberPrefix is the invoice number prefix per direction.
func NumberPrefix(dir domain.InvoiceDirection) string {
	if dir == domain.InvoiceOut {
		return "BILL-"
	}
	return "INV-"
}

// Allocator hands out invoice numbers unique per owner and direction.
type Allocator struct {
	gen     *Generator
	retries int
}

// NewAllocator builds an allocator that re-checks a candidate at most retries times.
func NewAllocator(gen *Generator, retries int) *Allocator {
	if retries < 1 {
		retries = 1
	}
	return &Allocator{gen: gen, retries: retries}
}

// Allocate returns the next free number for owner+direction. It takes the
// numbering lock for the rest of tx, so the number stays free until commit.
func (a *Allocator) Allocate(ctx context.Context, tx ledger.Tx, ownerID string, dir domain.InvoiceDirection) (string, error) {
	if err := tx.LockInvoiceNumbers(ctx, ownerID, dir); err != nil {
		return "", fmt.Errorf("lock invoice numbers: %w", err)
	}
	prefix := NumberPrefix(dir)
	existing, err := tx.InvoiceNumbers(ctx, ownerID, dir, prefix)
	if err != nil {
		return "", fmt.Errorf("list invoice numbers: %w", err)
	}
	next := MaxSuffix(existing, prefix) + 1

	for i := 0; i < a.retries; i++ {
		candidate := fmt.Sprintf("%s%04d", prefix, next+int64(i))
		taken, err := tx.InvoiceNumberTaken(ctx, ownerID, dir, candidate)
		if err != nil {
			return "", fmt.Errorf("check invoice number: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}

	// The T marker keeps fallback numbers out of MaxSuffix.
	fallback := fmt.Sprintf("%s%s%d", prefix, fallbackMarker, a.gen.tick())
	taken, err := tx.InvoiceNumberTaken(ctx, ownerID, dir, fallback)
	if err != nil {
		return "", fmt.Errorf("check invoice number: %w", err)
	}
	if taken {
		return "", &domain.Error{Kind: domain.ErrInvoiceNumberExhausted, Msg: fmt.Sprintf("owner %s direction %s", ownerID, dir)}
	}
	return fallback, nil
}

// MaxSuffix returns the largest numeric suffix among numbers carrying prefix.
// Numbers with a non-numeric suffix, including timestamp fallbacks, are ignored.
func MaxSuffix(numbers []string, prefix string) int64 {
	var max int64
	for _, n := range numbers {
		rest, ok := strings.CutPrefix(n, prefix)
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || v < 0 {
			continue
		}
		if v > max {
			max = v
		}
	}
	return max
}
