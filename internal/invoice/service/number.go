package service

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	invoicedomain "github.com/smallbiznis/paylink/internal/invoice/domain"
	"gorm.io/gorm"
)

// maxNumberAttempts bounds the generate-and-check loop. Collisions are rare
// because the suffix mixes millisecond time with randomness, but they are
// handled, not assumed away.
const maxNumberAttempts = 5

// generateNumber produces a unique invoice number of the form
// INV-<6 time digits><3 random digits>, retrying on collision.
func (s *Service) generateNumber(ctx context.Context, db *gorm.DB, now time.Time) (string, error) {
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		number := formatNumber(now)
		exists, err := s.repo.NumberExists(ctx, db, number)
		if err != nil {
			return "", err
		}
		if !exists {
			return number, nil
		}
		now = s.clock.Now()
	}
	return "", invoicedomain.ErrNumberGeneration
}

func formatNumber(now time.Time) string {
	timePart := now.UnixMilli() % 1_000_000
	randPart := rand.Intn(1000)
	return fmt.Sprintf("INV-%06d%03d", timePart, randPart)
}
