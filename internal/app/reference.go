package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const referenceAttempts = 5

// newReference formats PREFIX-YYYYMMDD-XXXX with four uppercase hex digits.
func newReference(prefix string, now time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}

// allocateReference retries until exists reports the candidate as free.
func allocateReference(ctx context.Context, prefix string, now time.Time, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		candidate := newReference(prefix, now)
		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNumberExhausted, prefix)
}
