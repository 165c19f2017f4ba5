package services

import (
	"context"
	"crypto/rand"
	"math/big"

	"example.com/backstage/services/fridge/internal/apperrors"
	"example.com/backstage/services/fridge/internal/models"
	"example.com/backstage/services/fridge/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Access codes are four digit numbers
const (
	minAccessCode = 1000
	maxAccessCode = 9999
)

// CodeSource draws a candidate access code
type CodeSource func() (int, error)

// RandomCode draws a code uniformly from the four digit range
func RandomCode() (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxAccessCode-minAccessCode+1))
	if err != nil {
		return 0, errors.Wrap(err, "failed to read random code")
	}
	return minAccessCode + int(n.Int64()), nil
}

// AccessCodeIssuer hands out one-time codes from the space shared by
// delivery drivers and clocked-in sessions
type AccessCodeIssuer struct {
	codes       *repositories.AccessCodeRepository
	maxAttempts int
	source      CodeSource
	now         Clock
}

// NewAccessCodeIssuer creates an issuer that gives up after maxAttempts
// collisions
func NewAccessCodeIssuer(codes *repositories.AccessCodeRepository, maxAttempts int, source CodeSource, now Clock) *AccessCodeIssuer {
	if source == nil {
		source = RandomCode
	}
	if now == nil {
		now = SystemClock
	}
	return &AccessCodeIssuer{
		codes:       codes,
		maxAttempts: maxAttempts,
		source:      source,
		now:         now,
	}
}

// Issue reserves a code that no active session or delivery holds
func (i *AccessCodeIssuer) Issue(ctx context.Context, purpose string) (int, error) {
	for attempt := 0; attempt < i.maxAttempts; attempt++ {
		code, err := i.source()
		if err != nil {
			return 0, apperrors.Storage(err, "failed to generate access code")
		}

		active, err := i.codes.Active(ctx, code)
		if err != nil {
			return 0, apperrors.Storage(err, "failed to check access code")
		}
		if active {
			continue
		}

		err = i.codes.Reserve(ctx, &models.AccessCode{
			Code:     code,
			Purpose:  purpose,
			IssuedAt: i.now().UTC(),
		})
		if err == repositories.ErrDuplicateKey {
			// lost a race with another issuer
			continue
		}
		if err != nil {
			return 0, apperrors.Storage(err, "failed to reserve access code")
		}

		return code, nil
	}

	log.Error().Int("attempts", i.maxAttempts).Str("purpose", purpose).Msg("No free access code found")
	return 0, apperrors.ExhaustedRetries("no unique access code found after %d attempts", i.maxAttempts)
}

// Release returns a code to the pool
func (i *AccessCodeIssuer) Release(ctx context.Context, code int) error {
	if err := i.codes.Release(ctx, code); err != nil {
		return apperrors.Storage(err, "failed to release access code")
	}
	return nil
}
