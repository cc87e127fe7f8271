// Package email delivers notifications through an external.EmailProvider.
// Without a provider API key the channel runs in logged-only mode.
package email

import (
	"errors"

	"leanpulse/internal/types"
)

// IsBlocklistError reports whether the provider refused the recipient
// (suppression list or block).
func IsBlocklistError(err error) bool {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.Code == types.ErrCodeEmailBlocked
	}
	return false
}
