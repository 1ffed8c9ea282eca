package domain

import "errors"

// Domain errors
var (
	// Rejections: expected negative outcomes, surfaced to the caller as such.
	ErrOwnershipProof = errors.New("signer does not own nft")
	ErrAlreadyPlayed  = errors.New("nft already played today")

	// Unavailable: an administrative gap, not a caller fault.
	ErrNoActiveDay  = errors.New("current day is not set")
	ErrNoActiveGame = errors.New("active game is not set")

	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalError  = errors.New("internal server error")
)

// IsRejection reports whether an error is an expected user-facing rejection
// rather than a system fault.
func IsRejection(err error) bool {
	return errors.Is(err, ErrOwnershipProof) || errors.Is(err, ErrAlreadyPlayed)
}

// IsUnavailable reports whether an error means required configuration has not
// been set yet.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrNoActiveDay) || errors.Is(err, ErrNoActiveGame)
}
