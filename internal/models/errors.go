package models

import "errors"

// Error kinds surfaced by the economy engine.
var (
	ErrProductNotFound          = errors.New("product not found")
	ErrAccountNotFound          = errors.New("account not found")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrInsufficientHoldings     = errors.New("insufficient holdings")
	ErrInsufficientAvailability = errors.New("insufficient availability")
	ErrCompanyAlreadyOwned      = errors.New("company already owned")
	ErrNoCompanyOwned           = errors.New("no company owned")
	ErrCompanyNotFound          = errors.New("company not found")
	ErrUsernameTaken            = errors.New("username taken")
	ErrNoPendingInvitation      = errors.New("no pending invitation")
	ErrDeliveryFailure          = errors.New("delivery failure")
	ErrInvalidArgument          = errors.New("invalid argument")
)

var userMessages = []struct {
	kind error
	text string
}{
	{ErrProductNotFound, "Product does not exist."},
	{ErrAccountNotFound, "User not found."},
	{ErrInsufficientFunds, "Insufficient funds."},
	{ErrInsufficientHoldings, "Not enough product in portfolio to sell."},
	{ErrInsufficientAvailability, "Not enough product available on the market."},
	{ErrCompanyAlreadyOwned, "You already own a company."},
	{ErrNoCompanyOwned, "You do not own a company."},
	{ErrCompanyNotFound, "Company not found."},
	{ErrUsernameTaken, "This username is already taken. Please choose a different one."},
	{ErrNoPendingInvitation, "You have no pending invitations."},
	{ErrDeliveryFailure, "The message could not be delivered."},
	{ErrInvalidArgument, "Invalid request."},
}

// UserMessage returns the text shown to a participant for err. Errors that are
// not domain kinds get a generic message.
func UserMessage(err error) string {
	for _, m := range userMessages {
		if errors.Is(err, m.kind) {
			return m.text
		}
	}
	return "Something went wrong. Please try again later."
}

// IsDomainError reports whether err carries one of the engine's error kinds.
func IsDomainError(err error) bool {
	for _, m := range userMessages {
		if errors.Is(err, m.kind) {
			return true
		}
	}
	return false
}
