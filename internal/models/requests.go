package models

// RegisterRequest - first contact of a participant
type RegisterRequest struct {
	AccountID    AccountID `json:"account_id" binding:"required"`
	Username     string    `json:"username"`
	ReferralCode string    `json:"referral_code"`
}

// UsernameRequest renames an account.
type UsernameRequest struct {
	Username string `json:"username" binding:"required"`
}

// CompanyRequest founds a company.
type CompanyRequest struct {
	AccountID AccountID `json:"account_id" binding:"required"`
	Name      string    `json:"name" binding:"required"`
}

// InviteRequest invites a participant into the owner's company.
type InviteRequest struct {
	OwnerID  AccountID `json:"owner_id" binding:"required"`
	Username string    `json:"username" binding:"required"`
	Role     string    `json:"role" binding:"required"`
}

// AccountRequest names the account acting on its own invitations.
type AccountRequest struct {
	AccountID AccountID `json:"account_id" binding:"required"`
}
