package controllers

import (
	"time"

	"github.com/google/uuid"

	"github.com/imimarket/imimarket-backend/pkg/db/models"
)

// userView is the public account shape; the password hash never leaves the service.
type userView struct {
	ID           uuid.UUID  `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        *string    `json:"phone,omitempty"`
	ReferralCode string     `json:"referralCode"`
	ReferrerID   *uuid.UUID `json:"referrerId,omitempty"`
	IsAdmin      bool       `json:"isAdmin"`
	IsVerified   bool       `json:"isVerified"`
	CreatedAt    time.Time  `json:"createdAt"`
}

func newUserView(user *models.User) userView {
	return userView{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Phone:        user.Phone,
		ReferralCode: user.ReferralCode,
		ReferrerID:   user.ReferrerID,
		IsAdmin:      user.IsAdmin,
		IsVerified:   user.IsVerified,
		CreatedAt:    user.CreatedAt,
	}
}

// balanceView exposes a wallet balance row with its virtual card number.
type balanceView struct {
	Currency   string `json:"currency"`
	Balance    string `json:"balance"`
	CardNumber string `json:"cardNumber"`
}

func newBalanceView(row models.WalletBalance) balanceView {
	return balanceView{
		Currency:   string(row.Currency),
		Balance:    row.Balance.StringFixed(2),
		CardNumber: row.CardNumber,
	}
}

func newBalanceViews(rows []models.WalletBalance) []balanceView {
	views := make([]balanceView, 0, len(rows))
	for _, row := range rows {
		views = append(views, newBalanceView(row))
	}
	return views
}
