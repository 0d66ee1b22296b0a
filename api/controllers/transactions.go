package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/imimarket/imimarket-backend/api/responses"
	"github.com/imimarket/imimarket-backend/internal/transactions"
	"github.com/imimarket/imimarket-backend/pkg/db/models"
	"github.com/imimarket/imimarket-backend/pkg/logger"
)

type transactionView struct {
	ID        uuid.UUID       `json:"id"`
	Currency  string          `json:"currency"`
	Amount    string          `json:"amount"`
	Type      string          `json:"type"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

func newTransactionViews(rows []models.Transaction) []transactionView {
	views := make([]transactionView, 0, len(rows))
	for _, row := range rows {
		views = append(views, transactionView{
			ID:        row.ID,
			Currency:  string(row.Currency),
			Amount:    row.Amount.StringFixed(2),
			Type:      string(row.Type),
			Metadata:  row.Metadata,
			CreatedAt: row.CreatedAt,
		})
	}
	return views
}

type levelIncomeView struct {
	Level       int    `json:"level"`
	RewardCount int64  `json:"rewardCount"`
	TotalAmount string `json:"totalAmount"`
}

// ListTransactions returns the caller's transaction history, newest first.
func ListTransactions(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListByUser(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newTransactionViews(rows))
	}
}

// IncomeByLevel returns the caller's referral income report, one row per level.
func IncomeByLevel(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.IncomeByLevel(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]levelIncomeView, 0, len(rows))
		for _, row := range rows {
			views = append(views, levelIncomeView{
				Level:       row.Level,
				RewardCount: row.RewardCount,
				TotalAmount: row.TotalAmount.StringFixed(2),
			})
		}
		responses.WriteSuccess(w, views)
	}
}
