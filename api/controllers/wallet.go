package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/imimarket/imimarket-backend/api/responses"
	"github.com/imimarket/imimarket-backend/api/validators"
	"github.com/imimarket/imimarket-backend/internal/wallet"
	"github.com/imimarket/imimarket-backend/pkg/enums"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/logger"
)

type moveFundsRequest struct {
	Currency string `json:"currency" validate:"required"`
	Amount   string `json:"amount" validate:"required"`
}

type convertRequest struct {
	From   string `json:"from" validate:"required"`
	To     string `json:"to" validate:"required"`
	Amount string `json:"amount" validate:"required"`
	Rate   string `json:"rate" validate:"required"`
}

type purchaseRequest struct {
	Currency    string `json:"currency" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
}

type transferRequest struct {
	CardNumber  string `json:"cardNumber" validate:"required,min=16,max=19"`
	Currency    string `json:"currency" validate:"required"`
	Amount      string `json:"amount" validate:"required"`
	Description string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// WalletBalances lists the caller's balances with their card numbers.
func WalletBalances(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Balances(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBalanceViews(rows))
	}
}

// WalletDeposit credits the caller's balance.
func WalletDeposit(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req moveFundsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, amount, err := parseMoney(req.Currency, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Deposit(r.Context(), wallet.DepositInput{
			UserID:   userID,
			Currency: currency,
			Amount:   amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBalanceView(*balance))
	}
}

// WalletWithdraw debits the caller's balance.
func WalletWithdraw(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req moveFundsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, amount, err := parseMoney(req.Currency, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Withdraw(r.Context(), wallet.WithdrawInput{
			UserID:   userID,
			Currency: currency,
			Amount:   amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newBalanceView(*balance))
	}
}

// WalletConvert moves funds between two of the caller's currencies at a rate.
func WalletConvert(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req convertRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, amount, err := parseMoney(req.From, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := enums.ParseCurrency(req.To)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target currency"))
			return
		}
		rate, err := decimal.NewFromString(req.Rate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid rate"))
			return
		}

		result, err := svc.Convert(r.Context(), wallet.ConvertInput{
			UserID: userID,
			From:   from,
			To:     to,
			Amount: amount,
			Rate:   rate,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"debited":  result.Debited.StringFixed(2),
			"credited": result.Credited.StringFixed(2),
			"from":     newBalanceView(*result.From),
			"to":       newBalanceView(*result.To),
		})
	}
}

// WalletPurchase debits the caller and fans rewards out to the upline.
func WalletPurchase(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req purchaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, amount, err := parseMoney(req.Currency, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Purchase(r.Context(), wallet.PurchaseInput{
			UserID:      userID,
			Currency:    currency,
			Amount:      amount,
			Description: req.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"balance":     newBalanceView(*result.Balance),
			"rewardsPaid": result.RewardsPaid,
		})
	}
}

// WalletTransfer sends funds to another user's virtual card.
func WalletTransfer(svc wallet.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req transferRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, amount, err := parseMoney(req.Currency, req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.TransferByCard(r.Context(), wallet.TransferInput{
			UserID:      userID,
			CardNumber:  req.CardNumber,
			Currency:    currency,
			Amount:      amount,
			Description: req.Description,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"currency": string(result.Currency),
			"sender":   newBalanceView(*result.Sender),
		})
	}
}

func parseMoney(rawCurrency, rawAmount string) (enums.Currency, decimal.Decimal, error) {
	currency, err := enums.ParseCurrency(rawCurrency)
	if err != nil {
		return "", decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency")
	}
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return "", decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid amount")
	}
	return currency, amount, nil
}
