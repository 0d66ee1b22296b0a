package controllers

import (
	"net/http"

	"github.com/imimarket/imimarket-backend/api/responses"
	"github.com/imimarket/imimarket-backend/api/validators"
	"github.com/imimarket/imimarket-backend/internal/users"
	"github.com/imimarket/imimarket-backend/pkg/logger"
)

type setReferrerRequest struct {
	ReferralCode string `json:"referralCode" validate:"required,min=4,max=32"`
}

// UserProfile returns the caller's account.
func UserProfile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.GetByID(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newUserView(user))
	}
}

// UserSetReferrer attaches a sponsor to an account registered without one.
func UserSetReferrer(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req setReferrerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetReferrer(r.Context(), userID, req.ReferralCode); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "referrer set"})
	}
}

// UserUpline returns the caller's sponsor chain, nearest first.
func UserUpline(svc users.Service, maxLevels int, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := currentUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		chain, err := svc.Upline(r.Context(), userID, maxLevels)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]userView, 0, len(chain))
		for i := range chain {
			views = append(views, newUserView(&chain[i]))
		}
		responses.WriteSuccess(w, views)
	}
}
