package controllers

import (
	"net/http"

	"github.com/imimarket/imimarket-backend/api/responses"
	"github.com/imimarket/imimarket-backend/api/validators"
	"github.com/imimarket/imimarket-backend/internal/auth"
	pkgerrors "github.com/imimarket/imimarket-backend/pkg/errors"
	"github.com/imimarket/imimarket-backend/pkg/logger"
)

type registerRequest struct {
	Name         string  `json:"name" validate:"required,min=2,max=120"`
	Email        string  `json:"email" validate:"required,email"`
	Phone        *string `json:"phone,omitempty" validate:"omitempty,min=5,max=32"`
	Password     string  `json:"password" validate:"required,min=8,max=128"`
	ReferralCode string  `json:"referralCode,omitempty" validate:"omitempty,min=4,max=32"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type sessionResponse struct {
	AccessToken string   `json:"accessToken"`
	User        userView `json:"user"`
}

// AuthRegister creates an account, seeds its wallet balances and returns a session.
func AuthRegister(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var req registerRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Register(r.Context(), auth.RegisterInput{
			Name:         req.Name,
			Email:        req.Email,
			Phone:        req.Phone,
			Password:     req.Password,
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, sessionResponse{
			AccessToken: session.AccessToken,
			User:        newUserView(session.User),
		})
	}
}

// AuthLogin exchanges credentials for a session.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var req loginRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Login(r.Context(), auth.LoginInput{
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, sessionResponse{
			AccessToken: session.AccessToken,
			User:        newUserView(session.User),
		})
	}
}
