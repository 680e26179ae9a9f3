package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/daybook/internal/apperr"
	"github.com/starford/daybook/internal/identity"
)

// AuthHandler serves the sign-in routes. A nil directory means sign-in is
// disabled and every caller is identity.Local.
type AuthHandler struct {
	dir *identity.Directory
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(dir *identity.Directory) *AuthHandler {
	return &AuthHandler{dir: dir}
}

func signInError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidCredentials), errors.Is(err, apperr.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody("invalid credentials"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("account already exists"))
	case errors.Is(err, apperr.ErrUnsupported):
		writeJSON(w, http.StatusNotImplemented, errorBody("sign-in method not supported"))
	default:
		slog.Error("sign in failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// SignIn handles POST /api/auth/signin.
//
//	@Summary		Sign in anonymously, with email and password, or with the static token
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SignInRequest	true	"Method and credentials"
//	@Success		200		{object}	SessionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		401		{object}	errResponse
//	@Failure		501		{object}	errResponse
//	@Router			/auth/signin [post]
func (a *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	if a.dir == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("sign-in disabled"))
		return
	}
	var req SignInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	method, err := identity.ParseMethod(req.Method)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	ident, token, err := a.dir.SignIn(r.Context(), method, identity.Credentials{
		Email:    req.Email,
		Password: req.Password,
		Token:    req.Token,
	})
	if err != nil {
		signInError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Identity: ident, Token: token})
}

// SignUp handles POST /api/auth/signup.
//
//	@Summary		Create an email account and sign it in
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			body	body		SignUpRequest	true	"Email and password"
//	@Success		201		{object}	SessionResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Router			/auth/signup [post]
func (a *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	if a.dir == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("sign-in disabled"))
		return
	}
	var req SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ident, token, err := a.dir.SignUp(r.Context(), identity.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		signInError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, SessionResponse{Identity: ident, Token: token})
}

// SignOut handles POST /api/auth/signout.
//
//	@Summary		End the caller's session
//	@Tags			auth
//	@Success		204	"Signed out"
//	@Security		BearerAuth
//	@Router			/auth/signout [post]
func (a *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if a.dir != nil {
		if err := a.dir.SignOut(r.Context(), tokenFrom(r.Context())); err != nil {
			slog.Error("sign out failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me.
//
//	@Summary		The caller's identity
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	identity.Identity
//	@Security		BearerAuth
//	@Router			/auth/me [get]
func (a *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, IdentityFrom(r.Context()))
}
