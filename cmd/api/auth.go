package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"padron/internal/auth"
	"padron/internal/mailer"
	"padron/internal/store"

	"github.com/golang-jwt/jwt/v5"
)

type LoginPayload struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

type StartActivationPayload struct {
	ID int64 `json:"id" validate:"required,min=1"`
}

type ActivateAccountPayload struct {
	Token    string `json:"token" validate:"required"`
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email,max=50"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// loginHandler exchanges credentials for an access token. An unknown
// username and a wrong password produce the same 401 so callers cannot
// probe for accounts.
func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var payload LoginPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()

	user, err := app.store.Users.GetByUsername(ctx, payload.Username)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.unauthorizedErrorResponse(w, r, errors.New("User/password not found"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if !user.Enabled {
		app.conflictResponse(w, r, errors.New("User disabled"))
		return
	}

	if err := user.ComparePassword(payload.Password); err != nil {
		app.unauthorizedErrorResponse(w, r, errors.New("User/password not found"))
		return
	}

	roles, err := app.store.Roles.GetByIDs(ctx, user.Roles)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	keys := make([]string, 0, len(roles))
	for _, role := range roles {
		keys = append(keys, role.Key)
	}

	token, err := app.authenticator.GenerateAccessToken(user.Username, keys)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, tokenResponse{Token: token}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// startActivateAccountHandler issues an activation token for a provisioned
// account. Admin only; the token is returned in the response and, when a
// mailer is configured and the account has an email, also sent out.
func (app *application) startActivateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var payload StartActivationPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByID(r.Context(), payload.ID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, errors.New("User not found"))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if user.Enabled && user.HasPassword() {
		app.conflictResponse(w, r, errors.New("User already active"))
		return
	}

	token, err := app.authenticator.GenerateActivationToken(user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if app.mailer != nil && user.Email != "" {
		name := user.Username
		if name == "" {
			name = user.FirstName
		}
		data := struct {
			Username        string
			ActivationToken string
			ExpiresIn       string
		}{
			Username:        name,
			ActivationToken: token,
			ExpiresIn:       app.config.auth.token.activationExp.String(),
		}
		if err := app.mailer.Send(mailer.UserActivationTemplate, name, user.Email, data); err != nil {
			// Delivery is best effort. The caller still gets the token.
			app.logger.Errorw("activation email failed", "userID", user.ID, "error", err.Error())
		}
	}

	if err := writeJSON(w, http.StatusOK, tokenResponse{Token: token}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// activateAccountHandler consumes an activation token and sets the
// account's credentials, flipping it to enabled.
func (app *application) activateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var payload ActivateAccountPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}

	token, err := app.authenticator.ValidateActivationToken(payload.Token)
	if err != nil {
		app.badRequestResponse(w, r, auth.ErrInvalidToken)
		return
	}

	mapClaims, _ := token.Claims.(jwt.MapClaims)
	sub, err := mapClaims.GetSubject()
	if err != nil {
		app.badRequestResponse(w, r, auth.ErrInvalidToken)
		return
	}
	userID, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		app.badRequestResponse(w, r, auth.ErrInvalidToken)
		return
	}

	ctx := r.Context()

	user, err := app.store.Users.GetByID(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, fmt.Errorf("user not found with id: %d", userID))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if user.Enabled {
		app.badRequestResponse(w, r, errors.New("User already activated"))
		return
	}

	user.Username = payload.Username
	user.Email = payload.Email
	if err := user.SetPassword(payload.Password); err != nil {
		app.internalServerError(w, r, err)
		return
	}
	user.Enabled = true

	var dup *store.DuplicateKeyError
	if err := app.store.Users.Update(ctx, user); err != nil {
		switch {
		case errors.As(err, &dup):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
}
