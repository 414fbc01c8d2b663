package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"padron/internal/store"

	"github.com/go-chi/chi/v5"
)

type RoleRequestPayload struct {
	Key  string `json:"key" validate:"required,max=50,rolekey"`
	Name string `json:"name" validate:"required,max=50,personname"`
}

func parseIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// createRoleHandler persists a new role. Key and name uniqueness is decided
// by the unique indexes, not a pre-check, so concurrent duplicates still
// collapse to a single 409.
func (app *application) createRoleHandler(w http.ResponseWriter, r *http.Request) {
	var payload RoleRequestPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}

	role := &store.Role{
		Key:  payload.Key,
		Name: payload.Name,
	}

	var dup *store.DuplicateKeyError
	if err := app.store.Roles.Create(r.Context(), role); err != nil {
		switch {
		case errors.As(err, &dup):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/roles/%d", role.ID))
	if err := writeJSON(w, http.StatusCreated, role); err != nil {
		app.internalServerError(w, r, err)
	}
}

// bulkCreateRolesHandler validates the whole batch first, collecting every
// violation into a single failure, and only then inserts.
func (app *application) bulkCreateRolesHandler(w http.ResponseWriter, r *http.Request) {
	var payloads []RoleRequestPayload
	if err := readJSON(w, r, &payloads); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if len(payloads) == 0 {
		app.badRequestResponse(w, r, errors.New("request body must contain at least one role"))
		return
	}

	var violations []string
	roles := make([]*store.Role, 0, len(payloads))
	for i, payload := range payloads {
		if err := Validate.Struct(payload); err != nil {
			violations = append(violations, fmt.Sprintf("item %d: %s", i, validationMessage(err)))
			continue
		}
		roles = append(roles, &store.Role{Key: payload.Key, Name: payload.Name})
	}
	if len(violations) > 0 {
		app.badRequestResponse(w, r, errors.New(strings.Join(violations, ", ")))
		return
	}

	var dup *store.DuplicateKeyError
	if err := app.store.Roles.CreateAll(r.Context(), roles); err != nil {
		switch {
		case errors.As(err, &dup):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := writeJSON(w, http.StatusCreated, roles); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getRolesHandler(w http.ResponseWriter, r *http.Request) {
	q := store.ParsePageQuery(r.URL.Query())

	page, err := app.store.Roles.List(r.Context(), q)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, page); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	role, err := app.store.Roles.GetByID(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := writeJSON(w, http.StatusOK, role); err != nil {
		app.internalServerError(w, r, err)
	}
}

// searchRolesHandler filters by case-insensitive name substring. An empty
// page is reported as 404 at this layer; the store treats it as a valid
// empty result.
func (app *application) searchRolesHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	q := store.ParsePageQuery(r.URL.Query())

	page, err := app.store.Roles.SearchByName(r.Context(), name, q)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if len(page.Content) == 0 {
		app.notFoundResponse(w, r, store.ErrNotFound)
		return
	}

	if err := writeJSON(w, http.StatusOK, page); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) updateRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload RoleRequestPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}

	role := &store.Role{
		ID:   id,
		Key:  payload.Key,
		Name: payload.Name,
	}

	var dup *store.DuplicateKeyError
	if err := app.store.Roles.Update(r.Context(), role); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, fmt.Errorf("role not found with id: %d", id))
		case errors.As(err, &dup):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := writeJSON(w, http.StatusOK, role); err != nil {
		app.internalServerError(w, r, err)
	}
}

// deleteRoleHandler removes a role unless a user still references it.
func (app *application) deleteRoleHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Roles.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, fmt.Errorf("role not found with id: %d", id))
		case errors.Is(err, store.ErrRoleInUse):
			app.badRequestResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
