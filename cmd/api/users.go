package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"padron/internal/store"
)

type UserRequestPayload struct {
	FirstName        string   `json:"firstName" validate:"required,max=50,personname"`
	LastNamePaternal string   `json:"lastNamePaternal" validate:"required,max=50,personname"`
	LastNameMaternal string   `json:"lastNameMaternal" validate:"required,max=50,personname"`
	RoleKeys         []string `json:"roleKeys" validate:"required,min=1,uniquelist,dive,required"`
}

// resolveRoleKeys maps role keys to ids. The second return value lists the
// keys that resolved to nothing, sorted, so callers can name them exactly.
func (app *application) resolveRoleKeys(ctx context.Context, keys []string) ([]int64, []string, error) {
	roles, err := app.store.Roles.GetByKeys(ctx, keys)
	if err != nil {
		return nil, nil, err
	}

	found := make(map[string]int64, len(roles))
	for _, role := range roles {
		found[role.Key] = role.ID
	}

	ids := make([]int64, 0, len(keys))
	var missing []string
	for _, key := range keys {
		if id, ok := found[key]; ok {
			ids = append(ids, id)
		} else {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return ids, missing, nil
}

func invalidRoleKeysError(missing []string) error {
	return fmt.Errorf("Invalid role keys: %s", strings.Join(missing, ", "))
}

// createUserHandler persists a new user in the disabled state. Role keys
// must all resolve; the joined response reflects the roles at save time.
func (app *application) createUserHandler(w http.ResponseWriter, r *http.Request) {
	var payload UserRequestPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()

	roleIDs, missing, err := app.resolveRoleKeys(ctx, payload.RoleKeys)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if len(missing) > 0 {
		app.badRequestResponse(w, r, invalidRoleKeysError(missing))
		return
	}

	// Accounts start disabled and stay that way until activation sets the
	// credentials.
	user := &store.User{
		FirstName:        payload.FirstName,
		LastNamePaternal: payload.LastNamePaternal,
		LastNameMaternal: payload.LastNameMaternal,
		Roles:            roleIDs,
		Enabled:          false,
	}

	if err := app.store.Users.Create(ctx, user); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	joined, err := app.store.Users.GetByIDWithRoles(ctx, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/api/users/%d", user.ID))
	if err := writeJSON(w, http.StatusCreated, joined); err != nil {
		app.internalServerError(w, r, err)
	}
}

// bulkCreateUsersHandler validates every item first, then resolves roles per
// item. An item whose keys resolve to nothing fails the whole batch; a
// partially resolving item keeps the roles that did resolve.
func (app *application) bulkCreateUsersHandler(w http.ResponseWriter, r *http.Request) {
	var payloads []UserRequestPayload
	if err := readJSON(w, r, &payloads); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if len(payloads) == 0 {
		app.badRequestResponse(w, r, errors.New("request body must contain at least one user"))
		return
	}

	var violations []string
	for i, payload := range payloads {
		if err := Validate.Struct(payload); err != nil {
			violations = append(violations, fmt.Sprintf("item %d: %s", i, validationMessage(err)))
		}
	}
	if len(violations) > 0 {
		app.badRequestResponse(w, r, errors.New(strings.Join(violations, ", ")))
		return
	}

	ctx := r.Context()

	users := make([]*store.User, 0, len(payloads))
	for _, payload := range payloads {
		roleIDs, _, err := app.resolveRoleKeys(ctx, payload.RoleKeys)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		if len(roleIDs) == 0 {
			app.badRequestResponse(w, r, errors.New("user must have valid roles"))
			return
		}
		users = append(users, &store.User{
			FirstName:        payload.FirstName,
			LastNamePaternal: payload.LastNamePaternal,
			LastNameMaternal: payload.LastNameMaternal,
			Roles:            roleIDs,
			Enabled:          false,
		})
	}

	if err := app.store.Users.CreateAll(ctx, users); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	joined := make([]*store.UserWithRoles, 0, len(users))
	for _, user := range users {
		u, err := app.store.Users.GetByIDWithRoles(ctx, user.ID)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
		joined = append(joined, u)
	}

	if err := writeJSON(w, http.StatusCreated, joined); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getUsersHandler(w http.ResponseWriter, r *http.Request) {
	q := store.ParsePageQuery(r.URL.Query())

	page, err := app.store.Users.List(r.Context(), q)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, page); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user, err := app.store.Users.GetByIDWithRoles(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := writeJSON(w, http.StatusOK, user); err != nil {
		app.internalServerError(w, r, err)
	}
}

// searchUsersHandler filters by first name only, matching the stored search
// behavior of the listing index.
func (app *application) searchUsersHandler(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	q := store.ParsePageQuery(r.URL.Query())

	page, err := app.store.Users.SearchByName(r.Context(), name, q)
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

// updateUserHandler overwrites the name fields and role set; credentials
// and the enabled flag survive untouched.
func (app *application) updateUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload UserRequestPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.validationErrorResponse(w, r, err)
		return
	}

	ctx := r.Context()

	user, err := app.store.Users.GetByID(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, fmt.Errorf("user not found with id: %d", id))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	roleIDs, missing, err := app.resolveRoleKeys(ctx, payload.RoleKeys)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}
	if len(missing) > 0 {
		app.badRequestResponse(w, r, invalidRoleKeysError(missing))
		return
	}

	user.FirstName = payload.FirstName
	user.LastNamePaternal = payload.LastNamePaternal
	user.LastNameMaternal = payload.LastNameMaternal
	user.Roles = roleIDs

	if err := app.store.Users.Update(ctx, user); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	joined, err := app.store.Users.GetByIDWithRoles(ctx, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, joined); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteUserHandler(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := app.store.Users.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			app.notFoundResponse(w, r, fmt.Errorf("user not found with id: %d", id))
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
