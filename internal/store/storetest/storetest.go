// Package storetest provides an in-memory store.Storage for tests. It
// mirrors the persisted behavior closely enough for handler and seeder
// tests: sequence-assigned ids, duplicate-key rejection, the role-in-use
// delete guard, and the role lookup join.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"padron/internal/store"
)

type memory struct {
	mu        sync.Mutex
	roles     map[int64]store.Role
	users     map[int64]store.User
	sequences map[string]int64
	tasks     map[string]store.InitializationTask
}

// New returns a store.Storage backed by maps. Safe for concurrent use.
func New() store.Storage {
	m := &memory{
		roles:     make(map[int64]store.Role),
		users:     make(map[int64]store.User),
		sequences: make(map[string]int64),
		tasks:     make(map[string]store.InitializationTask),
	}
	return store.Storage{
		Roles:     &rolesStore{m},
		Users:     &usersStore{m},
		Sequences: &sequencesStore{m},
		InitTasks: &initTasksStore{m},
	}
}

func (m *memory) nextID(collection string) int64 {
	m.sequences[collection]++
	return m.sequences[collection]
}

type sequencesStore struct{ m *memory }

func (s *sequencesStore) Next(_ context.Context, collection string) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.nextID(collection), nil
}

type rolesStore struct{ m *memory }

func (s *rolesStore) insertLocked(role *store.Role) error {
	if role.ID == 0 {
		role.ID = s.m.nextID(store.RoleCollection)
	}
	for _, existing := range s.m.roles {
		if existing.ID == role.ID {
			return &store.DuplicateKeyError{Detail: fmt.Sprintf("{ _id: %d }", role.ID)}
		}
		if existing.Key == role.Key {
			return &store.DuplicateKeyError{Detail: fmt.Sprintf("{ key: %q }", role.Key)}
		}
		if existing.Name == role.Name {
			return &store.DuplicateKeyError{Detail: fmt.Sprintf("{ name: %q }", role.Name)}
		}
	}
	s.m.roles[role.ID] = *role
	return nil
}

func (s *rolesStore) Create(_ context.Context, role *store.Role) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.insertLocked(role)
}

func (s *rolesStore) CreateAll(_ context.Context, roles []*store.Role) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, role := range roles {
		if err := s.insertLocked(role); err != nil {
			return err
		}
	}
	return nil
}

func (s *rolesStore) Update(_ context.Context, role *store.Role) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.roles[role.ID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range s.m.roles {
		if existing.ID == role.ID {
			continue
		}
		if existing.Key == role.Key {
			return &store.DuplicateKeyError{Detail: fmt.Sprintf("{ key: %q }", role.Key)}
		}
		if existing.Name == role.Name {
			return &store.DuplicateKeyError{Detail: fmt.Sprintf("{ name: %q }", role.Name)}
		}
	}
	s.m.roles[role.ID] = *role
	return nil
}

func (s *rolesStore) GetByID(_ context.Context, id int64) (*store.Role, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	role, ok := s.m.roles[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &role, nil
}

func (s *rolesStore) GetByIDs(_ context.Context, ids []int64) ([]store.Role, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	roles := make([]store.Role, 0, len(ids))
	for _, id := range ids {
		if role, ok := s.m.roles[id]; ok {
			roles = append(roles, role)
		}
	}
	return roles, nil
}

func (s *rolesStore) GetByKeys(_ context.Context, keys []string) ([]store.Role, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var roles []store.Role
	for _, key := range keys {
		for _, role := range s.m.roles {
			if role.Key == key {
				roles = append(roles, role)
			}
		}
	}
	return roles, nil
}

func (s *rolesStore) sortedLocked() []store.Role {
	roles := make([]store.Role, 0, len(s.m.roles))
	for _, role := range s.m.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].ID < roles[j].ID })
	return roles
}

func (s *rolesStore) List(_ context.Context, q store.PageQuery) (*store.Page[store.Role], error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	roles := s.sortedLocked()
	if q.All {
		return store.NewUnpagedPage(roles), nil
	}
	return store.NewPage(slicePage(roles, q), q, int64(len(roles))), nil
}

func (s *rolesStore) SearchByName(_ context.Context, name string, q store.PageQuery) (*store.Page[store.Role], error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var matched []store.Role
	for _, role := range s.sortedLocked() {
		if strings.Contains(strings.ToLower(role.Name), strings.ToLower(name)) {
			matched = append(matched, role)
		}
	}
	return store.NewPage(slicePage(matched, q), q, int64(len(matched))), nil
}

func (s *rolesStore) Delete(_ context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.roles[id]; !ok {
		return store.ErrNotFound
	}
	for _, user := range s.m.users {
		for _, roleID := range user.Roles {
			if roleID == id {
				return store.ErrRoleInUse
			}
		}
	}
	delete(s.m.roles, id)
	return nil
}

func (s *rolesStore) Count(_ context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return int64(len(s.m.roles)), nil
}

type usersStore struct{ m *memory }

func (s *usersStore) insertLocked(user *store.User) error {
	if user.ID == 0 {
		user.ID = s.m.nextID(store.UserCollection)
	}
	for _, existing := range s.m.users {
		if existing.ID == user.ID {
			return &store.DuplicateKeyError{Detail: fmt.Sprintf("{ _id: %d }", user.ID)}
		}
		if user.Username != "" && existing.Username == user.Username {
			return &store.DuplicateKeyError{Detail: fmt.Sprintf("{ username: %q }", user.Username)}
		}
	}
	s.m.users[user.ID] = *user
	return nil
}

func (s *usersStore) Create(_ context.Context, user *store.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.insertLocked(user)
}

func (s *usersStore) CreateAll(_ context.Context, users []*store.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, user := range users {
		if err := s.insertLocked(user); err != nil {
			return err
		}
	}
	return nil
}

func (s *usersStore) Update(_ context.Context, user *store.User) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[user.ID]; !ok {
		return store.ErrNotFound
	}
	for _, existing := range s.m.users {
		if existing.ID != user.ID && user.Username != "" && existing.Username == user.Username {
			return &store.DuplicateKeyError{Detail: fmt.Sprintf("{ username: %q }", user.Username)}
		}
	}
	s.m.users[user.ID] = *user
	return nil
}

func (s *usersStore) GetByID(_ context.Context, id int64) (*store.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	user, ok := s.m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *usersStore) GetByUsername(_ context.Context, username string) (*store.User, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, user := range s.m.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *usersStore) joinLocked(user store.User) store.UserWithRoles {
	roles := make([]store.Role, 0, len(user.Roles))
	for _, id := range user.Roles {
		if role, ok := s.m.roles[id]; ok {
			roles = append(roles, role)
		}
	}
	return store.UserWithRoles{
		ID:               user.ID,
		FirstName:        user.FirstName,
		LastNamePaternal: user.LastNamePaternal,
		LastNameMaternal: user.LastNameMaternal,
		Roles:            roles,
	}
}

func (s *usersStore) GetByIDWithRoles(_ context.Context, id int64) (*store.UserWithRoles, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	user, ok := s.m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	joined := s.joinLocked(user)
	return &joined, nil
}

func (s *usersStore) sortedJoinedLocked() []store.UserWithRoles {
	users := make([]store.User, 0, len(s.m.users))
	for _, user := range s.m.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	joined := make([]store.UserWithRoles, 0, len(users))
	for _, user := range users {
		joined = append(joined, s.joinLocked(user))
	}
	return joined
}

func (s *usersStore) List(_ context.Context, q store.PageQuery) (*store.Page[store.UserWithRoles], error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	users := s.sortedJoinedLocked()
	if q.All {
		return store.NewUnpagedPage(users), nil
	}
	return store.NewPage(slicePage(users, q), q, int64(len(users))), nil
}

func (s *usersStore) SearchByName(_ context.Context, name string, q store.PageQuery) (*store.Page[store.UserWithRoles], error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var matched []store.UserWithRoles
	for _, user := range s.sortedJoinedLocked() {
		if strings.Contains(strings.ToLower(user.FirstName), strings.ToLower(name)) {
			matched = append(matched, user)
		}
	}
	return store.NewPage(slicePage(matched, q), q, int64(len(matched))), nil
}

func (s *usersStore) Delete(_ context.Context, id int64) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if _, ok := s.m.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.m.users, id)
	return nil
}

func (s *usersStore) DisableMissingUsername(_ context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var n int64
	for id, user := range s.m.users {
		if user.Username == "" && user.Enabled {
			user.Enabled = false
			s.m.users[id] = user
			n++
		}
	}
	return n, nil
}

func (s *usersStore) Count(_ context.Context) (int64, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return int64(len(s.m.users)), nil
}

type initTasksStore struct{ m *memory }

func (s *initTasksStore) Exists(_ context.Context, key string) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	_, ok := s.m.tasks[key]
	return ok, nil
}

func (s *initTasksStore) MarkExecuted(_ context.Context, task *store.InitializationTask) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.tasks[task.Key] = *task
	return nil
}

func slicePage[T any](items []T, q store.PageQuery) []T {
	start := int(q.Offset())
	if start >= len(items) {
		return nil
	}
	end := start + q.Size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
