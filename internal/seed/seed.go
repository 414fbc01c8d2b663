package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"padron/internal/store"

	"go.uber.org/zap"
)

// Task keys for the one-shot migrations. Spelled exactly as persisted by
// earlier deployments, typo included, so existing records keep gating them.
const (
	taskFixRolePrefixes    = "FIX_ROLE_PREFIXES"
	taskFixIncompleteUsers = "FIX_PREVOUSLY_SAVED_USERS"
)

const adminRoleKey = "ROLE_ADMIN"

// Seeder populates an empty database with the initial roles and users and
// applies the one-shot data migrations. Every step is idempotent: counts
// guard the seeds and initializationTasks records guard the migrations.
type Seeder struct {
	store         store.Storage
	logger        *zap.SugaredLogger
	adminPassword string
}

func New(storage store.Storage, logger *zap.SugaredLogger, adminPassword string) *Seeder {
	return &Seeder{
		store:         storage,
		logger:        logger,
		adminPassword: adminPassword,
	}
}

func (s *Seeder) Run(ctx context.Context) error {
	if err := s.loadRoles(ctx); err != nil {
		return fmt.Errorf("seeding roles: %w", err)
	}
	if err := s.loadUsers(ctx); err != nil {
		return fmt.Errorf("seeding users: %w", err)
	}
	if err := s.fixRolePrefixes(ctx); err != nil {
		return fmt.Errorf("fixing role prefixes: %w", err)
	}
	if err := s.fixIncompleteUsers(ctx); err != nil {
		return fmt.Errorf("fixing incomplete users: %w", err)
	}
	if err := s.loadAdminUser(ctx); err != nil {
		return fmt.Errorf("seeding admin user: %w", err)
	}
	return nil
}

func (s *Seeder) loadRoles(ctx context.Context) error {
	count, err := s.store.Roles.Count(ctx)
	if err != nil || count > 0 {
		return err
	}

	roles := []*store.Role{
		{Key: "admin", Name: "Admin"},
		{Key: "moderator", Name: "Moderator"},
		{Key: "user", Name: "User"},
		{Key: "monitor", Name: "Monitor"},
		{Key: "editor", Name: "Editor"},
	}
	if err := s.store.Roles.CreateAll(ctx, roles); err != nil {
		return err
	}
	s.logger.Info("roles data initialized")
	return nil
}

type seedUser struct {
	firstName        string
	lastNamePaternal string
	lastNameMaternal string
	roleKeys         []string
}

func (s *Seeder) loadUsers(ctx context.Context) error {
	roleCount, err := s.store.Roles.Count(ctx)
	if err != nil || roleCount == 0 {
		return err
	}
	userCount, err := s.store.Users.Count(ctx)
	if err != nil || userCount > 0 {
		return err
	}

	seedUsers := []seedUser{
		{"Gabriel", "García", "Márquez", []string{"admin", "user"}},
		{"Isabel", "Allende", "Llona", []string{"user"}},
		{"Mario", "Vargas", "Llosa", []string{"admin"}},
		{"Jorge", "Luis", "Borges", []string{"user", "moderator"}},
		{"Julio", "Cortázar", "Descotte", []string{"user"}},
		{"Laura", "Esquivel", "Valdés", []string{"moderator", "user"}},
		{"Carlos", "Fuentes", "Macías", []string{"user"}},
		{"Rosario", "Castellanos", "Figueroa", []string{"admin", "moderator", "user"}},
		{"Juan", "Rulfo", "Vizcaíno", []string{"user"}},
		{"Claribel", "Alegría", "Vides", []string{"moderator"}},
		{"Juan", "Manuel", "Marquez", []string{"user"}},
		{"Clara", "Alfonsina", "Velazquez", []string{"user"}},
		{"Mario", "Moreno", "Reyes", []string{"moderator"}},
		{"Gabriela", "Mistral", "Godoy", []string{"user"}},
		{"Isabelo", "Lopez", "Hernandez", []string{"moderator"}},
	}

	users := make([]*store.User, 0, len(seedUsers))
	for _, su := range seedUsers {
		roles, err := s.store.Roles.GetByKeys(ctx, su.roleKeys)
		if err != nil {
			return err
		}
		if len(roles) == 0 {
			return fmt.Errorf("no roles resolved for seed user %s", su.firstName)
		}
		ids := make([]int64, 0, len(roles))
		for _, r := range roles {
			ids = append(ids, r.ID)
		}
		users = append(users, &store.User{
			FirstName:        su.firstName,
			LastNamePaternal: su.lastNamePaternal,
			LastNameMaternal: su.lastNameMaternal,
			Roles:            ids,
			Enabled:          false,
		})
	}

	if err := s.store.Users.CreateAll(ctx, users); err != nil {
		return err
	}
	s.logger.Info("users data initialized")
	return nil
}

// fixRolePrefixes rewrites legacy lowercase role keys into the prefixed
// authority form (admin -> ROLE_ADMIN) consumed by access tokens.
func (s *Seeder) fixRolePrefixes(ctx context.Context) error {
	done, err := s.store.InitTasks.Exists(ctx, taskFixRolePrefixes)
	if err != nil || done {
		return err
	}

	page, err := s.store.Roles.List(ctx, store.PageQuery{All: true})
	if err != nil {
		return err
	}
	for i := range page.Content {
		role := page.Content[i]
		if strings.HasPrefix(role.Key, "ROLE_") {
			continue
		}
		role.Key = "ROLE_" + strings.ToUpper(role.Key)
		if err := s.store.Roles.Update(ctx, &role); err != nil {
			return err
		}
	}

	s.logger.Debug("role prefixes fixed")
	return s.store.InitTasks.MarkExecuted(ctx, &store.InitializationTask{
		Key:         taskFixRolePrefixes,
		Description: "Prefixed all role keys with ROLE_",
	})
}

// fixIncompleteUsers force-disables users that predate the activation flow
// and never stored a username.
func (s *Seeder) fixIncompleteUsers(ctx context.Context) error {
	done, err := s.store.InitTasks.Exists(ctx, taskFixIncompleteUsers)
	if err != nil || done {
		return err
	}

	n, err := s.store.Users.DisableMissingUsername(ctx)
	if err != nil {
		return err
	}
	s.logger.Debugw("incomplete users disabled", "count", n)

	return s.store.InitTasks.MarkExecuted(ctx, &store.InitializationTask{
		Key:         taskFixIncompleteUsers,
		Description: "Auto set enabled value to false for previously incomplete users",
	})
}

func (s *Seeder) loadAdminUser(ctx context.Context) error {
	_, err := s.store.Users.GetByUsername(ctx, "admin")
	if err == nil {
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	roles, err := s.store.Roles.GetByKeys(ctx, []string{adminRoleKey})
	if err != nil {
		return err
	}
	ids := make([]int64, 0, len(roles))
	for _, r := range roles {
		ids = append(ids, r.ID)
	}

	admin := &store.User{
		FirstName:        "admin",
		LastNamePaternal: "admin",
		LastNameMaternal: "admin",
		Username:         "admin",
		Roles:            ids,
		Enabled:          true,
	}
	if err := admin.SetPassword(s.adminPassword); err != nil {
		return err
	}
	if err := s.store.Users.Create(ctx, admin); err != nil {
		return err
	}
	s.logger.Info("admin user created")
	return nil
}
