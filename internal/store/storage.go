package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Collection names. The sequence generator keys counters by these, so they
// must match the collections the stores write to.
const (
	RoleCollection     = "role"
	UserCollection     = "user"
	SequenceCollection = "collectionSequence"
	InitTaskCollection = "initializationTasks"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrRoleInUse         = errors.New("cannot delete role. It is currently assigned to one or more users")
	QueryTimeoutDuration = time.Second * 5
)

// DuplicateKeyError wraps a unique-index violation from the driver, keeping
// the "dup key" detail so the HTTP layer can surface which fields collided.
type DuplicateKeyError struct {
	Detail string
}

func (e *DuplicateKeyError) Error() string {
	if e.Detail == "" {
		return "Duplicate key error"
	}
	return "Duplicate key error on " + e.Detail
}

// wrapWriteError converts driver duplicate-key failures into a
// DuplicateKeyError and passes everything else through unchanged.
func wrapWriteError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return &DuplicateKeyError{Detail: dupKeyDetail(err)}
	}
	return err
}

// dupKeyDetail pulls the `dup key: { ... }` fragment out of the raw driver
// message. Returns "" when the fragment is missing.
func dupKeyDetail(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, "dup key:"); i != -1 {
		return strings.TrimSpace(strings.TrimPrefix(msg[i:], "dup key:"))
	}
	return ""
}

type Storage struct {
	Roles interface {
		Create(context.Context, *Role) error
		CreateAll(context.Context, []*Role) error
		Update(context.Context, *Role) error
		GetByID(context.Context, int64) (*Role, error)
		GetByIDs(context.Context, []int64) ([]Role, error)
		GetByKeys(context.Context, []string) ([]Role, error)
		List(context.Context, PageQuery) (*Page[Role], error)
		SearchByName(context.Context, string, PageQuery) (*Page[Role], error)
		Delete(context.Context, int64) error
		Count(context.Context) (int64, error)
	}
	Users interface {
		Create(context.Context, *User) error
		CreateAll(context.Context, []*User) error
		Update(context.Context, *User) error
		GetByID(context.Context, int64) (*User, error)
		GetByUsername(context.Context, string) (*User, error)
		GetByIDWithRoles(context.Context, int64) (*UserWithRoles, error)
		List(context.Context, PageQuery) (*Page[UserWithRoles], error)
		SearchByName(context.Context, string, PageQuery) (*Page[UserWithRoles], error)
		Delete(context.Context, int64) error
		DisableMissingUsername(context.Context) (int64, error)
		Count(context.Context) (int64, error)
	}
	Sequences interface {
		Next(context.Context, string) (int64, error)
	}
	InitTasks interface {
		Exists(context.Context, string) (bool, error)
		MarkExecuted(context.Context, *InitializationTask) error
	}
}

func NewStorage(db *mongo.Database) Storage {
	sequences := &SequencesStore{db}
	return Storage{
		Roles:     &RolesStore{db: db, sequences: sequences},
		Users:     &UsersStore{db: db, sequences: sequences},
		Sequences: sequences,
		InitTasks: &InitTasksStore{db},
	}
}
