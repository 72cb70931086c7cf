package entities

import (
	"context"
	"time"

	"github.com/leafsii/repokit/pkg/repository"
)

// User is declared with struct tags.
type User struct {
	ID        int64  `repo:"id"`
	Email     string `repo:"unique,length=320"`
	Name      string `repo:"length=120"`
	Age       *int   `repo:"nullable"`
	Role      string `repo:"default=member,length=32"`
	Active    bool
	Tags      []string
	CreatedAt time.Time
}

func (User) TableName() string { return "users" }

type UserRepository struct {
	repository.Crud[User, int64]

	FindByEmail               func(ctx context.Context, email string) (*User, error)
	FindByActive              func(ctx context.Context, active bool) ([]*User, error)
	FindByAgeGreaterThanEqual func(ctx context.Context, age int) ([]*User, error)
	FindByNameLike            func(ctx context.Context, pattern string) ([]*User, error)
	FindByAgeIsNullOrRole     func(ctx context.Context, role string) ([]User, error)
	FindByRoleIn              func(ctx context.Context, roles []string) ([]*User, error)
	CountByRole               func(ctx context.Context, role string) (int64, error)
	ExistsByEmail             func(ctx context.Context, email string) (bool, error)
	DeleteByActive            func(ctx context.Context, active bool) (int, error)
	UpdateByEmail             func(ctx context.Context, email string, changes map[string]interface{}) ([]*User, error)
}
