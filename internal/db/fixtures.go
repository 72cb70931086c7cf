package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/leafsii/repokit/internal/db/entities"
)

func intPtr(n int) *int { return &n }

// UserFixtures provides sample users for seeding. Identifiers are left
// to the backend.
func UserFixtures(now time.Time) []entities.User {
	return []entities.User{
		{Email: "john.doe@example.com", Name: "John Doe", Age: intPtr(30), Role: "admin", Active: true, Tags: []string{"ops"}, CreatedAt: now.Add(-72 * time.Hour)},
		{Email: "jane.smith@example.com", Name: "Jane Smith", Age: intPtr(25), Active: true, CreatedAt: now.Add(-48 * time.Hour)},
		{Email: "bob.johnson@example.com", Name: "Bob Johnson", Age: intPtr(35), Active: false, CreatedAt: now.Add(-24 * time.Hour)},
		// age is omitted (null)
		{Email: "alice.brown@example.com", Name: "Alice Brown", Active: true, Tags: []string{"beta", "ops"}, CreatedAt: now},
	}
}

// ProductFixtures provides sample products for seeding.
func ProductFixtures() []entities.Product {
	return []entities.Product{
		{Title: "Mechanical Keyboard", Price: decimal.RequireFromString("89.90"), Stock: 12},
		{Title: "USB-C Cable", Price: decimal.RequireFromString("9.99"), Stock: 140},
		{Title: "Monitor Arm", Price: decimal.RequireFromString("54.50"), Stock: 0, Discontinued: true},
	}
}

// Seed saves the fixtures through the repositories and returns what was
// stored.
func Seed(ctx context.Context, users *entities.UserRepository, products *entities.ProductRepository) ([]*entities.User, []*entities.Product, error) {
	fixtures := UserFixtures(time.Now().UTC().Truncate(time.Second))
	savedUsers := make([]*entities.User, 0, len(fixtures))
	for i := range fixtures {
		u, err := users.Save(ctx, &fixtures[i])
		if err != nil {
			return nil, nil, fmt.Errorf("seed user %s: %w", fixtures[i].Email, err)
		}
		savedUsers = append(savedUsers, u)
	}

	items := ProductFixtures()
	savedProducts := make([]*entities.Product, 0, len(items))
	for i := range items {
		p, err := products.Save(ctx, &items[i])
		if err != nil {
			return nil, nil, fmt.Errorf("seed product %s: %w", items[i].Title, err)
		}
		savedProducts = append(savedProducts, p)
	}
	return savedUsers, savedProducts, nil
}
