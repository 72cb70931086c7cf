package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/leafsii/repokit/internal/db"
	"github.com/leafsii/repokit/internal/db/entities"
	"github.com/leafsii/repokit/pkg/repository"
)

func newDemoCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Seed the sample repositories and run derived queries against them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			s, err := openSession(ctx, nil)
			if err != nil {
				return err
			}
			defer s.Close()
			return runDemo(ctx, s.rc, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "overall deadline")
	return cmd
}

func runDemo(ctx context.Context, rc *repository.Context, w io.Writer) error {
	users, err := repository.Get[entities.UserRepository](rc)
	if err != nil {
		return err
	}
	products, err := repository.Get[entities.ProductRepository](rc)
	if err != nil {
		return err
	}

	heading := color.New(color.Bold, color.FgGreen)
	step := func(title string) { heading.Fprintf(w, "\n== %s\n", title) }

	step("seed")
	savedUsers, savedProducts, err := db.Seed(ctx, users, products)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d users, %d products\n", len(savedUsers), len(savedProducts))

	step(users.String())
	john, err := users.FindByEmail(ctx, "john.doe@example.com")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "findByEmail(john.doe@example.com) -> #%d %s (%s)\n", john.ID, john.Name, john.Role)

	adults, err := users.FindByAgeGreaterThanEqual(ctx, 30)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "findByAgeGreaterThanEqual(30) -> %d users\n", len(adults))

	members, err := users.CountByRole(ctx, "member")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "countByRole(member) -> %d\n", members)

	either, err := users.FindByAgeIsNullOrRole(ctx, "admin")
	if err != nil {
		return err
	}
	for _, u := range either {
		fmt.Fprintf(w, "findByAgeIsNullOrRole(admin) -> %s\n", u.Name)
	}

	updated, err := users.UpdateByEmail(ctx, "bob.johnson@example.com", map[string]interface{}{"active": true})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "updateByEmail(bob.johnson@example.com, active=true) -> %d updated\n", len(updated))

	step(products.String())
	cheap, err := products.FindByPriceLessThan(ctx, decimal.NewFromInt(60))
	if err != nil {
		return err
	}
	for _, p := range cheap {
		fmt.Fprintf(w, "findByPriceLessThan(60) -> %s at %s\n", p.Title, p.Price.StringFixed(2))
	}

	d, ok := repository.DispatcherOf(products)
	if !ok {
		return fmt.Errorf("products repository has no dispatcher")
	}
	res := <-d.InvokeAsync(ctx, "countByDiscontinued", true)
	if res.Err != nil {
		return res.Err
	}
	fmt.Fprintf(w, "countByDiscontinued(true) async -> %d rows\n", len(res.Value.([]interface{})))

	removed, err := products.DeleteByStockLessThanEqual(ctx, 0)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "deleteByStockLessThanEqual(0) -> %d removed\n", removed)

	ok, err = products.DeleteByID(ctx, "no-such-sku")
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "deleteById(no-such-sku) -> %t\n", ok)
	return nil
}
