package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/punchamoorthee/chargeops/internal/domain"
	"github.com/punchamoorthee/chargeops/internal/store"
	"github.com/punchamoorthee/chargeops/internal/taxid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var dbURL string
	root := &cobra.Command{
		Use:          "seeder",
		Short:        "Prepare a chargeops database for local runs and benchmarks",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbURL, "db", os.Getenv("DB_SOURCE"), "Postgres connection string (defaults to DB_SOURCE)")

	root.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Create the tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := open(cmd.Context(), dbURL)
			if err != nil {
				return err
			}
			defer st.Close()
			return st.EnsureSchema(cmd.Context())
		},
	})
	root.AddCommand(seedCmd(&dbURL))
	return root
}

func seedCmd(dbURL *string) *cobra.Command {
	var (
		users    int
		balance  string
		password string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bulk insert users with funded accounts",
		Long: "Bulk insert users with funded accounts. User i gets the tax id generated from base i " +
			"and the email user<i>@seed.local, so load drivers can address them without a lookup.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			amount, err := decimalOrZero(balance)
			if err != nil {
				return err
			}

			st, err := open(ctx, *dbURL)
			if err != nil {
				return err
			}
			defer st.Close()
			if err := st.EnsureSchema(ctx); err != nil {
				return err
			}

			count, err := st.CountUsers(ctx)
			if err != nil {
				return err
			}
			if count >= int64(users) {
				log.Printf("Database already has %d users. Skipping.", count)
				return nil
			}

			// One hash for every seeded user keeps seeding fast.
			hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			log.Printf("Generating %d users...", users)
			now := time.Now()
			seeds := make([]store.SeedUser, 0, users)
			for i := 1; i <= users; i++ {
				seeds = append(seeds, store.SeedUser{
					User: domain.User{
						Name:         fmt.Sprintf("Seed User %d", i),
						TaxID:        taxid.FromBase(int64(i)),
						Email:        fmt.Sprintf("user%d@seed.local", i),
						PasswordHash: string(hash),
						Active:       true,
						CreatedAt:    now,
					},
					Balance: amount,
				})
			}

			n, err := st.BulkInsertUsers(ctx, seeds)
			if err != nil {
				return fmt.Errorf("bulk insert failed: %w", err)
			}
			log.Printf("Successfully seeded %d users.", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&users, "users", 1000, "number of users to create")
	cmd.Flags().StringVar(&balance, "balance", "1000.00", "opening balance of every account")
	cmd.Flags().StringVar(&password, "password", "password", "password shared by every seeded user")
	return cmd
}

func decimalOrZero(raw string) (decimal.Decimal, error) {
	if raw == "0" || raw == "" {
		return decimal.Zero, nil
	}
	return domain.ParseAmount(raw)
}

func open(ctx context.Context, dbURL string) (*store.PostgresStore, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("no database: pass --db or set DB_SOURCE")
	}
	return store.NewPostgresStore(ctx, dbURL)
}
