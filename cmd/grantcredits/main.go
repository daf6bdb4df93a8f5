package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/digkill/themeshot/internal/config"
	"github.com/digkill/themeshot/internal/database"
	"github.com/digkill/themeshot/internal/repository"
	"github.com/digkill/themeshot/internal/service"
	"github.com/digkill/themeshot/pkg/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		email  string
		amount int
	)
	cmd := &cobra.Command{
		Use:   "grantcredits",
		Short: "Grant credits to a user, or list users and balances",
		Example: `  grantcredits --email user@example.com --amount 100
  grantcredits`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadDatabase()
			if err != nil {
				return err
			}
			logr := logger.New(cfg.LogLevel)

			db, err := database.Connect(cfg.MySQLDSN)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			credits := repository.NewCreditRepository(db)
			ledger := service.NewLedger(credits, repository.NewUsageRepository(db), logr, nil)
			users := service.NewUserService(repository.NewUserRepository(db), ledger)

			if email == "" {
				_ = cmd.Usage()
				return listUsers(ctx, cmd, users)
			}

			granted, err := users.GrantByEmail(ctx, email, amount)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "granted %d credits to %s, balance is now %d\n", amount, granted.Email, granted.Balance)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the account to credit")
	cmd.Flags().IntVar(&amount, "amount", 100, "number of credits to grant")
	return cmd
}

func listUsers(ctx context.Context, cmd *cobra.Command, users *service.UserService) error {
	list, err := users.ListUsers(ctx)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "\nno users registered")
		return nil
	}
	fmt.Fprintln(out, "\nusers:")
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EMAIL\tCREDITS\tID")
	for _, u := range list {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", u.Email, u.Balance, u.ID)
	}
	return tw.Flush()
}
