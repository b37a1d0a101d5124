package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/payflow/approval-service/internal/app"
	"github.com/payflow/approval-service/internal/domain"
	"github.com/payflow/approval-service/internal/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	seedEmailDomain string
	seedPassword    string
)

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create one account per role when it does not exist yet",
		Long: `Create the default accounts: admin, requester, approver and bank_payer.

Existing emails are left untouched and a second admin is never created. Without
--password (or SEED_PASSWORD) each account gets "<role>123" as its password.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			repository := store.NewPostgresRepository(d.pool)
			if err := repository.EnsureSchema(ctx); err != nil {
				return err
			}

			password := seedPassword
			if password == "" {
				password = strings.TrimSpace(os.Getenv("SEED_PASSWORD"))
			}
			created, err := app.NewUserService(repository, d.logger).EnsureUsers(ctx, defaultSeeds(seedEmailDomain, password))
			if err != nil {
				return err
			}
			d.logger.Info("seed finished", zap.Int("created", created))
			fmt.Fprintf(cmd.OutOrStdout(), "created %d account(s)\n", created)
			return nil
		},
	}
	cmd.Flags().StringVar(&seedEmailDomain, "email-domain", "example.com", "domain used for the seeded emails")
	cmd.Flags().StringVar(&seedPassword, "password", "", "password for every seeded account")
	return cmd
}

func defaultSeeds(emailDomain, password string) []domain.CreateUserRequest {
	names := map[domain.Role]string{
		domain.RoleAdmin:     "Platform Admin",
		domain.RoleRequester: "Default Requester",
		domain.RoleApprover:  "Default Approver",
		domain.RoleBankPayer: "Default Bank Payer",
	}
	seeds := make([]domain.CreateUserRequest, 0, len(domain.Roles))
	for _, role := range domain.Roles {
		pw := password
		if pw == "" {
			pw = string(role) + "123"
		}
		seeds = append(seeds, domain.CreateUserRequest{
			Name:     names[role],
			Email:    fmt.Sprintf("%s@%s", strings.ReplaceAll(string(role), "_", "."), emailDomain),
			Password: pw,
			Role:     role,
		})
	}
	return seeds
}
