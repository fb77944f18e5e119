package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/tabble/internal/config"
	"github.com/dmitrymomot/tabble/pkg/credentials"
	"github.com/dmitrymomot/tabble/pkg/tenantdb"
)

func newHashSecretCmd() *cobra.Command {
	var cost int
	cmd := &cobra.Command{
		Use:   "hash-secret [secret]",
		Short: "Print a bcrypt hash of a tenant secret",
		Long:  "Print a bcrypt hash suitable for the password column of hotels.csv or the Redis tenant hash. The secret is read from stdin when no argument is given.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := secretArg(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}
			hash, err := credentials.HashSecret(secret, cost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}

func newTenantsCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Inspect and manage tenant credentials",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tenants known to the credential store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := credentials.NewFromConfig(cmd.Context(), cfg.Credentials)
			if err != nil {
				return err
			}
			defer store.Close()

			names, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, name := range names {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), name); err != nil {
					return err
				}
			}
			return nil
		},
	})

	var (
		hash bool
		cost int
	)
	put := &cobra.Command{
		Use:   "put <tenant> [secret]",
		Short: "Store a tenant secret in the Redis credential store",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Credentials.Backend != credentials.BackendRedis {
				return fmt.Errorf("%w: tenants put needs CREDENTIALS_BACKEND=redis, got %q", credentials.ErrUnknownBackend, cfg.Credentials.Backend)
			}
			tenant := args[0]
			if err := tenantdb.ValidateTenantName(tenant); err != nil {
				return err
			}
			secret, err := secretArg(cmd.InOrStdin(), args[1:])
			if err != nil {
				return err
			}
			if hash {
				if secret, err = credentials.HashSecret(secret, cost); err != nil {
					return err
				}
			}

			client, err := credentials.ConnectRedis(cmd.Context(), cfg.Credentials)
			if err != nil {
				return err
			}
			src := credentials.NewRedisSource(client, cfg.Credentials.RedisKey)
			defer src.Close()

			if err := src.Put(cmd.Context(), credentials.Record{Tenant: tenant, Secret: secret}); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored credentials for %s\n", tenant)
			return err
		},
	}
	put.Flags().BoolVar(&hash, "hash", true, "store a bcrypt hash instead of the plain secret")
	put.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	cmd.AddCommand(put)

	return cmd
}

// secretArg returns args[0], or the first line of in when args is empty.
func secretArg(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	b, err := io.ReadAll(io.LimitReader(in, 4096))
	if err != nil {
		return "", err
	}
	secret, _, _ := strings.Cut(string(b), "\n")
	secret = strings.TrimRight(secret, "\r")
	if secret == "" {
		return "", errors.New("no secret given")
	}
	return secret, nil
}
