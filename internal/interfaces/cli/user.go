package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/arca-scheduler/internal/domain/user"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var id, email, name string

	c := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if id = strings.TrimSpace(id); id == "" {
				id = uuid.NewString()
			}
			u := user.User{ID: id, Email: strings.TrimSpace(email), Name: strings.TrimSpace(name), CreatedAt: time.Now().UTC()}
			if err := a.store.CreateUser(ctx, u); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	c.Flags().StringVar(&id, "id", "", "user id (generated when empty)")
	c.Flags().StringVar(&email, "email", "", "email")
	c.Flags().StringVar(&name, "name", "", "display name")
	return c
}

func newCredentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage stored Arca logins",
	}
	cmd.AddCommand(newCredentialsSetCmd())
	return cmd
}

func newCredentialsSetCmd() *cobra.Command {
	var userID, username, password string
	var verify bool

	c := &cobra.Command{
		Use:   "set",
		Short: "Encrypt and store a user's Arca login",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.credentials().Save(ctx, userID, username, password, verify); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "credentials saved")
			return nil
		},
	}
	c.Flags().StringVar(&userID, "user", "", "user id")
	c.Flags().StringVar(&username, "username", "", "Arca username")
	c.Flags().StringVar(&password, "password", "", "Arca password")
	c.Flags().BoolVar(&verify, "verify", true, "test the login against Arca before saving")
	_ = c.MarkFlagRequired("user")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	return c
}
