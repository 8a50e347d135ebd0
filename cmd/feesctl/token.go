package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mmynk/schoolfees/internal/auth"
)

func newTokenCmd(a *app) *cobra.Command {
	var session auth.Session
	var role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a staff token signed with JWT_SECRET (development only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			session.Role = auth.Role(role)
			token, err := auth.NewJWTManager(a.cfg.JWTSecret, a.cfg.TokenTTL).Generate(session)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&session.UserID, "user", "", "user ID")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleAccountant), "role: admin, accountant, teacher, parent")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
