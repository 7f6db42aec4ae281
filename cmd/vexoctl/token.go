package main

import (
	"fmt"
	"time"

	"github.com/example/vexokart/internal/auth"
	"github.com/spf13/cobra"
)

type issuedToken struct {
	Token     string    `json:"token"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func tokenCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "API access tokens",
	}

	var id auth.Identity
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue an access token signed with JWT_SECRET",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch id.Role {
			case auth.RoleShopper, auth.RoleAdmin:
			case auth.RoleVendor:
				if id.VendorID == "" {
					return fmt.Errorf("--vendor is required for role %s", auth.RoleVendor)
				}
			default:
				return fmt.Errorf("unknown role %q", id.Role)
			}
			if c.cfg.JWTSecret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if id.UserID == "" {
				id.UserID = id.Email
			}

			svc := auth.NewJWTService(c.cfg.JWTSecret, c.cfg.JWTExpiry)
			token, expiresAt, err := svc.GenerateAccessToken(id)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), issuedToken{Token: token, Role: id.Role, ExpiresAt: expiresAt})
		},
	}
	issue.Flags().StringVar(&id.Role, "role", auth.RoleAdmin, "Role (shopper, vendor, admin)")
	issue.Flags().StringVar(&id.Email, "email", "", "Email the token speaks for")
	issue.Flags().StringVar(&id.UserID, "user-id", "", "User id (defaults to the email)")
	issue.Flags().StringVar(&id.VendorID, "vendor", "", "Vendor id for vendor staff")
	cmd.AddCommand(issue)
	return cmd
}
