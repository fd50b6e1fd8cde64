package admin

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mmeshcher/wastebank/internal/authgate"
	"github.com/mmeshcher/wastebank/internal/model"
)

func newTokenCommand() *cobra.Command {
	var (
		uid    string
		role   string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an HS256 bearer token for the jwt auth provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := model.NewActor(model.Role(role), uid); err != nil {
				return err
			}
			v, err := authgate.NewJWTVerifier(secret, ttl)
			if err != nil {
				return err
			}
			token, err := v.Issue(uid, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&uid, "uid", "", "caller id")
	cmd.Flags().StringVar(&role, "role", string(model.RoleUser), "caller role (user|bank)")
	cmd.Flags().StringVar(&secret, "secret", os.Getenv("AUTH_SECRET"), "HS256 secret")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")

	return cmd
}
