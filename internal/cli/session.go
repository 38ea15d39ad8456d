package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/syllabus-portal/internal/dto"
	"github.com/noah-isme/syllabus-portal/internal/models"
	appErrors "github.com/noah-isme/syllabus-portal/pkg/errors"
)

func newLoginCommand(a *app) *cobra.Command {
	var (
		token  string
		verify bool
	)
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token issued by the auth service",
		Long: `Store a bearer token for later commands. The token is read from
--token or, when omitted, from the first line of stdin.

By default the claims are decoded without checking the signature; the
backends stay the authority. Pass --verify to check it against JWT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if scanner.Scan() {
					token = scanner.Text()
				}
			}
			req := dto.SessionLoginRequest{Token: strings.TrimSpace(token)}
			if err := a.validate.Struct(req); err != nil {
				return appErrors.Clone(appErrors.ErrValidation, "a token is required")
			}

			var (
				session *models.SessionContext
				err     error
			)
			if verify {
				session, err = a.auth.ValidateToken(req.Token)
			} else {
				session, err = a.auth.InspectToken(req.Token)
			}
			if err != nil {
				return err
			}
			if err := a.sessions.Save(cmd.Context(), *session); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (%s)\n", displayName(session), session.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Bearer token (read from stdin when empty)")
	cmd.Flags().BoolVar(&verify, "verify", false, "Verify the token signature with JWT_SECRET")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session; local drafts are kept",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.sessions.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func newWhoamiCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(map[string]string{
				"actorId":   session.ActorID,
				"displayId": session.DisplayID,
				"role":      string(session.Role),
			})
		},
	}
}

func displayName(session *models.SessionContext) string {
	if session.DisplayID != "" {
		return session.DisplayID
	}
	return session.ActorID
}
