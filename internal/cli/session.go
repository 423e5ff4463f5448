package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

func classFlag(system bool) core.IdentityClass {
	if system {
		return core.ClassSystem
	}
	return core.ClassCommunity
}

func newLoginCmd(e *env) *cobra.Command {
	var (
		system   bool
		username string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in as a community user, or as a system user with --system.

The password is read from the terminal without echo, or from the first line of
standard input when it is not a terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			username, err := p.valueOr(username, "Username: ")
			if err != nil {
				return err
			}
			password, err := p.password("Password: ")
			if err != nil {
				return err
			}

			c, err := e.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			class := classFlag(system)
			creds := core.Credentials{Username: username, Password: password}
			if err := c.Orchestrator.Login(cmd.Context(), class, creds); err != nil {
				return fmt.Errorf("login failed: %s", core.UserMessage(err))
			}

			user := c.Orchestrator.State().User
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s). Session expires in %s.\n",
				user.Username, class, core.FormatRemaining(c.Service(class).TimeUntilExpiry()))
			return nil
		},
	}

	cmd.Flags().BoolVar(&system, "system", false, "sign in as a system user")
	cmd.Flags().StringVarP(&username, "username", "u", "", "username (prompted when empty)")
	return cmd
}

func newLogoutCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of every stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			signedOut := 0
			for _, s := range []*services.SessionService{c.Community, c.System} {
				if _, ok := c.Store.Token(s.Class()); !ok {
					continue
				}
				s.Logout(cmd.Context())
				signedOut++
				fmt.Fprintf(cmd.OutOrStdout(), "Signed out of %s session.\n", s.Class())
			}
			if signedOut == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No stored session.")
			}
			return nil
		},
	}
}

func newRegisterCmd(e *env) *cobra.Command {
	var (
		system bool
		input  core.RegisterInput
	)

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create a community account, or a system account with --system.

If the backend signs the new account in, the session is stored as after login.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if input.Username, err = p.valueOr(input.Username, "Username: "); err != nil {
				return err
			}
			if input.Password, err = p.password("Password: "); err != nil {
				return err
			}

			c, err := e.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			class := classFlag(system)
			if err := c.Orchestrator.Register(cmd.Context(), class, input); err != nil {
				return fmt.Errorf("register failed: %s", core.UserMessage(err))
			}

			if c.Orchestrator.IsAuthenticated() {
				fmt.Fprintf(cmd.OutOrStdout(), "Account %s created and signed in (%s).\n", input.Username, class)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Account %s created (%s). Run bantay login to sign in.\n", input.Username, class)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&system, "system", false, "create a system account")
	cmd.Flags().StringVarP(&input.Username, "username", "u", "", "username (prompted when empty)")
	cmd.Flags().StringVar(&input.Name, "name", "", "full name")
	cmd.Flags().StringVar(&input.Email, "email", "", "email address")
	cmd.Flags().StringVar(&input.Role, "role", "", "role")
	cmd.Flags().StringVar(&input.Department, "department", "", "department")
	cmd.Flags().StringVar(&input.Phone, "phone", "", "phone number")
	return cmd
}
