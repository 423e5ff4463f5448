package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lborres/bantay/core"
	"github.com/lborres/bantay/services"
)

type classStatus struct {
	Class     core.IdentityClass `json:"class"`
	Active    bool               `json:"active"`
	SignedIn  bool               `json:"signedIn"`
	Expired   bool               `json:"expired"`
	Username  string             `json:"username,omitempty"`
	ExpiresAt *time.Time         `json:"expiresAt,omitempty"`
	Remaining string             `json:"remaining,omitempty"`
}

// statusOf reads the stored session for one class. It never calls the backend.
func statusOf(svc *services.SessionService, store *services.CredentialStore) classStatus {
	st := classStatus{Class: svc.Class()}
	if _, ok := store.Token(svc.Class()); !ok {
		return st
	}

	st.Expired = svc.IsTokenExpired()
	st.SignedIn = !st.Expired
	st.ExpiresAt = svc.TokenExpiry()
	st.Remaining = core.FormatRemaining(svc.TimeUntilExpiry())
	if user := svc.CurrentUser(); user != nil {
		st.Username = user.Username
	}
	return st
}

func newStatusCmd(e *env) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the stored sessions without contacting the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			active, hasActive := c.Store.ActiveClass()
			var out []classStatus
			for _, svc := range []*services.SessionService{c.Community, c.System} {
				st := statusOf(svc, c.Store)
				st.Active = hasActive && active == st.Class
				out = append(out, st)
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(out)
			}

			for _, st := range out {
				marker := " "
				if st.Active {
					marker = "*"
				}
				switch {
				case st.SignedIn:
					fmt.Fprintf(w, "%s %-9s signed in as %s, expires in %s (%s)\n",
						marker, st.Class, st.Username, st.Remaining, st.ExpiresAt.Local().Format(time.DateTime))
				case st.Expired:
					fmt.Fprintf(w, "%s %-9s session expired\n", marker, st.Class)
				default:
					fmt.Fprintf(w, "%s %-9s no session\n", marker, st.Class)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
