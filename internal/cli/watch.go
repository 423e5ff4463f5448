package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/lborres/bantay/core"
)

func newWatchCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Keep the session under watch and sign out when it expires",
		Long: `Restore the stored session, validate it with the backend and keep watching it.

When the session is close to expiring a warning is printed with a countdown.
Press Enter to dismiss it, or type "logout" to sign out now. The session is
signed out automatically when the countdown reaches zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := e.openClient()
			if err != nil {
				return err
			}
			defer c.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var (
				mu        sync.Mutex
				lastPhase core.Phase = -1
				lastOpen  bool
			)
			c.Orchestrator.Subscribe(func() {
				state := c.Orchestrator.State()
				mu.Lock()
				defer mu.Unlock()
				if state.Phase == lastPhase || state.IsLoading {
					return
				}
				lastPhase = state.Phase
				switch state.Phase {
				case core.PhaseTrustedPendingValidation:
					fmt.Fprintf(out, "Restored %s session for %s, validating...\n", state.Class, state.User.Username)
				case core.PhaseAuthenticated:
					fmt.Fprintf(out, "Signed in as %s (%s). %s\n", state.User.Username, state.Class, c.Notifier.StatusLine())
				case core.PhaseUnauthenticated:
					if state.Error != "" {
						fmt.Fprintln(out, state.Error)
					} else {
						fmt.Fprintln(out, "Not signed in.")
					}
				}
			})
			c.Notifier.Subscribe(func() {
				w := c.Notifier.Warning()
				mu.Lock()
				defer mu.Unlock()
				if w.Open && !lastOpen {
					fmt.Fprintf(out, "Session expires in %s. Press Enter to stay signed in or type \"logout\".\n", w.Formatted)
				}
				lastOpen = w.Open
			})

			go readWarningReplies(ctx, cmd, c)

			c.Start(ctx)
			if err := c.Notifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}

// readWarningReplies answers the expiry warning from input lines.
func readWarningReplies(ctx context.Context, cmd *cobra.Command, c *client) {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if !c.Notifier.Warning().Open {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(scanner.Text()), "logout") {
			c.Notifier.LogoutNow(ctx)
			continue
		}
		c.Notifier.Continue()
	}
}
