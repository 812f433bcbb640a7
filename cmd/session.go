package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/travhall/el-camino-sub001/internal/session"
)

var sessionReset bool

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show or reset the local session identity",
	Long: `Show the session id used as the reservation owner for all holdctl
commands. With --reset, the current session is invalidated and the next
command issues a fresh one; any reservations held by the old session are
left to expire.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if sessionReset {
			if err := session.Invalidate(sessionFile); err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr, "Session invalidated")
			return nil
		}

		sess, err := session.Current(sessionFile)
		if err != nil {
			return err
		}

		fmt.Printf("%s (issued %s)\n", sess.ID, sess.IssuedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	sessionCmd.Flags().BoolVar(&sessionReset, "reset", false, "invalidate the current session")
	rootCmd.AddCommand(sessionCmd)
}
