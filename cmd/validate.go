package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/travhall/el-camino-sub001/internal/session"
)

var validateCmd = &cobra.Command{
	Use:   "validate <item> <quantity>",
	Short: "Check that the session's reservation still covers a quantity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID := args[0]
		quantity, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("quantity must be an integer: %w", err)
		}

		sess, err := session.Current(sessionFile)
		if err != nil {
			return err
		}

		v, err := mgr.Validate(cmd.Context(), itemID, sess.ID, quantity)
		if err != nil {
			return err
		}

		if !v.Valid {
			return fmt.Errorf("reservation on %q is not valid for quantity %d: %s", itemID, quantity, v.Reason)
		}

		fmt.Fprintf(os.Stderr, "Reservation on %q covers quantity %d (expires: %s)\n",
			itemID, quantity, v.Reservation.ExpiresAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
