package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/travhall/el-camino-sub001/internal/cart"
	"github.com/travhall/el-camino-sub001/internal/session"
)

var cartCmd = &cobra.Command{
	Use:   "cart",
	Short: "Run cart-wide reservation checks for the current session",
}

var cartValidateCmd = &cobra.Command{
	Use:   "validate <item=qty> [item=qty...]",
	Short: "Check every cart line's reservation before checkout",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := parseLines(args)
		if err != nil {
			return err
		}

		sess, err := session.Current(sessionFile)
		if err != nil {
			return err
		}

		v, err := newCheckout().ValidateCart(cmd.Context(), sess.ID, lines)
		if err != nil {
			return err
		}

		if v.Valid {
			fmt.Fprintln(os.Stderr, "Cart is checkout-eligible")
			return nil
		}

		for _, issue := range v.Issues {
			fmt.Fprintf(os.Stderr, "  %s: %s (requested %d, reserved %d)\n",
				issue.ItemID, issue.Problem, issue.Requested, issue.Available)
		}
		return fmt.Errorf("cart has %d invalid line(s)", len(v.Issues))
	},
}

var cartConfirmCmd = &cobra.Command{
	Use:   "confirm <item=qty> [item=qty...]",
	Short: "Commit every cart line's reservation",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := parseLines(args)
		if err != nil {
			return err
		}

		sess, err := session.Current(sessionFile)
		if err != nil {
			return err
		}

		failed, err := confirmCartLines(cmd.Context(), newCheckout(), sess.ID, lines, sessionFile)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			for _, ln := range failed {
				fmt.Fprintf(os.Stderr, "  could not confirm %s\n", ln.ItemID)
			}
			return fmt.Errorf("%d of %d line(s) failed to confirm", len(failed), len(lines))
		}

		fmt.Fprintf(os.Stderr, "Confirmed %d line(s); session closed\n", len(lines))
		return nil
	},
}

// confirmCartLines commits every line and, once the whole cart is
// confirmed, invalidates the session so the id cannot claim locks
// after the checkout has completed. A partially failed confirm leaves
// the session open for a retry.
func confirmCartLines(ctx context.Context, co *cart.Checkout, ownerID string, lines []cart.Line, sessionPath string) ([]cart.Line, error) {
	failed := co.ConfirmAll(ctx, ownerID, lines)
	if len(failed) > 0 {
		return failed, nil
	}
	if err := session.Invalidate(sessionPath); err != nil {
		return nil, err
	}
	return nil, nil
}

var cartReleaseCmd = &cobra.Command{
	Use:   "release <item=qty> [item=qty...]",
	Short: "Free every cart line's reservation after an aborted checkout",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lines, err := parseLines(args)
		if err != nil {
			return err
		}

		sess, err := session.Current(sessionFile)
		if err != nil {
			return err
		}

		failed := newCheckout().ReleaseAll(cmd.Context(), sess.ID, lines)
		if len(failed) > 0 {
			return fmt.Errorf("%d of %d line(s) failed to release", len(failed), len(lines))
		}

		fmt.Fprintf(os.Stderr, "Released %d line(s)\n", len(lines))
		return nil
	},
}

func parseLines(args []string) ([]cart.Line, error) {
	lines := make([]cart.Line, 0, len(args))
	for _, arg := range args {
		item, qty, ok := strings.Cut(arg, "=")
		if !ok || item == "" {
			return nil, fmt.Errorf("invalid cart line %q, expected item=qty", arg)
		}
		n, err := strconv.Atoi(qty)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid quantity in cart line %q", arg)
		}
		lines = append(lines, cart.Line{ItemID: item, Quantity: n})
	}
	return lines, nil
}

func init() {
	cartCmd.AddCommand(cartValidateCmd)
	cartCmd.AddCommand(cartConfirmCmd)
	cartCmd.AddCommand(cartReleaseCmd)
	rootCmd.AddCommand(cartCmd)
}
