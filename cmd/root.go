package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/travhall/el-camino-sub001/internal/cart"
	"github.com/travhall/el-camino-sub001/internal/config"
	"github.com/travhall/el-camino-sub001/internal/credentials"
	credstatic "github.com/travhall/el-camino-sub001/internal/credentials/static"
	"github.com/travhall/el-camino-sub001/internal/events"
	"github.com/travhall/el-camino-sub001/internal/inventory"
	"github.com/travhall/el-camino-sub001/internal/locker"
	"github.com/travhall/el-camino-sub001/internal/lockstore"
	lockmem "github.com/travhall/el-camino-sub001/internal/lockstore/memory"
	"github.com/travhall/el-camino-sub001/internal/ratelimit"
)

var (
	cfgFile     string
	sessionFile string
	verbose     bool

	store lockstore.Store
	creds credentials.Provider
	mgr   *locker.Manager
)

var rootCmd = &cobra.Command{
	Use:   "holdctl",
	Short: "Inspect and manage storefront inventory reservations",
	Long: `holdctl operates the inventory reservation table that guards the
storefront cart against overselling. Reservations are time-bounded claims
on item quantities held by a shopper session; holdctl can acquire, inspect,
confirm, and release them against the configured backend.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip service init for help commands
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		v := viper.New()

		if cfgFile != "" {
			v.SetConfigFile(cfgFile)
		} else if envCfg := os.Getenv("HOLDCTL_CONFIG"); envCfg != "" {
			v.SetConfigFile(envCfg)
		} else {
			v.SetConfigName("holdctl")
			v.SetConfigType("yaml")
			v.AddConfigPath(".")
			home, _ := os.UserHomeDir()
			if home != "" {
				v.AddConfigPath(home + "/.config/holdctl")
			}
		}

		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		cfg, err := config.Load(v)
		if err != nil {
			return err
		}

		creds, err = newCredentialProvider(cfg.Backend.Credentials)
		if err != nil {
			return fmt.Errorf("failed to create credential provider: %w", err)
		}

		store, err = newLockStore(cfg.Backend.Locks)
		if err != nil {
			return fmt.Errorf("failed to create lock store: %w", err)
		}

		catalog := inventory.NewCatalogClient(cfg.Inventory.BaseURL, creds)
		facade := inventory.NewFacade(catalog, cfg.Inventory.CacheTTL)
		limits := ratelimit.New(ratelimit.Config{
			Window:   cfg.RateLimit.Window,
			Ceilings: cfg.RateLimit.Ceilings,
		})

		var opts []locker.Option
		if verbose {
			opts = append(opts, locker.WithEmitter(stderrEmitter()))
		}

		mgr = locker.New(locker.Config{
			TTL:           cfg.Locks.TTL,
			SweepInterval: cfg.Locks.SweepInterval,
			FailOpen:      cfg.Inventory.FailOpen,
		}, store, facade, limits, opts...)

		if sessionFile == "" {
			if envSF := os.Getenv("HOLDCTL_SESSION_FILE"); envSF != "" {
				sessionFile = envSF
			} else {
				sessionFile = ".holdctl-session"
			}
		}

		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if mgr != nil {
			if err := mgr.Close(); err != nil {
				return err
			}
		}
		if store != nil {
			if err := store.Close(); err != nil {
				return err
			}
		}
		if creds != nil {
			return creds.Close()
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path (default: ./holdctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&sessionFile, "session-file", "", "session file path (default: .holdctl-session)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "print reservation events to stderr")
}

func stderrEmitter() events.Emitter {
	return events.EmitterFunc(func(e events.Event) {
		fmt.Fprintf(os.Stderr, "event: %s item=%s owner=%s qty=%d\n",
			e.Type, e.ItemID, e.Owner, e.Quantity)
	})
}

// newCheckout builds the cart integration around the manager. The CLI
// has no real cart backend, so mutations are no-ops; the guard logic
// still runs against the configured reservation store.
func newCheckout() *cart.Checkout {
	var opts []cart.Option
	if verbose {
		opts = append(opts, cart.WithEmitter(stderrEmitter()))
	}
	return cart.New(mgr, nopCart{}, opts...)
}

func newLockStore(cfg config.LockBackendConfig) (lockstore.Store, error) {
	switch cfg.Type {
	case "memory":
		return lockmem.New(), nil
	case "firestore":
		return newFirestoreLockStore(cfg)
	default:
		return nil, fmt.Errorf("unknown lock backend type: %q", cfg.Type)
	}
}

func newCredentialProvider(cfg config.CredentialBackendConfig) (credentials.Provider, error) {
	switch cfg.Type {
	case "static":
		return credstatic.New(cfg.Token), nil
	case "gcp-secret-manager":
		return newGCPCredentialProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown credential backend type: %q", cfg.Type)
	}
}
