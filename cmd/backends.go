package cmd

import (
	"context"

	"github.com/travhall/el-camino-sub001/internal/config"
	"github.com/travhall/el-camino-sub001/internal/credentials"
	credgcpsm "github.com/travhall/el-camino-sub001/internal/credentials/gcpsm"
	"github.com/travhall/el-camino-sub001/internal/lockstore"
	firestorelock "github.com/travhall/el-camino-sub001/internal/lockstore/firestore"
)

func newFirestoreLockStore(cfg config.LockBackendConfig) (lockstore.Store, error) {
	return firestorelock.New(context.Background(), cfg.Project, cfg.Collection)
}

func newGCPCredentialProvider(cfg config.CredentialBackendConfig) (credentials.Provider, error) {
	return credgcpsm.New(context.Background(), cfg.Project, cfg.Secret)
}

// nopCart stands in for the storefront's real cart backend when
// operating the reservation table from the CLI.
type nopCart struct{}

func (nopCart) AddItem(context.Context, string, int) error    { return nil }
func (nopCart) UpdateItem(context.Context, string, int) error { return nil }
func (nopCart) RemoveItem(context.Context, string) error      { return nil }
