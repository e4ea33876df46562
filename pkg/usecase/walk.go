package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
)

// walkSecrets calls visit for every secret under folder, depth first.
// folder is either empty or ends with "/".
func walkSecrets(ctx context.Context, store interfaces.SecretStore, folder string, visit func(path string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys, err := store.ListSecrets(ctx, folder)
	if err != nil {
		return goerr.Wrap(err, "failed to walk folder", goerr.V("folder", folder))
	}

	for _, key := range keys {
		path := folder + key
		if strings.HasSuffix(key, "/") {
			if err := walkSecrets(ctx, store, path, visit); err != nil {
				return err
			}
			continue
		}
		if err := visit(path); err != nil {
			return err
		}
	}
	return nil
}
