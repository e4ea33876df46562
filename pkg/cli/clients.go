package cli

import (
	"context"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/m-mizutani/vault-sync/pkg/infra/vault"
	"github.com/m-mizutani/vault-sync/pkg/usecase"
)

// vaultSide is a connected Vault together with its token renewer
type vaultSide struct {
	client  *vault.Client
	renewer *usecase.TokenRenewer
}

func connect(ctx context.Context, host model.VaultHost, name string) (*vaultSide, error) {
	ctxlog.From(ctx).Info("Connecting to Vault", "vault", name, "url", host.URL)

	client, err := vault.New(host)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect", goerr.V("vault", name))
	}

	renewer := usecase.NewTokenRenewer(client, host, name)
	if err := renewer.Authenticate(ctx); err != nil {
		return nil, err
	}

	return &vaultSide{client: client, renewer: renewer}, nil
}
