package usecase

import (
	"context"
	"encoding/json"
	"slices"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/vault-sync/pkg/domain/interfaces"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

// ParseAuditEntry converts one line of the Vault audit stream into a SecretOp.
// It returns false for anything that does not change a secret under prefix:
// requests (only responses are final), failed operations, reads and lists,
// and paths outside the backend.
func ParseAuditEntry(line []byte, backend model.Backend, prefix string) (*model.SecretOp, bool) {
	var entry model.AuditEntry
	if err := json.Unmarshal(line, &entry); err != nil {
		return nil, false
	}

	if entry.Type != "response" || entry.Error != "" || entry.Request == nil {
		return nil, false
	}

	rel, kind := backend.Relative(entry.Request.Path)
	if kind == model.PathOther || rel == "" || strings.HasSuffix(rel, "/") {
		return nil, false
	}
	if !strings.HasPrefix(rel, prefix) {
		return nil, false
	}

	op := &model.SecretOp{Path: rel, Source: model.SourceAudit}
	switch entry.Request.Operation {
	case "create":
		if kind != model.PathData {
			return nil, false
		}
		op.Kind = model.OpCreate
	case "update":
		if kind != model.PathData {
			return nil, false
		}
		op.Kind = model.OpUpdate
	case "delete":
		op.Kind = model.OpDelete
	default:
		return nil, false
	}

	return op, true
}

// AuditDevice manages the socket audit device that streams source Vault
// activity to vault-sync
type AuditDevice struct {
	client          interfaces.AuditDeviceManager
	id              string
	externalAddress string
}

// NewAuditDevice creates an AuditDevice named id that points Vault at externalAddress
func NewAuditDevice(client interfaces.AuditDeviceManager, id, externalAddress string) *AuditDevice {
	return &AuditDevice{
		client:          client,
		id:              id,
		externalAddress: externalAddress,
	}
}

// Add enables the audit device. The listener must already accept connections,
// since Vault refuses to enable a socket device it cannot reach.
func (a *AuditDevice) Add(ctx context.Context) error {
	logger := ctxlog.From(ctx)

	if err := a.client.EnableAudit(ctx, a.id, model.NewSocketAuditDevice(a.externalAddress)); err != nil {
		return goerr.Wrap(err, "failed to add audit device",
			goerr.V("id", a.id),
			goerr.V("address", a.externalAddress),
		)
	}

	exists, err := a.Exists(ctx)
	if err != nil {
		return err
	}
	logger.Info("Audit device added", "id", a.id, "address", a.externalAddress, "exists", exists)
	return nil
}

// Delete disables the audit device if it exists. Failures are only logged;
// a stale device must not prevent startup or shutdown.
func (a *AuditDevice) Delete(ctx context.Context) {
	logger := ctxlog.From(ctx)

	exists, err := a.Exists(ctx)
	if err != nil {
		logger.Warn("Failed to check audit device", "id", a.id, "error", err)
		return
	}
	if !exists {
		logger.Debug("Audit device does not exist", "id", a.id)
		return
	}

	if err := a.client.DisableAudit(ctx, a.id); err != nil {
		logger.Warn("Failed to delete audit device", "id", a.id, "error", err)
		return
	}
	logger.Info("Audit device deleted", "id", a.id)
}

// Exists reports whether the audit device is enabled
func (a *AuditDevice) Exists(ctx context.Context) (bool, error) {
	paths, err := a.client.ListAudit(ctx)
	if err != nil {
		return false, goerr.Wrap(err, "failed to list audit devices")
	}
	return slices.Contains(paths, strings.TrimSuffix(a.id, "/")+"/"), nil
}
