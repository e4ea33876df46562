package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/m-mizutani/vault-sync/pkg/usecase"
)

func updateOp(path string) model.SecretOp {
	return model.SecretOp{Kind: model.OpUpdate, Path: path, Source: model.SourceAudit}
}

func TestSyncWorker_Apply(t *testing.T) {
	ctx := context.Background()

	t.Run("writes missing secret", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{"app/db": {"password": "a"}})
		dst := newMockStore(nil)
		w := usecase.NewSyncWorker(src, dst)

		gt.V(t, w.Apply(ctx, updateOp("app/db"))).Equal(usecase.ResultWritten)
		gt.V(t, dst.Get("app/db")["password"]).Equal(any("a"))
	})

	t.Run("rewrites changed secret", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{"app/db": {"password": "new"}})
		dst := newMockStore(map[string]map[string]any{"app/db": {"password": "old"}})
		w := usecase.NewSyncWorker(src, dst)

		gt.V(t, w.Apply(ctx, updateOp("app/db"))).Equal(usecase.ResultWritten)
		gt.V(t, dst.Get("app/db")["password"]).Equal(any("new"))
	})

	t.Run("does not write equal secret", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{"app/db": {"password": "a"}})
		dst := newMockStore(map[string]map[string]any{"app/db": {"password": "a"}})
		w := usecase.NewSyncWorker(src, dst)

		gt.V(t, w.Apply(ctx, updateOp("app/db"))).Equal(usecase.ResultUnchanged)
		gt.A(t, dst.Writes()).Length(0)
	})

	t.Run("maps prefixes", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{"team/app": {"k": "v"}})
		dst := newMockStore(nil)
		w := usecase.NewSyncWorker(src, dst, usecase.WithPrefixes("team/", "mirror/team/"))

		gt.V(t, w.Apply(ctx, updateOp("team/app"))).Equal(usecase.ResultWritten)
		gt.V(t, dst.Get("mirror/team/app")["k"]).Equal(any("v"))
	})

	t.Run("skips path outside prefix", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{"other/app": {"k": "v"}})
		dst := newMockStore(nil)
		w := usecase.NewSyncWorker(src, dst, usecase.WithPrefixes("team/", ""))

		gt.V(t, w.Apply(ctx, updateOp("other/app"))).Equal(usecase.ResultSkipped)
		gt.A(t, dst.Writes()).Length(0)
	})

	t.Run("skips excluded path", func(t *testing.T) {
		filter, err := model.NewPathFilter([]string{"tmp/**"})
		gt.NoError(t, err)

		src := newMockStore(map[string]map[string]any{"tmp/x": {"k": "v"}})
		dst := newMockStore(nil)
		w := usecase.NewSyncWorker(src, dst, usecase.WithSyncFilter(filter))

		gt.V(t, w.Apply(ctx, updateOp("tmp/x"))).Equal(usecase.ResultSkipped)
		gt.A(t, dst.Writes()).Length(0)
	})

	t.Run("skips secret deleted on source", func(t *testing.T) {
		src := newMockStore(nil)
		dst := newMockStore(map[string]map[string]any{"app/db": {"k": "v"}})
		w := usecase.NewSyncWorker(src, dst)

		gt.V(t, w.Apply(ctx, updateOp("app/db"))).Equal(usecase.ResultSkipped)
		gt.V(t, dst.Get("app/db")["k"]).Equal(any("v"))
	})

	t.Run("deletes secret", func(t *testing.T) {
		src := newMockStore(nil)
		dst := newMockStore(map[string]map[string]any{"app/db": {"k": "v"}})
		w := usecase.NewSyncWorker(src, dst)

		op := model.SecretOp{Kind: model.OpDelete, Path: "app/db", Source: model.SourceAudit}
		gt.V(t, w.Apply(ctx, op)).Equal(usecase.ResultDeleted)
		gt.True(t, dst.Get("app/db") == nil)
	})

	t.Run("dry run never touches destination", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{"app/db": {"k": "v"}})
		dst := newMockStore(map[string]map[string]any{"app/old": {"k": "v"}})
		w := usecase.NewSyncWorker(src, dst, usecase.WithDryRun(true))

		gt.V(t, w.Apply(ctx, updateOp("app/db"))).Equal(usecase.ResultWritten)
		gt.V(t, w.Apply(ctx, model.SecretOp{Kind: model.OpDelete, Path: "app/old"})).Equal(usecase.ResultDeleted)
		gt.A(t, dst.Writes()).Length(0)
		gt.A(t, dst.Deletes()).Length(0)
		gt.True(t, w.DryRun())
	})

	t.Run("counts failures and keeps going", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{"app/db": {"k": "v"}})
		dst := newMockStore(nil)
		dst.WriteErr = errors.New("permission denied")
		w := usecase.NewSyncWorker(src, dst)

		gt.V(t, w.Apply(ctx, updateOp("app/db"))).Equal(usecase.ResultFailed)

		dst.WriteErr = nil
		gt.V(t, w.Apply(ctx, updateOp("app/db"))).Equal(usecase.ResultWritten)

		stats := w.Stats()
		gt.V(t, stats.Received).Equal(uint64(2))
		gt.V(t, stats.Failed).Equal(uint64(1))
		gt.V(t, stats.Written).Equal(uint64(1))
	})

	t.Run("source read error fails", func(t *testing.T) {
		src := newMockStore(nil)
		src.ReadErr = errors.New("sealed")
		w := usecase.NewSyncWorker(src, newMockStore(nil))

		gt.V(t, w.Apply(ctx, updateOp("app/db"))).Equal(usecase.ResultFailed)
	})
}

func TestSyncWorker_Run(t *testing.T) {
	t.Run("drains queue until closed", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{
			"a": {"k": "1"},
			"b": {"k": "2"},
		})
		dst := newMockStore(nil)
		w := usecase.NewSyncWorker(src, dst)

		ops := make(chan model.SecretOp, 2)
		ops <- updateOp("a")
		ops <- updateOp("b")
		close(ops)

		gt.NoError(t, w.Run(context.Background(), ops))
		gt.A(t, dst.Writes()).Length(2)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		w := usecase.NewSyncWorker(newMockStore(nil), newMockStore(nil))
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- w.Run(ctx, make(chan model.SecretOp))
		}()
		cancel()

		select {
		case err := <-done:
			gt.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("worker did not stop")
		}
	})
}
