package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/m-mizutani/vault-sync/pkg/usecase"
)

type mockNotifier struct {
	mu      sync.Mutex
	reports []*model.FullSyncReport
	done    chan struct{}
}

func (m *mockNotifier) NotifyFullSync(ctx context.Context, report *model.FullSyncReport) error {
	m.mu.Lock()
	m.reports = append(m.reports, report)
	m.mu.Unlock()
	m.done <- struct{}{}
	return nil
}

func drain(queue chan model.SecretOp) []model.SecretOp {
	var ops []model.SecretOp
	for {
		select {
		case op := <-queue:
			ops = append(ops, op)
		default:
			return ops
		}
	}
}

func TestFullSyncer_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueues every secret recursively", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{
			"a":       {"k": "v"},
			"app/db":  {"k": "v"},
			"app/x/y": {"k": "v"},
		})
		queue := make(chan model.SecretOp, 10)
		s := usecase.NewFullSyncer(src, queue, "")

		report := s.Run(ctx)
		gt.False(t, report.Failed())
		gt.V(t, report.Enqueued).Equal(3)
		gt.V(t, report.ID).NotEqual("")
		gt.V(t, report.Source).Equal(model.SourceFullSync)

		ops := drain(queue)
		gt.A(t, ops).Length(3)
		gt.V(t, ops[0].Path).Equal("a")
		gt.V(t, ops[1].Path).Equal("app/db")
		gt.V(t, ops[2].Path).Equal("app/x/y")
		for _, op := range ops {
			gt.V(t, op.Kind).Equal(model.OpUpdate)
			gt.V(t, op.Source).Equal(model.SourceFullSync)
		}
	})

	t.Run("walks only under prefix and honors excludes", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{
			"team/db":    {"k": "v"},
			"team/tmp/x": {"k": "v"},
			"other/db":   {"k": "v"},
		})
		filter, err := model.NewPathFilter([]string{"tmp/**"})
		gt.NoError(t, err)

		queue := make(chan model.SecretOp, 10)
		s := usecase.NewFullSyncer(src, queue, "team/", usecase.WithFullSyncFilter(filter))

		report := s.Run(ctx)
		gt.V(t, report.Enqueued).Equal(1)
		gt.V(t, report.Excluded).Equal(1)

		ops := drain(queue)
		gt.A(t, ops).Length(1)
		gt.V(t, ops[0].Path).Equal("team/db")
	})

	t.Run("records list failure and notifies", func(t *testing.T) {
		src := newMockStore(nil)
		src.ListErr = errors.New("permission denied")
		notifier := &mockNotifier{done: make(chan struct{}, 1)}

		s := usecase.NewFullSyncer(src, make(chan model.SecretOp, 1), "", usecase.WithNotifier(notifier))

		report := s.Run(ctx)
		gt.True(t, report.Failed())
		gt.S(t, report.Error).Contains("permission denied")

		select {
		case <-notifier.done:
		case <-time.After(time.Second):
			t.Fatal("notifier was not called")
		}

		last := s.LastReport()
		gt.V(t, last.ID).Equal(report.ID)
	})

	t.Run("stops when cancelled while queue is full", func(t *testing.T) {
		src := newMockStore(map[string]map[string]any{"a": {}, "b": {}})
		queue := make(chan model.SecretOp) // never read

		ctx, cancel := context.WithCancel(context.Background())
		s := usecase.NewFullSyncer(src, queue, "")

		done := make(chan *model.FullSyncReport, 1)
		go func() { done <- s.Run(ctx) }()
		cancel()

		select {
		case report := <-done:
			gt.True(t, report.Failed())
		case <-time.After(time.Second):
			t.Fatal("full sync did not stop")
		}
	})
}

func TestFullSyncer_Trigger(t *testing.T) {
	s := usecase.NewFullSyncer(newMockStore(nil), make(chan model.SecretOp, 1), "")

	gt.True(t, s.Trigger())
	gt.False(t, s.Trigger())
	gt.True(t, s.LastReport() == nil)
}

func TestFullSyncer_Loop(t *testing.T) {
	src := newMockStore(map[string]map[string]any{"a": {"k": "v"}})
	queue := make(chan model.SecretOp, 10)
	s := usecase.NewFullSyncer(src, queue, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Loop(ctx, time.Hour) }()

	// initial run
	select {
	case op := <-queue:
		gt.V(t, op.Source).Equal(model.SourceFullSync)
	case <-time.After(time.Second):
		t.Fatal("initial full sync did not run")
	}

	// manual trigger
	gt.True(t, s.Trigger())
	select {
	case op := <-queue:
		gt.V(t, op.Source).Equal(model.SourceManual)
	case <-time.After(time.Second):
		t.Fatal("triggered full sync did not run")
	}

	cancel()
	select {
	case err := <-done:
		gt.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}
}
