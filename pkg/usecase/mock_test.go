package usecase_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/vault-sync/pkg/domain/model"
)

// MockStore is an in-memory SecretStore. Set the *Err fields to make the
// corresponding call fail.
type MockStore struct {
	mu      sync.Mutex
	secrets map[string]map[string]any

	ReadErr   error
	WriteErr  error
	DeleteErr error
	ListErr   error

	writes  []string
	deletes []string
}

func newMockStore(secrets map[string]map[string]any) *MockStore {
	if secrets == nil {
		secrets = map[string]map[string]any{}
	}
	return &MockStore{secrets: secrets}
}

func (m *MockStore) ReadSecret(ctx context.Context, path string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return nil, m.ReadErr
	}
	return m.secrets[path], nil
}

func (m *MockStore) WriteSecret(ctx context.Context, path string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.secrets[path] = data
	m.writes = append(m.writes, path)
	return nil
}

func (m *MockStore) DeleteSecret(ctx context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	delete(m.secrets, path)
	m.deletes = append(m.deletes, path)
	return nil
}

func (m *MockStore) ListSecrets(ctx context.Context, folder string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}

	seen := map[string]bool{}
	for p := range m.secrets {
		rel, ok := strings.CutPrefix(p, folder)
		if !ok || rel == "" {
			continue
		}
		if i := strings.Index(rel, "/"); i >= 0 {
			rel = rel[:i+1]
		}
		seen[rel] = true
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MockStore) Get(path string) map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.secrets[path]
}

func (m *MockStore) Writes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.writes...)
}

func (m *MockStore) Deletes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deletes...)
}

// MockAuditManager records audit device calls
type MockAuditManager struct {
	devices    map[string]model.AuditDeviceOptions
	enableErr  error
	disableErr error
	listErr    error
	disabled   []string
}

func newMockAuditManager() *MockAuditManager {
	return &MockAuditManager{devices: map[string]model.AuditDeviceOptions{}}
}

func (m *MockAuditManager) EnableAudit(ctx context.Context, path string, opts model.AuditDeviceOptions) error {
	if m.enableErr != nil {
		return m.enableErr
	}
	m.devices[path] = opts
	return nil
}

func (m *MockAuditManager) DisableAudit(ctx context.Context, path string) error {
	m.disabled = append(m.disabled, path)
	if m.disableErr != nil {
		return m.disableErr
	}
	delete(m.devices, path)
	return nil
}

func (m *MockAuditManager) ListAudit(ctx context.Context) ([]string, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	var paths []string
	for p := range m.devices {
		paths = append(paths, p+"/")
	}
	return paths, nil
}

// MockTokenAuth counts renewals and logins
type MockTokenAuth struct {
	renewFunc func(ctx context.Context, increment time.Duration) error
	loginFunc func(ctx context.Context, roleID, secretID string) error

	renewCalls []time.Duration
	loginCalls int
}

func (m *MockTokenAuth) RenewSelf(ctx context.Context, increment time.Duration) error {
	m.renewCalls = append(m.renewCalls, increment)
	if m.renewFunc != nil {
		return m.renewFunc(ctx, increment)
	}
	return nil
}

func (m *MockTokenAuth) LoginAppRole(ctx context.Context, roleID, secretID string) error {
	m.loginCalls++
	if m.loginFunc != nil {
		return m.loginFunc(ctx, roleID, secretID)
	}
	return nil
}
