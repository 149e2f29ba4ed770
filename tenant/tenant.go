// Copyright 2026 AgentLink
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tenant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"agentlink/link/base"
	"agentlink/registry"
	"agentlink/secrets"
	"agentlink/shared/logger"
)

var (
	// ErrQuotaExceeded is returned when a tenant has reached its agent limit.
	ErrQuotaExceeded = errors.New("tenant agent quota exceeded")

	// ErrUnknownTenant is returned when the Manager rejects the tenant ID.
	ErrUnknownTenant = errors.New("unknown tenant")
)

// Manager is the external collaborator that owns tenant accounts and
// their limits. Implementations live outside this module.
type Manager interface {
	// AgentLimit returns the maximum number of agents the tenant may
	// register. A limit of 0 means unlimited. Unknown tenants return
	// an error wrapping ErrUnknownTenant.
	AgentLimit(ctx context.Context, tenantID string) (int, error)
}

// Registry fans agent operations out to one registry.Registry per
// tenant and maintains a global API-key index so a key issued for any
// tenant can be resolved without knowing the tenant in advance.
type Registry struct {
	mu      sync.RWMutex
	tenants map[string]*registry.Registry

	cipher  *secrets.Cipher
	manager Manager
	index   KeyIndex
	logger  *logger.Logger
}

// NewRegistry creates a tenant registry. A nil index falls back to an
// in-memory one, which is only suitable for single-process deployments.
func NewRegistry(cipher *secrets.Cipher, manager Manager, index KeyIndex) *Registry {
	if index == nil {
		index = NewMemoryIndex()
	}
	return &Registry{
		tenants: make(map[string]*registry.Registry),
		cipher:  cipher,
		manager: manager,
		index:   index,
		logger:  logger.New("tenant-registry"),
	}
}

// forTenant returns the tenant's registry, creating it on first use.
func (t *Registry) forTenant(tenantID string) *registry.Registry {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if ok {
		return reg
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if reg, ok = t.tenants[tenantID]; ok {
		return reg
	}
	reg = registry.New(t.cipher)
	t.tenants[tenantID] = reg
	t.logger.Info(tenantID, "", "created agent registry for tenant", nil)
	return reg
}

// RegisterAgent registers an agent under a tenant, enforcing the
// tenant's quota first, and adds the issued API key to the global index.
func (t *Registry) RegisterAgent(ctx context.Context, tenantID, agentID string, info map[string]interface{}, creds *registry.Credentials, dbConfig base.Config) (*registry.Registration, error) {
	if tenantID == "" {
		return nil, &base.ConfigError{Field: "tenant_id", Reason: "must not be empty"}
	}

	reg := t.forTenant(tenantID)

	if t.manager != nil {
		limit, err := t.manager.AgentLimit(ctx, tenantID)
		if err != nil {
			return nil, fmt.Errorf("tenant %s: %w", tenantID, err)
		}
		if limit > 0 && reg.Count() >= limit {
			return nil, fmt.Errorf("tenant %s has %d of %d agents: %w", tenantID, reg.Count(), limit, ErrQuotaExceeded)
		}
	}

	registration, err := reg.RegisterAgent(ctx, agentID, info, creds, dbConfig)
	if err != nil {
		return nil, err
	}

	// Index failures don't undo the registration; the per-tenant
	// registry can still authenticate the key locally.
	hash := registry.HashAPIKey(registration.APIKey)
	if err := t.index.Put(ctx, hash, KeyEntry{TenantID: tenantID, AgentID: agentID}); err != nil {
		t.logger.ErrorWithCause(tenantID, agentID, "failed to index api key", err, nil)
	}

	return registration, nil
}

// Authenticate resolves an API key to its tenant and agent via the
// global index, then confirms it against the tenant's own registry.
func (t *Registry) Authenticate(ctx context.Context, apiKey string) (KeyEntry, bool) {
	entry, err := t.index.Lookup(ctx, registry.HashAPIKey(apiKey))
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			t.logger.ErrorWithCause("", "", "api key lookup failed", err, nil)
		}
		return KeyEntry{}, false
	}

	t.mu.RLock()
	reg, ok := t.tenants[entry.TenantID]
	t.mu.RUnlock()
	if !ok {
		return KeyEntry{}, false
	}

	agentID, ok := reg.AuthenticateAgent(apiKey)
	if !ok || agentID != entry.AgentID {
		return KeyEntry{}, false
	}
	return entry, true
}

// GetAgent returns a tenant's agent record.
func (t *Registry) GetAgent(tenantID, agentID string) (*registry.AgentRecord, bool) {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return reg.GetAgent(agentID)
}

// GetDatabaseConnector builds a connector for a tenant's agent.
func (t *Registry) GetDatabaseConnector(ctx context.Context, tenantID, agentID string) (base.Connector, error) {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if !ok {
		return nil, registry.ErrNotFound
	}
	return reg.GetDatabaseConnector(ctx, agentID)
}

// UpdateAgentDatabase replaces a tenant agent's database link outright.
func (t *Registry) UpdateAgentDatabase(ctx context.Context, tenantID, agentID string, dbConfig base.Config) error {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if !ok {
		return registry.ErrNotFound
	}
	return reg.UpdateAgentDatabase(ctx, agentID, dbConfig)
}

// RotateDatabaseCredentials stages new credentials for a tenant's agent.
func (t *Registry) RotateDatabaseCredentials(ctx context.Context, tenantID, agentID string, newConfig base.Config, validateBeforeActivate bool) (*registry.RotationReceipt, error) {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if !ok {
		return nil, registry.ErrNotFound
	}
	return reg.RotateDatabaseCredentials(ctx, agentID, newConfig, validateBeforeActivate)
}

// ActivateRotatedCredentials promotes a tenant agent's staged credentials.
func (t *Registry) ActivateRotatedCredentials(ctx context.Context, tenantID, agentID string) (*registry.RotationState, error) {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if !ok {
		return nil, registry.ErrNotFound
	}
	return reg.ActivateRotatedCredentials(ctx, agentID)
}

// RollbackCredentialRotation discards a tenant agent's staged credentials.
func (t *Registry) RollbackCredentialRotation(ctx context.Context, tenantID, agentID string) (*registry.RotationState, error) {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if !ok {
		return nil, registry.ErrNotFound
	}
	return reg.RollbackCredentialRotation(ctx, agentID)
}

// RevokeAgent revokes a tenant's agent and drops its index entries.
func (t *Registry) RevokeAgent(ctx context.Context, tenantID, agentID string) bool {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if !ok {
		return false
	}

	record, found := reg.GetAgent(agentID)
	revoked := reg.RevokeAgent(ctx, agentID)
	if revoked && found && record.APIKeyHash != "" {
		if err := t.index.Delete(ctx, record.APIKeyHash); err != nil {
			t.logger.ErrorWithCause(tenantID, agentID, "failed to remove api key index entry", err, nil)
		}
	}
	return revoked
}

// Tenants lists the tenant IDs that currently hold agents.
func (t *Registry) Tenants() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.tenants))
	for id := range t.tenants {
		ids = append(ids, id)
	}
	return ids
}

// AgentCount returns the number of registered agents for a tenant.
func (t *Registry) AgentCount(tenantID string) int {
	t.mu.RLock()
	reg, ok := t.tenants[tenantID]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	return reg.Count()
}
