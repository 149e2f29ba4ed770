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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentlink/link/base"
	"agentlink/registry"
	"agentlink/secrets"
)

// fixedQuota is a Manager with one limit for every tenant.
type fixedQuota struct {
	limit int
}

func (q fixedQuota) AgentLimit(_ context.Context, _ string) (int, error) {
	return q.limit, nil
}

// nilConnector satisfies base.Connector for registrations without I/O.
type nilConnector struct {
	cfg *base.LinkConfig
}

func (n *nilConnector) Connect(context.Context) error    { return nil }
func (n *nilConnector) Disconnect(context.Context) error { return nil }
func (n *nilConnector) ExecuteQuery(context.Context, string, bool) (*base.QueryResult, error) {
	return &base.QueryResult{}, nil
}
func (n *nilConnector) DatabaseInfo(context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{}, nil
}
func (n *nilConnector) Name() string    { return n.cfg.Name }
func (n *nilConnector) Kind() base.Kind { return n.cfg.Kind }

func newTestTenantRegistry(t *testing.T, manager Manager, index KeyIndex) *Registry {
	t.Helper()
	cipher, err := secrets.NewCipher("tenant-test-key")
	require.NoError(t, err)

	tr := NewRegistry(cipher, manager, index)
	return tr
}

func dbConfig() base.Config {
	return base.Config{
		"type":     "postgresql",
		"host":     "localhost",
		"user":     "u",
		"database": "d",
		"password": "p",
	}
}

func creds() *registry.Credentials {
	return &registry.Credentials{APIKey: "k", APISecret: "s"}
}

// registerStubbed registers an agent with the tenant's connector builder
// replaced by a no-I/O stub.
func registerStubbed(t *testing.T, tr *Registry, tenantID, agentID string) *registry.Registration {
	t.Helper()
	ctx := context.Background()

	// Force creation of the tenant registry, then stub its builder.
	tr.forTenant(tenantID).SetBuilder(func(cfg *base.LinkConfig) (base.Connector, error) {
		return &nilConnector{cfg: cfg}, nil
	})

	reg, err := tr.RegisterAgent(ctx, tenantID, agentID, nil, creds(), dbConfig())
	require.NoError(t, err)
	return reg
}

func TestTenantIsolation(t *testing.T) {
	tr := newTestTenantRegistry(t, nil, nil)
	ctx := context.Background()

	registerStubbed(t, tr, "acme", "a1")
	registerStubbed(t, tr, "globex", "a1") // same agent ID, different tenant

	assert.Equal(t, 1, tr.AgentCount("acme"))
	assert.Equal(t, 1, tr.AgentCount("globex"))
	assert.ElementsMatch(t, []string{"acme", "globex"}, tr.Tenants())

	_, ok := tr.GetAgent("acme", "a1")
	assert.True(t, ok)
	_, ok = tr.GetAgent("acme", "a2")
	assert.False(t, ok)

	conn, err := tr.GetDatabaseConnector(ctx, "acme", "a1")
	require.NoError(t, err)
	assert.NotNil(t, conn)
}

func TestTenantRegistryRequiresTenantID(t *testing.T) {
	tr := newTestTenantRegistry(t, nil, nil)

	_, err := tr.RegisterAgent(context.Background(), "", "a1", nil, creds(), nil)
	require.Error(t, err)

	var cfgErr *base.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "tenant_id", cfgErr.Field)
}

func TestTenantQuota(t *testing.T) {
	tr := newTestTenantRegistry(t, fixedQuota{limit: 2}, nil)
	ctx := context.Background()

	registerStubbed(t, tr, "acme", "a1")
	registerStubbed(t, tr, "acme", "a2")

	_, err := tr.RegisterAgent(ctx, "acme", "a3", nil, creds(), dbConfig())
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Another tenant gets its own quota.
	registerStubbed(t, tr, "globex", "a1")
}

func TestCrossTenantAuthentication(t *testing.T) {
	tr := newTestTenantRegistry(t, nil, nil)
	ctx := context.Background()

	regA := registerStubbed(t, tr, "acme", "a1")
	regB := registerStubbed(t, tr, "globex", "b1")

	entry, ok := tr.Authenticate(ctx, regA.APIKey)
	require.True(t, ok)
	assert.Equal(t, "acme", entry.TenantID)
	assert.Equal(t, "a1", entry.AgentID)

	entry, ok = tr.Authenticate(ctx, regB.APIKey)
	require.True(t, ok)
	assert.Equal(t, "globex", entry.TenantID)

	_, ok = tr.Authenticate(ctx, "agl_unknown")
	assert.False(t, ok)
}

func TestTenantRotationLifecycle(t *testing.T) {
	tr := newTestTenantRegistry(t, nil, nil)
	ctx := context.Background()

	registerStubbed(t, tr, "acme", "a1")

	rotated := dbConfig()
	rotated["password"] = "newpass"

	receipt, err := tr.RotateDatabaseCredentials(ctx, "acme", "a1", rotated, true)
	require.NoError(t, err)
	assert.Equal(t, registry.RotationStaging, receipt.Status)

	state, err := tr.ActivateRotatedCredentials(ctx, "acme", "a1")
	require.NoError(t, err)
	assert.Equal(t, registry.RotationActive, state.Status)

	// Unknown tenants are a NotFound on every passthrough.
	_, err = tr.RotateDatabaseCredentials(ctx, "ghost", "a1", rotated, true)
	assert.ErrorIs(t, err, registry.ErrNotFound)
	_, err = tr.RollbackCredentialRotation(ctx, "ghost", "a1")
	assert.ErrorIs(t, err, registry.ErrNotFound)
	assert.ErrorIs(t, tr.UpdateAgentDatabase(ctx, "ghost", "a1", rotated), registry.ErrNotFound)
}

func TestRevokeAgentRemovesIndexEntry(t *testing.T) {
	tr := newTestTenantRegistry(t, nil, nil)
	ctx := context.Background()

	reg := registerStubbed(t, tr, "acme", "a1")

	assert.True(t, tr.RevokeAgent(ctx, "acme", "a1"))
	assert.False(t, tr.RevokeAgent(ctx, "acme", "a1"))
	assert.False(t, tr.RevokeAgent(ctx, "ghost-tenant", "a1"))

	_, ok := tr.Authenticate(ctx, reg.APIKey)
	assert.False(t, ok)
	assert.Equal(t, 0, tr.AgentCount("acme"))
}

func TestMemoryIndex(t *testing.T) {
	idx := NewMemoryIndex()
	ctx := context.Background()

	_, err := idx.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, idx.Put(ctx, "hash1", KeyEntry{TenantID: "acme", AgentID: "a1"}))

	entry, err := idx.Lookup(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, "acme", entry.TenantID)
	assert.Equal(t, "a1", entry.AgentID)

	require.NoError(t, idx.Delete(ctx, "hash1"))
	_, err = idx.Lookup(ctx, "hash1")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// Deleting an absent key is a no-op.
	assert.NoError(t, idx.Delete(ctx, "hash1"))
}
