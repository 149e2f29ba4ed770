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

package config

import (
	"context"
	"fmt"
	"os"

	"agentlink/registry"
	"agentlink/secrets"
	"agentlink/tenant"
)

// Cipher builds the secret cipher the config describes. A configured
// master_key_arn takes precedence over the process environment; with
// neither, the cipher falls back to an ephemeral key.
func (c *ServiceConfig) Cipher(ctx context.Context) (*secrets.Cipher, error) {
	if c.MasterKeyARN != "" {
		key, err := secrets.MasterKeyFromSecretsManager(ctx, c.MasterKeyARN, os.Getenv("AGENTLINK_AWS_REGION"))
		if err != nil {
			return nil, fmt.Errorf("failed to load master key from Secrets Manager: %w", err)
		}
		return secrets.NewCipher(key)
	}
	return secrets.NewCipherFromEnvironment(ctx)
}

// Store opens the PostgreSQL persistence layer when database_url is set.
// Returns nil with no error when persistence is not configured.
func (c *ServiceConfig) Store(ctx context.Context) (*registry.PostgresStore, error) {
	if c.DatabaseURL == "" {
		return nil, nil
	}
	return registry.NewPostgresStore(c.DatabaseURL)
}

// KeyIndex returns the shared API-key index: Redis when redis_url is
// set, otherwise a process-local in-memory index.
func (c *ServiceConfig) KeyIndex() (tenant.KeyIndex, error) {
	if c.RedisURL == "" {
		return tenant.NewMemoryIndex(), nil
	}
	return tenant.NewRedisIndex(c.RedisURL)
}

// staticQuota applies the configured per-tenant agent limit uniformly.
type staticQuota struct {
	limit int
}

func (q staticQuota) AgentLimit(context.Context, string) (int, error) {
	return q.limit, nil
}

// QuotaManager returns the tenant manager enforcing
// max_agents_per_tenant, or nil when no quota is configured.
func (c *ServiceConfig) QuotaManager() tenant.Manager {
	if c.MaxAgentsPerTenant <= 0 {
		return nil
	}
	return staticQuota{limit: c.MaxAgentsPerTenant}
}

// BuildRegistry assembles a standalone agent registry from the config:
// the cipher, PostgreSQL persistence when configured, and the
// service-wide probe deadline cap.
func (c *ServiceConfig) BuildRegistry(ctx context.Context) (*registry.Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cipher, err := c.Cipher(ctx)
	if err != nil {
		return nil, err
	}
	store, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}

	var r *registry.Registry
	if store != nil {
		r, err = registry.NewWithStore(ctx, cipher, store)
		if err != nil {
			return nil, err
		}
	} else {
		r = registry.New(cipher)
	}
	if c.ProbeTimeout > 0 {
		r.SetProbeTimeout(c.ProbeTimeout)
	}
	return r, nil
}

// BuildTenantRegistry assembles the multi-tenant surface: the cipher,
// the shared key index, and the configured per-tenant quota.
func (c *ServiceConfig) BuildTenantRegistry(ctx context.Context) (*tenant.Registry, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	cipher, err := c.Cipher(ctx)
	if err != nil {
		return nil, err
	}
	index, err := c.KeyIndex()
	if err != nil {
		return nil, err
	}
	return tenant.NewRegistry(cipher, c.QuotaManager(), index), nil
}
