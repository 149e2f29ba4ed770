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
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"agentlink/tenant"
)

func TestCipherFromEnvironmentKey(t *testing.T) {
	t.Setenv("AGENTLINK_MASTER_KEY", "assemble-test-master-key")

	cfg := &ServiceConfig{}
	cipher, err := cfg.Cipher(context.Background())
	if err != nil {
		t.Fatalf("Cipher failed: %v", err)
	}
	if cipher.Ephemeral() {
		t.Error("expected cipher backed by the environment key, got ephemeral")
	}
}

func TestCipherEphemeralFallback(t *testing.T) {
	t.Setenv("AGENTLINK_MASTER_KEY", "")
	t.Setenv("AGENTLINK_MASTER_KEY_ARN", "")

	cfg := &ServiceConfig{}
	cipher, err := cfg.Cipher(context.Background())
	if err != nil {
		t.Fatalf("Cipher failed: %v", err)
	}
	if !cipher.Ephemeral() {
		t.Error("expected ephemeral cipher with no key configured")
	}
}

func TestStoreDisabledWithoutURL(t *testing.T) {
	cfg := &ServiceConfig{}
	store, err := cfg.Store(context.Background())
	if err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if store != nil {
		t.Error("expected nil store when database_url is unset")
	}
}

func TestKeyIndexSelection(t *testing.T) {
	cfg := &ServiceConfig{}
	index, err := cfg.KeyIndex()
	if err != nil {
		t.Fatalf("KeyIndex failed: %v", err)
	}
	if _, ok := index.(*tenant.MemoryIndex); !ok {
		t.Errorf("expected in-memory index without redis_url, got %T", index)
	}

	mr := miniredis.RunT(t)
	cfg = &ServiceConfig{RedisURL: fmt.Sprintf("redis://%s", mr.Addr())}
	index, err = cfg.KeyIndex()
	if err != nil {
		t.Fatalf("KeyIndex failed: %v", err)
	}
	if _, ok := index.(*tenant.RedisIndex); !ok {
		t.Errorf("expected Redis index, got %T", index)
	}

	cfg = &ServiceConfig{RedisURL: "://not-a-url"}
	if _, err := cfg.KeyIndex(); err == nil {
		t.Error("expected error for malformed redis URL")
	}
}

func TestQuotaManager(t *testing.T) {
	cfg := &ServiceConfig{}
	if mgr := cfg.QuotaManager(); mgr != nil {
		t.Errorf("expected nil manager when no quota is configured, got %T", mgr)
	}

	cfg = &ServiceConfig{MaxAgentsPerTenant: 3}
	mgr := cfg.QuotaManager()
	if mgr == nil {
		t.Fatal("expected a manager for a positive quota")
	}
	limit, err := mgr.AgentLimit(context.Background(), "acme")
	if err != nil {
		t.Fatalf("AgentLimit failed: %v", err)
	}
	if limit != 3 {
		t.Errorf("expected limit 3, got %d", limit)
	}
}

func TestBuildRegistry(t *testing.T) {
	t.Setenv("AGENTLINK_MASTER_KEY", "assemble-test-master-key")

	cfg := &ServiceConfig{ProbeTimeout: time.Second}
	r, err := cfg.BuildRegistry(context.Background())
	if err != nil {
		t.Fatalf("BuildRegistry failed: %v", err)
	}

	reg, err := r.RegisterAgent(context.Background(), "a1", nil, nil, nil)
	if err != nil {
		t.Fatalf("RegisterAgent failed: %v", err)
	}
	if !strings.HasPrefix(reg.APIKey, "agl_") {
		t.Errorf("unexpected API key %q", reg.APIKey)
	}
}

func TestBuildRegistryRejectsInvalidConfig(t *testing.T) {
	cfg := &ServiceConfig{ProbeTimeout: -time.Second}
	if _, err := cfg.BuildRegistry(context.Background()); err == nil {
		t.Error("expected validation error for negative probe timeout")
	}
}

func TestBuildTenantRegistryEnforcesQuota(t *testing.T) {
	t.Setenv("AGENTLINK_MASTER_KEY", "assemble-test-master-key")

	cfg := &ServiceConfig{MaxAgentsPerTenant: 1}
	tr, err := cfg.BuildTenantRegistry(context.Background())
	if err != nil {
		t.Fatalf("BuildTenantRegistry failed: %v", err)
	}

	ctx := context.Background()
	if _, err := tr.RegisterAgent(ctx, "acme", "a1", nil, nil, nil); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	_, err = tr.RegisterAgent(ctx, "acme", "a2", nil, nil, nil)
	if !errors.Is(err, tenant.ErrQuotaExceeded) {
		t.Errorf("expected quota error for second agent, got %v", err)
	}
}
