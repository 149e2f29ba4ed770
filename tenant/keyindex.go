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
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrKeyNotFound is returned by KeyIndex lookups for unknown API keys.
var ErrKeyNotFound = errors.New("api key not found")

// KeyEntry maps a hashed API key back to its owner.
type KeyEntry struct {
	TenantID string `json:"tenant_id"`
	AgentID  string `json:"agent_id"`
}

// KeyIndex is the global API-key index shared across tenants. Keys are
// always indexed by their SHA-256 digest, never by the raw value.
type KeyIndex interface {
	Put(ctx context.Context, keyHash string, entry KeyEntry) error
	Lookup(ctx context.Context, keyHash string) (KeyEntry, error)
	Delete(ctx context.Context, keyHash string) error
}

// MemoryIndex is the default single-process KeyIndex.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]KeyEntry
}

// NewMemoryIndex creates an empty in-memory index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]KeyEntry)}
}

// Put stores or replaces an index entry.
func (m *MemoryIndex) Put(_ context.Context, keyHash string, entry KeyEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[keyHash] = entry
	return nil
}

// Lookup resolves a hashed API key to its owner.
func (m *MemoryIndex) Lookup(_ context.Context, keyHash string) (KeyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[keyHash]
	if !ok {
		return KeyEntry{}, ErrKeyNotFound
	}
	return entry, nil
}

// Delete removes an index entry. Deleting an absent key is not an error.
func (m *MemoryIndex) Delete(_ context.Context, keyHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, keyHash)
	return nil
}

// RedisIndex is a Redis-backed KeyIndex for multi-worker deployments,
// where every worker must resolve API keys issued by any other worker.
type RedisIndex struct {
	client *redis.Client
}

// NewRedisIndex connects to Redis and verifies the connection.
// The URL format is redis://host:port or redis://host:port/db.
func NewRedisIndex(redisURL string) (*RedisIndex, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisIndex{client: client}, nil
}

func (r *RedisIndex) redisKey(keyHash string) string {
	return "agentlink:apikey:" + keyHash
}

// Put stores an index entry as a Redis hash.
func (r *RedisIndex) Put(ctx context.Context, keyHash string, entry KeyEntry) error {
	key := r.redisKey(keyHash)
	if err := r.client.HSet(ctx, key, "tenant_id", entry.TenantID, "agent_id", entry.AgentID).Err(); err != nil {
		return fmt.Errorf("failed to index api key: %w", err)
	}
	return nil
}

// Lookup resolves a hashed API key to its owner.
func (r *RedisIndex) Lookup(ctx context.Context, keyHash string) (KeyEntry, error) {
	fields, err := r.client.HGetAll(ctx, r.redisKey(keyHash)).Result()
	if err != nil {
		return KeyEntry{}, fmt.Errorf("failed to look up api key: %w", err)
	}
	if len(fields) == 0 {
		return KeyEntry{}, ErrKeyNotFound
	}
	return KeyEntry{TenantID: fields["tenant_id"], AgentID: fields["agent_id"]}, nil
}

// Delete removes an index entry.
func (r *RedisIndex) Delete(ctx context.Context, keyHash string) error {
	if err := r.client.Del(ctx, r.redisKey(keyHash)).Err(); err != nil {
		return fmt.Errorf("failed to delete api key entry: %w", err)
	}
	return nil
}

// Close releases the Redis connection.
func (r *RedisIndex) Close() error {
	return r.client.Close()
}
