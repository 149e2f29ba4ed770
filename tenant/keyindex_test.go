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
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisIndex(t *testing.T) (*RedisIndex, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	idx, err := NewRedisIndex(fmt.Sprintf("redis://%s", mr.Addr()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	return idx, mr
}

func TestNewRedisIndexInvalidURL(t *testing.T) {
	_, err := NewRedisIndex("not-a-redis-url")
	assert.Error(t, err)
}

func TestNewRedisIndexUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisIndex(fmt.Sprintf("redis://%s", addr))
	assert.Error(t, err)
}

func TestRedisIndexRoundTrip(t *testing.T) {
	idx, _ := newTestRedisIndex(t)
	ctx := context.Background()

	_, err := idx.Lookup(ctx, "missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, idx.Put(ctx, "hash1", KeyEntry{TenantID: "acme", AgentID: "a1"}))

	entry, err := idx.Lookup(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, "acme", entry.TenantID)
	assert.Equal(t, "a1", entry.AgentID)

	// Put replaces an existing entry.
	require.NoError(t, idx.Put(ctx, "hash1", KeyEntry{TenantID: "acme", AgentID: "a2"}))
	entry, err = idx.Lookup(ctx, "hash1")
	require.NoError(t, err)
	assert.Equal(t, "a2", entry.AgentID)

	require.NoError(t, idx.Delete(ctx, "hash1"))
	_, err = idx.Lookup(ctx, "hash1")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestRedisIndexKeyNamespace(t *testing.T) {
	idx, mr := newTestRedisIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Put(ctx, "abc123", KeyEntry{TenantID: "acme", AgentID: "a1"}))

	// Entries live under the agentlink:apikey: prefix so the index can
	// coexist with other users of the same Redis.
	assert.True(t, mr.Exists("agentlink:apikey:abc123"))
}

func TestRedisIndexLookupAfterServerError(t *testing.T) {
	idx, mr := newTestRedisIndex(t)
	ctx := context.Background()

	mr.Close()

	_, err := idx.Lookup(ctx, "hash1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrKeyNotFound)
}
