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

package registry

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentlink/link/base"
)

func rotatedConfig(password string) base.Config {
	cfg := testDBConfig()
	cfg["user"] = "new"
	cfg["password"] = password
	return cfg
}

// snapshotActive returns the serialized active config for byte-level
// comparison across operations.
func snapshotActive(t *testing.T, r *Registry, agentID string) []byte {
	t.Helper()
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.agents[agentID]
	require.True(t, ok)
	raw, err := json.Marshal(entry.active)
	require.NoError(t, err)
	return raw
}

func TestRotateStagesCredentials(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	receipt, err := r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), true)
	require.NoError(t, err)
	assert.Equal(t, RotationStaging, receipt.Status)
	assert.False(t, receipt.StagedAt.IsZero())

	state, ok := r.GetRotationState("a1")
	require.True(t, ok)
	require.NotNil(t, state)
	assert.Equal(t, RotationStaging, state.Status)
	assert.NotEmpty(t, state.RotationID)
	assert.True(t, state.Prevalidated)
	assert.NotEmpty(t, state.OldConfigHash)
	assert.NotEmpty(t, state.NewConfigHash)
	// Hashes exclude secrets, and these configs differ only in user.
	assert.NotEqual(t, state.OldConfigHash, state.NewConfigHash)
}

func TestRotateZeroDowntime(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	before := snapshotActive(t, r, "a1")

	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), true)
	require.NoError(t, err)

	// During staging the active config is byte-for-byte unchanged.
	after := snapshotActive(t, r, "a1")
	assert.Equal(t, before, after)
}

func TestRotateValidationFailureLeavesStateUntouched(t *testing.T) {
	r, fleet := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	fleet.failConnect["newpass"] = errors.New("authentication failed")

	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), true)
	assert.ErrorIs(t, err, ErrValidationFailed)

	// No pending config was staged.
	state, ok := r.GetRotationState("a1")
	assert.True(t, ok)
	assert.Nil(t, state)

	// Connectors keep using the old credentials.
	conn, err := r.GetDatabaseConnector(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "p", conn.(*fakeConnector).password())
}

func TestRotateTypeMismatch(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	mysqlCfg := base.Config{
		"type":     "mysql",
		"host":     "localhost",
		"user":     "u",
		"database": "d",
		"password": "p",
	}
	_, err = r.RotateDatabaseCredentials(ctx, "a1", mysqlCfg, false)
	assert.ErrorIs(t, err, ErrTypeMismatch)
}

func TestRotateRejectsKindChangedDuringValidation(t *testing.T) {
	r, fleet := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	mysqlCfg := base.Config{
		"type":     "mysql",
		"host":     "localhost",
		"user":     "u",
		"database": "d",
		"password": "p2",
	}

	// Replace the whole link while the rotation's validation probe is
	// connecting, after the kind was already checked against postgresql.
	fleet.onConnect = func(password string) {
		if password == "newpass" {
			require.NoError(t, r.UpdateAgentDatabase(ctx, "a1", mysqlCfg))
		}
	}

	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), true)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	// The replacement stands and nothing postgresql-shaped was staged.
	state, ok := r.GetRotationState("a1")
	require.True(t, ok)
	assert.Nil(t, state)

	conn, err := r.GetDatabaseConnector(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, base.KindMySQL, conn.Kind())
	assert.Equal(t, "p2", conn.(*fakeConnector).password())
}

func TestActivateRejectsRotationRestagedDuringValidation(t *testing.T) {
	r, fleet := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), true)
	require.NoError(t, err)

	// Stage a different rotation while the activation's connection test
	// is running against the first one.
	fleet.onConnect = func(password string) {
		if password == "newpass" {
			_, err := r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("otherpass"), false)
			require.NoError(t, err)
		}
	}

	_, err = r.ActivateRotatedCredentials(ctx, "a1")
	assert.ErrorIs(t, err, ErrActivationFailed)

	// The interleaved rotation is still staged, untouched by the failed
	// activation, and its own activation promotes it normally.
	state, ok := r.GetRotationState("a1")
	require.True(t, ok)
	require.NotNil(t, state)
	assert.Equal(t, RotationStaging, state.Status)

	activated, err := r.ActivateRotatedCredentials(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, RotationActive, activated.Status)

	conn, err := r.GetDatabaseConnector(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "otherpass", conn.(*fakeConnector).password())
}

func TestRotateWithoutLink(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, nil, nil)
	require.NoError(t, err)

	_, err = r.RotateDatabaseCredentials(ctx, "a1", testDBConfig(), false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.RotateDatabaseCredentials(ctx, "ghost", testDBConfig(), false)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStagedCredentialsPreferredWhenLive(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), true)
	require.NoError(t, err)

	// During staging a working pending config wins.
	conn, err := r.GetDatabaseConnector(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "newpass", conn.(*fakeConnector).password())
}

func TestStagedCredentialsFallBackToActive(t *testing.T) {
	r, fleet := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	// Stage without prevalidation, then have the staged set go dark.
	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), false)
	require.NoError(t, err)
	fleet.failConnect["newpass"] = errors.New("authentication failed")

	conn, err := r.GetDatabaseConnector(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "p", conn.(*fakeConnector).password())
}

func TestActivateRotatedCredentials(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), true)
	require.NoError(t, err)

	state, err := r.ActivateRotatedCredentials(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, RotationActive, state.Status)
	require.NotNil(t, state.ActivatedAt)

	// The staged config is now the single authoritative one.
	conn, err := r.GetDatabaseConnector(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "newpass", conn.(*fakeConnector).password())

	_, err = r.ActivateRotatedCredentials(ctx, "a1")
	assert.ErrorIs(t, err, ErrNoStagedCredentials)
}

func TestActivateFailureLeavesStagedIntact(t *testing.T) {
	r, fleet := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), false)
	require.NoError(t, err)

	fleet.failConnect["newpass"] = errors.New("authentication failed")

	_, err = r.ActivateRotatedCredentials(ctx, "a1")
	assert.ErrorIs(t, err, ErrActivationFailed)

	// Still staging; a retry can succeed once the credentials work.
	state, ok := r.GetRotationState("a1")
	require.True(t, ok)
	require.NotNil(t, state)
	assert.Equal(t, RotationStaging, state.Status)

	delete(fleet.failConnect, "newpass")
	activated, err := r.ActivateRotatedCredentials(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, RotationActive, activated.Status)
}

func TestRollbackCredentialRotation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	before := snapshotActive(t, r, "a1")

	_, err = r.RotateDatabaseCredentials(ctx, "a1", rotatedConfig("newpass"), true)
	require.NoError(t, err)

	state, err := r.RollbackCredentialRotation(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, RotationRolledBack, state.Status)
	require.NotNil(t, state.RolledBackAt)

	// Active config untouched, no pending config remains.
	assert.Equal(t, before, snapshotActive(t, r, "a1"))
	conn, err := r.GetDatabaseConnector(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "p", conn.(*fakeConnector).password())

	_, err = r.RollbackCredentialRotation(ctx, "a1")
	assert.ErrorIs(t, err, ErrNoStagedCredentials)
}

func TestRollbackWithoutStagedRotation(t *testing.T) {
	r, _ := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.RegisterAgent(ctx, "a1", nil, testCreds(), testDBConfig())
	require.NoError(t, err)

	_, err = r.RollbackCredentialRotation(ctx, "a1")
	assert.ErrorIs(t, err, ErrNoStagedCredentials)

	_, err = r.RollbackCredentialRotation(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfigHashExcludesSecrets(t *testing.T) {
	a := base.Config{"type": "postgresql", "host": "h", "password": "one"}
	b := base.Config{"type": "postgresql", "host": "h", "password": "two"}
	c := base.Config{"type": "postgresql", "host": "other", "password": "one"}

	assert.Equal(t, configHash(a), configHash(b))
	assert.NotEqual(t, configHash(a), configHash(c))
}
