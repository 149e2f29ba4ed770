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

	"agentlink/link/base"
)

// Store is the optional persistence boundary for the registry. Configs
// are handed to the store exactly as held in memory - encrypted, with
// the encrypted marker set - so the at-rest contract survives any
// storage backend.
type Store interface {
	SaveAgent(ctx context.Context, agent *StoredAgent) error
	DeleteAgent(ctx context.Context, agentID string) error
	ListAgents(ctx context.Context) ([]*StoredAgent, error)
}

// StoredAgent is the persisted shape of one agent's registry state.
type StoredAgent struct {
	Record   *AgentRecord      `json:"record"`
	Creds    *CredentialHashes `json:"credentials,omitempty"`
	Active   base.Config       `json:"active_config,omitempty"`
	Pending  base.Config       `json:"pending_config,omitempty"`
	Rotation *RotationState    `json:"rotation,omitempty"`
}

// newStoredAgent snapshots an entry for persistence. Caller must hold at
// least a read lock.
func newStoredAgent(e *agentEntry) *StoredAgent {
	return &StoredAgent{
		Record:   e.snapshotRecord(),
		Creds:    e.creds,
		Active:   e.active.Clone(),
		Pending:  e.pending.Clone(),
		Rotation: e.rotation,
	}
}

// toEntry rebuilds the in-memory entry from its persisted form.
func (sa *StoredAgent) toEntry() *agentEntry {
	return &agentEntry{
		record:   sa.Record,
		creds:    sa.Creds,
		active:   sa.Active,
		pending:  sa.Pending,
		rotation: sa.Rotation,
	}
}
