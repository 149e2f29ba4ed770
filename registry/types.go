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
	"time"

	"agentlink/link/base"
)

// AgentRecord is the identity and metadata for one registered agent.
// The raw API key is never stored, only its hash.
type AgentRecord struct {
	AgentID      string                 `json:"agent_id"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
	APIKeyHash   string                 `json:"api_key_hash"`
	RegisteredAt time.Time              `json:"registered_at"`
	Database     *base.Summary          `json:"database,omitempty"`
}

// Credentials is the admin-supplied API key/secret pair proving the
// caller may register on behalf of the agent. Both fields are required
// whenever a database is being linked.
type Credentials struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// CredentialHashes is what the registry keeps of Credentials: one-way
// hashes plus the storage timestamp.
type CredentialHashes struct {
	APIKeyHash    string    `json:"api_key_hash"`
	APISecretHash string    `json:"api_secret_hash"`
	StoredAt      time.Time `json:"stored_at"`
}

// RotationStatus is the per-agent rotation phase.
type RotationStatus string

const (
	RotationNone       RotationStatus = "none"
	RotationStaging    RotationStatus = "staging"
	RotationActive     RotationStatus = "active"
	RotationRolledBack RotationStatus = "rolled_back"
)

// RotationState is the rotation bookkeeping for one agent. Config hashes
// exclude secret fields so the audit trail never carries credential
// material.
type RotationState struct {
	RotationID    string         `json:"rotation_id,omitempty"`
	Status        RotationStatus `json:"status"`
	StagedAt      *time.Time     `json:"staged_at,omitempty"`
	ActivatedAt   *time.Time     `json:"activated_at,omitempty"`
	RolledBackAt  *time.Time     `json:"rolled_back_at,omitempty"`
	OldConfigHash string         `json:"old_config_hash,omitempty"`
	NewConfigHash string         `json:"new_config_hash,omitempty"`
	Prevalidated  bool           `json:"prevalidated"`
}

// Registration is returned by RegisterAgent. APIKey is the newly issued
// high-entropy key, returned exactly once.
type Registration struct {
	AgentID           string        `json:"agent_id"`
	APIKey            string        `json:"api_key"`
	Database          *base.Summary `json:"database,omitempty"`
	CredentialsStored bool          `json:"credentials_stored"`
	RegisteredAt      time.Time     `json:"registered_at"`
}

// RotationReceipt is returned by RotateDatabaseCredentials.
type RotationReceipt struct {
	Status   RotationStatus `json:"status"`
	StagedAt time.Time      `json:"staged_at"`
}

// agentEntry is the registry's internal per-agent state: the record, the
// credential hashes, the authoritative encrypted config, the optional
// staged config, and the rotation bookkeeping.
type agentEntry struct {
	record   *AgentRecord
	creds    *CredentialHashes
	active   base.Config // encrypted at rest
	pending  base.Config // encrypted at rest, at most one
	rotation *RotationState
}

// snapshotRecord returns a defensive copy of the record safe to hand out.
func (e *agentEntry) snapshotRecord() *AgentRecord {
	rec := *e.record
	if e.record.Metadata != nil {
		rec.Metadata = make(map[string]interface{}, len(e.record.Metadata))
		for k, v := range e.record.Metadata {
			rec.Metadata[k] = v
		}
	}
	if e.record.Database != nil {
		db := *e.record.Database
		rec.Database = &db
	}
	return &rec
}
