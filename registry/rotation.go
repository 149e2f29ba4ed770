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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"agentlink/link/base"
)

// RotateDatabaseCredentials stages new credentials for an agent without
// touching the active config: existing connectors and in-flight
// operations keep working on the old credentials until activation.
// When validateBeforeActivate is set, the new config must pass a full
// connection test first; any failure leaves the registry unchanged.
// Rotation changes credentials, never the database kind.
func (r *Registry) RotateDatabaseCredentials(ctx context.Context, agentID string, newConfig base.Config, validateBeforeActivate bool) (*RotationReceipt, error) {
	r.mu.RLock()
	entry, ok := r.agents[agentID]
	var active base.Config
	if ok {
		active = entry.active
	}
	r.mu.RUnlock()

	if !ok || active == nil {
		rotationsTotal.WithLabelValues("stage", "not_found").Inc()
		return nil, fmt.Errorf("%w: %s has no database link", ErrNotFound, agentID)
	}

	newKind, err := base.ParseKind(newConfig.String("type"))
	if err != nil {
		rotationsTotal.WithLabelValues("stage", "invalid_config").Inc()
		return nil, err
	}
	activePlain := r.cipher.DecryptDatabaseConfig(active)
	currentKind, err := base.ParseKind(activePlain.String("type"))
	if err != nil {
		return nil, err
	}
	if newKind != currentKind {
		rotationsTotal.WithLabelValues("stage", "type_mismatch").Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrTypeMismatch, currentKind, newKind)
	}

	if validateBeforeActivate {
		report, err := r.TestConnection(ctx, newConfig)
		if err != nil {
			rotationsTotal.WithLabelValues("stage", "invalid_config").Inc()
			return nil, err
		}
		if !report.Connected() {
			rotationsTotal.WithLabelValues("stage", "validation_failed").Inc()
			return nil, fmt.Errorf("%w: %s", ErrValidationFailed, report.FailureReason())
		}
	}

	encrypted, err := r.cipher.EncryptDatabaseConfig(newConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt staged config: %w", err)
	}

	stagedAt := time.Now().UTC()

	r.mu.Lock()
	entry, ok = r.agents[agentID]
	if !ok || entry.active == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s has no database link", ErrNotFound, agentID)
	}
	// The validation probe ran with no lock held, so the active link may
	// have been replaced in the meantime. Re-check the kind against the
	// config actually in place before staging.
	activePlain = r.cipher.DecryptDatabaseConfig(entry.active)
	currentKind, err = base.ParseKind(activePlain.String("type"))
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if newKind != currentKind {
		r.mu.Unlock()
		rotationsTotal.WithLabelValues("stage", "type_mismatch").Inc()
		return nil, fmt.Errorf("%w: %s -> %s", ErrTypeMismatch, currentKind, newKind)
	}
	state := &RotationState{
		RotationID:    uuid.NewString(),
		Status:        RotationStaging,
		StagedAt:      &stagedAt,
		OldConfigHash: configHash(activePlain),
		NewConfigHash: configHash(newConfig),
		Prevalidated:  validateBeforeActivate,
	}
	entry.pending = encrypted
	entry.rotation = state
	r.mu.Unlock()

	r.persist(ctx, entry)
	rotationsTotal.WithLabelValues("stage", "ok").Inc()
	r.logger.Printf("Staged credential rotation for agent %q (rotation=%s, prevalidated=%v)", agentID, state.RotationID, validateBeforeActivate)

	return &RotationReceipt{Status: RotationStaging, StagedAt: stagedAt}, nil
}

// ActivateRotatedCredentials promotes the staged config to active after
// re-validating it with a fresh connection test. On failure the staged
// config is left intact so the caller can retry or roll back; on success
// the swap is atomic and the pending slot is cleared.
func (r *Registry) ActivateRotatedCredentials(ctx context.Context, agentID string) (*RotationState, error) {
	r.mu.RLock()
	entry, ok := r.agents[agentID]
	var pending base.Config
	var stagedID string
	if ok {
		pending = entry.pending
		if entry.rotation != nil {
			stagedID = entry.rotation.RotationID
		}
	}
	r.mu.RUnlock()

	if !ok {
		rotationsTotal.WithLabelValues("activate", "not_found").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}
	if pending == nil {
		rotationsTotal.WithLabelValues("activate", "no_staged").Inc()
		return nil, fmt.Errorf("%w for agent %s", ErrNoStagedCredentials, agentID)
	}

	pendingPlain := r.cipher.DecryptDatabaseConfig(pending)
	report, err := r.TestConnection(ctx, pendingPlain)
	if err != nil {
		rotationsTotal.WithLabelValues("activate", "failed").Inc()
		return nil, fmt.Errorf("%w: %v", ErrActivationFailed, err)
	}
	if !report.Connected() {
		rotationsTotal.WithLabelValues("activate", "failed").Inc()
		return nil, fmt.Errorf("%w: %s", ErrActivationFailed, report.FailureReason())
	}

	kind, err := base.ParseKind(pendingPlain.String("type"))
	if err != nil {
		return nil, err
	}
	summary := base.Summarize(kind, pendingPlain)
	summary.Status = "connected"

	activatedAt := time.Now().UTC()

	r.mu.Lock()
	entry, ok = r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}
	if entry.pending == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w for agent %s", ErrNoStagedCredentials, agentID)
	}
	// The connection test ran with no lock held. Promote the staged
	// config only if it is still the one that was just validated; a
	// rotation staged in the meantime must be re-validated by its own
	// activation call.
	currentID := ""
	if entry.rotation != nil {
		currentID = entry.rotation.RotationID
	}
	if currentID != stagedID {
		r.mu.Unlock()
		rotationsTotal.WithLabelValues("activate", "failed").Inc()
		return nil, fmt.Errorf("%w: staged credentials changed during validation", ErrActivationFailed)
	}
	entry.active = entry.pending
	entry.pending = nil
	if entry.rotation == nil {
		entry.rotation = &RotationState{}
	}
	entry.rotation.Status = RotationActive
	entry.rotation.ActivatedAt = &activatedAt
	entry.record.Database = summary
	state := *entry.rotation
	r.mu.Unlock()

	r.persist(ctx, entry)
	rotationsTotal.WithLabelValues("activate", "ok").Inc()
	r.logger.Printf("Activated rotated credentials for agent %q (rotation=%s)", agentID, state.RotationID)
	return &state, nil
}

// RollbackCredentialRotation discards the staged config without touching
// the active one. No connection test runs - rollback always succeeds for
// a staged rotation.
func (r *Registry) RollbackCredentialRotation(ctx context.Context, agentID string) (*RotationState, error) {
	rolledBackAt := time.Now().UTC()

	r.mu.Lock()
	entry, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		rotationsTotal.WithLabelValues("rollback", "not_found").Inc()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}
	if entry.pending == nil {
		r.mu.Unlock()
		rotationsTotal.WithLabelValues("rollback", "no_staged").Inc()
		return nil, fmt.Errorf("%w for agent %s", ErrNoStagedCredentials, agentID)
	}
	entry.pending = nil
	if entry.rotation == nil {
		entry.rotation = &RotationState{}
	}
	entry.rotation.Status = RotationRolledBack
	entry.rotation.RolledBackAt = &rolledBackAt
	state := *entry.rotation
	r.mu.Unlock()

	r.persist(ctx, entry)
	rotationsTotal.WithLabelValues("rollback", "ok").Inc()
	r.logger.Printf("Rolled back credential rotation for agent %q (rotation=%s)", agentID, state.RotationID)
	return &state, nil
}

// GetRotationState returns a copy of the agent's rotation bookkeeping,
// or nil if no rotation has ever been staged.
func (r *Registry) GetRotationState(agentID string) (*RotationState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	if entry.rotation == nil {
		return nil, true
	}
	state := *entry.rotation
	return &state, true
}

// configHash produces an audit hash of a link configuration with all
// secret fields stripped, so rotation records never embed credential
// material. JSON key order is deterministic.
func configHash(cfg base.Config) string {
	stripped := base.Config{}
	for k, v := range cfg {
		if base.IsSecretField(k) || k == base.EncryptedMarker {
			continue
		}
		stripped[k] = v
	}
	raw, err := json.Marshal(stripped)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
