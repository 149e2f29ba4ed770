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
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"agentlink/link/base"
	"agentlink/link/factory"
	"agentlink/secrets"
)

// Builder creates a connector from a prepared link configuration.
// Overridable for tests; defaults to factory.New.
type Builder func(cfg *base.LinkConfig) (base.Connector, error)

// Registry owns per-agent records, hashed API keys, encrypted database
// configs, and rotation state. All mutating operations are serialized by
// a registry-wide lock; reads never block on the network probes the
// mutating operations perform.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*agentEntry
	apiKeys map[string]string // sha256(api key) -> agent ID
	cipher  *secrets.Cipher
	builder Builder
	store   Store
	logger  *log.Logger

	probeTimeout time.Duration // optional cap on liveness probe deadlines
}

// New creates an in-memory registry. The cipher is injected explicitly;
// there is no process-global key state.
func New(cipher *secrets.Cipher) *Registry {
	return &Registry{
		agents:  make(map[string]*agentEntry),
		apiKeys: make(map[string]string),
		cipher:  cipher,
		builder: factory.New,
		logger:  log.New(os.Stdout, "[AGENT_REGISTRY] ", log.LstdFlags),
	}
}

// NewWithStore creates a registry backed by persistent storage and loads
// the previously persisted agents. Configs come back encrypted exactly
// as they were written.
func NewWithStore(ctx context.Context, cipher *secrets.Cipher, store Store) (*Registry, error) {
	r := New(cipher)
	r.store = store

	stored, err := store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents from storage: %w", err)
	}
	for _, sa := range stored {
		entry := sa.toEntry()
		r.agents[sa.Record.AgentID] = entry
		if entry.record.APIKeyHash != "" {
			r.apiKeys[entry.record.APIKeyHash] = sa.Record.AgentID
		}
	}
	registeredAgents.Set(float64(len(r.agents)))
	r.logger.Printf("Loaded %d agents from storage", len(stored))
	return r, nil
}

// SetBuilder replaces the connector builder. Intended for tests.
func (r *Registry) SetBuilder(b Builder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builder = b
}

// SetProbeTimeout caps every liveness probe deadline regardless of the
// link's own connect timeout. Zero leaves each link's TimeoutPolicy as
// the only bound. Set once at startup, before the registry serves calls.
func (r *Registry) SetProbeTimeout(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probeTimeout = d
}

// RegisterAgent registers a new agent, optionally linking a database.
// When a database config is supplied, admin credentials are mandatory,
// the config is validated and liveness-checked before anything is
// stored, and the whole operation is all-or-nothing. The returned API
// key is issued exactly once and never persisted.
func (r *Registry) RegisterAgent(ctx context.Context, agentID string, info map[string]interface{}, creds *Credentials, dbConfig base.Config) (*Registration, error) {
	if agentID == "" {
		return nil, &base.ConfigError{Field: "agent_id", Reason: "must not be empty"}
	}
	if dbConfig != nil && creds == nil {
		registrationsTotal.WithLabelValues("missing_credentials").Inc()
		return nil, ErrMissingCredentials
	}

	var credHashes *CredentialHashes
	if creds != nil {
		if creds.APIKey == "" || creds.APISecret == "" {
			registrationsTotal.WithLabelValues("missing_credentials").Inc()
			return nil, fmt.Errorf("%w: api_key and api_secret are both required", ErrMissingCredentials)
		}
		credHashes = &CredentialHashes{
			APIKeyHash:    hashValue(creds.APIKey),
			APISecretHash: hashValue(creds.APISecret),
			StoredAt:      time.Now().UTC(),
		}
	}

	// Fast-path duplicate check before any validation or I/O.
	r.mu.RLock()
	_, exists := r.agents[agentID]
	r.mu.RUnlock()
	if exists {
		registrationsTotal.WithLabelValues("duplicate").Inc()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, agentID)
	}

	var (
		encrypted base.Config
		summary   *base.Summary
	)
	if dbConfig != nil {
		linkCfg, err := factory.Prepare(agentID, dbConfig)
		if err != nil {
			registrationsTotal.WithLabelValues("invalid_config").Inc()
			return nil, err
		}

		if err := r.probe(ctx, linkCfg); err != nil {
			registrationsTotal.WithLabelValues("link_failed").Inc()
			return nil, fmt.Errorf("%w: %v", ErrDatabaseLinkFailed, err)
		}

		encrypted, err = r.cipher.EncryptDatabaseConfig(dbConfig)
		if err != nil {
			registrationsTotal.WithLabelValues("encrypt_failed").Inc()
			return nil, fmt.Errorf("failed to encrypt database config: %w", err)
		}

		summary = base.Summarize(linkCfg.Kind, dbConfig)
		summary.Status = "connected"
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		return nil, fmt.Errorf("failed to issue API key: %w", err)
	}
	apiKeyHash := hashValue(apiKey)

	now := time.Now().UTC()
	entry := &agentEntry{
		record: &AgentRecord{
			AgentID:      agentID,
			Metadata:     info,
			APIKeyHash:   apiKeyHash,
			RegisteredAt: now,
			Database:     summary,
		},
		creds:  credHashes,
		active: encrypted,
	}

	r.mu.Lock()
	if _, exists := r.agents[agentID]; exists {
		r.mu.Unlock()
		registrationsTotal.WithLabelValues("duplicate").Inc()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRegistered, agentID)
	}
	r.agents[agentID] = entry
	r.apiKeys[apiKeyHash] = agentID
	r.mu.Unlock()

	r.persist(ctx, entry)
	registrationsTotal.WithLabelValues("ok").Inc()
	registeredAgents.Inc()
	r.logger.Printf("Registered agent %q (database=%v, credentials=%v)", agentID, summary != nil, credHashes != nil)

	return &Registration{
		AgentID:           agentID,
		APIKey:            apiKey,
		Database:          summary,
		CredentialsStored: credHashes != nil,
		RegisteredAt:      now,
	}, nil
}

// AuthenticateAgent resolves an API key to its agent ID. O(1) lookup on
// the key hash; the confirming comparison is constant-time.
func (r *Registry) AuthenticateAgent(apiKey string) (string, bool) {
	hash := hashValue(apiKey)

	r.mu.RLock()
	agentID, ok := r.apiKeys[hash]
	var storedHash string
	if ok {
		if entry, found := r.agents[agentID]; found {
			storedHash = entry.record.APIKeyHash
		}
	}
	r.mu.RUnlock()

	if !ok || subtle.ConstantTimeCompare([]byte(storedHash), []byte(hash)) != 1 {
		authLookupsTotal.WithLabelValues("miss").Inc()
		return "", false
	}
	authLookupsTotal.WithLabelValues("hit").Inc()
	return agentID, true
}

// GetAgent returns a copy of the agent record, or false if unknown.
func (r *Registry) GetAgent(agentID string) (*AgentRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	return entry.snapshotRecord(), true
}

// ListAgents returns the IDs of all registered agents.
func (r *Registry) ListAgents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.agents))
	for id := range r.agents {
		ids = append(ids, id)
	}
	return ids
}

// Count returns the number of registered agents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// GetDatabaseConnector builds a fresh connector for the agent's linked
// database. During a staged rotation the pending credentials are probed
// first and silently used when live, favoring availability of the newest
// credentials; any pending failure falls back to the active config.
// Returns (nil, nil) if the agent has no database link. Stored state is
// never mutated.
func (r *Registry) GetDatabaseConnector(ctx context.Context, agentID string) (base.Connector, error) {
	r.mu.RLock()
	entry, ok := r.agents[agentID]
	if !ok {
		r.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}
	active := entry.active
	pending := entry.pending
	staging := entry.rotation != nil && entry.rotation.Status == RotationStaging
	r.mu.RUnlock()

	if active == nil && pending == nil {
		return nil, nil
	}

	if staging && pending != nil {
		if conn, err := r.tryBuild(ctx, agentID, pending, true); err == nil {
			connectorBuildsTotal.WithLabelValues(conn.Kind().String(), "pending").Inc()
			return conn, nil
		} else {
			r.logger.Printf("Staged credentials for %q not usable, falling back to active: %v", agentID, err)
		}
	}

	conn, err := r.tryBuild(ctx, agentID, active, false)
	if err != nil {
		return nil, err
	}
	connectorBuildsTotal.WithLabelValues(conn.Kind().String(), "active").Inc()
	return conn, nil
}

// UpdateAgentDatabase replaces the agent's database link outright: the
// new config is validated, liveness-checked, encrypted, and stored, and
// any in-flight rotation state is discarded. Not a rotation - there is
// no staging step.
func (r *Registry) UpdateAgentDatabase(ctx context.Context, agentID string, dbConfig base.Config) error {
	r.mu.RLock()
	entry, ok := r.agents[agentID]
	var hasCreds bool
	if ok {
		hasCreds = entry.creds != nil
	}
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}
	if !hasCreds {
		return ErrMissingCredentials
	}

	linkCfg, err := factory.Prepare(agentID, dbConfig)
	if err != nil {
		return err
	}
	if err := r.probe(ctx, linkCfg); err != nil {
		return fmt.Errorf("%w: %v", ErrDatabaseLinkFailed, err)
	}

	encrypted, err := r.cipher.EncryptDatabaseConfig(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to encrypt database config: %w", err)
	}
	summary := base.Summarize(linkCfg.Kind, dbConfig)
	summary.Status = "connected"

	r.mu.Lock()
	entry, ok = r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, agentID)
	}
	entry.active = encrypted
	entry.pending = nil
	entry.rotation = nil
	entry.record.Database = summary
	r.mu.Unlock()

	r.persist(ctx, entry)
	r.logger.Printf("Replaced database link for agent %q (type=%s)", agentID, linkCfg.Kind)
	return nil
}

// RevokeAgent removes the agent record, API-key index entries, credential
// hashes, database configs, and rotation state. Returns false if the
// agent does not exist, so a second revoke is a safe no-op.
func (r *Registry) RevokeAgent(ctx context.Context, agentID string) bool {
	r.mu.Lock()
	_, ok := r.agents[agentID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.agents, agentID)
	for hash, id := range r.apiKeys {
		if id == agentID {
			delete(r.apiKeys, hash)
		}
	}
	r.mu.Unlock()

	if r.store != nil {
		if err := r.store.DeleteAgent(ctx, agentID); err != nil {
			r.logger.Printf("Warning: failed to delete agent %q from storage: %v", agentID, err)
		}
	}
	registeredAgents.Dec()
	r.logger.Printf("Revoked agent %q", agentID)
	return true
}

// tryBuild decrypts a stored config, builds a connector, and optionally
// verifies liveness. The decrypted plaintext lives only for the duration
// of the call.
func (r *Registry) tryBuild(ctx context.Context, agentID string, encrypted base.Config, probe bool) (base.Connector, error) {
	plain := r.cipher.DecryptDatabaseConfig(encrypted)
	linkCfg, err := factory.Prepare(agentID, plain)
	if err != nil {
		return nil, err
	}
	conn, err := r.builder(linkCfg)
	if err != nil {
		return nil, err
	}
	if probe {
		if err := r.probeConn(ctx, conn, linkCfg.Timeouts.ConnectTimeout); err != nil {
			return nil, err
		}
	}
	return conn, nil
}

// probe builds a throwaway connector for the config and runs the
// connect+disconnect liveness round-trip.
func (r *Registry) probe(ctx context.Context, linkCfg *base.LinkConfig) error {
	conn, err := r.builder(linkCfg)
	if err != nil {
		return err
	}
	return r.probeConn(ctx, conn, linkCfg.Timeouts.ConnectTimeout)
}

// probeConn performs the liveness round-trip with a bounded deadline so
// a hung database cannot stall the caller indefinitely.
func (r *Registry) probeConn(ctx context.Context, conn base.Connector, timeout time.Duration) error {
	if r.probeTimeout > 0 && r.probeTimeout < timeout {
		timeout = r.probeTimeout
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := conn.Connect(probeCtx); err != nil {
		return err
	}
	if err := conn.Disconnect(probeCtx); err != nil {
		r.logger.Printf("Warning: probe disconnect failed for %q: %v", conn.Name(), err)
	}
	return nil
}

// persist writes the entry to storage if configured. Persistence failures
// are logged, not propagated; memory remains authoritative.
func (r *Registry) persist(ctx context.Context, entry *agentEntry) {
	if r.store == nil {
		return
	}
	r.mu.RLock()
	sa := newStoredAgent(entry)
	r.mu.RUnlock()

	if err := r.store.SaveAgent(ctx, sa); err != nil {
		r.logger.Printf("Warning: failed to persist agent %q: %v", sa.Record.AgentID, err)
	}
}

// hashValue returns the hex-encoded SHA-256 of a secret value.
func hashValue(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

// HashAPIKey returns the stored form of an API key. External indexes
// keyed by API key must use the same digest.
func HashAPIKey(apiKey string) string {
	return hashValue(apiKey)
}

// generateAPIKey issues a high-entropy opaque API key.
func generateAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return "agl_" + hex.EncodeToString(raw), nil
}
