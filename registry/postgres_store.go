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
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"agentlink/link/base"
)

// PostgresStore implements Store on PostgreSQL. Each agent is one row;
// configs are stored as JSONB in their encrypted form, so credential
// material never reaches the database in plaintext.
type PostgresStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewPostgresStore connects to PostgreSQL and ensures the schema exists.
// The connection is retried with backoff to tolerate container DNS
// startup delays.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	maxRetries := 5
	var db *sql.DB
	var err error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		db, err = sql.Open("postgres", dbURL)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		if attempt < maxRetries {
			backoff := time.Duration(attempt*2) * time.Second
			log.Printf("[AgentStore] Database connection failed (attempt %d/%d): %v - retrying in %v", attempt, maxRetries, err, backoff)
			time.Sleep(backoff)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxRetries, err)
	}

	store := &PostgresStore{
		db:     db,
		logger: log.New(os.Stdout, "[AgentStore] ", log.LstdFlags),
	}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.logger.Println("PostgreSQL agent store initialized")
	return store, nil
}

// initSchema creates the agent_links table if it doesn't exist
func (s *PostgresStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS agent_links (
		agent_id VARCHAR(255) PRIMARY KEY,
		record JSONB NOT NULL,
		credentials JSONB,
		active_config JSONB,
		pending_config JSONB,
		rotation JSONB,
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_agent_links_updated ON agent_links(updated_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// SaveAgent upserts one agent's registry state.
func (s *PostgresStore) SaveAgent(ctx context.Context, agent *StoredAgent) error {
	record, err := json.Marshal(agent.Record)
	if err != nil {
		return fmt.Errorf("failed to serialize record: %w", err)
	}
	creds, err := marshalNullable(agent.Creds)
	if err != nil {
		return err
	}
	active, err := marshalNullable(agent.Active)
	if err != nil {
		return err
	}
	pending, err := marshalNullable(agent.Pending)
	if err != nil {
		return err
	}
	rotation, err := marshalNullable(agent.Rotation)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO agent_links (agent_id, record, credentials, active_config, pending_config, rotation, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (agent_id)
		DO UPDATE SET
			record = EXCLUDED.record,
			credentials = EXCLUDED.credentials,
			active_config = EXCLUDED.active_config,
			pending_config = EXCLUDED.pending_config,
			rotation = EXCLUDED.rotation,
			updated_at = NOW()
	`
	if _, err := s.db.ExecContext(ctx, query, agent.Record.AgentID, record, creds, active, pending, rotation); err != nil {
		return fmt.Errorf("failed to save agent %s: %w", agent.Record.AgentID, err)
	}
	return nil
}

// DeleteAgent removes one agent's persisted state.
func (s *PostgresStore) DeleteAgent(ctx context.Context, agentID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM agent_links WHERE agent_id = $1", agentID); err != nil {
		return fmt.Errorf("failed to delete agent %s: %w", agentID, err)
	}
	return nil
}

// ListAgents loads every persisted agent.
func (s *PostgresStore) ListAgents(ctx context.Context) ([]*StoredAgent, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT record, credentials, active_config, pending_config, rotation FROM agent_links")
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	agents := make([]*StoredAgent, 0)
	for rows.Next() {
		var record []byte
		var creds, active, pending, rotation sql.NullString

		if err := rows.Scan(&record, &creds, &active, &pending, &rotation); err != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", err)
		}

		sa := &StoredAgent{}
		if err := json.Unmarshal(record, &sa.Record); err != nil {
			s.logger.Printf("Warning: skipping agent with malformed record: %v", err)
			continue
		}
		if err := unmarshalNullable(creds, &sa.Creds); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(active, &sa.Active); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(pending, &sa.Pending); err != nil {
			return nil, err
		}
		if err := unmarshalNullable(rotation, &sa.Rotation); err != nil {
			return nil, err
		}
		agents = append(agents, sa)
	}
	return agents, rows.Err()
}

// Close releases the database handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func marshalNullable(v interface{}) (interface{}, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case base.Config:
		if val == nil {
			return nil, nil
		}
	case *CredentialHashes:
		if val == nil {
			return nil, nil
		}
	case *RotationState:
		if val == nil {
			return nil, nil
		}
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize field: %w", err)
	}
	return raw, nil
}

func unmarshalNullable(src sql.NullString, dst interface{}) error {
	if !src.Valid || src.String == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(src.String), dst); err != nil {
		return fmt.Errorf("failed to parse stored field: %w", err)
	}
	return nil
}
