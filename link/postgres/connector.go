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

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"agentlink/link/base"
)

// Connector implements the AgentLink Connector interface for PostgreSQL
type Connector struct {
	cfg    *base.LinkConfig
	db     *sql.DB
	logger *log.Logger
}

// New creates a new PostgreSQL connector from a decrypted link config
func New(cfg *base.LinkConfig) *Connector {
	return &Connector{
		cfg:    cfg,
		logger: log.New(os.Stdout, "[LINK_POSTGRES] ", log.LstdFlags),
	}
}

// Connect opens the database handle, applies the pooling policy, and
// verifies liveness with a ping bounded by the connect timeout.
func (c *Connector) Connect(ctx context.Context) error {
	db, err := sql.Open("postgres", c.dsn())
	if err != nil {
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to open connection", err)
	}

	applyPool(db, c.cfg.Pooling)

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to ping database", err)
	}

	c.db = db
	c.logger.Printf("Connected to PostgreSQL: %s (max_conns=%d)", c.cfg.Name, c.cfg.Pooling.MaxSize+c.cfg.Pooling.MaxOverflow)
	return nil
}

// Disconnect closes the database connection
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	if err := c.db.Close(); err != nil {
		return base.NewLinkError(c.cfg.Name, "Disconnect", "failed to close connection", err)
	}
	c.db = nil
	return nil
}

// ExecuteQuery runs a statement; with fetch=true rows are scanned into maps
func (c *Connector) ExecuteQuery(ctx context.Context, query string, fetch bool) (*base.QueryResult, error) {
	if c.db == nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "database not connected", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.QueryTimeout)
	defer cancel()

	start := time.Now()
	if !fetch {
		result, err := c.db.ExecContext(queryCtx, query)
		if err != nil {
			return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "statement execution failed", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			affected = 0
		}
		return &base.QueryResult{
			RowsAffected: int(affected),
			Duration:     time.Since(start),
			Connector:    c.cfg.Name,
		}, nil
	}

	rows, err := c.db.QueryContext(queryCtx, query)
	if err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "query execution failed", err)
	}
	defer func() { _ = rows.Close() }()

	results, err := scanRows(rows)
	if err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "failed to scan rows", err)
	}

	return &base.QueryResult{
		Rows:      results,
		RowCount:  len(results),
		Duration:  time.Since(start),
		Connector: c.cfg.Name,
	}, nil
}

// DatabaseInfo returns server version, database name, and table count
func (c *Connector) DatabaseInfo(ctx context.Context) (map[string]interface{}, error) {
	if c.db == nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "database not connected", nil)
	}

	infoCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ReadTimeout)
	defer cancel()

	var version, dbName string
	var tableCount int
	if err := c.db.QueryRowContext(infoCtx, "SELECT version(), current_database()").Scan(&version, &dbName); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "failed to query server info", err)
	}
	if err := c.db.QueryRowContext(infoCtx,
		"SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public'").Scan(&tableCount); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "failed to count tables", err)
	}

	return map[string]interface{}{
		"type":        base.KindPostgres.String(),
		"version":     version,
		"database":    dbName,
		"table_count": tableCount,
	}, nil
}

// Name returns the link instance name
func (c *Connector) Name() string {
	return c.cfg.Name
}

// Kind returns the database kind
func (c *Connector) Kind() base.Kind {
	return base.KindPostgres
}

// dsn builds the lib/pq connection string. An explicit connection_string
// wins over individual fields.
func (c *Connector) dsn() string {
	if cs := c.cfg.Settings.String("connection_string"); cs != "" {
		return cs
	}

	parts := []string{
		"host=" + c.cfg.Settings.String("host"),
		"user=" + c.cfg.Settings.String("user"),
		"dbname=" + c.cfg.Settings.String("database"),
		"sslmode=prefer",
	}
	if port, ok := c.cfg.Settings.Int("port"); ok {
		parts = append(parts, fmt.Sprintf("port=%d", port))
	}
	if pw := c.cfg.Settings.String("password"); pw != "" {
		parts = append(parts, "password="+pw)
	}
	parts = append(parts, fmt.Sprintf("connect_timeout=%d", int(c.cfg.Timeouts.ConnectTimeout/time.Second)))

	return strings.Join(parts, " ")
}

// applyPool maps the pooling policy onto database/sql pool knobs
func applyPool(db *sql.DB, p base.PoolingPolicy) {
	if !p.Enabled {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(p.MaxSize + p.MaxOverflow)
	db.SetMaxIdleConns(p.MinSize)
	db.SetConnMaxLifetime(p.PoolRecycle)
}

// scanRows converts sql.Rows into key-value maps, decoding []byte
// columns to strings for text fields.
func scanRows(rows *sql.Rows) ([]map[string]interface{}, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
