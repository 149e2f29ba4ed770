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

package snowflake

import (
	"context"
	"database/sql"
	"log"
	"os"
	"time"

	sf "github.com/snowflakedb/gosnowflake"

	"agentlink/link/base"
)

// Connector implements the AgentLink Connector interface for Snowflake
type Connector struct {
	cfg    *base.LinkConfig
	db     *sql.DB
	logger *log.Logger
}

// New creates a new Snowflake connector from a decrypted link config
func New(cfg *base.LinkConfig) *Connector {
	return &Connector{
		cfg:    cfg,
		logger: log.New(os.Stdout, "[LINK_SNOWFLAKE] ", log.LstdFlags),
	}
}

// Connect opens the warehouse connection and verifies liveness
func (c *Connector) Connect(ctx context.Context) error {
	dsn, err := c.dsn()
	if err != nil {
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to build DSN", err)
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to open connection", err)
	}

	if c.cfg.Pooling.Enabled {
		db.SetMaxOpenConns(c.cfg.Pooling.MaxSize + c.cfg.Pooling.MaxOverflow)
		db.SetMaxIdleConns(c.cfg.Pooling.MinSize)
		db.SetConnMaxLifetime(c.cfg.Pooling.PoolRecycle)
	}

	pingCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to ping warehouse", err)
	}

	c.db = db
	c.logger.Printf("Connected to Snowflake: %s (account=%s)", c.cfg.Name, c.cfg.Settings.String("account"))
	return nil
}

// Disconnect closes the warehouse connection
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

	columns, err := rows.Columns()
	if err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "failed to get columns", err)
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "failed to scan row", err)
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
	if err := rows.Err(); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "error during row iteration", err)
	}

	return &base.QueryResult{
		Rows:      results,
		RowCount:  len(results),
		Duration:  time.Since(start),
		Connector: c.cfg.Name,
	}, nil
}

// DatabaseInfo returns warehouse version and current database
func (c *Connector) DatabaseInfo(ctx context.Context) (map[string]interface{}, error) {
	if c.db == nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "database not connected", nil)
	}

	infoCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ReadTimeout)
	defer cancel()

	var version string
	var dbName sql.NullString
	if err := c.db.QueryRowContext(infoCtx, "SELECT CURRENT_VERSION(), CURRENT_DATABASE()").Scan(&version, &dbName); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "failed to query warehouse info", err)
	}

	return map[string]interface{}{
		"type":     base.KindSnowflake.String(),
		"version":  version,
		"database": dbName.String,
		"account":  c.cfg.Settings.String("account"),
	}, nil
}

// Name returns the link instance name
func (c *Connector) Name() string {
	return c.cfg.Name
}

// Kind returns the database kind
func (c *Connector) Kind() base.Kind {
	return base.KindSnowflake
}

// dsn builds the gosnowflake DSN. An explicit connection_string wins
// over individual fields.
func (c *Connector) dsn() (string, error) {
	if cs := c.cfg.Settings.String("connection_string"); cs != "" {
		return cs, nil
	}

	sfc := &sf.Config{
		Account:      c.cfg.Settings.String("account"),
		User:         c.cfg.Settings.String("user"),
		Password:     c.cfg.Settings.String("password"),
		Database:     c.cfg.Settings.String("database"),
		Schema:       c.cfg.Settings.String("schema"),
		Warehouse:    c.cfg.Settings.String("warehouse"),
		Role:         c.cfg.Settings.String("role"),
		LoginTimeout: c.cfg.Timeouts.ConnectTimeout,
	}
	return sf.DSN(sfc)
}
