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

package cassandra

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"agentlink/link/base"
)

// Connector implements the AgentLink Connector interface for Cassandra
type Connector struct {
	cfg     *base.LinkConfig
	session *gocql.Session
	logger  *log.Logger
}

// New creates a new Cassandra connector from a decrypted link config
func New(cfg *base.LinkConfig) *Connector {
	return &Connector{
		cfg:    cfg,
		logger: log.New(os.Stdout, "[LINK_CASSANDRA] ", log.LstdFlags),
	}
}

// Connect creates a session against the cluster. The host field may
// carry a comma-separated list of contact points.
func (c *Connector) Connect(ctx context.Context) error {
	hosts := strings.Split(c.cfg.Settings.String("host"), ",")
	for i := range hosts {
		hosts[i] = strings.TrimSpace(hosts[i])
	}

	cluster := gocql.NewCluster(hosts...)
	cluster.Keyspace = c.cfg.Settings.String("keyspace")
	cluster.Timeout = c.cfg.Timeouts.QueryTimeout
	cluster.ConnectTimeout = c.cfg.Timeouts.ConnectTimeout
	cluster.Consistency = gocql.Quorum

	if port, ok := c.cfg.Settings.Int("port"); ok {
		cluster.Port = port
	}
	if user := c.cfg.Settings.String("user"); user != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: user,
			Password: c.cfg.Settings.String("password"),
		}
	}
	if c.cfg.Pooling.Enabled {
		cluster.NumConns = c.cfg.Pooling.MinSize
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to create session", err)
	}

	c.session = session
	c.logger.Printf("Connected to Cassandra: %s (keyspace=%s)", c.cfg.Name, cluster.Keyspace)
	return nil
}

// Disconnect closes the Cassandra session
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.session == nil {
		return nil
	}
	c.session.Close()
	c.session = nil
	return nil
}

// ExecuteQuery runs a CQL statement; with fetch=true rows are returned as maps
func (c *Connector) ExecuteQuery(ctx context.Context, query string, fetch bool) (*base.QueryResult, error) {
	if c.session == nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "database not connected", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.QueryTimeout)
	defer cancel()

	start := time.Now()
	q := c.session.Query(query).WithContext(queryCtx)

	if !fetch {
		if err := q.Exec(); err != nil {
			return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "statement execution failed", err)
		}
		return &base.QueryResult{
			Duration:  time.Since(start),
			Connector: c.cfg.Name,
		}, nil
	}

	iter := q.Iter()
	results := make([]map[string]interface{}, 0)
	for {
		row := make(map[string]interface{})
		if !iter.MapScan(row) {
			break
		}
		results = append(results, row)
	}
	if err := iter.Close(); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "query execution failed", err)
	}

	return &base.QueryResult{
		Rows:      results,
		RowCount:  len(results),
		Duration:  time.Since(start),
		Connector: c.cfg.Name,
	}, nil
}

// DatabaseInfo returns the cluster release version and keyspace
func (c *Connector) DatabaseInfo(ctx context.Context) (map[string]interface{}, error) {
	if c.session == nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "database not connected", nil)
	}

	infoCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ReadTimeout)
	defer cancel()

	var version, clusterName string
	if err := c.session.Query("SELECT release_version, cluster_name FROM system.local").
		WithContext(infoCtx).Scan(&version, &clusterName); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "failed to query system.local", err)
	}

	return map[string]interface{}{
		"type":     base.KindCassandra.String(),
		"version":  version,
		"cluster":  clusterName,
		"keyspace": c.cfg.Settings.String("keyspace"),
	}, nil
}

// Name returns the link instance name
func (c *Connector) Name() string {
	return c.cfg.Name
}

// Kind returns the database kind
func (c *Connector) Kind() base.Kind {
	return base.KindCassandra
}
