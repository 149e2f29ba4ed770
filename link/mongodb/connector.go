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

package mongodb

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"agentlink/link/base"
)

// Connector implements the AgentLink Connector interface for MongoDB.
// ExecuteQuery interprets the statement as an extended-JSON database
// command (the closest analog to SQL for document stores).
type Connector struct {
	cfg    *base.LinkConfig
	client *mongo.Client
	dbName string
	logger *log.Logger
}

// New creates a new MongoDB connector from a decrypted link config
func New(cfg *base.LinkConfig) *Connector {
	return &Connector{
		cfg:    cfg,
		dbName: cfg.Settings.String("database"),
		logger: log.New(os.Stdout, "[LINK_MONGODB] ", log.LstdFlags),
	}
}

// Connect establishes a connection with pooling applied and verifies
// liveness with a primary-read ping.
func (c *Connector) Connect(ctx context.Context) error {
	clientOpts := options.Client().ApplyURI(c.uri())
	clientOpts.SetConnectTimeout(c.cfg.Timeouts.ConnectTimeout)
	clientOpts.SetSocketTimeout(c.cfg.Timeouts.ReadTimeout)
	if c.cfg.Pooling.Enabled {
		clientOpts.SetMaxPoolSize(uint64(c.cfg.Pooling.MaxSize + c.cfg.Pooling.MaxOverflow))
		clientOpts.SetMinPoolSize(uint64(c.cfg.Pooling.MinSize))
		clientOpts.SetMaxConnIdleTime(c.cfg.Pooling.PoolRecycle)
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, clientOpts)
	if err != nil {
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to connect", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to ping server", err)
	}

	c.client = client
	c.logger.Printf("Connected to MongoDB: %s (database=%s)", c.cfg.Name, c.dbName)
	return nil
}

// Disconnect closes the client connection
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Disconnect(ctx); err != nil {
		return base.NewLinkError(c.cfg.Name, "Disconnect", "failed to disconnect", err)
	}
	c.client = nil
	return nil
}

// ExecuteQuery runs an extended-JSON database command, e.g.
// {"find": "users", "limit": 10}. With fetch=true the command's result
// batch is returned as rows.
func (c *Connector) ExecuteQuery(ctx context.Context, query string, fetch bool) (*base.QueryResult, error) {
	if c.client == nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "database not connected", nil)
	}

	var cmd bson.D
	if err := bson.UnmarshalExtJSON([]byte(query), false, &cmd); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "statement is not a valid command document", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.QueryTimeout)
	defer cancel()

	start := time.Now()
	var raw bson.M
	if err := c.client.Database(c.dbName).RunCommand(queryCtx, cmd).Decode(&raw); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "command execution failed", err)
	}

	result := &base.QueryResult{
		Duration:  time.Since(start),
		Connector: c.cfg.Name,
	}
	if fetch {
		result.Rows = extractBatch(raw)
		result.RowCount = len(result.Rows)
	}
	return result, nil
}

// DatabaseInfo returns server version, database name, and collection count
func (c *Connector) DatabaseInfo(ctx context.Context) (map[string]interface{}, error) {
	if c.client == nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "database not connected", nil)
	}

	infoCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ReadTimeout)
	defer cancel()

	var buildInfo bson.M
	if err := c.client.Database("admin").RunCommand(infoCtx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&buildInfo); err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "buildInfo command failed", err)
	}

	collections, err := c.client.Database(c.dbName).ListCollectionNames(infoCtx, bson.D{})
	if err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "failed to list collections", err)
	}

	return map[string]interface{}{
		"type":             base.KindMongoDB.String(),
		"version":          buildInfo["version"],
		"database":         c.dbName,
		"collection_count": len(collections),
	}, nil
}

// Name returns the link instance name
func (c *Connector) Name() string {
	return c.cfg.Name
}

// Kind returns the database kind
func (c *Connector) Kind() base.Kind {
	return base.KindMongoDB
}

// uri builds the mongodb:// URI. An explicit connection_string wins over
// individual fields.
func (c *Connector) uri() string {
	if cs := c.cfg.Settings.String("connection_string"); cs != "" {
		return cs
	}

	host := c.cfg.Settings.String("host")
	if port, ok := c.cfg.Settings.Int("port"); ok {
		host = fmt.Sprintf("%s:%d", host, port)
	}

	auth := ""
	if user := c.cfg.Settings.String("user"); user != "" {
		auth = url.UserPassword(user, c.cfg.Settings.String("password")).String() + "@"
	}

	return fmt.Sprintf("mongodb://%s%s/%s", auth, host, c.dbName)
}

// extractBatch pulls result documents out of a command reply cursor.
func extractBatch(reply bson.M) []map[string]interface{} {
	cursor, ok := reply["cursor"].(bson.M)
	if !ok {
		return nil
	}

	for _, key := range []string{"firstBatch", "nextBatch"} {
		batch, ok := cursor[key].(bson.A)
		if !ok {
			continue
		}
		rows := make([]map[string]interface{}, 0, len(batch))
		for _, doc := range batch {
			if m, ok := doc.(bson.M); ok {
				rows = append(rows, map[string]interface{}(m))
			}
		}
		return rows
	}
	return nil
}
