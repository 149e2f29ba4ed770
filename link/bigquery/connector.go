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

package bigquery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"agentlink/link/base"
)

// Connector implements the AgentLink Connector interface for BigQuery.
// BigQuery has no long-lived wire connection; Connect validates the
// credentials by listing datasets once.
type Connector struct {
	cfg       *base.LinkConfig
	client    *bq.Client
	projectID string
	logger    *log.Logger
}

// New creates a new BigQuery connector from a decrypted link config
func New(cfg *base.LinkConfig) *Connector {
	return &Connector{
		cfg:       cfg,
		projectID: cfg.Settings.String("project_id"),
		logger:    log.New(os.Stdout, "[LINK_BIGQUERY] ", log.LstdFlags),
	}
}

// Connect creates the BigQuery client and verifies the credentials can
// reach the project.
func (c *Connector) Connect(ctx context.Context) error {
	opts, err := c.clientOptions()
	if err != nil {
		return base.NewLinkError(c.cfg.Name, "Connect", "invalid credentials config", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ConnectTimeout)
	defer cancel()

	client, err := bq.NewClient(connectCtx, c.projectID, opts...)
	if err != nil {
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to create client", err)
	}

	// Liveness: a single dataset-list page proves the credentials work
	it := client.Datasets(connectCtx)
	it.PageInfo().MaxSize = 1
	if _, err := it.Next(); err != nil && err != iterator.Done {
		_ = client.Close()
		return base.NewLinkError(c.cfg.Name, "Connect", "failed to reach project", err)
	}

	c.client = client
	c.logger.Printf("Connected to BigQuery: %s (project=%s)", c.cfg.Name, c.projectID)
	return nil
}

// Disconnect closes the client
func (c *Connector) Disconnect(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return base.NewLinkError(c.cfg.Name, "Disconnect", "failed to close client", err)
	}
	c.client = nil
	return nil
}

// ExecuteQuery runs a standard-SQL query job; with fetch=true result
// rows are returned as maps.
func (c *Connector) ExecuteQuery(ctx context.Context, query string, fetch bool) (*base.QueryResult, error) {
	if c.client == nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "client not connected", nil)
	}

	queryCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.QueryTimeout)
	defer cancel()

	start := time.Now()
	q := c.client.Query(query)
	it, err := q.Read(queryCtx)
	if err != nil {
		return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "query execution failed", err)
	}

	result := &base.QueryResult{
		Duration:  time.Since(start),
		Connector: c.cfg.Name,
	}
	if !fetch {
		return result, nil
	}

	rows := make([]map[string]interface{}, 0)
	for {
		var row map[string]bq.Value
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, base.NewLinkError(c.cfg.Name, "ExecuteQuery", "failed to read row", err)
		}
		converted := make(map[string]interface{}, len(row))
		for k, v := range row {
			converted[k] = v
		}
		rows = append(rows, converted)
	}

	result.Rows = rows
	result.RowCount = len(rows)
	result.Duration = time.Since(start)
	return result, nil
}

// DatabaseInfo returns the project id and dataset count
func (c *Connector) DatabaseInfo(ctx context.Context) (map[string]interface{}, error) {
	if c.client == nil {
		return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "client not connected", nil)
	}

	infoCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.ReadTimeout)
	defer cancel()

	datasetCount := 0
	it := c.client.Datasets(infoCtx)
	for {
		_, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, base.NewLinkError(c.cfg.Name, "DatabaseInfo", "failed to list datasets", err)
		}
		datasetCount++
	}

	return map[string]interface{}{
		"type":          base.KindBigQuery.String(),
		"project_id":    c.projectID,
		"dataset_count": datasetCount,
	}, nil
}

// Name returns the link instance name
func (c *Connector) Name() string {
	return c.cfg.Name
}

// Kind returns the database kind
func (c *Connector) Kind() base.Kind {
	return base.KindBigQuery
}

// clientOptions builds credential options from credentials_path or
// credentials_json (either a raw JSON string or a structured map).
func (c *Connector) clientOptions() ([]option.ClientOption, error) {
	if path := c.cfg.Settings.String("credentials_path"); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}, nil
	}

	if creds, ok := c.cfg.Settings["credentials_json"]; ok && creds != nil {
		switch v := creds.(type) {
		case string:
			return []option.ClientOption{option.WithCredentialsJSON([]byte(v))}, nil
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				return nil, fmt.Errorf("failed to serialize credentials_json: %w", err)
			}
			return []option.ClientOption{option.WithCredentialsJSON(raw)}, nil
		}
	}

	// Fall back to application default credentials
	return nil, nil
}
