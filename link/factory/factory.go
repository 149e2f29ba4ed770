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

// Package factory turns decrypted link configurations into database
// connectors. Prepare is pure validation (no I/O); New is the exhaustive
// kind dispatch. Both are used by the agent registry.
package factory

import (
	"fmt"

	"agentlink/link/base"
	"agentlink/link/bigquery"
	"agentlink/link/cassandra"
	"agentlink/link/mongodb"
	"agentlink/link/mysql"
	"agentlink/link/postgres"
	"agentlink/link/snowflake"
)

// requiredFields lists the per-kind fields that must be present when no
// connection_string is supplied. BigQuery is handled separately because
// its credential requirement is one-of.
var requiredFields = map[base.Kind][]string{
	base.KindPostgres:  {"host", "user", "database"},
	base.KindMySQL:     {"host", "user", "database"},
	base.KindMongoDB:   {"host", "database"},
	base.KindSnowflake: {"account", "user", "password"},
	base.KindCassandra: {"host", "keyspace"},
}

// Prepare parses a raw configuration map into a validated LinkConfig:
// the database kind is resolved, pooling and timeout sub-configs are
// parsed with defaults, and kind-specific required fields are checked.
// Pure validation - no connector is built and no I/O happens.
func Prepare(name string, settings base.Config) (*base.LinkConfig, error) {
	kind, err := base.ParseKind(settings.String("type"))
	if err != nil {
		return nil, err
	}

	if err := validateRequiredFields(kind, settings); err != nil {
		return nil, err
	}

	pooling, err := base.ParsePoolingPolicy(settings.Sub("pooling"))
	if err != nil {
		return nil, err
	}
	timeouts, err := base.ParseTimeoutPolicy(settings.Sub("timeouts"))
	if err != nil {
		return nil, err
	}

	return &base.LinkConfig{
		Name:     name,
		Kind:     kind,
		Settings: settings,
		Pooling:  pooling,
		Timeouts: timeouts,
	}, nil
}

// New builds a connector for a prepared LinkConfig. The kind switch is
// exhaustive over the closed enum.
func New(cfg *base.LinkConfig) (base.Connector, error) {
	switch cfg.Kind {
	case base.KindPostgres:
		return postgres.New(cfg), nil
	case base.KindMySQL:
		return mysql.New(cfg), nil
	case base.KindMongoDB:
		return mongodb.New(cfg), nil
	case base.KindBigQuery:
		return bigquery.New(cfg), nil
	case base.KindSnowflake:
		return snowflake.New(cfg), nil
	case base.KindCassandra:
		return cassandra.New(cfg), nil
	default:
		return nil, &base.ConfigError{Field: "type", Reason: fmt.Sprintf("no connector for kind %q", cfg.Kind)}
	}
}

// Build is Prepare followed by New.
func Build(name string, settings base.Config) (base.Connector, *base.LinkConfig, error) {
	cfg, err := Prepare(name, settings)
	if err != nil {
		return nil, nil, err
	}
	conn, err := New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return conn, cfg, nil
}

// validateRequiredFields enforces the per-kind field table. A supplied
// connection_string bypasses field-level checks for every kind.
func validateRequiredFields(kind base.Kind, settings base.Config) error {
	if settings.Has("connection_string") {
		return nil
	}

	if kind == base.KindBigQuery {
		if !settings.Has("project_id") {
			return &base.ConfigError{Field: "project_id", Reason: "required for bigquery"}
		}
		if !settings.Has("credentials_path") && !settings.Has("credentials_json") {
			return &base.ConfigError{Field: "credentials_path", Reason: "one of credentials_path or credentials_json is required for bigquery"}
		}
		return nil
	}

	for _, field := range requiredFields[kind] {
		if !settings.Has(field) {
			return &base.ConfigError{Field: field, Reason: fmt.Sprintf("required for %s", kind)}
		}
	}
	return nil
}
