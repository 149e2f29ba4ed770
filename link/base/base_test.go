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

package base

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	tests := []struct {
		input string
		want  Kind
	}{
		{"postgresql", KindPostgres},
		{"postgres", KindPostgres},
		{"POSTGRES", KindPostgres},
		{" mysql ", KindMySQL},
		{"mongodb", KindMongoDB},
		{"mongo", KindMongoDB},
		{"bigquery", KindBigQuery},
		{"snowflake", KindSnowflake},
		{"cassandra", KindCassandra},
	}

	for _, tt := range tests {
		kind, err := ParseKind(tt.input)
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, kind)
	}
}

func TestParseKindUnknown(t *testing.T) {
	for _, input := range []string{"", "oracle", "sqlite"} {
		_, err := ParseKind(input)
		require.Error(t, err, "input %q", input)

		var cfgErr *ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "type", cfgErr.Field)
	}
}

func TestTestQuery(t *testing.T) {
	assert.Equal(t, "SELECT 1", KindPostgres.TestQuery())
	assert.Equal(t, "SELECT 1", KindMySQL.TestQuery())
	assert.Equal(t, "SELECT 1", KindSnowflake.TestQuery())
	assert.Equal(t, "SELECT 1", KindBigQuery.TestQuery())
	assert.Equal(t, "SELECT release_version FROM system.local", KindCassandra.TestQuery())
	assert.Equal(t, "", KindMongoDB.TestQuery())
}

func TestConfigClone(t *testing.T) {
	cfg := Config{
		"host": "localhost",
		"pooling": map[string]interface{}{
			"max_size": 10,
		},
	}

	clone := cfg.Clone()
	clone["host"] = "elsewhere"
	clone.Sub("pooling")["max_size"] = 99

	assert.Equal(t, "localhost", cfg.String("host"))
	maxSize, _ := Config(cfg.Sub("pooling")).Int("max_size")
	assert.Equal(t, 10, maxSize)
}

func TestConfigAccessors(t *testing.T) {
	cfg := Config{
		"host":  "db.internal",
		"port":  float64(5432),
		"empty": "",
	}

	assert.Equal(t, "db.internal", cfg.String("host"))
	assert.Equal(t, "", cfg.String("missing"))

	port, ok := cfg.Int("port")
	assert.True(t, ok)
	assert.Equal(t, 5432, port)

	_, ok = cfg.Int("host")
	assert.False(t, ok)

	assert.True(t, cfg.Has("host"))
	assert.False(t, cfg.Has("empty"))
	assert.False(t, cfg.Has("missing"))
}

func TestSanitize(t *testing.T) {
	cfg := Config{
		"host":              "localhost",
		"user":              "admin",
		"password":          "secret",
		"connection_string": "postgres://u:p@h/db",
		"api_secret":        "also-secret",
		EncryptedMarker:     true,
	}

	clean := Sanitize(cfg)

	assert.Equal(t, "***", clean["password"])
	assert.Equal(t, "***", clean["connection_string"])
	assert.Equal(t, "***", clean["api_secret"])
	assert.Equal(t, "localhost", clean["host"])
	assert.Equal(t, "admin", clean["user"])
	_, hasMarker := clean[EncryptedMarker]
	assert.False(t, hasMarker)

	// Original untouched.
	assert.Equal(t, "secret", cfg["password"])
}

func TestIsSecretField(t *testing.T) {
	for _, f := range []string{"password", "connection_string", "credentials_json", "api_secret", "private_key"} {
		assert.True(t, IsSecretField(f), f)
	}
	for _, f := range []string{"host", "user", "database"} {
		assert.False(t, IsSecretField(f), f)
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(KindPostgres, Config{
		"host":     "db.internal",
		"port":     5432,
		"database": "appdb",
		"password": "never-shown",
	})

	assert.Equal(t, "postgresql", s.Type)
	assert.Equal(t, "db.internal", s.Host)
	assert.Equal(t, 5432, s.Port)
	assert.Equal(t, "appdb", s.Database)
}

func TestSummarizeBigQueryDataset(t *testing.T) {
	s := Summarize(KindBigQuery, Config{
		"project_id": "demo",
		"dataset":    "analytics",
	})

	assert.Equal(t, "bigquery", s.Type)
	assert.Equal(t, "analytics", s.Database)
}

func TestLinkError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewLinkError("orders-db", "connect", "liveness check failed", cause)

	assert.Contains(t, err.Error(), "orders-db")
	assert.Contains(t, err.Error(), "liveness check failed")
	assert.ErrorIs(t, err, cause)
}
