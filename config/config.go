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

package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds the process-level settings for the agent link
// service. Everything is optional: an empty config runs fully
// in-memory with an ephemeral encryption key.
type ServiceConfig struct {
	// MasterKeyARN points at an AWS Secrets Manager secret holding the
	// config encryption master key. Takes precedence over the
	// environment-provided key when set.
	MasterKeyARN string `yaml:"master_key_arn,omitempty"`

	// DatabaseURL enables PostgreSQL persistence of agent state.
	DatabaseURL string `yaml:"database_url,omitempty"`

	// RedisURL enables the shared API-key index for multi-worker
	// deployments.
	RedisURL string `yaml:"redis_url,omitempty"`

	// ProbeTimeout bounds registration and rotation liveness checks.
	ProbeTimeout time.Duration `yaml:"probe_timeout,omitempty"`

	// MaxAgentsPerTenant is the default quota applied when no external
	// tenant manager is wired in. 0 means unlimited.
	MaxAgentsPerTenant int `yaml:"max_agents_per_tenant,omitempty"`
}

// LoadFromEnv loads the service configuration from AGENTLINK_-prefixed
// environment variables.
func LoadFromEnv() (*ServiceConfig, error) {
	cfg := &ServiceConfig{
		MasterKeyARN: os.Getenv("AGENTLINK_MASTER_KEY_ARN"),
		DatabaseURL:  getEnvOrDefault("AGENTLINK_DATABASE_URL", os.Getenv("DATABASE_URL")),
		RedisURL:     os.Getenv("AGENTLINK_REDIS_URL"),
		ProbeTimeout: 10 * time.Second,
	}

	if timeoutStr := os.Getenv("AGENTLINK_PROBE_TIMEOUT"); timeoutStr != "" {
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid probe timeout format: %s", timeoutStr)
		}
		cfg.ProbeTimeout = timeout
	}

	if maxStr := os.Getenv("AGENTLINK_MAX_AGENTS_PER_TENANT"); maxStr != "" {
		max, err := strconv.Atoi(maxStr)
		if err != nil {
			return nil, fmt.Errorf("invalid max agents format: %s", maxStr)
		}
		cfg.MaxAgentsPerTenant = max
	}

	return cfg, nil
}

// Validate checks the configuration for internally inconsistent values.
func (c *ServiceConfig) Validate() error {
	if c.ProbeTimeout < 0 {
		return fmt.Errorf("probe timeout cannot be negative")
	}
	if c.MaxAgentsPerTenant < 0 {
		return fmt.Errorf("max agents per tenant cannot be negative")
	}
	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, $VAR_NAME, and ${VAR_NAME:-default} syntax.
// Undefined variables without a default expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}
