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
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the root structure of the service configuration file.
type ConfigFile struct {
	Version string        `yaml:"version"`
	Service ServiceConfig `yaml:"service"`
}

// LoadFromFile reads a YAML configuration file. Environment variable
// references (${VAR_NAME} or ${VAR_NAME:-default}) in the file content
// are expanded before parsing.
func LoadFromFile(filePath string) (*ServiceConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}

	expanded := expandEnvVars(string(data))

	var file ConfigFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if file.Version == "" {
		return nil, fmt.Errorf("config file must specify a version")
	}

	cfg := file.Service
	if cfg.ProbeTimeout == 0 {
		cfg.ProbeTimeout = 10 * time.Second
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// GenerateExampleConfigFile generates an example configuration file.
func GenerateExampleConfigFile() string {
	return `# AgentLink Service Configuration
# Environment variables can be referenced using ${VAR_NAME} or ${VAR_NAME:-default} syntax

version: "1.0"

service:
  # AWS Secrets Manager secret holding the config encryption master key.
  # Leave empty to use AGENTLINK_MASTER_KEY or an ephemeral key.
  master_key_arn: ${AGENTLINK_MASTER_KEY_ARN:-}

  # PostgreSQL persistence for agent state (optional, in-memory if empty)
  database_url: ${DATABASE_URL:-}

  # Shared API-key index for multi-worker deployments (optional)
  redis_url: ${AGENTLINK_REDIS_URL:-}

  probe_timeout: 10s
  max_agents_per_tenant: 0
`
}
