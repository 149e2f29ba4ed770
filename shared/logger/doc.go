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

/*
Package logger provides structured JSON logging with multi-tenant support
for AgentLink components.

# Overview

The logger package outputs single-line JSON to stdout, making logs easily
consumable by CloudWatch, ELK stack, or other log aggregation systems.

Each log entry includes:
  - Timestamp (RFC3339Nano format)
  - Log level (DEBUG, INFO, WARN, ERROR)
  - Component name (registry, tenant, etc.)
  - Instance ID and container name (for distributed tracing)
  - Tenant ID (for multi-tenant isolation)
  - Agent ID (for per-agent correlation)
  - Custom fields

# Usage

Create a logger for your component:

	log := logger.New("registry")

Log messages with tenant and agent context:

	log.Info("tenant-123", "agent-456", "Agent registered", map[string]interface{}{
	    "kind": "postgresql",
	})

Log errors with their cause:

	log.ErrorWithCause("tenant-123", "agent-456", "Liveness check failed", err, nil)

Log with duration tracking:

	start := time.Now()
	// ... do work ...
	log.InfoWithDuration("tenant-123", "agent-456", "Rotation activated",
	    float64(time.Since(start).Milliseconds()), nil)

# Output Format

Log entries are output as single-line JSON:

	{"timestamp":"2026-01-15T10:30:00.123456789Z","level":"INFO",
	 "component":"registry","instance_id":"i-abc123","container":"registry-xyz",
	 "tenant_id":"tenant-123","agent_id":"agent-456",
	 "message":"Agent registered","fields":{"kind":"postgresql"}}

# Environment Variables

The logger reads these environment variables:

  - INSTANCE_ID: Deployment instance identifier
  - HOSTNAME: Container hostname (auto-detected)

# Thread Safety

Logger instances are safe for concurrent use from multiple goroutines.
*/
package logger
