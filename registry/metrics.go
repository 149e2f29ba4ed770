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

package registry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	registrationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentlink_registrations_total",
		Help: "Agent registration attempts by outcome.",
	}, []string{"status"})

	rotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentlink_rotations_total",
		Help: "Credential rotation operations by phase and outcome.",
	}, []string{"phase", "status"})

	connectorBuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentlink_connector_builds_total",
		Help: "Connectors built for agents, by database kind and config source.",
	}, []string{"kind", "source"})

	authLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "agentlink_auth_lookups_total",
		Help: "API key authentication lookups by result.",
	}, []string{"result"})

	registeredAgents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "agentlink_registered_agents",
		Help: "Number of currently registered agents.",
	})
)
