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

// Package config loads service-level settings from the environment or
// from a YAML file with environment variable expansion. It configures
// the master key source, optional persistence backends, and probe
// timeouts; it never holds per-agent database credentials.
package config
