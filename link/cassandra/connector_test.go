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
	"testing"

	"agentlink/link/base"
)

func testLinkConfig(settings base.Config) *base.LinkConfig {
	return &base.LinkConfig{
		Name:     "test-cassandra",
		Kind:     base.KindCassandra,
		Settings: settings,
		Pooling:  base.DefaultPoolingPolicy(),
		Timeouts: base.DefaultTimeoutPolicy(),
	}
}

func TestNew(t *testing.T) {
	conn := New(testLinkConfig(base.Config{"host": "localhost", "keyspace": "app"}))
	if conn == nil {
		t.Fatal("expected non-nil connector")
	}
	if conn.logger == nil {
		t.Error("expected logger to be initialized")
	}
	if got := conn.Kind(); got != base.KindCassandra {
		t.Errorf("Kind() = %q, want %q", got, base.KindCassandra)
	}
	if got := conn.Name(); got != "test-cassandra" {
		t.Errorf("Name() = %q, want %q", got, "test-cassandra")
	}
}

func TestNotConnectedErrors(t *testing.T) {
	conn := New(testLinkConfig(base.Config{"host": "localhost", "keyspace": "app"}))
	ctx := context.Background()

	if _, err := conn.ExecuteQuery(ctx, "SELECT now() FROM system.local", true); err == nil {
		t.Error("expected error when not connected")
	}
	if _, err := conn.DatabaseInfo(ctx); err == nil {
		t.Error("expected error when not connected")
	}
	if err := conn.Disconnect(ctx); err != nil {
		t.Errorf("Disconnect on nil session should be a no-op, got %v", err)
	}
}
