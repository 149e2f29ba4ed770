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

package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Environment variables consulted by NewCipherFromEnvironment.
const (
	MasterKeyEnvVar    = "AGENTLINK_MASTER_KEY"
	MasterKeyARNEnvVar = "AGENTLINK_MASTER_KEY_ARN"
	awsRegionEnvVar    = "AGENTLINK_AWS_REGION"
)

// masterKeyField is the JSON field read from Secrets Manager secrets.
const masterKeyField = "master_key"

// NewCipherFromEnvironment builds a Cipher from the process environment,
// in order of preference:
//
//  1. AGENTLINK_MASTER_KEY - the master secret itself
//  2. AGENTLINK_MASTER_KEY_ARN - an AWS Secrets Manager secret holding it
//  3. otherwise an ephemeral key is generated (with a logged warning)
func NewCipherFromEnvironment(ctx context.Context) (*Cipher, error) {
	if key := os.Getenv(MasterKeyEnvVar); key != "" {
		return NewCipher(key)
	}

	if arn := os.Getenv(MasterKeyARNEnvVar); arn != "" {
		key, err := MasterKeyFromSecretsManager(ctx, arn, os.Getenv(awsRegionEnvVar))
		if err != nil {
			return nil, fmt.Errorf("failed to load master key from Secrets Manager: %w", err)
		}
		return NewCipher(key)
	}

	return NewCipher("")
}

// MasterKeyFromSecretsManager fetches the master secret from AWS Secrets
// Manager. JSON secrets are expected to carry a "master_key" field; plain
// string secrets are used as-is.
func MasterKeyFromSecretsManager(ctx context.Context, secretARN, region string) (string, error) {
	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return "", fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(cfg)
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretARN),
	})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", maskARN(secretARN), err)
	}
	if result.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", maskARN(secretARN))
	}

	var fields map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &fields); err == nil {
		if key, ok := fields[masterKeyField]; ok && key != "" {
			return key, nil
		}
		return "", fmt.Errorf("secret %s has no %q field", maskARN(secretARN), masterKeyField)
	}

	return *result.SecretString, nil
}

// maskARN masks the secret ARN for logging (shows only last 8 characters)
func maskARN(arn string) string {
	if len(arn) <= 12 {
		return "***"
	}
	return "..." + arn[len(arn)-8:]
}
