package provision

import (
	"fmt"

	"github.com/UnfoldDataScience/skiff/internal/transport"
)

// EnvFileName is the environment file the app reads at startup. It holds
// credentials and is excluded from every transfer, so the remote copy is
// seeded once and then left alone.
const EnvFileName = ".env"

// envTemplate lists every variable the app reads, with placeholders.
const envTemplate = `# Environment for the deployed app. Fill in before first start.
WEAVIATE_URL=
WEAVIATE_API_KEY=
LLM_PROVIDER=openai
LLM_MODEL=gpt-4o-mini
OPENAI_API_KEY=
`

// EnsureEnvFile writes a placeholder environment file at the destination
// if one does not already exist. Returns true if the file was created.
func EnsureEnvFile(t transport.Transport) (bool, error) {
	exists, err := t.Exists(EnvFileName)
	if err != nil {
		return false, fmt.Errorf("check %s: %w", EnvFileName, err)
	}
	if exists {
		return false, nil
	}
	if err := t.WriteFile(EnvFileName, []byte(envTemplate), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", EnvFileName, err)
	}
	return true, nil
}
