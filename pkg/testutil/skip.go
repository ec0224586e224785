package testutil

import (
	"os"
	"strconv"
	"testing"

	"github.com/testcontainers/testcontainers-go"
)

// IntegrationEnv forces integration tests on in CI when set to a true value.
const IntegrationEnv = "INTEGRATION_TESTS"

// RequireIntegration skips container-backed tests under -short, in CI unless
// IntegrationEnv opts in, and wherever no container runtime answers.
func RequireIntegration(t *testing.T) {
	t.Helper()
	switch {
	case testing.Short():
		t.Skip("integration test skipped in short mode")
	case os.Getenv("CI") != "" && !optedIn():
		t.Skipf("integration test skipped in CI; set %s=1 to run", IntegrationEnv)
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

func optedIn() bool {
	on, err := strconv.ParseBool(os.Getenv(IntegrationEnv))
	return err == nil && on
}
