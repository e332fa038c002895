// Package e2e exercises the full client/gateway/server stack over a
// real httptest WebSocket server, covering the behavioral scenarios of
// spec.md §8. Keeps the teacher's ginkgo/gomega tooling choice from its
// deleted tests/e2e suite (see DESIGN.md) with new scenarios.
package e2e

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Protocol End-to-End Suite")
}
