package api

import (
	"testing"
	"time"

	"github.com/nerrad567/kairos-persistor/internal/infrastructure/kairosdb"
)

// kairosBackend returns a KairosDB client pointed at url and closed with the test.
func kairosBackend(t *testing.T, url string) *kairosdb.Client {
	t.Helper()

	client := kairosdb.New(url, time.Second)
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}
