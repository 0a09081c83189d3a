// Package testing switches the process into test mode when imported by
// package tests so entrypoint side effects (.env loading, worker start)
// stay off.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("STOREFRONT_TEST_MODE", "1")
		if os.Getenv("PAYMENT_SIGNING_SECRET") == "" {
			_ = os.Setenv("PAYMENT_SIGNING_SECRET", "test-signing-secret")
		}
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", "test-jwt-secret")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
