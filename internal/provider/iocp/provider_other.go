//go:build !windows

package iocp

import (
	"github.com/dbkit/aio"
	"github.com/dbkit/aio/internal/logging"
)

func init() {
	aio.RegisterProvider(aio.ProviderIOCP, New)
}

// New always fails on non-Windows platforms; it is still registered so
// selecting ProviderIOCP here gives a clear runtime error instead of
// the generic "no provider registered" one RegisterProvider's absence
// would otherwise produce.
func New(cfg *aio.Config, complete aio.CompletionFunc, log *logging.Logger) (aio.Provider, error) {
	return nil, aio.NewError("provider_init", aio.ErrCodeProviderInit, "iocp provider is only available on windows")
}
