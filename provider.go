package aio

import (
	"fmt"
	"sync"
	"time"

	"github.com/dbkit/aio/internal/logging"
)

// CompletionFunc is how a provider reports a result back into the core
// completion pipeline. It must be safe to call from any goroutine,
// including (for the POSIX provider) constrained signal-handler-adjacent
// contexts — see internal/provider/posix.
type CompletionFunc func(h *Handle, result int64)

// Provider implements one of the four completion models from spec.md
// §4.5-§4.8 behind the small vtable spec.md §9 calls for: submit, drain,
// wait-one, child-init, closing-fd, plus Close for teardown.
type Provider interface {
	// Submit dispatches merge heads (each chain already linked through
	// Handle.mergeWith) to the provider. The provider eventually reports
	// each submitted handle's result via the CompletionFunc supplied at
	// construction.
	Submit(heads []*Handle) error

	// Drain lets a backend pump completions. If wait is true it blocks
	// up to timeout for at least one completion; otherwise it polls
	// non-blockingly. Returns the number of completions processed.
	Drain(owner BackendID, wait bool, timeout time.Duration) (int, error)

	// WaitOne blocks the calling backend until h completes, using
	// whichever primitive the provider favors for an owned wait
	// (spec.md §4.10).
	WaitOne(h *Handle) error

	// ChildInit runs once per backend process before it submits through
	// this provider (spec.md §9 "child_init").
	ChildInit(owner BackendID) error

	// ClosingFd notifies the provider that fd is about to be closed
	// (spec.md §5 cancellation & timeout). The bundled providers return
	// nil without draining anything, and the core does not call it.
	ClosingFd(fd int) error

	// Close releases provider-wide resources.
	Close() error
}

// ProviderFactory constructs a Provider. complete is how the provider
// reports results back to the core; cfg carries the resolved
// configuration; log may be nil.
type ProviderFactory func(cfg *Config, complete CompletionFunc, log *logging.Logger) (Provider, error)

var (
	registryMu sync.Mutex
	registry   = map[ProviderKind]ProviderFactory{}
)

// RegisterProvider makes a provider implementation available to New via
// Config.ProviderKind. Provider packages call this from an init() func,
// the way database/sql drivers register themselves — it is what lets
// internal/provider/* depend on this package without this package
// needing to import them back.
func RegisterProvider(kind ProviderKind, factory ProviderFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

func lookupProvider(kind ProviderKind) (ProviderFactory, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	f, ok := registry[kind]
	if !ok {
		return nil, NewError("provider-select", ErrCodeProviderUnknown, fmt.Sprintf("no provider registered for %q (forgot a blank import?)", kind))
	}
	return f, nil
}
