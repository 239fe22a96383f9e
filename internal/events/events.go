// Package events carries change notifications from the core to whatever UI
// surface is attached. The bus is process-scoped state with an explicit
// Reset so tests can isolate themselves.
package events

import (
	"sync"

	"github.com/asaskevich/EventBus"
)

// Topics published by the core. Subscribers receive the documented payload.
const (
	// TopicConnState carries a bool: true once a session is authenticated,
	// false when it is disposed.
	TopicConnState = "session:state"

	// TopicSyncStarted carries the tool name used for the transfer.
	TopicSyncStarted = "sync:started"

	// TopicSyncLine carries one line of streamed transfer output.
	TopicSyncLine = "sync:line"

	// TopicSyncFinished carries the terminal status string
	// ("completed", "failed", "cancelled").
	TopicSyncFinished = "sync:finished"
)

var (
	mu  sync.Mutex
	bus EventBus.Bus
)

// Bus returns the shared event bus, creating it on first use.
func Bus() EventBus.Bus {
	mu.Lock()
	defer mu.Unlock()
	if bus == nil {
		bus = EventBus.New()
	}
	return bus
}

// Reset replaces the shared bus, dropping all subscriptions. Test isolation
// only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	bus = EventBus.New()
}
