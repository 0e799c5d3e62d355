package gateway

// Dispatcher is the interface used by services to push events to connected
// WebSocket clients. The concrete Manager implements this interface.
type Dispatcher interface {
	DispatchToUser(userID int64, event string, data any)
}

// NopDispatcher drops every event. Useful where no gateway is running.
type NopDispatcher struct{}

func (NopDispatcher) DispatchToUser(int64, string, any) {}
