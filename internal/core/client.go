package core

// Client is one live transport connection as seen by the core layer.
// Identity is attached after an explicit identify command; until then the
// connection is anonymous. All mutable connection state (identity, joined
// rooms, chat-tab flag) lives in the registry and presence tracker so that
// transport goroutines never race the hub loop.
type Client struct {
	ID     string
	Events chan *Event
}

// NewClient constructs a client with an initialized outbound channel.
func NewClient(id string) *Client {
	return &Client{
		ID:     id,
		Events: make(chan *Event, 16),
	}
}

// Send queues an event for the connection's write loop.
// Returns false if the event was dropped because the consumer is slow.
func (c *Client) Send(event *Event) bool {
	select {
	case c.Events <- event:
		return true
	default:
		return false
	}
}
