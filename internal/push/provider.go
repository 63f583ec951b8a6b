package push

import "context"

// Payload is a rendered notification handed to the provider.
type Payload struct {
	Title string
	Body  string
	Data  map[string]string
}

// TokenResult is the provider's verdict for one token. An empty Error means
// the token was accepted.
type TokenResult struct {
	Token string
	Error string
}

// Provider is the push-provider boundary. Send delivers the payload to the
// given tokens and reports a per-token outcome; a returned error means the
// whole call failed (transport error, rejected request) and no per-token
// outcomes are available.
type Provider interface {
	Send(ctx context.Context, tokens []string, payload Payload) ([]TokenResult, error)
}
