package push

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// permanentErrors are provider signatures meaning the token will never
// succeed again and must be deactivated.
var permanentErrors = map[string]struct{}{
	"NotRegistered":       {},
	"InvalidRegistration": {},
	"MismatchSenderId":    {},
}

// TokenInvalidator deactivates tokens the provider reports as permanently
// invalid. It flips an active flag in storage, never deletes history.
type TokenInvalidator interface {
	DeactivateToken(ctx context.Context, token string) error
}

// TokenOutcome is the dispatcher's verdict for one token.
type TokenOutcome struct {
	Token     string
	OK        bool
	Error     string
	Permanent bool
}

// Report aggregates one Send call.
type Report struct {
	SuccessCount int
	FailureCount int
	Outcomes     []TokenOutcome
}

// Dispatcher formats and sends push payloads, preferring one multicast call
// and falling back to per-token calls on batch failure. Delivery is
// at-most-once best effort: transient errors are logged, never retried.
type Dispatcher struct {
	provider    Provider
	invalidator TokenInvalidator
	log         *zerolog.Logger

	totalSent   atomic.Int64
	totalFailed atomic.Int64
}

// NewDispatcher constructs a dispatcher.
func NewDispatcher(provider Provider, invalidator TokenInvalidator, logger *zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		provider:    provider,
		invalidator: invalidator,
		log:         logger,
	}
}

// Send delivers one rendered notification to the given tokens. Data values
// are coerced to strings (nil becomes the empty string). Send never returns
// an error: a provider outage degrades to zero notifications sent.
func (d *Dispatcher) Send(ctx context.Context, tokens []string, title, body string, data map[string]any) *Report {
	report := &Report{}
	if len(tokens) == 0 {
		return report
	}

	payload := Payload{Title: title, Body: body, Data: CoerceData(data)}

	var results []TokenResult
	if len(tokens) > 1 {
		batch, err := d.provider.Send(ctx, tokens, payload)
		if err != nil {
			d.log.Warn().Err(err).Int("tokens", len(tokens)).Msg("multicast failed, falling back to single sends")
			results = d.sendIndividually(ctx, tokens, payload)
		} else {
			results = batch
		}
	} else {
		results = d.sendIndividually(ctx, tokens, payload)
	}

	for _, result := range results {
		outcome := TokenOutcome{Token: result.Token, OK: result.Error == ""}
		if outcome.OK {
			report.SuccessCount++
		} else {
			report.FailureCount++
			outcome.Error = result.Error
			outcome.Permanent = d.classify(ctx, result)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	d.totalSent.Add(int64(report.SuccessCount))
	d.totalFailed.Add(int64(report.FailureCount))

	d.log.Debug().
		Int("success", report.SuccessCount).
		Int("failure", report.FailureCount).
		Msg("push dispatched")
	return report
}

// sendIndividually issues one provider call per token. A transport error on
// one token does not stop the rest.
func (d *Dispatcher) sendIndividually(ctx context.Context, tokens []string, payload Payload) []TokenResult {
	results := make([]TokenResult, 0, len(tokens))
	for _, token := range tokens {
		single, err := d.provider.Send(ctx, []string{token}, payload)
		if err != nil {
			results = append(results, TokenResult{Token: token, Error: "Unavailable: " + err.Error()})
			continue
		}
		if len(single) == 0 {
			results = append(results, TokenResult{Token: token, Error: "MissingResult"})
			continue
		}
		results = append(results, single[0])
	}
	return results
}

// classify splits failures into permanent (token deactivated) and transient
// (logged only). Returns true for permanent errors.
func (d *Dispatcher) classify(ctx context.Context, result TokenResult) bool {
	if _, permanent := permanentErrors[result.Error]; !permanent {
		d.log.Warn().Str("error", result.Error).Msg("transient push failure")
		return false
	}

	if err := d.invalidator.DeactivateToken(ctx, result.Token); err != nil {
		d.log.Error().Err(err).Msg("failed to deactivate token")
	} else {
		d.log.Info().Str("error", result.Error).Msg("permanently invalid token deactivated")
	}
	return true
}

// TotalSent returns the process-lifetime success counter.
func (d *Dispatcher) TotalSent() int64 { return d.totalSent.Load() }

// TotalFailed returns the process-lifetime failure counter.
func (d *Dispatcher) TotalFailed() int64 { return d.totalFailed.Load() }

// CoerceData converts a loose data payload into the all-strings map the
// provider requires. Nil values become empty strings.
func CoerceData(data map[string]any) map[string]string {
	if len(data) == 0 {
		return nil
	}
	out := make(map[string]string, len(data))
	for key, value := range data {
		switch v := value.(type) {
		case nil:
			out[key] = ""
		case string:
			out[key] = v
		default:
			out[key] = fmt.Sprint(v)
		}
	}
	return out
}
