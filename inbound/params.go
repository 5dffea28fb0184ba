package inbound

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/goliatone/go-websub/core"
)

const (
	ParamMode         = "hub.mode"
	ParamTopic        = "hub.topic"
	ParamChallenge    = "hub.challenge"
	ParamLeaseSeconds = "hub.lease_seconds"
)

// ParseVerificationRequest reads the hub.* callback parameters. The challenge
// is kept verbatim; mode and topic are trimmed.
func ParseVerificationRequest(values url.Values) (core.VerificationRequest, error) {
	rawMode := strings.TrimSpace(values.Get(ParamMode))
	if rawMode == "" {
		return core.VerificationRequest{}, inboundBadInput("inbound: hub.mode is required", nil)
	}
	mode, err := core.ParseMode(rawMode)
	if err != nil {
		return core.VerificationRequest{}, inboundBadInput("inbound: hub.mode is invalid", map[string]any{
			"mode": rawMode,
		})
	}

	topic := strings.TrimSpace(values.Get(ParamTopic))
	if topic == "" {
		return core.VerificationRequest{}, inboundBadInput("inbound: hub.topic is required", map[string]any{
			"mode": string(mode),
		})
	}

	challenge := values.Get(ParamChallenge)
	if challenge == "" {
		return core.VerificationRequest{}, inboundBadInput("inbound: hub.challenge is required", map[string]any{
			"mode":  string(mode),
			"topic": topic,
		})
	}

	req := core.VerificationRequest{
		Mode:      mode,
		Topic:     topic,
		Challenge: challenge,
	}
	if raw := strings.TrimSpace(values.Get(ParamLeaseSeconds)); raw != "" {
		lease, convErr := strconv.Atoi(raw)
		if convErr != nil || lease < 0 {
			return core.VerificationRequest{}, inboundBadInput("inbound: hub.lease_seconds must be a non-negative integer", map[string]any{
				"topic":         topic,
				"lease_seconds": raw,
			})
		}
		req.LeaseSeconds = &lease
	}
	return req, nil
}
