// Package api implements the JSON HTTP surface of the support chat service.
//
// Two routes carry the product: GET /history/{sessionId} returns a session's
// transcript, POST /message runs one conversation turn. Health probes live
// outside the middleware stack so load balancers are never rate limited.
package api
