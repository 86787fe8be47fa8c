// Package api assembles the rackbook HTTP API.
//
// NewServer mounts the inventory, audit, user administration and sign-in
// handlers on one gorilla/mux router and wraps it with tracing, panic
// recovery, request ids, session resolution and request logging. The /auth/*
// routes are additionally rate limited per client IP.
//
// Health probes and /metrics are served on a separate port by cmd/rackbook.
package api
