// Package api implements the HTTP control API and WebSocket event stream.
//
// This package provides:
//   - REST endpoints for listing and toggling triggers and module instances
//   - The global dispatch switch and manual annotation/signal injection
//   - A WebSocket hub that relays dispatch outcomes and module status
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Event channels
//
// Clients send {"type":"subscribe","payload":{"channels":[...]}}. Known
// channels are dispatch.processed, dispatch.allow, trigger.update,
// module.status, module.update and user.<name> (from the broadcast[]
// trigger). The channel "*" receives everything. Other names are returned
// under "rejected" in the subscribe response. Subscribing to dispatch.allow
// or module.status first delivers the current state as an event.
//
// # Graceful Degradation
//
// The server operates without MQTT: manual annotations and signals still
// dispatch, only host events and MQTT-backed bridges are unavailable.
package api
