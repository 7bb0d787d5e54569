// Package origin enforces the cross-origin allow-list of the realtime server.
//
// AllowList holds the configured origins and can be swapped at runtime when
// the config file is reloaded. CheckOrigin plugs into the websocket upgrader;
// Middleware applies CORS headers to plain HTTP routes. Origins not on the
// list are rejected. Requests without an Origin header come from non-browser
// clients (backend services, probes) and are not cross-origin requests.
package origin
