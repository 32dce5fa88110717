// Package websocket streams job status events to browsers. The Hub fans
// every message out to connected clients; the operations package feeds it
// through StatusBroadcaster, which sends one "job:status" message per change
// carrying the whole job snapshot.
package websocket
