package remotestore

import "fmt"

// Redis key pattern helpers
//
// All keys and Pub/Sub channels are namespaced so several schools or environments
// can share one Redis server.
//
// Key pattern: rollcall:{namespace}:{entity}:{id}
// Channel pattern: rollcall:{namespace}:{event_type}_events

// SessionKey returns the Redis key for a session document.
// Pattern: rollcall:{namespace}:session:{session_id}
func SessionKey(namespace, sessionID string) string {
	return fmt.Sprintf("rollcall:%s:session:%s", namespace, sessionID)
}

// SessionsByDateKey returns the Redis key for the date index ZSET.
// Members are session IDs, scores are yyyymmdd integers.
// Pattern: rollcall:{namespace}:sessions:by_date
func SessionsByDateKey(namespace string) string {
	return fmt.Sprintf("rollcall:%s:sessions:by_date", namespace)
}

// SessionEventsChannel returns the Pub/Sub channel for session upserts.
// Pattern: rollcall:{namespace}:session_events
func SessionEventsChannel(namespace string) string {
	return fmt.Sprintf("rollcall:%s:session_events", namespace)
}
