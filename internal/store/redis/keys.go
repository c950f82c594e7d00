package redis

const (
	// KeyPrefix namespaces every logical key in the redis keyspace
	KeyPrefix = "pause:"
	// ChangesChannel is the pub/sub channel carrying store.Change payloads
	ChangesChannel = "pause:changes"
)

// Key returns the Redis key for a logical key
func Key(logical string) string {
	return KeyPrefix + logical
}
