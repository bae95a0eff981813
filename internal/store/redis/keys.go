package redis

import "strings"

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "appvault"

// Keys builds the Redis key names of one collection.
type Keys struct {
	prefix string
}

// NewKeys returns the key set rooted at prefix.
func NewKeys(prefix string) Keys {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keys{prefix: prefix}
}

// App returns the key holding the JSON document of one app.
func (k Keys) App(id string) string {
	return k.prefix + ":app:" + id
}

// Index returns the sorted set of app ids scored by CreatedAt in microseconds.
func (k Keys) Index() string {
	return k.prefix + ":apps:created"
}

// Changes returns the pub/sub channel announcing committed writes.
func (k Keys) Changes() string {
	return k.prefix + ":apps:changes"
}
