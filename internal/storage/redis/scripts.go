package redis

const (
	// setAndPublishScript writes a value and announces the change in one
	// round trip, so subscribers never observe a notification before the
	// value it refers to.
	setAndPublishScript = `
local value_key = KEYS[1]     -- browseback:{key}

local value = ARGV[1]
local channel = ARGV[2]       -- browseback:changed:{key}
local name = ARGV[3]          -- {key}

redis.call('SET', value_key, value)
redis.call('PUBLISH', channel, name)

return 'OK'
`
)
