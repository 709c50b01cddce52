package redis

const (
	// initStateScript creates the state hash with install defaults, but only
	// if it does not exist yet. Two clients racing on first use converge on a
	// single record.
	initStateScript = `
local state_key = KEYS[1]     -- breaktime:state

local allowed_minutes = ARGV[1]
local blocked_entries = ARGV[2]
local install_ms = ARGV[3]

local exists = redis.call('EXISTS', state_key)

if exists == 0 then
  redis.call('HSET', state_key,
    'allowed_minutes', allowed_minutes,
    'blocked_entries', blocked_entries,
    'time_spent_ms', 0,
    'break_end_ms', 0,
    'last_check_ms', install_ms
  )
end

return 'OK'
`

	// mergeTimeSpentScript writes max(stored, candidate) and returns the
	// winning value. Concurrent writers converge on the largest observation.
	mergeTimeSpentScript = `
local state_key = KEYS[1]     -- breaktime:state

local candidate = tonumber(ARGV[1])

local current = tonumber(redis.call('HGET', state_key, 'time_spent_ms')) or 0

if candidate > current then
  redis.call('HSET', state_key, 'time_spent_ms', candidate)
  return candidate
end

return current
`

	// beginBreakScript creates a break window only when none is present.
	// An existing window is never extended or replaced; it has to be cleared
	// (which also resets usage) before a new one can start.
	beginBreakScript = `
local state_key = KEYS[1]     -- breaktime:state

local end_ms = tonumber(ARGV[1])

local current = tonumber(redis.call('HGET', state_key, 'break_end_ms')) or 0

if current == 0 then
  redis.call('HSET', state_key, 'break_end_ms', end_ms)
  return end_ms
end

return current
`

	// clearBreakScript removes the break window and resets accumulated usage
	// in one atomic step. Safe to run from multiple observers; the second
	// call is a no-op.
	clearBreakScript = `
local state_key = KEYS[1]     -- breaktime:state

redis.call('HSET', state_key,
  'break_end_ms', 0,
  'time_spent_ms', 0
)

return 'OK'
`
)
