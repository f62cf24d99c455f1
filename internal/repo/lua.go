package repo

import (
	"github.com/redis/go-redis/v9"
)

// ScriptFixedWindow counts one hit in a fixed window.
// Returns {count, pttl_ms}; the window starts at the first hit.
var ScriptFixedWindow = redis.NewScript(`
-- KEYS[1] = counter key
-- ARGV[1] = window_ms

local cnt = redis.call('INCR', KEYS[1])
if cnt == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  -- key lost its TTL (e.g. restored without expiry); restart the window
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {cnt, ttl}
`)

// ScriptSliding counts one hit in a sliding window log.
// Returns {allowed (1|0), count, retry_after_ms}.
var ScriptSliding = redis.NewScript(`
-- KEYS[1] = zset key
-- ARGV[1] = now_ms
-- ARGV[2] = window_ms
-- ARGV[3] = limit
-- ARGV[4] = unique member for this hit

local now    = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit  = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], 0, now - window)

local cnt = redis.call('ZCARD', KEYS[1])
if cnt >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local retry = window
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  return {0, cnt, retry}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window + 1000)
return {1, cnt + 1, 0}
`)
