package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// GenerationResultKey maps a request fingerprint to the timetable it produced.
func (r *CacheKeyStruct) GenerationResultKey(userID, fingerprint string) string {
	return fmt.Sprintf("user:%s:generation:%s", userID, fingerprint)
}

// JobKey returns the hash key holding a generation job's state.
func (r *CacheKeyStruct) JobKey(jobID string) string {
	return fmt.Sprintf("job:%s", jobID)
}

// JobPayloadKey returns the key holding a job's serialized request.
func (r *CacheKeyStruct) JobPayloadKey(jobID string) string {
	return fmt.Sprintf("job:%s:payload", jobID)
}

// JobEventsChannel returns the Redis PubSub channel for a job's progress events.
func (r *CacheKeyStruct) JobEventsChannel(jobID string) string {
	return fmt.Sprintf("job:%s:events", jobID)
}

var CacheKey = NewCacheKeyStruct()
