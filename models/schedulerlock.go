package models

import "time"

// SchedulerLock is a lease on a scheduled job, held by one instance at a time
type SchedulerLock struct {
	Name      string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expiresAt"`
}
