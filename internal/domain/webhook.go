package domain

import (
	"encoding/json"
	"time"
)

// Webhook object and aspect types sent by the provider.
const (
	ObjectTypeActivity = "activity"
	ObjectTypeAthlete  = "athlete"

	AspectCreate = "create"
	AspectUpdate = "update"
	AspectDelete = "delete"
)

// WebhookEvent is an inbound provider notification. Rows live only until the event has
// been processed once; the table is a queue, not a journal.
type WebhookEvent struct {
	ID             int64                      `json:"id"`
	ObjectType     string                     `json:"object_type"`
	ObjectID       int64                      `json:"object_id"`
	AspectType     string                     `json:"aspect_type"`
	Updates        map[string]json.RawMessage `json:"updates"`
	OwnerID        int64                      `json:"owner_id"`
	SubscriptionID int64                      `json:"subscription_id"`
	EventTime      int64                      `json:"event_time"`
	ClaimedAt      time.Time                  `json:"-"`
}
