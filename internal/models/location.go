package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// LocationSample is one position report. Samples are append-only and
// immutable once persisted; history is kept even when no friend was online
// to receive the live push.
type LocationSample struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	UserID     int                `bson:"user_id" json:"user_id"`
	Latitude   float64            `bson:"latitude" json:"latitude"`
	Longitude  float64            `bson:"longitude" json:"longitude"`
	Accuracy   float64            `bson:"accuracy" json:"accuracy"`
	CapturedAt time.Time          `bson:"captured_at" json:"captured_at"`
}
