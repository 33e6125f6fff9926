package services

import (
	"context"
	"errors"
	"time"

	"locshare-backend/internal/db"
	"locshare-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrHistoryForbidden = errors.New("location history not available")

// Location-history quota: queries are bounded to the last 50 samples by
// default; free accounts see at most 3, paid accounts up to 100.
const (
	historyDefaultLimit = 50
	historyFreeCap      = 3
	historyPaidCap      = 100
)

type LocationService struct {
	friends *FriendService
}

func NewLocationService(friends *FriendService) *LocationService {
	return &LocationService{friends: friends}
}

// SaveSample persists one position report. Samples are stored regardless of
// whether any friend is online to receive the live push.
func (s *LocationService) SaveSample(ctx context.Context, sample *models.LocationSample) error {
	if sample.CapturedAt.IsZero() {
		sample.CapturedAt = time.Now().UTC()
	}
	_, err := db.Mongo.Collection("location_samples").InsertOne(ctx, sample)
	return err
}

// History returns the most recent samples of targetUserID, newest first.
// A user may read their own history or an accepted friend's; the requester's
// plan caps how far back the result goes.
func (s *LocationService) History(ctx context.Context, requester *models.User, targetUserID, limit int) ([]models.LocationSample, error) {
	if requester.ID != targetUserID {
		ok, err := s.friends.IsAcceptedFriend(ctx, requester.ID, targetUserID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrHistoryForbidden
		}
	}

	limit = clampHistoryLimit(limit, requester.Plan)

	findOptions := options.Find().
		SetSort(bson.D{{Key: "captured_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := db.Mongo.Collection("location_samples").Find(ctx, bson.M{"user_id": targetUserID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var samples []models.LocationSample
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

func clampHistoryLimit(requested int, plan string) int {
	if requested <= 0 {
		requested = historyDefaultLimit
	}
	planCap := historyFreeCap
	if plan == models.PlanPaid {
		planCap = historyPaidCap
	}
	if requested > planCap {
		return planCap
	}
	return requested
}
