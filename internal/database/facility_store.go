package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"krishisetu-api-server/internal/ledger"
	"krishisetu-api-server/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// FacilityStore keeps each facility, bookings included, as one document of
// the coldstorages collection. The version field guards every write.
type FacilityStore struct {
	coll   *mongo.Collection
	tracer trace.Tracer
}

func NewFacilityStore(db *mongo.Database) *FacilityStore {
	return &FacilityStore{
		coll:   db.Collection(FacilitiesCollection),
		tracer: otel.Tracer("krishisetu/database"),
	}
}

var _ ledger.FacilityStore = (*FacilityStore)(nil)

func (s *FacilityStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Facility, error) {
	ctx, span := s.tracer.Start(ctx, "coldstorages.get", trace.WithAttributes(attribute.String("facility.id", id.Hex())))
	defer span.End()

	var f models.Facility
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&f)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("facility %s: %w", id.Hex(), ledger.ErrNotFound)
	}
	if err != nil {
		return nil, spanError(span, fmt.Errorf("find facility %s: %w", id.Hex(), err))
	}
	return &f, nil
}

func (s *FacilityStore) Insert(ctx context.Context, f *models.Facility) error {
	ctx, span := s.tracer.Start(ctx, "coldstorages.insert")
	defer span.End()

	if f.ID.IsZero() {
		f.ID = primitive.NewObjectID()
	}
	if _, err := s.coll.InsertOne(ctx, f); err != nil {
		return spanError(span, fmt.Errorf("insert facility: %w", err))
	}
	return nil
}

func (s *FacilityStore) ReplaceIfVersion(ctx context.Context, f *models.Facility, expectedVersion int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "coldstorages.replace_if_version", trace.WithAttributes(
		attribute.String("facility.id", f.ID.Hex()),
		attribute.Int64("facility.expected_version", expectedVersion),
	))
	defer span.End()

	res, err := s.coll.ReplaceOne(ctx, bson.M{"_id": f.ID, "version": expectedVersion}, f)
	if err != nil {
		return false, spanError(span, fmt.Errorf("replace facility %s: %w", f.ID.Hex(), err))
	}
	span.SetAttributes(attribute.Bool("facility.replaced", res.MatchedCount == 1))
	return res.MatchedCount == 1, nil
}

func (s *FacilityStore) DeleteIfVersion(ctx context.Context, id primitive.ObjectID, expectedVersion int64) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "coldstorages.delete_if_version", trace.WithAttributes(attribute.String("facility.id", id.Hex())))
	defer span.End()

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id, "version": expectedVersion})
	if err != nil {
		return false, spanError(span, fmt.Errorf("delete facility %s: %w", id.Hex(), err))
	}
	return res.DeletedCount == 1, nil
}

func (s *FacilityStore) Find(ctx context.Context, filter ledger.FacilityFilter) ([]models.Facility, int64, error) {
	ctx, span := s.tracer.Start(ctx, "coldstorages.find")
	defer span.End()

	query := bson.M{"isActive": true}
	if filter.City != "" {
		query["location.city"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.City), Options: "i"}
	}
	if filter.State != "" {
		query["location.state"] = primitive.Regex{Pattern: regexp.QuoteMeta(filter.State), Options: "i"}
	}
	capacity := bson.M{}
	if filter.MinCapacity != nil {
		capacity["$gte"] = *filter.MinCapacity
	}
	if filter.MaxCapacity != nil {
		capacity["$lte"] = *filter.MaxCapacity
	}
	if len(capacity) > 0 {
		query["facilities.totalCapacity"] = capacity
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "ratings.average", Value: -1}, {Key: "createdAt", Value: 1}}).
		SetSkip(filter.Skip()).
		SetLimit(filter.Limit)

	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, spanError(span, fmt.Errorf("query facilities: %w", err))
	}
	defer cursor.Close(ctx)

	var facilities []models.Facility
	if err := cursor.All(ctx, &facilities); err != nil {
		return nil, 0, spanError(span, fmt.Errorf("decode facilities: %w", err))
	}

	total, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, spanError(span, fmt.Errorf("count facilities: %w", err))
	}
	span.SetAttributes(attribute.Int64("facilities.total", total))
	return facilities, total, nil
}

func (s *FacilityStore) FindByOwner(ctx context.Context, owner primitive.ObjectID) ([]models.Facility, error) {
	ctx, span := s.tracer.Start(ctx, "coldstorages.find_by_owner")
	defer span.End()

	cursor, err := s.coll.Find(ctx, bson.M{"owner": owner}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, spanError(span, fmt.Errorf("query owner facilities: %w", err))
	}
	defer cursor.Close(ctx)

	var facilities []models.Facility
	if err := cursor.All(ctx, &facilities); err != nil {
		return nil, spanError(span, fmt.Errorf("decode owner facilities: %w", err))
	}
	return facilities, nil
}

// FindUserBookings unwinds the embedded bookings so every booking of the
// user is returned, not just the first one per facility.
func (s *FacilityStore) FindUserBookings(ctx context.Context, user primitive.ObjectID) ([]ledger.UserBooking, error) {
	ctx, span := s.tracer.Start(ctx, "coldstorages.find_user_bookings")
	defer span.End()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"bookings.user": user}}},
		{{Key: "$unwind", Value: "$bookings"}},
		{{Key: "$match", Value: bson.M{"bookings.user": user}}},
		{{Key: "$sort", Value: bson.M{"bookings.createdAt": -1}}},
		{{Key: "$project", Value: bson.M{
			"_id":               0,
			"facility._id":      "$_id",
			"facility.name":     "$name",
			"facility.location": "$location",
			"booking":           "$bookings",
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, spanError(span, fmt.Errorf("aggregate user bookings: %w", err))
	}
	defer cursor.Close(ctx)

	var out []ledger.UserBooking
	if err := cursor.All(ctx, &out); err != nil {
		return nil, spanError(span, fmt.Errorf("decode user bookings: %w", err))
	}
	return out, nil
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
