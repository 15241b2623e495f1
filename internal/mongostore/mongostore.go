// Package mongostore implements the record store and document reader on MongoDB.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/Veraticus/tachyon/internal/common"
	"github.com/Veraticus/tachyon/internal/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Field names used by the receipt ingestion pipeline.
const (
	FieldUserID    = "uid"
	FieldGeoInfo   = "geoInfo"
	FieldCreatedAt = "createdAt"
)

// Options configures a Store.
type Options struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store reads and writes expense records in a MongoDB collection.
// A single pooled client serves every call until Close.
type Store struct {
	client  *mongo.Client
	db      *mongo.Database
	records *mongo.Collection
	logger  *slog.Logger
	timeout time.Duration
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Store, error) {
	if opts.URI == "" {
		return nil, common.MissingConfig("mongo.uri")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(opts.URI).
		SetTimeout(opts.Timeout))
	if err != nil {
		return nil, fmt.Errorf("%w: connect mongo: %w", common.ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping mongo: %w", common.ErrStoreUnavailable, err)
	}

	db := client.Database(opts.Database)
	logger.Debug("connected to mongo", "database", opts.Database, "collection", opts.Collection)

	return &Store{
		client:  client,
		db:      db,
		records: db.Collection(opts.Collection),
		logger:  logger,
		timeout: opts.Timeout,
	}, nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// UserFilter matches every record belonging to uid.
func UserFilter(uid string) bson.M {
	return bson.M{FieldUserID: uid}
}

// LocationFilter matches uid's records whose geo field contains location.
// The location is quoted so it is matched literally, ignoring case.
func LocationFilter(uid, location string) bson.M {
	return bson.M{
		FieldUserID: uid,
		FieldGeoInfo: bson.M{
			"$regex":   regexp.QuoteMeta(location),
			"$options": "i",
		},
	}
}

// CountUserRecords returns the number of records stored for uid.
func (s *Store) CountUserRecords(ctx context.Context, uid string) (int64, error) {
	return s.count(ctx, UserFilter(uid))
}

// CountUserRecordsAt returns how many of uid's records mention location.
func (s *Store) CountUserRecordsAt(ctx context.Context, uid, location string) (int64, error) {
	return s.count(ctx, LocationFilter(uid, location))
}

func (s *Store) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.records.CountDocuments(ctx, filter)
	if err != nil {
		return 0, wrapErr("count records", err)
	}
	return n, nil
}

// SaveExpenseRecords upserts records keyed by their id.
func (s *Store) SaveExpenseRecords(ctx context.Context, records []model.ExpenseRecord) error {
	if len(records) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(records))
	for _, record := range records {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": record.ID}).
			SetReplacement(RecordDocument(record)).
			SetUpsert(true))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.records.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return wrapErr("save records", err)
	}
	return nil
}

// GetUserRecords returns uid's most recent records, newest first.
func (s *Store) GetUserRecords(ctx context.Context, uid string, limit int) ([]model.ExpenseRecord, error) {
	findOpts := options.Find().SetSort(bson.D{{Key: FieldCreatedAt, Value: -1}})
	if limit > 0 {
		findOpts.SetLimit(int64(limit))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.records.Find(ctx, UserFilter(uid), findOpts)
	if err != nil {
		return nil, wrapErr("find records", err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	var records []model.ExpenseRecord
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode record: %w", err)
		}
		records = append(records, RecordFromDocument(raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, wrapErr("iterate records", err)
	}
	return records, nil
}

// DeleteUserRecords removes every record stored for uid.
func (s *Store) DeleteUserRecords(ctx context.Context, uid string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.records.DeleteMany(ctx, UserFilter(uid))
	if err != nil {
		return 0, wrapErr("delete records", err)
	}
	return result.DeletedCount, nil
}

// GetDocument looks a document up by _id in collection. Ids that parse as
// ObjectIDs match either representation.
func (s *Store) GetDocument(ctx context.Context, collection, id string) (*model.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, IDFilter(id)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("document %s/%s: %w", collection, id, common.ErrNotFound)
	}
	if err != nil {
		return nil, wrapErr("find document", err)
	}

	delete(raw, "_id")
	return &model.Document{Collection: collection, ID: id, Data: normalize(raw).(map[string]any)}, nil
}

// IDFilter matches _id as a string, or as an ObjectID when id is one.
func IDFilter(id string) bson.M {
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		return bson.M{"_id": bson.M{"$in": bson.A{id, oid}}}
	}
	return bson.M{"_id": id}
}

// RecordDocument converts a record to its stored shape. Extra fields sit
// alongside uid and geoInfo at the top level.
func RecordDocument(record model.ExpenseRecord) bson.M {
	doc := bson.M{}
	for k, v := range record.Fields {
		doc[k] = v
	}
	doc["_id"] = record.ID
	doc[FieldUserID] = record.UserID
	doc[FieldGeoInfo] = record.GeoInfo
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	doc[FieldCreatedAt] = createdAt.UTC()
	return doc
}

// RecordFromDocument is the inverse of RecordDocument.
func RecordFromDocument(raw bson.M) model.ExpenseRecord {
	var record model.ExpenseRecord
	fields := map[string]any{}

	for k, v := range raw {
		switch k {
		case "_id":
			switch id := v.(type) {
			case string:
				record.ID = id
			case primitive.ObjectID:
				record.ID = id.Hex()
			default:
				record.ID = fmt.Sprint(id)
			}
		case FieldUserID:
			record.UserID, _ = v.(string)
		case FieldGeoInfo:
			record.GeoInfo = geoText(v)
		case FieldCreatedAt:
			switch ts := v.(type) {
			case primitive.DateTime:
				record.CreatedAt = ts.Time().UTC()
			case time.Time:
				record.CreatedAt = ts.UTC()
			}
		default:
			fields[k] = normalize(v)
		}
	}

	if len(fields) > 0 {
		record.Fields = fields
	}
	return record
}

// geoText renders embedded geo objects as JSON so substring matching and
// Location() behave the same as for string fields.
func geoText(v any) string {
	switch geo := v.(type) {
	case string:
		return geo
	case nil:
		return ""
	default:
		encoded, err := json.Marshal(normalize(geo))
		if err != nil {
			return fmt.Sprint(geo)
		}
		return string(encoded)
	}
}

// normalize converts driver-specific values into plain Go values.
func normalize(v any) any {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalize(inner)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			out[k] = normalize(inner)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(val))
		for _, e := range val {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case bson.A:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = normalize(inner)
		}
		return out
	case primitive.ObjectID:
		return val.Hex()
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		return val.String()
	default:
		return val
	}
}

func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return fmt.Errorf("%w: %s: %w", common.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
