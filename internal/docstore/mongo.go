package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/eternalApril/objectdb/internal/document"
)

const (
	// codeBadValue is reported, among others, for an $inc leaving the int64 range
	codeBadValue = 2
	// codeTypeMismatch is the server error code for an operator applied to a field of the wrong type
	codeTypeMismatch = 14
)

// MongoOptions locate the objects collection
type MongoOptions struct {
	URI            string
	Database       string
	Collection     string
	ConnectTimeout time.Duration
}

// Mongo is a Collection stored in MongoDB
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	coll   *mongo.Collection
	logger *zap.Logger
}

// DialMongo connects to MongoDB and verifies the connection with a ping
func DialMongo(ctx context.Context, opts MongoOptions, logger *zap.Logger) (*Mongo, error) {
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(context.Background()) //nolint:errcheck
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(opts.Database)
	logger.Info("connected to mongo",
		zap.String("database", opts.Database),
		zap.String("collection", opts.Collection),
	)

	return &Mongo{
		client: client,
		db:     db,
		coll:   db.Collection(opts.Collection),
		logger: logger,
	}, nil
}

// EnsureIndexes creates the lookup indexes and the TTL index that makes the
// server delete records once their expireAt has passed
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: document.FieldKey, Value: 1}, {Key: document.FieldScore, Value: -1}},
			Options: options.Index().SetBackground(true),
		},
		{
			Keys:    bson.D{{Key: document.FieldKey, Value: 1}, {Key: document.FieldValue, Value: -1}},
			Options: options.Index().SetBackground(true).SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: document.FieldExpireAt, Value: 1}},
			Options: options.Index().SetBackground(true).SetExpireAfterSeconds(0),
		},
	}

	names, err := m.coll.Indexes().CreateMany(ctx, models)
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	m.logger.Debug("indexes ready", zap.Strings("indexes", names))
	return nil
}

// Close disconnects the client
func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func noID() bson.M {
	return bson.M{document.FieldID: 0}
}

// FindOne returns the first record matching f
func (m *Mongo) FindOne(ctx context.Context, f Filter) (document.Document, error) {
	var raw bson.M
	err := m.coll.FindOne(ctx, f.toBSON(), options.FindOne().SetProjection(noID())).Decode(&raw)
	if err != nil {
		return nil, translate(err)
	}
	return fromBSON(raw), nil
}

// Find returns every record matching f
func (m *Mongo) Find(ctx context.Context, f Filter, opts FindOptions) ([]document.Document, error) {
	findOpts := options.Find().SetProjection(noID())
	switch opts.Sort {
	case ScoreAsc:
		findOpts.SetSort(bson.D{{Key: document.FieldScore, Value: 1}, {Key: document.FieldValue, Value: 1}})
	case ScoreDesc:
		findOpts.SetSort(bson.D{{Key: document.FieldScore, Value: -1}, {Key: document.FieldValue, Value: -1}})
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}

	cursor, err := m.coll.Find(ctx, f.toBSON(), findOpts)
	if err != nil {
		return nil, translate(err)
	}

	var raws []bson.M
	if err := cursor.All(ctx, &raws); err != nil {
		return nil, translate(err)
	}

	docs := make([]document.Document, len(raws))
	for i, raw := range raws {
		docs[i] = fromBSON(raw)
	}
	return docs, nil
}

// UpdateOne applies u to the first record matching f
func (m *Mongo) UpdateOne(ctx context.Context, f Filter, u Update, upsert bool) error {
	if u.IsEmpty() {
		return nil
	}
	_, err := m.coll.UpdateOne(ctx, f.toBSON(), u.toBSON(), options.Update().SetUpsert(upsert))
	return translate(err)
}

// FindOneAndUpdate applies u to the first record matching f and returns the result
func (m *Mongo) FindOneAndUpdate(ctx context.Context, f Filter, u Update, upsert bool) (document.Document, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(upsert).
		SetReturnDocument(options.After).
		SetProjection(noID())

	var raw bson.M
	if err := m.coll.FindOneAndUpdate(ctx, f.toBSON(), u.toBSON(), opts).Decode(&raw); err != nil {
		return nil, translate(err)
	}
	return fromBSON(raw), nil
}

// UpdateMany applies u to every record matching f
func (m *Mongo) UpdateMany(ctx context.Context, f Filter, u Update) error {
	if u.IsEmpty() {
		return nil
	}
	_, err := m.coll.UpdateMany(ctx, f.toBSON(), u.toBSON())
	return translate(err)
}

// DeleteMany removes every record matching f
func (m *Mongo) DeleteMany(ctx context.Context, f Filter) error {
	_, err := m.coll.DeleteMany(ctx, f.toBSON())
	return translate(err)
}

// Clear removes every record of the collection
func (m *Mongo) Clear(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{})
	return translate(err)
}

// Drop drops the whole database
func (m *Mongo) Drop(ctx context.Context) error {
	return translate(m.db.Drop(ctx))
}

// translate maps driver errors onto the package errors; anything else is
// returned unchanged
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		switch {
		case se.HasErrorCode(codeTypeMismatch):
			return fmt.Errorf("%w: %v", ErrNotNumeric, err)
		case se.HasErrorCodeWithMessage(codeBadValue, "Failed to apply $inc"):
			return fmt.Errorf("%w: %v", ErrOverflow, err)
		}
	}
	return err
}
