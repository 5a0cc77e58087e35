package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/katiamach/live-weather-tracker/internal/model"
)

// DB collections.
const (
	readingsCollection = "readings"
	countersCollection = "counters"
)

// readingsCounterID is the counters document holding the last reading id.
const readingsCounterID = "readings"

// NewMongoDBClient initializes new mongoDB client.
func NewMongoDBClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctxWithTimeout, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	err = client.Ping(ctxWithTimeout, readpref.Primary())
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	return client, nil
}

// MongoRepository stores readings in a mongo collection with sequential ids.
type MongoRepository struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongo creates new repository from mongo database.
func NewMongo(ctx context.Context, uri, dbName string) (*MongoRepository, error) {
	client, err := NewMongoDBClient(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	db := client.Database(dbName)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	err = createIndexes(ctxWithTimeout, db)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return &MongoRepository{
		client: client,
		db:     db,
	}, nil
}

// createIndexes creates necessary indexes for collections.
func createIndexes(ctx context.Context, db *mongo.Database) error {
	indexModelCity := mongo.IndexModel{
		Keys: bson.D{{Key: "city", Value: 1}},
	}

	_, err := db.Collection(readingsCollection).Indexes().CreateOne(ctx, indexModelCity)
	if err != nil {
		return fmt.Errorf("failed to create city index: %w", err)
	}

	return nil
}

// Close closes mongo db connection.
func (r *MongoRepository) Close() error {
	if err := r.client.Disconnect(context.TODO()); err != nil {
		return fmt.Errorf("failed to disconnect from mongodb: %w", err)
	}

	return nil
}

// Ping checks mongo connection.
func (r *MongoRepository) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	return r.client.Ping(ctxWithTimeout, readpref.Primary())
}

// nextID increments readings counter and returns the new value.
func (r *MongoRepository) nextID(ctx context.Context) (int64, error) {
	filter := bson.M{"_id": readingsCounterID}
	update := bson.M{"$inc": bson.M{"seq": int64(1)}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}

	err := r.db.Collection(countersCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to get next reading id: %w", err)
	}

	return counter.Seq, nil
}

// InsertReading stores weather and returns it with the assigned id.
func (r *MongoRepository) InsertReading(ctx context.Context, w *model.Weather) (*model.Reading, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	id, err := r.nextID(ctxWithTimeout)
	if err != nil {
		return nil, err
	}

	reading := model.NewReading(id, w)

	_, err = r.db.Collection(readingsCollection).InsertOne(ctxWithTimeout, reading)
	if err != nil {
		return nil, err
	}

	return reading, nil
}

// ListReadings gets readings newest first. Empty city means all cities.
func (r *MongoRepository) ListReadings(ctx context.Context, city string) ([]*model.Reading, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	filter := bson.M{}
	if city != "" {
		filter["city"] = city
	}

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: -1}})

	cur, err := r.db.Collection(readingsCollection).Find(ctxWithTimeout, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctxWithTimeout)

	readings := make([]*model.Reading, 0)
	for cur.Next(ctxWithTimeout) {
		rd := model.Reading{}
		err := cur.Decode(&rd)
		if err != nil {
			return nil, err
		}

		readings = append(readings, &rd)
	}

	if err := cur.Err(); err != nil {
		return nil, err
	}

	return readings, nil
}

// DeleteReading deletes reading by id.
func (r *MongoRepository) DeleteReading(ctx context.Context, id int64) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	res, err := r.db.Collection(readingsCollection).DeleteOne(ctxWithTimeout, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrReadingNotFound
	}

	return nil
}

// ListCities gets distinct city names in ascending order.
func (r *MongoRepository) ListCities(ctx context.Context) ([]string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	values, err := r.db.Collection(readingsCollection).Distinct(ctxWithTimeout, "city", bson.M{})
	if err != nil {
		return nil, err
	}

	cities := make([]string, 0, len(values))
	for _, v := range values {
		city, ok := v.(string)
		if !ok {
			return nil, errors.New("unexpected city value type")
		}

		cities = append(cities, city)
	}

	sort.Strings(cities)

	return cities, nil
}
