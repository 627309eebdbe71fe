package implementation

import (
	"context"
	"errors"
	"time"

	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
	interfaces "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Repository/Interfaces"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWeatherRepository keeps fetched weather series as snapshot documents
type MongoWeatherRepository struct {
	coll *mongo.Collection
}

func NewMongoWeatherRepository(coll *mongo.Collection) *MongoWeatherRepository {
	return &MongoWeatherRepository{coll: coll}
}

// EnsureIndexes creates the lookup index used by LatestSnapshot
func (r *MongoWeatherRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "latitude", Value: 1}, {Key: "longitude", Value: 1}, {Key: "fetched_at", Value: -1}},
	})
	return err
}

func (r *MongoWeatherRepository) SaveSnapshot(ctx context.Context, series irgmodels.WeatherSeries) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := r.coll.InsertOne(ctx, series)
	return err
}

func (r *MongoWeatherRepository) LatestSnapshot(ctx context.Context, latitude, longitude float64) (*irgmodels.WeatherSeries, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"latitude": latitude, "longitude": longitude}
	opts := options.FindOne().SetSort(bson.D{{Key: "fetched_at", Value: -1}})

	var series irgmodels.WeatherSeries
	if err := r.coll.FindOne(ctx, filter, opts).Decode(&series); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, interfaces.ErrSnapshotNotFound
		}
		return nil, err
	}
	return &series, nil
}
