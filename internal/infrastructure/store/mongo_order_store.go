package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/vexokart/internal/domain/order"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// mongoOrder keeps the order as a JSON payload; decimal money has no
// native BSON codec.
type mongoOrder struct {
	ID            string    `bson:"_id"`
	Version       int       `bson:"version"`
	UserEmail     string    `bson:"user_email"`
	Status        string    `bson:"status"`
	QRTokenDigest string    `bson:"qr_token_digest,omitempty"`
	Payload       string    `bson:"payload"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

type MongoOrderStore struct {
	col *mongo.Collection
}

func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{col: db.Collection("orders")}
}

// EnsureIndexes creates the sparse unique token index and the listing index.
func (m *MongoOrderStore) EnsureIndexes(ctx context.Context) error {
	_, err := m.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "qr_token_digest", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys: bson.D{{Key: "created_at", Value: 1}},
		},
	})
	return err
}

func (m *MongoOrderStore) Create(ctx context.Context, o *order.Order) error {
	o.Version = 1
	doc, err := toMongoOrder(o)
	if err != nil {
		return err
	}
	_, err = m.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateOrder
	}
	return err
}

func (m *MongoOrderStore) Get(ctx context.Context, id string) (*order.Order, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoOrderStore) GetByTokenDigest(ctx context.Context, digest string) (*order.Order, error) {
	return m.findOne(ctx, bson.M{"qr_token_digest": digest})
}

func (m *MongoOrderStore) Update(ctx context.Context, id string, fn func(o *order.Order) (bool, error)) (*order.Order, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		o, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		readVersion := o.Version
		changed, err := fn(o)
		if err != nil {
			return nil, err
		}
		if !changed {
			return o, nil
		}

		o.Version = readVersion + 1
		doc, err := toMongoOrder(o)
		if err != nil {
			return nil, err
		}

		set := bson.M{
			"version":    doc.Version,
			"status":     doc.Status,
			"payload":    doc.Payload,
			"updated_at": doc.UpdatedAt,
		}
		update := bson.M{"$set": set}
		if doc.QRTokenDigest != "" {
			set["qr_token_digest"] = doc.QRTokenDigest
		} else {
			update["$unset"] = bson.M{"qr_token_digest": ""}
		}

		res, err := m.col.UpdateOne(ctx, bson.M{"_id": id, "version": readVersion}, update)
		if err != nil {
			return nil, err
		}
		if res.MatchedCount == 0 {
			continue
		}
		return o, nil
	}
	return nil, ErrConflict
}

func (m *MongoOrderStore) List(ctx context.Context) ([]*order.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.col.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []*order.Order
	for cur.Next(ctx) {
		var doc mongoOrder
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		o, err := doc.order()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, cur.Err()
}

func (m *MongoOrderStore) findOne(ctx context.Context, filter bson.M) (*order.Order, error) {
	var doc mongoOrder
	err := m.col.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.order()
}

func toMongoOrder(o *order.Order) (*mongoOrder, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return &mongoOrder{
		ID:            o.ID,
		Version:       o.Version,
		UserEmail:     o.UserEmail,
		Status:        string(o.Status),
		QRTokenDigest: o.QRTokenDigest,
		Payload:       string(payload),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}, nil
}

func (d *mongoOrder) order() (*order.Order, error) {
	var o order.Order
	if err := json.Unmarshal([]byte(d.Payload), &o); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	o.Version = d.Version
	return &o, nil
}

// ConnectMongo dials and pings the server, returning the named database.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, err
	}
	return client, client.Database(database), nil
}
