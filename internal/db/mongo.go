package db

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hyunjun8803/car-care-platform-sub000/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// EnsureExpenseIndexes creates the indexes the ledger queries rely on.
func EnsureExpenseIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "date", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("create expense indexes: %w", err)
	}
	return nil
}

// MongoExpenseCollection stores expense records in a MongoDB collection,
// keyed by the generated uuid.
type MongoExpenseCollection struct {
	Collection *mongo.Collection
}

// Create inserts a new expense record.
func (c *MongoExpenseCollection) Create(ctx context.Context, in models.ExpenseInput) (models.Expense, error) {
	if c.Collection == nil {
		return models.Expense{}, fmt.Errorf("mongo collection is nil")
	}
	e := models.NewExpense(uuid.New().String(), in, time.Now().UTC().Truncate(time.Millisecond))
	if _, err := c.Collection.InsertOne(ctx, e); err != nil {
		return models.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

// FindByID finds an expense record by its ID.
func (c *MongoExpenseCollection) FindByID(ctx context.Context, id string) (models.Expense, bool, error) {
	if c.Collection == nil {
		return models.Expense{}, false, fmt.Errorf("mongo collection is nil")
	}
	var e models.Expense
	err := c.Collection.FindOne(ctx, bson.M{"_id": id}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return models.Expense{}, false, nil
	}
	if err != nil {
		return models.Expense{}, false, fmt.Errorf("find expense: %w", err)
	}
	return e, true, nil
}

// Update applies the patch atomically with a pipeline FindOneAndUpdate and
// returns the stored result.
func (c *MongoExpenseCollection) Update(ctx context.Context, id string, patch models.ExpensePatch) (models.Expense, bool, error) {
	if c.Collection == nil {
		return models.Expense{}, false, fmt.Errorf("mongo collection is nil")
	}

	// Mongo keeps millisecond precision; updated_at must still move forward
	// when two updates land within the same millisecond.
	now := time.Now().UTC().Truncate(time.Millisecond)
	set := patchSet(patch)
	set["updated_at"] = bson.M{"$max": bson.A{
		bson.M{"$literal": now},
		bson.M{"$add": bson.A{"$updated_at", 1}},
	}}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var e models.Expense
	err := c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, mongo.Pipeline{{{Key: "$set", Value: set}}}, opts).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return models.Expense{}, false, nil
	}
	if err != nil {
		return models.Expense{}, false, fmt.Errorf("update expense: %w", err)
	}
	return e, true, nil
}

// patchSet maps the non-nil patch fields to their stored names. Values are
// wrapped in $literal because the update runs as a pipeline, where a string
// such as "$notes" would otherwise be read as a field path.
func patchSet(p models.ExpensePatch) bson.M {
	set := bson.M{}
	put := func(field string, v interface{}) {
		set[field] = bson.M{"$literal": v}
	}
	if p.CarID != nil {
		put("car_id", *p.CarID)
	}
	if p.Category != nil {
		put("category", *p.Category)
	}
	if p.Subcategory != nil {
		put("subcategory", *p.Subcategory)
	}
	if p.Amount != nil {
		put("amount", *p.Amount)
	}
	if p.Description != nil {
		put("description", *p.Description)
	}
	if p.Date != nil {
		put("date", *p.Date)
	}
	if p.Location != nil {
		put("location", *p.Location)
	}
	if p.Mileage != nil {
		put("mileage", *p.Mileage)
	}
	if p.PaymentMethod != nil {
		put("payment_method", *p.PaymentMethod)
	}
	if p.ReceiptImage != nil {
		put("receipt_image", *p.ReceiptImage)
	}
	if p.Tags != nil {
		put("tags", append([]string(nil), p.Tags...))
	}
	if p.Notes != nil {
		put("notes", *p.Notes)
	}
	return set
}

// Delete deletes an expense record by its ID.
func (c *MongoExpenseCollection) Delete(ctx context.Context, id string) (bool, error) {
	if c.Collection == nil {
		return false, fmt.Errorf("mongo collection is nil")
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete expense: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// FindAll returns every expense record in insertion order.
func (c *MongoExpenseCollection) FindAll(ctx context.Context) ([]models.Expense, error) {
	return c.find(ctx, bson.M{})
}

// FindByOwner returns one user's expense records in insertion order.
func (c *MongoExpenseCollection) FindByOwner(ctx context.Context, userID string) ([]models.Expense, error) {
	return c.find(ctx, bson.M{"user_id": userID})
}

func (c *MongoExpenseCollection) find(ctx context.Context, filter bson.M) ([]models.Expense, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find expenses: %w", err)
	}
	defer cursor.Close(ctx)

	out := make([]models.Expense, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode expenses: %w", err)
	}
	return out, nil
}
