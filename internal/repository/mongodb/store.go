package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmcore/internal/domain/models"
	"github.com/mamadbah2/farmcore/internal/repository"
)

const (
	animalsColl      = "animals"
	productsColl     = "inventory_products"
	transactionsColl = "inventory_transactions"
	alertsColl       = "alerts"
	salesColl        = "sales"
	stockColl        = "stock_items"
)

// Store implements repository.Store on MongoDB. Every unit of work runs in a
// session transaction; updates are conditioned on the stored version.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore connects to MongoDB, verifies the connection and ensures indexes.
// Transactions require the server to run as a replica set.
func NewStore(ctx context.Context, uri, dbName string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(uri).SetRegistry(newRegistry())
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName), logger: logger}
	if err := s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		animalsColl: {
			{Keys: bson.D{{Key: "species", Value: 1}, {Key: "discard.state", Value: 1}}},
		},
		productsColl: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "product_type", Value: 1}}},
			{Keys: bson.D{{Key: "animal_id", Value: 1}}},
		},
		transactionsColl: {
			{Keys: bson.D{{Key: "product_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		alertsColl: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "max_date", Value: 1}}},
		},
		salesColl: {
			{Keys: bson.D{{Key: "sold_at", Value: 1}}},
		},
	}
	for coll, specs := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, specs); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}

// RunInTransaction runs fn inside a snapshot/majority session transaction. The
// driver retries fn on transient transaction errors.
func (s *Store) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx repository.Tx) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start mongodb session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	var tx *mongoTx
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		tx = &mongoTx{db: s.db}
		return nil, fn(sc, tx)
	}, txnOpts)
	if err != nil {
		if isConflict(err) {
			return models.NewError(models.KindConcurrentModification, "mongodb transaction conflict: %v", err)
		}
		return err
	}

	for _, hook := range tx.hooks {
		hook()
	}
	return nil
}

// Server code and label the driver uses for conflicting transactions.
const (
	writeConflictCode    = 112
	driverTransientLabel = "TransientTransactionError"
)

// isConflict reports whether err is a server-side transaction conflict, whatever
// error shape the driver surfaced it in.
func isConflict(err error) bool {
	var srvErr mongo.ServerError
	if !errors.As(err, &srvErr) {
		return false
	}
	return srvErr.HasErrorLabel(driverTransientLabel) || srvErr.HasErrorCode(writeConflictCode)
}

// Close closes the MongoDB connection.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoTx struct {
	db    *mongo.Database
	hooks []func()
}

func (tx *mongoTx) AfterCommit(fn func()) { tx.hooks = append(tx.hooks, fn) }

type versioned[T any] interface {
	*T
	Meta() *models.Record
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, label, id string) (T, error) {
	var out T
	err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return out, models.NotFound(label, id)
	}
	if err != nil {
		return out, fmt.Errorf("find %s %s: %w", label, id, err)
	}
	return out, nil
}

func findMany[T any](ctx context.Context, coll *mongo.Collection, label string, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", label, err)
	}
	defer func() { _ = cursor.Close(ctx) }()

	out := make([]T, 0)
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", label, err)
	}
	return out, nil
}

func insertOne[T any, P versioned[T]](ctx context.Context, coll *mongo.Collection, label string, v T) (T, error) {
	P(&v).Meta().Version = 1
	if _, err := coll.InsertOne(ctx, v); err != nil {
		return v, fmt.Errorf("insert %s: %w", label, err)
	}
	return v, nil
}

// replaceVersioned swaps the stored document only when its version still matches.
func replaceVersioned[T any, P versioned[T]](ctx context.Context, coll *mongo.Collection, label string, v T) (T, error) {
	meta := P(&v).Meta()
	expected := meta.Version
	meta.Version = expected + 1

	res, err := coll.ReplaceOne(ctx, bson.M{"_id": meta.ID, "version": expected}, v)
	if err != nil {
		return v, fmt.Errorf("update %s %s: %w", label, meta.ID, err)
	}
	if res.MatchedCount == 1 {
		return v, nil
	}

	n, err := coll.CountDocuments(ctx, bson.M{"_id": meta.ID})
	if err != nil {
		return v, fmt.Errorf("lookup %s %s: %w", label, meta.ID, err)
	}
	if n == 0 {
		return v, models.NotFound(label, meta.ID)
	}
	return v, models.NewError(models.KindConcurrentModification, "%s %s changed concurrently", label, meta.ID)
}

var byCreated = options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

func (tx *mongoTx) GetAnimal(ctx context.Context, id string) (models.Animal, error) {
	return findOne[models.Animal](ctx, tx.db.Collection(animalsColl), "animal", id)
}

func (tx *mongoTx) ListAnimals(ctx context.Context, f repository.AnimalFilter) ([]models.Animal, error) {
	filter := bson.M{}
	if f.Species != "" {
		filter["species"] = f.Species
	}
	if f.Gender != "" {
		filter["gender"] = f.Gender
	}
	if f.Discarded != nil {
		if *f.Discarded {
			filter["discard.state"] = models.DiscardDiscarded
		} else {
			filter["discard.state"] = bson.M{"$ne": models.DiscardDiscarded}
		}
	}
	return findMany[models.Animal](ctx, tx.db.Collection(animalsColl), "animals", filter, byCreated)
}

func (tx *mongoTx) InsertAnimal(ctx context.Context, a models.Animal) (models.Animal, error) {
	return insertOne(ctx, tx.db.Collection(animalsColl), "animal", a)
}

func (tx *mongoTx) UpdateAnimal(ctx context.Context, a models.Animal) (models.Animal, error) {
	return replaceVersioned(ctx, tx.db.Collection(animalsColl), "animal", a)
}

func (tx *mongoTx) DeleteAnimal(ctx context.Context, id string) error {
	res, err := tx.db.Collection(animalsColl).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete animal %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return models.NotFound("animal", id)
	}
	return nil
}

func (tx *mongoTx) GetProduct(ctx context.Context, id string) (models.InventoryProduct, error) {
	return findOne[models.InventoryProduct](ctx, tx.db.Collection(productsColl), "inventory product", id)
}

func (tx *mongoTx) ListProducts(ctx context.Context, f repository.ProductFilter) ([]models.InventoryProduct, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.ProductType != "" {
		filter["product_type"] = f.ProductType
	}
	if f.Location != "" {
		filter["location"] = f.Location
	}
	if f.AnimalID != "" {
		filter["animal_id"] = f.AnimalID
	}
	return findMany[models.InventoryProduct](ctx, tx.db.Collection(productsColl), "inventory products", filter, byCreated)
}

func (tx *mongoTx) InsertProduct(ctx context.Context, p models.InventoryProduct) (models.InventoryProduct, error) {
	return insertOne(ctx, tx.db.Collection(productsColl), "inventory product", p)
}

func (tx *mongoTx) UpdateProduct(ctx context.Context, p models.InventoryProduct) (models.InventoryProduct, error) {
	return replaceVersioned(ctx, tx.db.Collection(productsColl), "inventory product", p)
}

func (tx *mongoTx) InsertTransaction(ctx context.Context, t models.InventoryTransaction) (models.InventoryTransaction, error) {
	return insertOne(ctx, tx.db.Collection(transactionsColl), "inventory transaction", t)
}

func (tx *mongoTx) ListTransactions(ctx context.Context, productID string) ([]models.InventoryTransaction, error) {
	return findMany[models.InventoryTransaction](ctx, tx.db.Collection(transactionsColl), "inventory transactions",
		bson.M{"product_id": productID}, byCreated)
}

func (tx *mongoTx) GetAlert(ctx context.Context, id string) (models.Alert, error) {
	return findOne[models.Alert](ctx, tx.db.Collection(alertsColl), "alert", id)
}

func (tx *mongoTx) ListAlerts(ctx context.Context, f repository.AlertFilter) ([]models.Alert, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Name != "" {
		filter["name"] = f.Name
	}
	if f.AnimalID != "" {
		filter["$or"] = bson.A{bson.M{"animal_id": f.AnimalID}, bson.M{"animal_ids": f.AnimalID}}
	}
	return findMany[models.Alert](ctx, tx.db.Collection(alertsColl), "alerts", filter, byCreated)
}

func (tx *mongoTx) InsertAlert(ctx context.Context, a models.Alert) (models.Alert, error) {
	return insertOne(ctx, tx.db.Collection(alertsColl), "alert", a)
}

func (tx *mongoTx) UpdateAlert(ctx context.Context, a models.Alert) (models.Alert, error) {
	return replaceVersioned(ctx, tx.db.Collection(alertsColl), "alert", a)
}

func (tx *mongoTx) GetSale(ctx context.Context, id string) (models.Sale, error) {
	return findOne[models.Sale](ctx, tx.db.Collection(salesColl), "sale", id)
}

func (tx *mongoTx) ListSales(ctx context.Context, f repository.SaleFilter) ([]models.Sale, error) {
	filter := bson.M{}
	if f.Kind != "" {
		filter["kind"] = f.Kind
	}
	if f.AnimalID != "" {
		filter["animal_id"] = f.AnimalID
	}
	if f.ProductID != "" {
		filter["product_id"] = f.ProductID
	}
	window := bson.M{}
	if f.From != nil {
		window["$gte"] = *f.From
	}
	if f.To != nil {
		window["$lt"] = *f.To
	}
	if len(window) > 0 {
		filter["sold_at"] = window
	}
	opts := options.Find().SetSort(bson.D{{Key: "sold_at", Value: 1}, {Key: "_id", Value: 1}})
	return findMany[models.Sale](ctx, tx.db.Collection(salesColl), "sales", filter, opts)
}

func (tx *mongoTx) InsertSale(ctx context.Context, sale models.Sale) (models.Sale, error) {
	return insertOne(ctx, tx.db.Collection(salesColl), "sale", sale)
}

func (tx *mongoTx) GetStockItem(ctx context.Context, id string) (models.StockItem, error) {
	return findOne[models.StockItem](ctx, tx.db.Collection(stockColl), "stock item", id)
}

func (tx *mongoTx) ListStockItems(ctx context.Context) ([]models.StockItem, error) {
	return findMany[models.StockItem](ctx, tx.db.Collection(stockColl), "stock items", bson.M{}, byCreated)
}

func (tx *mongoTx) InsertStockItem(ctx context.Context, item models.StockItem) (models.StockItem, error) {
	return insertOne(ctx, tx.db.Collection(stockColl), "stock item", item)
}

func (tx *mongoTx) UpdateStockItem(ctx context.Context, item models.StockItem) (models.StockItem, error) {
	return replaceVersioned(ctx, tx.db.Collection(stockColl), "stock item", item)
}
