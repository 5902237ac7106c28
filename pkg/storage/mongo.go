package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/fhirgateway/pkg/registry"
)

// mongoDoc is the BSON projection of Record for one resource type's
// dedicated collection.
type mongoDoc struct {
	ID           string    `bson:"_id"`
	TenantID     string    `bson:"tenant_id"`
	ResourceType string    `bson:"resource_type"`
	ResourceID   string    `bson:"resource_id"`
	FHIRVersion  string    `bson:"fhir_version"`
	VersionID    int64     `bson:"version_id"`
	IsCurrent    bool      `bson:"is_current"`
	IsDeleted    bool      `bson:"is_deleted"`
	Content      []byte    `bson:"content"`
	SourceURI    string    `bson:"source_uri,omitempty"`
	LastUpdated  time.Time `bson:"last_updated"`
	CreatedAt    time.Time `bson:"created_at"`
}

func toDoc(r Record) mongoDoc {
	return mongoDoc{
		ID: r.ID, TenantID: r.TenantID, ResourceType: r.ResourceType, ResourceID: r.ResourceID,
		FHIRVersion: r.FHIRVersion, VersionID: r.VersionID, IsCurrent: r.IsCurrent, IsDeleted: r.IsDeleted,
		Content: r.Content, SourceURI: r.SourceURI, LastUpdated: r.LastUpdated, CreatedAt: r.CreatedAt,
	}
}

func (d mongoDoc) toRecord() Record {
	return Record{
		ID: d.ID, TenantID: d.TenantID, ResourceType: d.ResourceType, ResourceID: d.ResourceID,
		FHIRVersion: d.FHIRVersion, VersionID: d.VersionID, IsCurrent: d.IsCurrent, IsDeleted: d.IsDeleted,
		Content: d.Content, SourceURI: d.SourceURI, LastUpdated: d.LastUpdated, CreatedAt: d.CreatedAt,
	}
}

// MongoBackend is a dedicated-schema alternative to PostgresBackend: one
// collection per resource type in a database named after the configured
// "dedicated schema" (spec section 4.5 calls this a "separate
// namespace/schema containing a table with identical columns"; for Mongo
// the namespace is a collection rather than a SQL table).
type MongoBackend struct {
	collection *mongo.Collection
}

// NewMongoBackend builds a backend for a single collection, validating the
// collection name exactly like the Postgres schema name — it is, after
// all, the same "dynamic schema name for dedicated storage" the design
// notes warn about.
func NewMongoBackend(db *mongo.Database, collectionName string) (*MongoBackend, error) {
	if !registry.ValidSchemaName(collectionName) {
		return nil, fmt.Errorf("storage: invalid mongo collection name %q", collectionName)
	}
	return &MongoBackend{collection: db.Collection(collectionName)}, nil
}

func (b *MongoBackend) Save(ctx context.Context, rec Record) error {
	_, err := b.collection.InsertOne(ctx, toDoc(rec))
	return err
}

// SaveAsNewCurrent flips the existing current document not-current and
// inserts rec as the new current document inside a client session
// transaction, mirroring PostgresBackend's atomic mark-then-insert (spec
// section 5). Requires a replica-set/sharded deployment, same as any
// multi-document Mongo transaction.
func (b *MongoBackend) SaveAsNewCurrent(ctx context.Context, rec Record) error {
	client := b.collection.Database().Client()
	session, err := client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx context.Context) (any, error) {
		filter := bson.M{"tenant_id": rec.TenantID, "resource_type": rec.ResourceType, "resource_id": rec.ResourceID, "is_current": true}
		if _, err := b.collection.UpdateMany(sessCtx, filter, bson.M{"$set": bson.M{"is_current": false}}); err != nil {
			return nil, err
		}
		if _, err := b.collection.InsertOne(sessCtx, toDoc(rec)); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}

func (b *MongoBackend) FindCurrent(ctx context.Context, tenantID, resourceType, resourceID string) (Record, error) {
	filter := bson.M{"tenant_id": tenantID, "resource_type": resourceType, "resource_id": resourceID, "is_current": true}
	return b.findOne(ctx, filter)
}

func (b *MongoBackend) FindVersion(ctx context.Context, tenantID, resourceType, resourceID string, versionID int64) (Record, error) {
	filter := bson.M{"tenant_id": tenantID, "resource_type": resourceType, "resource_id": resourceID, "version_id": versionID}
	return b.findOne(ctx, filter)
}

func (b *MongoBackend) findOne(ctx context.Context, filter bson.M) (Record, error) {
	var doc mongoDoc
	err := b.collection.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return doc.toRecord(), nil
}

func (b *MongoBackend) FindAllVersionsDesc(ctx context.Context, tenantID, resourceType, resourceID string) ([]Record, error) {
	filter := bson.M{"tenant_id": tenantID, "resource_type": resourceType, "resource_id": resourceID}
	opts := options.Find().SetSort(bson.D{{Key: "version_id", Value: -1}})
	cur, err := b.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []Record
	for cur.Next(ctx) {
		var doc mongoDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toRecord())
	}
	return out, cur.Err()
}

func (b *MongoBackend) Exists(ctx context.Context, tenantID, resourceType, resourceID string) (bool, error) {
	filter := bson.M{"tenant_id": tenantID, "resource_type": resourceType, "resource_id": resourceID}
	n, err := b.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

func (b *MongoBackend) MaxVersionID(ctx context.Context, tenantID, resourceType, resourceID string) (int64, error) {
	filter := bson.M{"tenant_id": tenantID, "resource_type": resourceType, "resource_id": resourceID}
	opts := options.FindOne().SetSort(bson.D{{Key: "version_id", Value: -1}})
	var doc mongoDoc
	err := b.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return doc.VersionID, nil
}

func (b *MongoBackend) MarkAllVersionsNotCurrent(ctx context.Context, tenantID, resourceType, resourceID string) error {
	filter := bson.M{"tenant_id": tenantID, "resource_type": resourceType, "resource_id": resourceID, "is_current": true}
	_, err := b.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_current": false}})
	return err
}

func (b *MongoBackend) SoftDelete(ctx context.Context, tenantID, resourceType, resourceID string, now time.Time) error {
	filter := bson.M{"tenant_id": tenantID, "resource_type": resourceType, "resource_id": resourceID, "is_current": true}
	res, err := b.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"is_deleted": true, "last_updated": now}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (b *MongoBackend) Search(ctx context.Context, tenantID, resourceType string, params map[string][]string, pageable Pageable) (SearchResult, error) {
	pageable = pageable.Normalize()
	filter := bson.M{"tenant_id": tenantID, "resource_type": resourceType, "is_current": true, "is_deleted": false}

	if ids, ok := params["_id"]; ok && len(ids) > 0 {
		filter["resource_id"] = ids[0]
	}

	total, err := b.collection.CountDocuments(ctx, filter)
	if err != nil {
		return SearchResult{}, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "last_updated", Value: -1}}).
		SetSkip(int64(pageable.Offset)).
		SetLimit(int64(pageable.Count))

	cur, err := b.collection.Find(ctx, filter, opts)
	if err != nil {
		return SearchResult{}, err
	}
	defer cur.Close(ctx)

	var out []Record
	for cur.Next(ctx) {
		var doc mongoDoc
		if err := cur.Decode(&doc); err != nil {
			return SearchResult{}, err
		}
		out = append(out, doc.toRecord())
	}
	if err := cur.Err(); err != nil {
		return SearchResult{}, err
	}

	return SearchResult{Records: out, Total: int(total)}, nil
}
