package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/iago/feed-agent-back/internal/domain"
	"github.com/iago/feed-agent-back/internal/filter"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type MongoConfig struct {
	Database    string
	Collection  string
	VectorIndex string
	// NumCandidatesFactor multiplies n to size the ANN candidate pool.
	NumCandidatesFactor int
}

// MongoStore queries an Atlas collection with a vector search index on
// the "embedding" field.
type MongoStore struct {
	collection          *mongo.Collection
	vectorIndex         string
	numCandidatesFactor int
}

func NewMongoStore(client *mongo.Client, cfg MongoConfig) (*MongoStore, error) {
	if client == nil {
		return nil, errors.New("mongo client is required")
	}
	if strings.TrimSpace(cfg.Database) == "" {
		cfg.Database = "myDatabase"
	}
	if strings.TrimSpace(cfg.Collection) == "" {
		cfg.Collection = "feeds embedded"
	}
	if strings.TrimSpace(cfg.VectorIndex) == "" {
		cfg.VectorIndex = "vector_index"
	}
	if cfg.NumCandidatesFactor <= 0 {
		cfg.NumCandidatesFactor = 10
	}
	return &MongoStore{
		collection:          client.Database(cfg.Database).Collection(cfg.Collection),
		vectorIndex:         cfg.VectorIndex,
		numCandidatesFactor: cfg.NumCandidatesFactor,
	}, nil
}

func (s *MongoStore) SimilaritySearch(
	ctx context.Context,
	embedding []float32,
	predicate filter.Predicate,
	n int,
) ([]ScoredDocument, error) {
	if len(embedding) == 0 {
		return nil, ErrInvalidEmbedding
	}
	if predicate.Unsatisfiable() {
		return []ScoredDocument{}, nil
	}

	cursor, err := s.collection.Aggregate(ctx, vectorSearchPipeline(s.vectorIndex, embedding, predicate, n, s.numCandidatesFactor))
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode vector search hits: %w", err)
	}

	results := make([]ScoredDocument, 0, len(raw))
	for _, item := range raw {
		score, _ := domain.AsFloat64(item["score"])
		delete(item, "score")
		results = append(results, ScoredDocument{Document: documentFromBSON(item), Score: score})
	}
	return results, nil
}

func (s *MongoStore) ExactQuery(ctx context.Context, predicate filter.Predicate, n int) ([]Document, error) {
	if predicate.Unsatisfiable() {
		return []Document{}, nil
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: domain.FieldTimestamp, Value: -1}}).
		SetProjection(bson.D{{Key: domain.FieldEmbedding, Value: 0}})
	if n > 0 {
		findOptions.SetLimit(int64(n))
	}

	cursor, err := s.collection.Find(ctx, mongoFilter(predicate), findOptions)
	if err != nil {
		return nil, fmt.Errorf("find feeds: %w", err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("decode feeds: %w", err)
	}

	results := make([]Document, 0, len(raw))
	for _, item := range raw {
		results = append(results, documentFromBSON(item))
	}
	return results, nil
}

func (s *MongoStore) Insert(ctx context.Context, documents []EmbeddedDocument) error {
	if len(documents) == 0 {
		return nil
	}

	encoded := make([]any, 0, len(documents))
	for _, document := range documents {
		encoded = append(encoded, mongoDocument(document))
	}

	if _, err := s.collection.InsertMany(ctx, encoded); err != nil {
		return fmt.Errorf("insert feeds: %w", err)
	}
	return nil
}

// mongoDocument stores the timestamp as a BSON date so range filters,
// which bind time.Time values, compare against the same type.
func mongoDocument(document EmbeddedDocument) bson.M {
	id := document.ID
	if id == "" {
		id = uuid.NewString()
	}
	item := bson.M{"_id": id, domain.FieldEmbeddingText: document.Text}
	for key, value := range document.Fields {
		item[key] = value
	}
	if value, ok := item[domain.FieldTimestamp]; ok {
		if parsed, ok := domain.AsTime(value); ok {
			item[domain.FieldTimestamp] = parsed.UTC()
		}
	}
	if len(document.Embedding) > 0 {
		item[domain.FieldEmbedding] = document.Embedding
	}
	return item
}

// maxNumCandidates is the Atlas ceiling for $vectorSearch numCandidates.
const maxNumCandidates = 10000

func vectorSearchPipeline(
	index string,
	embedding []float32,
	predicate filter.Predicate,
	n int,
	candidatesFactor int,
) mongo.Pipeline {
	if n <= 0 {
		n = domain.DefaultRetrievalLimit
	}
	n = min(n, maxNumCandidates)
	candidates := min(max(n*candidatesFactor, n), maxNumCandidates)
	stage := bson.D{
		{Key: "index", Value: index},
		{Key: "path", Value: domain.FieldEmbedding},
		{Key: "queryVector", Value: embedding},
		{Key: "numCandidates", Value: candidates},
		{Key: "limit", Value: n},
	}
	if !predicate.IsEmpty() {
		stage = append(stage, bson.E{Key: "filter", Value: mongoFilter(predicate)})
	}

	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: stage}},
		{{Key: "$set", Value: bson.D{{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}}}}},
		{{Key: "$project", Value: bson.D{{Key: domain.FieldEmbedding, Value: 0}}}},
	}
}

func mongoFilter(predicate filter.Predicate) bson.D {
	document := bson.D{}
	for _, equality := range predicate.Equals {
		document = append(document, bson.E{Key: equality.Field, Value: equality.Value})
	}
	if predicate.Range != nil {
		bounds := bson.D{}
		if predicate.Range.From != nil {
			bounds = append(bounds, bson.E{Key: "$gte", Value: *predicate.Range.From})
		}
		if predicate.Range.To != nil {
			bounds = append(bounds, bson.E{Key: "$lte", Value: *predicate.Range.To})
		}
		document = append(document, bson.E{Key: predicate.Range.Field, Value: bounds})
	}
	for _, minimum := range predicate.Minimums {
		document = append(document, bson.E{Key: minimum.Field, Value: bson.D{{Key: "$gte", Value: minimum.Value}}})
	}
	return document
}

func documentFromBSON(item bson.M) Document {
	fields, _ := plainValue(item).(map[string]any)
	document := Document{Fields: fields}
	if document.Fields == nil {
		document.Fields = map[string]any{}
	}

	document.ID = domain.AsString(document.Fields["_id"])
	document.Text = domain.AsString(document.Fields[domain.FieldEmbeddingText])
	delete(document.Fields, "_id")
	delete(document.Fields, domain.FieldEmbeddingText)
	delete(document.Fields, domain.FieldEmbedding)
	return document
}

// plainValue converts driver types to the map/slice/time shapes shared by
// every backend.
func plainValue(value any) any {
	switch typed := value.(type) {
	case bson.M:
		result := make(map[string]any, len(typed))
		for key, nested := range typed {
			result[key] = plainValue(nested)
		}
		return result
	case map[string]any:
		result := make(map[string]any, len(typed))
		for key, nested := range typed {
			result[key] = plainValue(nested)
		}
		return result
	case bson.D:
		result := make(map[string]any, len(typed))
		for _, element := range typed {
			result[element.Key] = plainValue(element.Value)
		}
		return result
	case bson.A:
		result := make([]any, 0, len(typed))
		for _, nested := range typed {
			result = append(result, plainValue(nested))
		}
		return result
	case bson.DateTime:
		return typed.Time().UTC()
	case bson.ObjectID:
		return typed.Hex()
	default:
		return value
	}
}
