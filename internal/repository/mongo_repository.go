package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	appErrors "github.com/unclebandit/campaign-service/internal/errors"
	"github.com/unclebandit/campaign-service/internal/model"
)

const (
	campaignsCollection = "campaigns"
	messagesCollection  = "messages"
	contactsCollection  = "contacts"
)

// EnsureIndexes creates the indexes the Mongo repositories rely on. Safe to
// call on every start.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		campaignsCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_for", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		messagesCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "campaign_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		contactsCollection: {
			{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "tags", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

// notFound maps mongo.ErrNoDocuments onto the domain error, keeping the cause.
func notFound(err error, id string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%w: %w", appErrors.NewCampaignNotFound(id), err)
	}
	return err
}

func containsInsensitive(term string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
}

// MongoCampaignRepository stores campaigns as documents keyed by their string id.
type MongoCampaignRepository struct {
	collection *mongo.Collection
}

func NewMongoCampaignRepository(db *mongo.Database) *MongoCampaignRepository {
	return &MongoCampaignRepository{collection: db.Collection(campaignsCollection)}
}

func (r *MongoCampaignRepository) Find(ctx context.Context, filter model.CampaignFilter) ([]*model.Campaign, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Channel != "" {
		query["channel"] = filter.Channel
	}
	if filter.Search != "" {
		query["name"] = containsInsensitive(filter.Search)
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing campaigns: %w", err)
	}
	defer cursor.Close(ctx)

	campaigns := []*model.Campaign{}
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, fmt.Errorf("error decoding campaigns: %w", err)
	}
	return campaigns, nil
}

func (r *MongoCampaignRepository) FindOne(ctx context.Context, id string) (*model.Campaign, error) {
	var c model.Campaign
	if err := r.collection.FindOne(ctx, bson.M{"id": id}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound(err, id)
		}
		return nil, fmt.Errorf("error finding campaign %s: %w", id, err)
	}
	return &c, nil
}

func (r *MongoCampaignRepository) InsertOne(ctx context.Context, c *model.Campaign) error {
	doc := c.Clone()
	if doc.ContactIDs == nil {
		doc.ContactIDs = []string{}
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("error creating campaign %s: %w", c.ID, err)
	}
	return nil
}

func (r *MongoCampaignRepository) UpdateDetails(ctx context.Context, c *model.Campaign) error {
	set := bson.M{
		"name":                c.Name,
		"message":             c.Message,
		"script":              c.Script,
		"voice_recording_ref": c.VoiceRecordingRef,
		"updated_at":          c.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if c.ScheduledFor != nil {
		set["scheduled_for"] = *c.ScheduledFor
	} else {
		update["$unset"] = bson.M{"scheduled_for": ""}
	}
	return r.updateOne(ctx, c.ID, update)
}

func (r *MongoCampaignRepository) UpdateStatus(ctx context.Context, id string, status model.CampaignStatus, updatedAt time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"status": status, "updated_at": updatedAt}})
}

func (r *MongoCampaignRepository) UpdateProgress(ctx context.Context, id string, p model.Progress, updatedAt time.Time) error {
	return r.updateOne(ctx, id, bson.M{"$set": bson.M{"progress": p, "updated_at": updatedAt}})
}

func (r *MongoCampaignRepository) TransitionStatus(ctx context.Context, id string, from, to model.CampaignStatus, updatedAt time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": updatedAt}})
	if err != nil {
		return false, fmt.Errorf("error transitioning campaign %s: %w", id, err)
	}
	return result.MatchedCount > 0, nil
}

func (r *MongoCampaignRepository) updateOne(ctx context.Context, id string, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"id": id}, update)
	if err != nil {
		return fmt.Errorf("error updating campaign %s: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments, id)
	}
	return nil
}

func (r *MongoCampaignRepository) DeleteOne(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"id": id})
	if err != nil {
		return false, fmt.Errorf("error deleting campaign %s: %w", id, err)
	}
	return result.DeletedCount > 0, nil
}

// MongoMessageRepository stores one document per delivery record.
type MongoMessageRepository struct {
	collection *mongo.Collection
}

func NewMongoMessageRepository(db *mongo.Database) *MongoMessageRepository {
	return &MongoMessageRepository{collection: db.Collection(messagesCollection)}
}

func (r *MongoMessageRepository) FindByCampaign(ctx context.Context, campaignID string) ([]*model.Message, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"campaign_id": campaignID}, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing messages: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := []*model.Message{}
	if err := cursor.All(ctx, &msgs); err != nil {
		return nil, fmt.Errorf("error decoding messages: %w", err)
	}
	return msgs, nil
}

func (r *MongoMessageRepository) InsertMany(ctx context.Context, msgs []*model.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	docs := make([]interface{}, len(msgs))
	for i, m := range msgs {
		docs[i] = m
	}
	if _, err := r.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
		return fmt.Errorf("error inserting messages: %w", err)
	}
	return nil
}

func (r *MongoMessageRepository) DeleteMany(ctx context.Context, campaignID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"campaign_id": campaignID})
	if err != nil {
		return 0, fmt.Errorf("error deleting messages: %w", err)
	}
	return result.DeletedCount, nil
}

// MongoContactRepository holds the contact directory.
type MongoContactRepository struct {
	collection *mongo.Collection
}

func NewMongoContactRepository(db *mongo.Database) *MongoContactRepository {
	return &MongoContactRepository{collection: db.Collection(contactsCollection)}
}

func (r *MongoContactRepository) Find(ctx context.Context, filter model.ContactFilter) ([]*model.Contact, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if filter.Tag != "" {
		query["tags"] = filter.Tag
	}
	if filter.Search != "" {
		query["$or"] = bson.A{
			bson.M{"name": containsInsensitive(filter.Search)},
			bson.M{"phone": primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search)}},
			bson.M{"email": containsInsensitive(filter.Search)},
		}
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("error listing contacts: %w", err)
	}
	defer cursor.Close(ctx)

	contacts := []*model.Contact{}
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("error decoding contacts: %w", err)
	}
	return contacts, nil
}

func (r *MongoContactRepository) FindByIDs(ctx context.Context, ids []string) (map[string]*model.Contact, error) {
	out := make(map[string]*model.Contact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cursor, err := r.collection.Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("error finding contacts: %w", err)
	}
	defer cursor.Close(ctx)

	var contacts []*model.Contact
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, fmt.Errorf("error decoding contacts: %w", err)
	}
	for _, c := range contacts {
		out[c.ID] = c
	}
	return out, nil
}

// InsertMany upserts contacts by id in a single bulk write.
func (r *MongoContactRepository) InsertMany(ctx context.Context, contacts []*model.Contact) error {
	if len(contacts) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(contacts))
	for _, c := range contacts {
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"id": c.ID}).
			SetReplacement(c).
			SetUpsert(true))
	}
	if _, err := r.collection.BulkWrite(ctx, writes); err != nil {
		return fmt.Errorf("error upserting contacts: %w", err)
	}
	return nil
}

var (
	_ CampaignRepositoryInterface = (*MongoCampaignRepository)(nil)
	_ MessageRepositoryInterface  = (*MongoMessageRepository)(nil)
	_ ContactRepositoryInterface  = (*MongoContactRepository)(nil)
)
