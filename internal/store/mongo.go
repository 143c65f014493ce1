package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names mirror the original document layout.
const (
	collUsers            = "users"
	collUserSettings     = "userSettings"
	collRefreshSessions  = "refreshSessions"
	collIdeas            = "ideas"
	collComments         = "comments"
	collLikes            = "likes"
	collAdminComments    = "adminComments"
	collThemes           = "themes"
	collEvents           = "events"
	collNotifications    = "notifications"
	collContacts         = "contacts"
	collBusinessContacts = "businessContacts"
	collDeletionLogs     = "deletionLogs"
)

// MongoStore is the document-store backend. Multi-document writes use
// transactions, so the server must run as a replica set.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	s := &MongoStore{client: client, db: client.Database(database)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique and partial indexes the invariants rely on.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collUsers: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collLikes: {
			{Keys: bson.D{{Key: "ideaId", Value: 1}, {Key: "visitorId", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collThemes: {
			{
				Keys:    bson.D{{Key: "isActive", Value: 1}},
				Options: options.Index().SetUnique(true).SetPartialFilterExpression(bson.M{"isActive": true}).SetName("single_active"),
			},
		},
		collComments: {
			{Keys: bson.D{{Key: "ideaId", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		collNotifications: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		collRefreshSessions: {
			{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
		},
	}
	for coll, models := range indexes {
		if _, err := s.db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) c(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *MongoStore) withTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func mongoNotFound(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter any, opts *options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	items := make([]T, 0)
	if err := cursor.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func sortBy(fields ...bson.E) *options.FindOptions {
	return options.Find().SetSort(bson.D(fields))
}

func requireMatched(result *mongo.UpdateResult) error {
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Users

func (s *MongoStore) CreateUser(ctx context.Context, user User) error {
	user.UpdatedAt = user.CreatedAt
	if _, err := s.c(collUsers).InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var user User
	if err := s.c(collUsers).FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return User{}, mongoNotFound(err)
	}
	return user, nil
}

func (s *MongoStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	if err := s.c(collUsers).FindOne(ctx, bson.M{"email": strings.ToLower(email)}).Decode(&user); err != nil {
		return User{}, mongoNotFound(err)
	}
	return user, nil
}

func (s *MongoStore) ListUsers(ctx context.Context) ([]User, error) {
	users, err := findAll[User](ctx, s.c(collUsers), bson.M{}, sortBy(bson.E{Key: "createdAt", Value: -1}))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *MongoStore) setUserField(ctx context.Context, id, field string, value any) error {
	result, err := s.c(collUsers).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{field: value, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("update user %s: %w", field, err)
	}
	return requireMatched(result)
}

func (s *MongoStore) UpdateUserDisplayName(ctx context.Context, id, displayName string) error {
	return s.setUserField(ctx, id, "displayName", displayName)
}

func (s *MongoStore) UpdateUserRole(ctx context.Context, id, role string) error {
	return s.setUserField(ctx, id, "role", role)
}

func (s *MongoStore) UpdateUserPassword(ctx context.Context, id, passwordHash string) error {
	return s.setUserField(ctx, id, "passwordHash", passwordHash)
}

func (s *MongoStore) DeleteUserAccount(ctx context.Context, userID string, entry DeletionLog) error {
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		result, err := s.c(collUsers).DeleteOne(sc, bson.M{"_id": userID})
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if result.DeletedCount == 0 {
			return ErrNotFound
		}
		if _, err := s.c(collUserSettings).DeleteOne(sc, bson.M{"_id": userID}); err != nil {
			return fmt.Errorf("delete user settings: %w", err)
		}
		for _, coll := range []string{collNotifications, collRefreshSessions} {
			if _, err := s.c(coll).DeleteMany(sc, bson.M{"userId": userID}); err != nil {
				return fmt.Errorf("delete %s: %w", coll, err)
			}
		}
		for _, coll := range []string{collIdeas, collComments} {
			if _, err := s.c(coll).UpdateMany(sc, bson.M{"userId": userID}, bson.M{"$unset": bson.M{"userId": ""}}); err != nil {
				return fmt.Errorf("detach %s: %w", coll, err)
			}
		}
		if _, err := s.c(collDeletionLogs).InsertOne(sc, entry); err != nil {
			return fmt.Errorf("insert deletion log: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) ListDeletionLogs(ctx context.Context) ([]DeletionLog, error) {
	logs, err := findAll[DeletionLog](ctx, s.c(collDeletionLogs), bson.M{}, sortBy(bson.E{Key: "deletedAt", Value: -1}))
	if err != nil {
		return nil, fmt.Errorf("list deletion logs: %w", err)
	}
	return logs, nil
}

func (s *MongoStore) GetUserSettings(ctx context.Context, userID string) (UserSettings, error) {
	var settings UserSettings
	err := s.c(collUserSettings).FindOne(ctx, bson.M{"_id": userID}).Decode(&settings)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return DefaultUserSettings(userID), nil
	}
	if err != nil {
		return UserSettings{}, fmt.Errorf("get user settings: %w", err)
	}
	return settings, nil
}

func (s *MongoStore) SaveUserSettings(ctx context.Context, settings UserSettings) error {
	_, err := s.c(collUserSettings).ReplaceOne(ctx, bson.M{"_id": settings.UserID}, settings, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save user settings: %w", err)
	}
	return nil
}

// Refresh sessions

type mongoRefreshSession struct {
	TokenHash string    `bson:"_id"`
	UserID    string    `bson:"userId"`
	ExpiresAt time.Time `bson:"expiresAt"`
}

func (s *MongoStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	doc := mongoRefreshSession{TokenHash: tokenHash, UserID: userID, ExpiresAt: expiresAt}
	if _, err := s.c(collRefreshSessions).ReplaceOne(ctx, bson.M{"_id": tokenHash}, doc, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *MongoStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	if _, err := s.c(collRefreshSessions).DeleteOne(ctx, bson.M{"_id": tokenHash}); err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ConsumeRefreshSession deletes a live token and returns its owner.
func (s *MongoStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	var session mongoRefreshSession
	err := s.c(collRefreshSessions).FindOneAndDelete(ctx, bson.M{"_id": tokenHash, "expiresAt": bson.M{"$gt": time.Now().UTC()}}).Decode(&session)
	if err != nil {
		return User{}, mongoNotFound(err)
	}
	return s.GetUserByID(ctx, session.UserID)
}

// Ideas

func normalizeIdea(idea Idea) Idea {
	if idea.Checklist == nil {
		idea.Checklist = []ChecklistItem{}
	}
	if idea.History == nil {
		idea.History = []IdeaAction{}
	}
	return idea
}

func (s *MongoStore) InsertIdea(ctx context.Context, idea Idea) error {
	idea = normalizeIdea(idea)
	idea.Likes = 0
	idea.UpdatedAt = idea.CreatedAt
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		if idea.ThemeID != nil {
			if err := s.c(collThemes).FindOne(sc, bson.M{"_id": *idea.ThemeID}).Err(); err != nil {
				return mongoNotFound(err)
			}
		}
		if _, err := s.c(collIdeas).InsertOne(sc, idea); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert idea: %w", err)
		}
		if idea.UserID == nil {
			return nil
		}
		inc := bson.M{"postCount": 1}
		if idea.ThemeID != nil {
			inc["themePostCount"] = 1
		}
		if _, err := s.c(collUsers).UpdateOne(sc, bson.M{"_id": *idea.UserID}, bson.M{"$inc": inc}); err != nil {
			return fmt.Errorf("increment user counters: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) GetIdea(ctx context.Context, id string) (Idea, error) {
	var idea Idea
	if err := s.c(collIdeas).FindOne(ctx, bson.M{"_id": id}).Decode(&idea); err != nil {
		return Idea{}, mongoNotFound(err)
	}
	return normalizeIdea(idea), nil
}

func (s *MongoStore) ListIdeas(ctx context.Context) ([]Idea, error) {
	ideas, err := findAll[Idea](ctx, s.c(collIdeas), bson.M{}, sortBy(bson.E{Key: "createdAt", Value: -1}, bson.E{Key: "_id", Value: -1}))
	if err != nil {
		return nil, fmt.Errorf("list ideas: %w", err)
	}
	for i := range ideas {
		ideas[i] = normalizeIdea(ideas[i])
	}
	return ideas, nil
}

// UpdateIdeaStatus uses one $set/$push update, which Mongo applies atomically.
func (s *MongoStore) UpdateIdeaStatus(ctx context.Context, id string, status IdeaStatus, action IdeaAction) (Idea, error) {
	var idea Idea
	err := s.c(collIdeas).FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$set":  bson.M{"status": status, "updatedAt": action.Timestamp},
			"$push": bson.M{"history": action},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&idea)
	if err != nil {
		return Idea{}, mongoNotFound(err)
	}
	return normalizeIdea(idea), nil
}

func (s *MongoStore) UpdateIdeaAdmin(ctx context.Context, id, memo string, checklist []ChecklistItem) error {
	if checklist == nil {
		checklist = []ChecklistItem{}
	}
	result, err := s.c(collIdeas).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"adminMemo": memo,
		"checklist": checklist,
		"updatedAt": time.Now().UTC(),
	}})
	if err != nil {
		return fmt.Errorf("update idea admin fields: %w", err)
	}
	return requireMatched(result)
}

func (s *MongoStore) DeleteIdea(ctx context.Context, id string) error {
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		result, err := s.c(collIdeas).DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("delete idea: %w", err)
		}
		if result.DeletedCount == 0 {
			return ErrNotFound
		}
		for _, coll := range []string{collComments, collLikes, collAdminComments} {
			if _, err := s.c(coll).DeleteMany(sc, bson.M{"ideaId": id}); err != nil {
				return fmt.Errorf("cascade %s: %w", coll, err)
			}
		}
		if _, err := s.c(collEvents).UpdateMany(sc, bson.M{"ideaId": id}, bson.M{"$unset": bson.M{"ideaId": ""}}); err != nil {
			return fmt.Errorf("detach events: %w", err)
		}
		return nil
	})
}

// Likes

// errAlreadyLiked aborts the like transaction; a duplicate key error has
// already poisoned it server-side.
var errAlreadyLiked = errors.New("already liked")

func (s *MongoStore) InsertLike(ctx context.Context, like Like) (bool, error) {
	err := s.withTx(ctx, func(sc mongo.SessionContext) error {
		if err := s.c(collIdeas).FindOne(sc, bson.M{"_id": like.IdeaID}).Err(); err != nil {
			return mongoNotFound(err)
		}
		if _, err := s.c(collLikes).InsertOne(sc, like); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return errAlreadyLiked
			}
			return fmt.Errorf("insert like: %w", err)
		}
		if _, err := s.c(collIdeas).UpdateOne(sc, bson.M{"_id": like.IdeaID}, bson.M{"$inc": bson.M{"likes": 1}}); err != nil {
			return fmt.Errorf("increment likes: %w", err)
		}
		return nil
	})
	if errors.Is(err, errAlreadyLiked) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MongoStore) DeleteLike(ctx context.Context, ideaID, visitorID string) (bool, error) {
	removed := false
	err := s.withTx(ctx, func(sc mongo.SessionContext) error {
		removed = false
		result, err := s.c(collLikes).DeleteOne(sc, bson.M{"ideaId": ideaID, "visitorId": visitorID})
		if err != nil {
			return fmt.Errorf("delete like: %w", err)
		}
		if result.DeletedCount == 0 {
			return nil
		}
		if _, err := s.c(collIdeas).UpdateOne(sc,
			bson.M{"_id": ideaID, "likes": bson.M{"$gt": 0}},
			bson.M{"$inc": bson.M{"likes": -1}},
		); err != nil {
			return fmt.Errorf("decrement likes: %w", err)
		}
		removed = true
		return nil
	})
	return removed, err
}

func (s *MongoStore) HasLike(ctx context.Context, ideaID, visitorID string) (bool, error) {
	count, err := s.c(collLikes).CountDocuments(ctx, bson.M{"ideaId": ideaID, "visitorId": visitorID}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("check like: %w", err)
	}
	return count > 0, nil
}

func (s *MongoStore) CountLikes(ctx context.Context, ideaID string) (int, error) {
	count, err := s.c(collLikes).CountDocuments(ctx, bson.M{"ideaId": ideaID})
	if err != nil {
		return 0, fmt.Errorf("count likes: %w", err)
	}
	return int(count), nil
}

// Comments

func (s *MongoStore) InsertComment(ctx context.Context, comment Comment) error {
	if err := s.c(collIdeas).FindOne(ctx, bson.M{"_id": comment.IdeaID}).Err(); err != nil {
		return mongoNotFound(err)
	}
	if _, err := s.c(collComments).InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *MongoStore) ListComments(ctx context.Context, ideaID string) ([]Comment, error) {
	comments, err := findAll[Comment](ctx, s.c(collComments), bson.M{"ideaId": ideaID}, sortBy(bson.E{Key: "createdAt", Value: 1}, bson.E{Key: "_id", Value: 1}))
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

func (s *MongoStore) InsertAdminComment(ctx context.Context, comment AdminComment) error {
	if err := s.c(collIdeas).FindOne(ctx, bson.M{"_id": comment.IdeaID}).Err(); err != nil {
		return mongoNotFound(err)
	}
	if _, err := s.c(collAdminComments).InsertOne(ctx, comment); err != nil {
		return fmt.Errorf("insert admin comment: %w", err)
	}
	return nil
}

func (s *MongoStore) ListAdminComments(ctx context.Context, ideaID string) ([]AdminComment, error) {
	comments, err := findAll[AdminComment](ctx, s.c(collAdminComments), bson.M{"ideaId": ideaID}, sortBy(bson.E{Key: "createdAt", Value: 1}))
	if err != nil {
		return nil, fmt.Errorf("list admin comments: %w", err)
	}
	return comments, nil
}

// Themes

func (s *MongoStore) InsertTheme(ctx context.Context, theme Theme) error {
	theme.UpdatedAt = theme.CreatedAt
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		if theme.IsActive {
			if _, err := s.c(collThemes).UpdateMany(sc, bson.M{"isActive": true}, bson.M{"$set": bson.M{"isActive": false}}); err != nil {
				return fmt.Errorf("deactivate themes: %w", err)
			}
		}
		if _, err := s.c(collThemes).InsertOne(sc, theme); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert theme: %w", err)
		}
		return nil
	})
}

func (s *MongoStore) GetTheme(ctx context.Context, id string) (Theme, error) {
	var theme Theme
	if err := s.c(collThemes).FindOne(ctx, bson.M{"_id": id}).Decode(&theme); err != nil {
		return Theme{}, mongoNotFound(err)
	}
	return theme, nil
}

func (s *MongoStore) ListThemes(ctx context.Context) ([]Theme, error) {
	themes, err := findAll[Theme](ctx, s.c(collThemes), bson.M{}, sortBy(bson.E{Key: "startDate", Value: -1}, bson.E{Key: "createdAt", Value: -1}))
	if err != nil {
		return nil, fmt.Errorf("list themes: %w", err)
	}
	return themes, nil
}

func (s *MongoStore) GetActiveTheme(ctx context.Context) (*Theme, error) {
	var theme Theme
	err := s.c(collThemes).FindOne(ctx, bson.M{"isActive": true}).Decode(&theme)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active theme: %w", err)
	}
	return &theme, nil
}

func (s *MongoStore) UpdateTheme(ctx context.Context, id string, patch ThemePatch) (Theme, error) {
	var updated Theme
	err := s.withTx(ctx, func(sc mongo.SessionContext) error {
		var current Theme
		if err := s.c(collThemes).FindOne(sc, bson.M{"_id": id}).Decode(&current); err != nil {
			return mongoNotFound(err)
		}
		next := patch.Apply(current)
		set := bson.M{
			"title":       next.Title,
			"description": next.Description,
			"startDate":   next.StartDate,
			"endDate":     next.EndDate,
			"updatedAt":   time.Now().UTC(),
		}
		update := bson.M{"$set": set}
		if next.EventDate != nil {
			set["eventDate"] = *next.EventDate
		} else {
			update["$unset"] = bson.M{"eventDate": ""}
		}
		if patch.IsActive != nil {
			if *patch.IsActive {
				if _, err := s.c(collThemes).UpdateMany(sc,
					bson.M{"isActive": true, "_id": bson.M{"$ne": id}},
					bson.M{"$set": bson.M{"isActive": false}},
				); err != nil {
					return fmt.Errorf("deactivate themes: %w", err)
				}
			}
			set["isActive"] = *patch.IsActive
		}
		err := s.c(collThemes).FindOneAndUpdate(sc, bson.M{"_id": id}, update,
			options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
		if mongo.IsDuplicateKeyError(err) {
			return ErrConflict
		}
		return mongoNotFound(err)
	})
	return updated, err
}

func (s *MongoStore) ActivateTheme(ctx context.Context, id string) error {
	active := true
	_, err := s.UpdateTheme(ctx, id, ThemePatch{IsActive: &active})
	return err
}

func (s *MongoStore) DeleteTheme(ctx context.Context, id string) error {
	return s.withTx(ctx, func(sc mongo.SessionContext) error {
		result, err := s.c(collThemes).DeleteOne(sc, bson.M{"_id": id})
		if err != nil {
			return fmt.Errorf("delete theme: %w", err)
		}
		if result.DeletedCount == 0 {
			return ErrNotFound
		}
		for _, coll := range []string{collIdeas, collEvents} {
			if _, err := s.c(coll).UpdateMany(sc, bson.M{"themeId": id}, bson.M{"$unset": bson.M{"themeId": ""}}); err != nil {
				return fmt.Errorf("detach %s: %w", coll, err)
			}
		}
		return nil
	})
}

// Events

func (s *MongoStore) checkEventRefs(ctx context.Context, event Event) error {
	if event.ThemeID != nil {
		if err := s.c(collThemes).FindOne(ctx, bson.M{"_id": *event.ThemeID}).Err(); err != nil {
			return mongoNotFound(err)
		}
	}
	if event.IdeaID != nil {
		if err := s.c(collIdeas).FindOne(ctx, bson.M{"_id": *event.IdeaID}).Err(); err != nil {
			return mongoNotFound(err)
		}
	}
	return nil
}

func (s *MongoStore) InsertEvent(ctx context.Context, event Event) error {
	if err := s.checkEventRefs(ctx, event); err != nil {
		return err
	}
	event.UpdatedAt = event.CreatedAt
	if _, err := s.c(collEvents).InsertOne(ctx, event); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *MongoStore) GetEvent(ctx context.Context, id string) (Event, error) {
	var event Event
	if err := s.c(collEvents).FindOne(ctx, bson.M{"_id": id}).Decode(&event); err != nil {
		return Event{}, mongoNotFound(err)
	}
	return event, nil
}

func (s *MongoStore) ListEvents(ctx context.Context, themeID string) ([]Event, error) {
	filter := bson.M{}
	if themeID != "" {
		filter["themeId"] = themeID
	}
	events, err := findAll[Event](ctx, s.c(collEvents), filter, sortBy(bson.E{Key: "date", Value: -1}, bson.E{Key: "createdAt", Value: -1}))
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *MongoStore) UpdateEvent(ctx context.Context, event Event) error {
	if err := s.checkEventRefs(ctx, event); err != nil {
		return err
	}
	set := bson.M{
		"title":            event.Title,
		"description":      event.Description,
		"date":             event.Date,
		"participantCount": event.ParticipantCount,
		"content":          event.Content,
		"nextActions":      event.NextActions,
		"updatedAt":        event.UpdatedAt,
	}
	unset := bson.M{}
	if event.ThemeID != nil {
		set["themeId"] = *event.ThemeID
	} else {
		unset["themeId"] = ""
	}
	if event.IdeaID != nil {
		set["ideaId"] = *event.IdeaID
	} else {
		unset["ideaId"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	result, err := s.c(collEvents).UpdateOne(ctx, bson.M{"_id": event.ID}, update)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	return requireMatched(result)
}

func (s *MongoStore) SetEventReport(ctx context.Context, id, reportKey string) error {
	result, err := s.c(collEvents).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"reportKey": reportKey, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return fmt.Errorf("set event report: %w", err)
	}
	return requireMatched(result)
}

func (s *MongoStore) DeleteEvent(ctx context.Context, id string) error {
	result, err := s.c(collEvents).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Notifications

func (s *MongoStore) InsertNotification(ctx context.Context, n Notification) error {
	if _, err := s.c(collNotifications).InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *MongoStore) ListNotifications(ctx context.Context, userID string) ([]Notification, error) {
	items, err := findAll[Notification](ctx, s.c(collNotifications), bson.M{"userId": userID}, sortBy(bson.E{Key: "createdAt", Value: -1}, bson.E{Key: "_id", Value: -1}))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

func (s *MongoStore) MarkNotificationRead(ctx context.Context, id, userID string) error {
	result, err := s.c(collNotifications).UpdateOne(ctx, bson.M{"_id": id, "userId": userID}, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return requireMatched(result)
}

func (s *MongoStore) MarkAllNotificationsRead(ctx context.Context, userID string) (int, error) {
	result, err := s.c(collNotifications).UpdateMany(ctx, bson.M{"userId": userID, "isRead": false}, bson.M{"$set": bson.M{"isRead": true}})
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return int(result.ModifiedCount), nil
}

func (s *MongoStore) CountUnreadNotifications(ctx context.Context, userID string) (int, error) {
	count, err := s.c(collNotifications).CountDocuments(ctx, bson.M{"userId": userID, "isRead": false})
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return int(count), nil
}

// Contacts

func (s *MongoStore) InsertContact(ctx context.Context, c Contact) error {
	if _, err := s.c(collContacts).InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (s *MongoStore) ListContacts(ctx context.Context) ([]Contact, error) {
	items, err := findAll[Contact](ctx, s.c(collContacts), bson.M{}, sortBy(bson.E{Key: "createdAt", Value: -1}))
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return items, nil
}

func (s *MongoStore) InsertBusinessContact(ctx context.Context, c BusinessContact) error {
	if _, err := s.c(collBusinessContacts).InsertOne(ctx, c); err != nil {
		return fmt.Errorf("insert business contact: %w", err)
	}
	return nil
}

func (s *MongoStore) ListBusinessContacts(ctx context.Context) ([]BusinessContact, error) {
	items, err := findAll[BusinessContact](ctx, s.c(collBusinessContacts), bson.M{}, sortBy(bson.E{Key: "createdAt", Value: -1}))
	if err != nil {
		return nil, fmt.Errorf("list business contacts: %w", err)
	}
	return items, nil
}

func (s *MongoStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{IdeasByStatus: map[IdeaStatus]int{}}
	cursor, err := s.c(collIdeas).Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{{Key: "_id", Value: "$status"}, {Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}}}}},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("count ideas by status: %w", err)
	}
	var groups []struct {
		Status IdeaStatus `bson:"_id"`
		Count  int        `bson:"count"`
	}
	if err := cursor.All(ctx, &groups); err != nil {
		return Stats{}, fmt.Errorf("decode status counts: %w", err)
	}
	for _, group := range groups {
		stats.IdeasByStatus[group.Status] = group.Count
	}

	counts := []struct {
		coll string
		dst  *int
	}{
		{collUsers, &stats.Users},
		{collContacts, &stats.Contacts},
		{collBusinessContacts, &stats.BusinessContacts},
	}
	for _, item := range counts {
		n, err := s.c(item.coll).CountDocuments(ctx, bson.M{})
		if err != nil {
			return Stats{}, fmt.Errorf("count %s: %w", item.coll, err)
		}
		*item.dst = int(n)
	}
	return stats, nil
}
