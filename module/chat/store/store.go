package store

import (
	"context"
	"time"

	chatmodel "PrivChat/module/chat/model"
	usermodel "PrivChat/module/user/model"
	"PrivChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store is the mongo-backed persistence for conversations and messages.
type Store struct {
	ConvColl *mongo.Collection
	MsgColl  *mongo.Collection
}

func NewStore(db *mongo.Database) *Store {
	return &Store{
		ConvColl: db.Collection(chatmodel.ConversationTableName),
		MsgColl:  db.Collection(chatmodel.MessageTableName),
	}
}

// ===== conversations =====

// GetConversation returns nil (no error) when the room has no document yet.
func (s *Store) GetConversation(ctx context.Context, roomID string) (*chatmodel.Conversation, error) {
	var conv chatmodel.Conversation
	err := s.ConvColl.FindOne(ctx, bson.M{"roomId": roomID}).Decode(&conv)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("get conversation", "roomId", roomID, "err", err)
	}
	return &conv, nil
}

// CreateConversation inserts the lazily created record for a first join.
func (s *Store) CreateConversation(ctx context.Context, a, b usermodel.Profile, roomID string) (*chatmodel.Conversation, error) {
	now := time.Now()
	conv := &chatmodel.Conversation{
		RoomID:           roomID,
		Participants:     []string{a.ID, b.ID},
		ParticipantsInfo: []usermodel.Profile{a, b},
		UnreadCounts: []chatmodel.UnreadCount{
			{User: a.ID, Count: 0},
			{User: b.ID, Count: 0},
		},
		LastMessage: nil,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := s.ConvColl.InsertOne(ctx, conv)
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("create conversation", "roomId", roomID, "err", err)
	}
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		conv.ID = oid
	}
	return conv, nil
}

// ListConversations loads every conversation the user participates in, by
// either identifier form, newest activity first.
func (s *Store) ListConversations(ctx context.Context, userID, nickname string) ([]*chatmodel.Conversation, error) {
	cur, err := s.ConvColl.Find(ctx,
		bson.M{"participants": bson.M{"$in": bson.A{userID, nickname}}},
		options.Find().SetSort(bson.M{"updatedAt": -1}),
	)
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("list conversations", "err", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*chatmodel.Conversation
	for cur.Next(ctx) {
		var conv chatmodel.Conversation
		if err := cur.Decode(&conv); err != nil {
			continue
		}
		out = append(out, &conv)
	}
	return out, nil
}

// ApplyMessage records a freshly persisted message on the conversation:
// lastMessage snapshot, updatedAt bump, and an atomic unread increment for
// the recipient via an arrayFilters update. The filtered positional update is
// a single store-side operation, so concurrent sends to the same conversation
// cannot lose an increment. If the conversation does not exist yet (sender
// messaged before anyone joined) a skeleton is inserted and the update rerun.
func (s *Store) ApplyMessage(ctx context.Context, roomID string, sender, recipient usermodel.Profile, last chatmodel.LastMessage) error {
	update := bson.M{
		"$set": bson.M{
			"lastMessage": last,
			"updatedAt":   last.CreatedAt,
		},
		"$inc": bson.M{
			"unreadCounts.$[elem].count": 1,
		},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: bson.A{bson.M{"elem.user": recipient.ID}},
	})

	res, err := s.ConvColl.UpdateOne(ctx, bson.M{"roomId": roomID}, update, opts)
	if err != nil {
		return errs.ErrStore.WrapMsg("apply message", "roomId", roomID, "err", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	if _, cerr := s.CreateConversation(ctx, sender, recipient, roomID); cerr != nil {
		// Possibly lost the race against a concurrent creator; only fail if
		// the document really is not there.
		existing, gerr := s.GetConversation(ctx, roomID)
		if gerr != nil || existing == nil {
			return cerr
		}
	}
	_, err = s.ConvColl.UpdateOne(ctx, bson.M{"roomId": roomID}, update, opts)
	if err != nil {
		return errs.ErrStore.WrapMsg("apply message after create", "roomId", roomID, "err", err)
	}
	return nil
}

// ResetUnread zeroes the given user's counter.
func (s *Store) ResetUnread(ctx context.Context, roomID, userID string) error {
	_, err := s.ConvColl.UpdateOne(ctx,
		bson.M{"roomId": roomID},
		bson.M{"$set": bson.M{"unreadCounts.$[elem].count": 0}},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: bson.A{bson.M{"elem.user": userID}},
		}),
	)
	if err != nil {
		return errs.ErrStore.WrapMsg("reset unread", "roomId", roomID, "err", err)
	}
	return nil
}

// ===== messages =====

func (s *Store) InsertMessage(ctx context.Context, msg *chatmodel.Message) (string, error) {
	res, err := s.MsgColl.InsertOne(ctx, msg)
	if err != nil {
		return "", errs.ErrStore.WrapMsg("insert message", "roomId", msg.RoomID, "err", err)
	}
	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errs.ErrStore.WrapMsg("unexpected inserted id type")
	}
	msg.ID = oid
	return oid.Hex(), nil
}

// History replays the room in creation order; the store-assigned _id breaks
// ties between equal timestamps since ObjectIDs carry insertion order.
func (s *Store) History(ctx context.Context, roomID string) ([]*chatmodel.Message, error) {
	cur, err := s.MsgColl.Find(ctx,
		bson.M{"roomId": roomID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}),
	)
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("load history", "roomId", roomID, "err", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*chatmodel.Message
	for cur.Next(ctx) {
		var m chatmodel.Message
		if err := cur.Decode(&m); err != nil {
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}

// MarkRoomRead flips every unread message addressed to receiver in the room.
// Returns how many actually flipped.
func (s *Store) MarkRoomRead(ctx context.Context, roomID, receiver string) (int64, error) {
	res, err := s.MsgColl.UpdateMany(ctx,
		bson.M{"roomId": roomID, "receiver": receiver, "isRead": false},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, errs.ErrStore.WrapMsg("mark room read", "roomId", roomID, "err", err)
	}
	return res.ModifiedCount, nil
}

// ReadMessageIDs lists the ids of already-read messages addressed to
// receiver, used to tell the counterpart what got read on join.
func (s *Store) ReadMessageIDs(ctx context.Context, roomID, receiver string) ([]string, error) {
	cur, err := s.MsgColl.Find(ctx,
		bson.M{"roomId": roomID, "receiver": receiver, "isRead": true},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("read ids", "roomId", roomID, "err", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []string
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		out = append(out, doc.ID.Hex())
	}
	return out, nil
}

// MarkRead flips the given message ids where receiver matches and the flag
// is still unset. Ids may be ObjectID hex or legacy plain string ids; the
// filter ORs both spellings.
func (s *Store) MarkRead(ctx context.Context, ids []string, receiver string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	oids := make(bson.A, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	strIDs := make(bson.A, 0, len(ids))
	for _, id := range ids {
		strIDs = append(strIDs, id)
	}

	res, err := s.MsgColl.UpdateMany(ctx,
		bson.M{
			"$or":      bson.A{bson.M{"_id": bson.M{"$in": oids}}, bson.M{"id": bson.M{"$in": strIDs}}},
			"receiver": receiver,
			"isRead":   false,
		},
		bson.M{"$set": bson.M{"isRead": true}},
	)
	if err != nil {
		return 0, errs.ErrStore.WrapMsg("mark read", "err", err)
	}
	return res.ModifiedCount, nil
}
