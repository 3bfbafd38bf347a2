package service

import (
	"context"
	"time"

	"PrivChat/module/user/model"
	"PrivChat/tools/errs"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Resolver is one lookup strategy over a loosely typed identifier.
// Returning (nil, nil) means "no match here, try the next strategy".
type Resolver interface {
	Resolve(ctx context.Context, id string) (*model.User, error)
}

// Directory resolves identifiers that may be a store key, a nickname, a
// store key that was stored as a nickname, or an email. The system
// historically used all three identifier spaces inconsistently, so the
// strategies run in a fixed priority order and the first hit wins. Room
// derivation depends on every form resolving to the same canonical record.
type Directory struct {
	coll       *mongo.Collection
	strategies []Resolver
}

func NewDirectory(db *mongo.Database) *Directory {
	coll := db.Collection(model.UserTableName)
	return &Directory{
		coll: coll,
		strategies: []Resolver{
			byObjectID{coll},
			byNickname{coll},
			byNicknameAsID{coll},
			byEmail{coll},
		},
	}
}

// NewDirectoryWithStrategies injects a custom strategy list (tests).
func NewDirectoryWithStrategies(strategies []Resolver) *Directory {
	return &Directory{strategies: strategies}
}

// Resolve runs the strategy list in order. Misses end in ErrUserNotFound.
func (d *Directory) Resolve(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, errs.ErrUserNotFound.Wrap()
	}
	for _, s := range d.strategies {
		u, err := s.Resolve(ctx, id)
		if err != nil {
			return nil, errs.ErrStore.WrapMsg("directory lookup", "id", id, "err", err)
		}
		if u != nil {
			return u, nil
		}
	}
	return nil, errs.ErrUserNotFound.WrapMsg("no strategy matched", "id", id)
}

// ListOthers returns every user except the caller, matched by both store key
// and nickname. The password field never leaves the store.
func (d *Directory) ListOthers(ctx context.Context, selfID, selfNickname string) ([]*model.User, error) {
	filter := bson.M{
		"$and": bson.A{
			bson.M{"nickname": bson.M{"$ne": selfNickname}},
			bson.M{"$or": bson.A{
				bson.M{"_id": bson.M{"$exists": true}},
				bson.M{"email": bson.M{"$exists": true}},
			}},
		},
	}
	if oid, err := primitive.ObjectIDFromHex(selfID); err == nil {
		filter = bson.M{
			"$and": bson.A{
				bson.M{"$or": bson.A{
					bson.M{"_id": bson.M{"$ne": oid}},
					bson.M{"nickname": bson.M{"$ne": selfNickname}},
				}},
				bson.M{"$or": bson.A{
					bson.M{"_id": bson.M{"$exists": true}},
					bson.M{"email": bson.M{"$exists": true}},
				}},
			},
		}
	}

	cur, err := d.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"password": 0}))
	if err != nil {
		return nil, errs.ErrStore.WrapMsg("list users", "err", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []*model.User
	for cur.Next(ctx) {
		var u model.User
		if err := cur.Decode(&u); err != nil {
			continue
		}
		out = append(out, &u)
	}
	return out, nil
}

// SetOnline marks the record online and stamps lastActive.
func (d *Directory) SetOnline(ctx context.Context, u *model.User) error {
	_, err := d.coll.UpdateOne(ctx,
		bson.M{"_id": u.ID},
		bson.M{"$set": bson.M{"online": true, "lastActive": time.Now()}},
	)
	if err != nil {
		return errs.ErrStore.WrapMsg("set online", "err", err)
	}
	return nil
}

// SetOffline accepts the loose identifier held by the connection, since a
// teardown cannot re-resolve through a store that may be the thing failing.
func (d *Directory) SetOffline(ctx context.Context, loose string) error {
	filter := bson.M{"$or": bson.A{bson.M{"nickname": loose}, bson.M{"email": loose}}}
	if oid, err := primitive.ObjectIDFromHex(loose); err == nil {
		filter = bson.M{"_id": oid}
	}
	_, err := d.coll.UpdateOne(ctx,
		filter,
		bson.M{"$set": bson.M{"online": false, "lastActive": time.Now()}},
	)
	if err != nil {
		return errs.ErrStore.WrapMsg("set offline", "err", err)
	}
	return nil
}

// ===== strategies =====

// byObjectID: the identifier is a native store key.
type byObjectID struct{ coll *mongo.Collection }

func (s byObjectID) Resolve(ctx context.Context, id string) (*model.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}
	return findOne(ctx, s.coll, bson.M{"_id": oid})
}

// byNickname: the identifier is a display handle.
type byNickname struct{ coll *mongo.Collection }

func (s byNickname) Resolve(ctx context.Context, id string) (*model.User, error) {
	return findOne(ctx, s.coll, bson.M{"nickname": id})
}

// byNicknameAsID covers legacy records whose nickname was never set and
// instead holds the store key as a string.
type byNicknameAsID struct{ coll *mongo.Collection }

func (s byNicknameAsID) Resolve(ctx context.Context, id string) (*model.User, error) {
	if _, err := primitive.ObjectIDFromHex(id); err != nil {
		return nil, nil
	}
	return findOne(ctx, s.coll, bson.M{"nickname": id})
}

// byEmail: last resort, the identifier is an email address.
type byEmail struct{ coll *mongo.Collection }

func (s byEmail) Resolve(ctx context.Context, id string) (*model.User, error) {
	return findOne(ctx, s.coll, bson.M{"email": id})
}

func findOne(ctx context.Context, coll *mongo.Collection, filter bson.M) (*model.User, error) {
	var u model.User
	err := coll.FindOne(ctx, filter).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
