package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const UserTableName = "users"

// User is the directory record. The ObjectID is the canonical identifier;
// nickname is an optional unique alias that historically was sometimes left
// equal to the ObjectID string, which is why lookups have to tolerate either.
type User struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"-"`
	Nickname string             `bson:"nickname,omitempty" json:"nickname"`
	Email    string             `bson:"email" json:"email"`
	Password string             `bson:"password,omitempty" json:"-"`

	Online     bool      `bson:"online" json:"online"`
	LastActive time.Time `bson:"lastActive,omitempty" json:"lastActive"`
}

func (*User) GetTableName() string { return UserTableName }

func (u *User) Collection(db *mongo.Database) *mongo.Collection {
	return db.Collection(u.GetTableName())
}

// CanonicalID is the stable string form of the store key.
func (u *User) CanonicalID() string { return u.ID.Hex() }

// DisplayName falls back to the canonical ID for legacy records without a
// nickname.
func (u *User) DisplayName() string {
	if u.Nickname != "" {
		return u.Nickname
	}
	return u.CanonicalID()
}

// Profile is the denormalized snapshot embedded in conversations and pushed
// to clients.
type Profile struct {
	ID       string `bson:"id" json:"id"`
	Email    string `bson:"email" json:"email"`
	Nickname string `bson:"nickname" json:"nickname"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:       u.CanonicalID(),
		Email:    u.Email,
		Nickname: u.DisplayName(),
	}
}
