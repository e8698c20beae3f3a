package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// User maps to the users collection (id, username, password hash, timestamps).
type User struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Username  string        `bson:"username" json:"username"`
	Password  string        `bson:"password" json:"-"`
	CreatedAt time.Time     `bson:"created_at" json:"-"`
	UpdatedAt time.Time     `bson:"updated_at" json:"-"`
}

// Message maps to the messages collection. Sender and Recipient hold user ids
// in hex form; at least one of Text/File is non-empty (enforced by the relay
// before insert). File, when set, is a stored filename, never raw content.
type Message struct {
	ID        bson.ObjectID `bson:"_id,omitempty" json:"id"`
	Sender    string        `bson:"sender" json:"sender"`
	Recipient string        `bson:"recipient" json:"recipient"`
	Text      string        `bson:"text,omitempty" json:"text"`
	File      *string       `bson:"file,omitempty" json:"file"`
	CreatedAt time.Time     `bson:"created_at" json:"createdAt"`
}
