package store

import (
	"time"

	"github.com/example/video-comments/internal/engine"
)

// Reply is an append-only child record. The comment_id is a weak reference:
// relation only, the reply does not own or extend the parent's lifetime.
type Reply struct {
	ReplyID   string    `json:"reply_id"`
	CommentID string    `json:"comment_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// RepliesTable clusters on reply_id alone. Reply ids are UUIDv7, so the
// clustering order is also creation order.
var RepliesTable = engine.Table{
	Name:      "replies",
	Partition: "comment_id",
	Clustering: []engine.Column{
		{Name: "reply_id", Desc: false},
	},
	Columns: []string{"comment_id", "reply_id", "user_id", "content", "created_at"},
}

const RepliesDDL = `CREATE TABLE IF NOT EXISTS replies (
	comment_id TEXT        NOT NULL,
	reply_id   TEXT        NOT NULL,
	user_id    TEXT        NOT NULL,
	content    TEXT        NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (comment_id, reply_id)
)`

func replyToRow(r Reply) engine.Row {
	return engine.Row{
		"comment_id": r.CommentID,
		"reply_id":   r.ReplyID,
		"user_id":    r.UserID,
		"content":    r.Content,
		"created_at": r.CreatedAt,
	}
}

func replyFromRow(row engine.Row) (Reply, error) {
	var r Reply
	var err error
	if r.CommentID, err = colString(row, "comment_id"); err != nil {
		return Reply{}, err
	}
	if r.ReplyID, err = colString(row, "reply_id"); err != nil {
		return Reply{}, err
	}
	if r.UserID, err = colString(row, "user_id"); err != nil {
		return Reply{}, err
	}
	if r.Content, err = colString(row, "content"); err != nil {
		return Reply{}, err
	}
	if r.CreatedAt, err = colTime(row, "created_at"); err != nil {
		return Reply{}, err
	}
	return r, nil
}
