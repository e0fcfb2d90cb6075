package store

import (
	"fmt"
	"time"

	"github.com/example/video-comments/internal/engine"
)

// Comment is a single comment row. The tuple (video_id, comment_id) is unique
// for the store's lifetime; because likes is part of the sort key, the full
// tuple (video_id, likes, created_at, comment_id) is what addresses the
// physical row.
type Comment struct {
	VideoID      string    `json:"video_id"`
	CommentID    string    `json:"comment_id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	Likes        uint64    `json:"likes"`
	RepliesCount uint64    `json:"replies_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// CommentsTable is the physical layout: one partition per video, clustered
// most-liked first, newest first within a like count, comment id as the final
// tie-break.
var CommentsTable = engine.Table{
	Name:      "comments",
	Partition: "video_id",
	Clustering: []engine.Column{
		{Name: "likes", Desc: true},
		{Name: "created_at", Desc: true},
		{Name: "comment_id", Desc: false},
	},
	Columns: []string{"video_id", "likes", "created_at", "comment_id", "user_id", "content", "replies_count"},
}

// CommentsDDL creates the relational mirror of CommentsTable for the
// Postgres driver. The primary key is the full sort tuple, which is what
// forces rank changes to stay delete+insert.
const CommentsDDL = `CREATE TABLE IF NOT EXISTS comments (
	video_id      TEXT        NOT NULL,
	likes         BIGINT      NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	comment_id    TEXT        NOT NULL,
	user_id       TEXT        NOT NULL,
	content       TEXT        NOT NULL,
	replies_count BIGINT      NOT NULL DEFAULT 0,
	PRIMARY KEY (video_id, likes, created_at, comment_id)
)`

// recencyOrder is the emulated secondary ordering: pure recency, id ascending
// as tie-break.
var recencyOrder = []engine.Column{
	{Name: "created_at", Desc: true},
	{Name: "comment_id", Desc: false},
}

func commentToRow(c Comment) engine.Row {
	return engine.Row{
		"video_id":      c.VideoID,
		"likes":         c.Likes,
		"created_at":    c.CreatedAt,
		"comment_id":    c.CommentID,
		"user_id":       c.UserID,
		"content":       c.Content,
		"replies_count": c.RepliesCount,
	}
}

func commentFromRow(r engine.Row) (Comment, error) {
	var c Comment
	var err error
	if c.VideoID, err = colString(r, "video_id"); err != nil {
		return Comment{}, err
	}
	if c.CommentID, err = colString(r, "comment_id"); err != nil {
		return Comment{}, err
	}
	if c.UserID, err = colString(r, "user_id"); err != nil {
		return Comment{}, err
	}
	if c.Content, err = colString(r, "content"); err != nil {
		return Comment{}, err
	}
	if c.Likes, err = colUint64(r, "likes"); err != nil {
		return Comment{}, err
	}
	if c.RepliesCount, err = colUint64(r, "replies_count"); err != nil {
		return Comment{}, err
	}
	if c.CreatedAt, err = colTime(r, "created_at"); err != nil {
		return Comment{}, err
	}
	return c, nil
}

// commentKey is the full sort tuple addressing the comment's current row.
func commentKey(c Comment) engine.Key {
	return engine.Key{
		Partition:  c.VideoID,
		Clustering: []any{c.Likes, c.CreatedAt, c.CommentID},
	}
}

func colString(r engine.Row, name string) (string, error) {
	s, ok := r[name].(string)
	if !ok {
		return "", fmt.Errorf("column %s: expected string, got %T", name, r[name])
	}
	return s, nil
}

func colTime(r engine.Row, name string) (time.Time, error) {
	t, ok := r[name].(time.Time)
	if !ok {
		return time.Time{}, fmt.Errorf("column %s: expected time, got %T", name, r[name])
	}
	return t, nil
}

// colUint64 accepts the integer widths the drivers hand back: uint64 from the
// memory engine, int64 from Postgres bigint.
func colUint64(r engine.Row, name string) (uint64, error) {
	switch n := r[name].(type) {
	case uint64:
		return n, nil
	case int64:
		if n < 0 {
			return 0, fmt.Errorf("column %s: negative counter %d", name, n)
		}
		return uint64(n), nil
	case int:
		if n < 0 {
			return 0, fmt.Errorf("column %s: negative counter %d", name, n)
		}
		return uint64(n), nil
	default:
		return 0, fmt.Errorf("column %s: expected integer, got %T", name, r[name])
	}
}
