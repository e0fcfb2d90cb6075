package store

import (
	"context"
	"strings"
	"time"

	"github.com/example/video-comments/internal/engine"
)

// ReplyStore owns the replies table: append-only child rows per comment.
// Replies carry no mutable sort-affecting field, so there is no rank
// maintenance here.
type ReplyStore struct {
	eng engine.Engine
}

func NewReplyStore(eng engine.Engine) *ReplyStore {
	return &ReplyStore{eng: eng}
}

func (s *ReplyStore) Insert(ctx context.Context, r Reply) error {
	if strings.TrimSpace(r.CommentID) == "" {
		return validationErr("comment_id")
	}
	if strings.TrimSpace(r.ReplyID) == "" {
		return validationErr("reply_id")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return validationErr("user_id")
	}
	if strings.TrimSpace(r.Content) == "" {
		return validationErr("content")
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if err := s.eng.Write(ctx, RepliesTable, replyToRow(r)); err != nil {
		return &UnavailableError{Op: "insert reply", Err: err}
	}
	return nil
}

// ListByComment returns one page of replies in creation order (reply ids are
// UUIDv7, so clustering order is creation order). afterReplyID resumes
// exclusively; empty starts at the beginning. The second return is the
// resume id for the next page, empty when exhausted.
func (s *ReplyStore) ListByComment(ctx context.Context, commentID, afterReplyID string, limit int) ([]Reply, string, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := engine.ReadOptions{Limit: limit + 1}
	if afterReplyID != "" {
		opts.After = []any{afterReplyID}
	}
	rows, err := s.eng.Read(ctx, RepliesTable, commentID, opts)
	if err != nil {
		return nil, "", &UnavailableError{Op: "list replies", Err: err}
	}

	more := len(rows) > limit
	if more {
		rows = rows[:limit]
	}

	out := make([]Reply, len(rows))
	for i, row := range rows {
		if out[i], err = replyFromRow(row); err != nil {
			return nil, "", &UnavailableError{Op: "decode reply", Err: err}
		}
	}

	var next string
	if more {
		next = out[len(out)-1].ReplyID
	}
	return out, next, nil
}
