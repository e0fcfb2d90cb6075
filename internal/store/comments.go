package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/example/video-comments/internal/engine"
)

// Order selects the scan ordering for a comment listing.
type Order int

const (
	// ByPopularityDesc is the table's physical order: likes desc, then
	// created_at desc, then comment_id asc.
	ByPopularityDesc Order = iota
	// ByRecencyDesc is the emulated order: created_at desc, comment_id asc.
	ByRecencyDesc
)

const (
	SortTop = "top"
	SortNew = "new"
)

func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case SortTop, "":
		return ByPopularityDesc, nil
	case SortNew:
		return ByRecencyDesc, nil
	}
	return 0, fmt.Errorf("unknown sort order %q", s)
}

func (o Order) String() string {
	if o == ByRecencyDesc {
		return SortNew
	}
	return SortTop
}

// scanOrder returns the engine ordering for o; nil means the table's
// declared clustering order.
func (o Order) scanOrder() []engine.Column {
	if o == ByRecencyDesc {
		return recencyOrder
	}
	return nil
}

// resumeTuple is c's position under o, used as the exclusive resume marker.
func (o Order) resumeTuple(c Comment) []any {
	if o == ByRecencyDesc {
		return []any{c.CreatedAt, c.CommentID}
	}
	return []any{c.Likes, c.CreatedAt, c.CommentID}
}

// RankedCommentStore owns the comments table: rows ordered by popularity,
// reordered by the delete+insert move protocol.
type RankedCommentStore struct {
	eng engine.Engine
}

func NewRankedCommentStore(eng engine.Engine) *RankedCommentStore {
	return &RankedCommentStore{eng: eng}
}

// Insert writes a fresh comment with zero likes. CreatedAt is stamped here
// and immutable afterwards: it is part of the sort tuple.
func (s *RankedCommentStore) Insert(ctx context.Context, c Comment) error {
	if strings.TrimSpace(c.VideoID) == "" {
		return validationErr("video_id")
	}
	if strings.TrimSpace(c.CommentID) == "" {
		return validationErr("comment_id")
	}
	if strings.TrimSpace(c.UserID) == "" {
		return validationErr("user_id")
	}
	if strings.TrimSpace(c.Content) == "" {
		return validationErr("content")
	}

	c.Likes = 0
	c.RepliesCount = 0
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if err := s.eng.Write(ctx, CommentsTable, commentToRow(c)); err != nil {
		return &UnavailableError{Op: "insert comment", Err: err}
	}
	return nil
}

// Get looks up one comment by (video_id, comment_id). comment_id is not a
// clustering prefix, so this is an index-scan-style read: a partition range
// scan filtered on comment_id, not a unique-key lookup.
func (s *RankedCommentStore) Get(ctx context.Context, videoID, commentID string) (Comment, error) {
	rows, err := s.eng.Read(ctx, CommentsTable, videoID, engine.ReadOptions{
		Filter: map[string]any{"comment_id": commentID},
		Limit:  1,
	})
	if err != nil {
		return Comment{}, &UnavailableError{Op: "get comment", Err: err}
	}
	if len(rows) == 0 {
		return Comment{}, ErrNotFound
	}
	c, err := commentFromRow(rows[0])
	if err != nil {
		return Comment{}, &UnavailableError{Op: "decode comment", Err: err}
	}
	return c, nil
}

// ChangeRank moves a comment to the sort position mutate decides: read the
// current row, delete it under its old tuple, reinsert under the new one.
// The two writes are independent; they are not a transaction. Two concurrent
// calls that read the same prior likes will both compute the same successor
// and one increment is lost (the second delete of the shared old tuple is a
// no-op). That lost update is the documented contract, not a defect, so no
// locking is layered on top.
func (s *RankedCommentStore) ChangeRank(ctx context.Context, videoID, commentID string, mutate func(uint64) uint64) (uint64, error) {
	cur, err := s.Get(ctx, videoID, commentID)
	if err != nil {
		return 0, err
	}

	next := cur
	next.Likes = mutate(cur.Likes)
	if next.Likes == cur.Likes {
		return cur.Likes, nil
	}

	// Once the pair starts it must run to completion: cancelling between the
	// delete and the insert would leave the comment invisible.
	wctx := context.WithoutCancel(ctx)
	if err := s.eng.Delete(wctx, CommentsTable, commentKey(cur)); err != nil {
		return 0, &UnavailableError{Op: "rank change delete", Err: err}
	}
	if err := s.eng.Write(wctx, CommentsTable, commentToRow(next)); err != nil {
		return 0, &PartialRankChangeError{
			VideoID:   videoID,
			CommentID: commentID,
			Likes:     next.Likes,
			Err:       err,
		}
	}
	return next.Likes, nil
}

// BumpReplies increments the denormalized replies_count. The counter is not
// part of the sort tuple, so the write is a same-key overwrite rather than a
// move. A concurrent rank change can move the row between the read and the
// write; the overwrite would then resurrect the old tuple next to the moved
// one and the partition would hold two rows for one comment_id. The bump
// therefore verifies afterwards: on a duplicate it deletes its own stale
// write and retries against the moved row. When the retries run out the
// increment is dropped, never row uniqueness; the counter is advisory.
func (s *RankedCommentStore) BumpReplies(ctx context.Context, videoID, commentID string) error {
	wctx := context.WithoutCancel(ctx)
	for attempt := 0; attempt < 3; attempt++ {
		cur, err := s.Get(ctx, videoID, commentID)
		if err != nil {
			return err
		}
		next := cur
		next.RepliesCount++
		if err := s.eng.Write(wctx, CommentsTable, commentToRow(next)); err != nil {
			return &UnavailableError{Op: "bump replies", Err: err}
		}

		rows, err := s.eng.Read(wctx, CommentsTable, videoID, engine.ReadOptions{
			Filter: map[string]any{"comment_id": commentID},
		})
		if err != nil {
			return &UnavailableError{Op: "bump replies verify", Err: err}
		}
		if len(rows) <= 1 {
			return nil
		}
		// the row moved mid-bump; drop the resurrected tuple and try again
		if err := s.eng.Delete(wctx, CommentsTable, commentKey(next)); err != nil {
			return &UnavailableError{Op: "bump replies repair", Err: err}
		}
	}
	return nil
}

// ScanByRank returns one page of the partition in the requested order, plus
// the resume tuple for the next page (nil when the scan is exhausted).
func (s *RankedCommentStore) ScanByRank(ctx context.Context, videoID string, order Order, after []any, limit int) ([]Comment, []any, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.eng.Read(ctx, CommentsTable, videoID, engine.ReadOptions{
		OrderBy: order.scanOrder(),
		After:   after,
		Limit:   limit + 1,
	})
	if err != nil {
		return nil, nil, &UnavailableError{Op: "scan comments", Err: err}
	}

	more := len(rows) > limit
	if more {
		rows = rows[:limit]
	}

	out := make([]Comment, len(rows))
	for i, r := range rows {
		if out[i], err = commentFromRow(r); err != nil {
			return nil, nil, &UnavailableError{Op: "decode comment", Err: err}
		}
	}

	var next []any
	if more {
		next = order.resumeTuple(out[len(out)-1])
	}
	return out, next, nil
}

// Count is the engine's full-partition scan count: eventually consistent and
// never transactionally tied to any page just read.
func (s *RankedCommentStore) Count(ctx context.Context, videoID string) (uint64, error) {
	n, err := s.eng.Count(ctx, CommentsTable, videoID)
	if err != nil {
		return 0, &UnavailableError{Op: "count comments", Err: err}
	}
	return n, nil
}
