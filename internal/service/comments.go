// Package service composes the stores and the paginator into the operations
// the boundary layer needs. It holds no state of its own.
package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/video-comments/internal/events"
	"github.com/example/video-comments/internal/store"
)

type CommentService struct {
	comments *store.RankedCommentStore
	replies  *store.ReplyStore
	pager    *store.Paginator
	events   *events.Publisher
	log      *zap.Logger
}

func New(comments *store.RankedCommentStore, replies *store.ReplyStore, pager *store.Paginator, pub *events.Publisher, log *zap.Logger) *CommentService {
	return &CommentService{comments: comments, replies: replies, pager: pager, events: pub, log: log}
}

// AddComment creates a comment with zero likes and returns its fresh id.
func (s *CommentService) AddComment(ctx context.Context, videoID, userID, content string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", &store.ValidationError{Field: "user_id"}
	}
	if strings.TrimSpace(content) == "" {
		return "", &store.ValidationError{Field: "content"}
	}

	c := store.Comment{
		VideoID:   videoID,
		CommentID: uuid.NewString(),
		UserID:    userID,
		Content:   content,
	}
	if err := s.comments.Insert(ctx, c); err != nil {
		return "", err
	}
	s.events.Publish(events.SubjectCommentAdded, videoID, c.CommentID, nil)
	return c.CommentID, nil
}

// AddReply appends a reply under an existing comment. The parent lives in
// the video's partition, so the caller supplies videoID alongside commentID.
// The parent's replies_count bump is best-effort: a failure is logged, not
// surfaced, and the counter is never read back authoritatively.
func (s *CommentService) AddReply(ctx context.Context, videoID, commentID, userID, content string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", &store.ValidationError{Field: "user_id"}
	}
	if strings.TrimSpace(content) == "" {
		return "", &store.ValidationError{Field: "content"}
	}

	if _, err := s.comments.Get(ctx, videoID, commentID); err != nil {
		return "", err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	r := store.Reply{
		ReplyID:   id.String(),
		CommentID: commentID,
		UserID:    userID,
		Content:   content,
	}
	if err := s.replies.Insert(ctx, r); err != nil {
		return "", err
	}

	if err := s.comments.BumpReplies(ctx, videoID, commentID); err != nil {
		s.log.Warn("replies_count bump failed",
			zap.String("video_id", videoID),
			zap.String("comment_id", commentID),
			zap.Error(err))
	}

	s.events.Publish(events.SubjectReplyAdded, videoID, commentID, map[string]any{"reply_id": r.ReplyID})
	return r.ReplyID, nil
}

// LikeComment moves the comment one rank position up and returns the new
// like count. The underlying move is delete+insert; under concurrent likes
// of the same comment one increment can be lost, per the store contract.
func (s *CommentService) LikeComment(ctx context.Context, videoID, commentID string) (uint64, error) {
	likes, err := s.comments.ChangeRank(ctx, videoID, commentID, func(n uint64) uint64 { return n + 1 })
	if err != nil {
		return 0, err
	}
	s.events.Publish(events.SubjectCommentLiked, videoID, commentID, map[string]any{"likes": likes})
	return likes, nil
}

// ListComments returns one page of the video's comments. An empty token
// starts a fresh scan; otherwise the token carries order and resume position
// and must have been issued for the same video.
func (s *CommentService) ListComments(ctx context.Context, videoID string, order store.Order, limit int, token string) (store.Page, error) {
	if token != "" {
		return s.pager.NextPage(ctx, videoID, token, limit)
	}
	return s.pager.FirstPage(ctx, videoID, order, limit)
}

// ListReplies returns one page of a comment's replies in creation order.
func (s *CommentService) ListReplies(ctx context.Context, commentID string, limit int, token string) (store.ReplyPage, error) {
	if token != "" {
		return s.pager.NextReplies(ctx, commentID, token, limit)
	}
	return s.pager.FirstReplies(ctx, commentID, limit)
}

// CountComments exposes the raw, expensive partition count.
func (s *CommentService) CountComments(ctx context.Context, videoID string) (uint64, error) {
	return s.comments.Count(ctx, videoID)
}
