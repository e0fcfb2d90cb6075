package store

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Page is one bounded slice of a comment listing. Token resumes the scan
// after the last item; nil means the scan is exhausted. TotalEstimate is
// best-effort: the engine computes it by scanning, never from a maintained
// counter, so it is eventually consistent with the items.
type Page struct {
	Items         []Comment `json:"items"`
	Token         *string   `json:"token,omitempty"`
	TotalEstimate uint64    `json:"total_estimate"`
}

// ReplyPage is one bounded slice of a reply listing.
type ReplyPage struct {
	Items []Reply `json:"items"`
	Token *string `json:"token,omitempty"`
}

// CountCache caches partition counts so not every page pays for a full scan.
// A nil value disables caching.
type CountCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

// Paginator turns ranked scans into pages with opaque continuation tokens.
// The token wraps the engine's resume tuple behind a versioned format so the
// engine's native cursor never leaks to callers.
type Paginator struct {
	comments *RankedCommentStore
	replies  *ReplyStore
	counts   CountCache
	log      *zap.Logger
}

func NewPaginator(comments *RankedCommentStore, replies *ReplyStore, counts CountCache, log *zap.Logger) *Paginator {
	return &Paginator{comments: comments, replies: replies, counts: counts, log: log}
}

func (p *Paginator) FirstPage(ctx context.Context, videoID string, order Order, limit int) (Page, error) {
	if strings.TrimSpace(videoID) == "" {
		return Page{}, validationErr("video_id")
	}
	return p.page(ctx, videoID, order, nil, limit)
}

func (p *Paginator) NextPage(ctx context.Context, videoID, token string, limit int) (Page, error) {
	order, tokVideo, after, err := decodeCommentToken(token)
	if err != nil {
		return Page{}, err
	}
	if tokVideo != videoID {
		return Page{}, &ValidationError{Field: "token", Reason: "issued for a different video"}
	}
	return p.page(ctx, videoID, order, after, limit)
}

func (p *Paginator) page(ctx context.Context, videoID string, order Order, after []any, limit int) (Page, error) {
	items, next, err := p.comments.ScanByRank(ctx, videoID, order, after, limit)
	if err != nil {
		return Page{}, err
	}

	pg := Page{
		Items:         items,
		TotalEstimate: p.totalEstimate(ctx, videoID),
	}
	if next != nil {
		tok := encodeCommentToken(order, videoID, next)
		pg.Token = &tok
	}
	return pg, nil
}

// totalEstimate is advisory: a count failure degrades the page to estimate 0
// rather than failing the listing.
func (p *Paginator) totalEstimate(ctx context.Context, videoID string) uint64 {
	key := "comments:count:" + videoID

	var cached uint64
	if p.counts != nil {
		hit, err := p.counts.Get(ctx, key, &cached)
		if err != nil {
			p.log.Warn("count cache read failed", zap.String("video_id", videoID), zap.Error(err))
		} else if hit {
			return cached
		}
	}

	n, err := p.comments.Count(ctx, videoID)
	if err != nil {
		p.log.Warn("partition count failed", zap.String("video_id", videoID), zap.Error(err))
		return 0
	}
	if p.counts != nil {
		if err := p.counts.Set(ctx, key, n); err != nil {
			p.log.Warn("count cache write failed", zap.String("video_id", videoID), zap.Error(err))
		}
	}
	return n
}

func (p *Paginator) FirstReplies(ctx context.Context, commentID string, limit int) (ReplyPage, error) {
	if strings.TrimSpace(commentID) == "" {
		return ReplyPage{}, validationErr("comment_id")
	}
	return p.replyPage(ctx, commentID, "", limit)
}

func (p *Paginator) NextReplies(ctx context.Context, commentID, token string, limit int) (ReplyPage, error) {
	tokComment, after, err := decodeReplyToken(token)
	if err != nil {
		return ReplyPage{}, err
	}
	if tokComment != commentID {
		return ReplyPage{}, &ValidationError{Field: "token", Reason: "issued for a different comment"}
	}
	return p.replyPage(ctx, commentID, after, limit)
}

func (p *Paginator) replyPage(ctx context.Context, commentID, after string, limit int) (ReplyPage, error) {
	items, next, err := p.replies.ListByComment(ctx, commentID, after, limit)
	if err != nil {
		return ReplyPage{}, err
	}
	pg := ReplyPage{Items: items}
	if next != "" {
		tok := encodeReplyToken(commentID, next)
		pg.Token = &tok
	}
	return pg, nil
}

// Token encoding. Versioned so the format can change without breaking old
// clients mid-scan in an obvious way: a foreign token decodes to a
// ValidationError, never to a wrong page.

func encodeCommentToken(order Order, videoID string, after []any) string {
	var raw string
	switch order {
	case ByRecencyDesc:
		raw = fmt.Sprintf("v1|%s|%s|%d|%s",
			SortNew, videoID, after[0].(time.Time).UnixNano(), after[1].(string))
	default:
		raw = fmt.Sprintf("v1|%s|%s|%d|%d|%s",
			SortTop, videoID, after[0].(uint64), after[1].(time.Time).UnixNano(), after[2].(string))
	}
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeCommentToken(token string) (Order, string, []any, error) {
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return 0, "", nil, &ValidationError{Field: "token", Reason: "not base64"}
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) < 2 || parts[0] != "v1" {
		return 0, "", nil, &ValidationError{Field: "token", Reason: "unknown format"}
	}

	switch parts[1] {
	case SortNew:
		if len(parts) != 5 {
			return 0, "", nil, &ValidationError{Field: "token", Reason: "malformed"}
		}
		nanos, err := strconv.ParseInt(parts[3], 10, 64)
		if err != nil || parts[2] == "" || parts[4] == "" {
			return 0, "", nil, &ValidationError{Field: "token", Reason: "malformed"}
		}
		return ByRecencyDesc, parts[2], []any{time.Unix(0, nanos).UTC(), parts[4]}, nil
	case SortTop:
		if len(parts) != 6 {
			return 0, "", nil, &ValidationError{Field: "token", Reason: "malformed"}
		}
		likes, err1 := strconv.ParseUint(parts[3], 10, 64)
		nanos, err2 := strconv.ParseInt(parts[4], 10, 64)
		if err1 != nil || err2 != nil || parts[2] == "" || parts[5] == "" {
			return 0, "", nil, &ValidationError{Field: "token", Reason: "malformed"}
		}
		return ByPopularityDesc, parts[2], []any{likes, time.Unix(0, nanos).UTC(), parts[5]}, nil
	}
	return 0, "", nil, &ValidationError{Field: "token", Reason: "unknown order"}
}

func encodeReplyToken(commentID, afterReplyID string) string {
	raw := fmt.Sprintf("v1|replies|%s|%s", commentID, afterReplyID)
	return base64.URLEncoding.EncodeToString([]byte(raw))
}

func decodeReplyToken(token string) (string, string, error) {
	raw, err := base64.URLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return "", "", &ValidationError{Field: "token", Reason: "not base64"}
	}
	parts := strings.Split(string(raw), "|")
	if len(parts) != 4 || parts[0] != "v1" || parts[1] != "replies" || parts[2] == "" || parts[3] == "" {
		return "", "", &ValidationError{Field: "token", Reason: "malformed"}
	}
	return parts[2], parts[3], nil
}
