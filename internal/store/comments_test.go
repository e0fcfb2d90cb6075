package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/video-comments/internal/engine"
)

func baseTime() time.Time {
	return time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
}

func seedComment(t *testing.T, s *RankedCommentStore, videoID, commentID string, at time.Time) {
	t.Helper()
	err := s.Insert(context.Background(), Comment{
		VideoID:   videoID,
		CommentID: commentID,
		UserID:    "user-a",
		Content:   "c",
		CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("insert %s: %v", commentID, err)
	}
}

func TestInsert_Validation(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()

	cases := []Comment{
		{VideoID: "", CommentID: "c1", UserID: "u", Content: "x"},
		{VideoID: "v", CommentID: "", UserID: "u", Content: "x"},
		{VideoID: "v", CommentID: "c1", UserID: "", Content: "x"},
		{VideoID: "v", CommentID: "c1", UserID: "u", Content: ""},
		{VideoID: "v", CommentID: "c1", UserID: "u", Content: "   "},
	}
	for _, c := range cases {
		err := s.Insert(ctx, c)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("expected ValidationError for %+v, got %v", c, err)
		}
	}
}

func TestInsert_ThenGet(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()

	err := s.Insert(ctx, Comment{
		VideoID:   "video-1",
		CommentID: "comment-1",
		UserID:    "user-a",
		Content:   "Great video!",
		Likes:     99, // must be ignored: fresh comments start at zero
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Get(ctx, "video-1", "comment-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Likes != 0 {
		t.Fatalf("expected likes 0, got %d", got.Likes)
	}
	if got.Content != "Great video!" || got.UserID != "user-a" || got.VideoID != "video-1" {
		t.Fatalf("fields changed on round trip: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatal("expected created_at to be stamped")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())

	_, err := s.Get(context.Background(), "video-1", "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChangeRank_SequentialIncrements(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()
	seedComment(t, s, "video-1", "comment-1", baseTime())

	inc := func(n uint64) uint64 { return n + 1 }
	for i := 1; i <= 5; i++ {
		likes, err := s.ChangeRank(ctx, "video-1", "comment-1", inc)
		if err != nil {
			t.Fatalf("change rank %d: %v", i, err)
		}
		if likes != uint64(i) {
			t.Fatalf("expected likes %d, got %d", i, likes)
		}
	}

	got, err := s.Get(ctx, "video-1", "comment-1")
	if err != nil {
		t.Fatalf("get after rank changes: %v", err)
	}
	if got.Likes != 5 {
		t.Fatalf("expected likes 5, got %d", got.Likes)
	}
}

func TestChangeRank_MovesRowNotCopiesIt(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()
	seedComment(t, s, "video-1", "comment-1", baseTime())

	if _, err := s.ChangeRank(ctx, "video-1", "comment-1", func(n uint64) uint64 { return n + 1 }); err != nil {
		t.Fatalf("change rank: %v", err)
	}

	// exactly one physical row must remain
	n, err := s.Count(ctx, "video-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row after move, got %d", n)
	}
}

func TestChangeRank_NotFound(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())

	_, err := s.ChangeRank(context.Background(), "video-1", "missing", func(n uint64) uint64 { return n + 1 })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChangeRank_ConcurrentLostUpdateBounds(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()
	seedComment(t, s, "video-1", "comment-1", baseTime())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.ChangeRank(ctx, "video-1", "comment-1", func(n uint64) uint64 { return n + 1 }); err != nil {
				t.Errorf("change rank: %v", err)
			}
		}()
	}
	wg.Wait()

	got, err := s.Get(ctx, "video-1", "comment-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// Both racers observing likes=0 lose one increment; serialized runs keep
	// both. Anything outside [1,2] is corruption.
	if got.Likes < 1 || got.Likes > 2 {
		t.Fatalf("expected likes in [1,2], got %d", got.Likes)
	}
}

// failingWrites refuses Write once armed, leaving the delete half of a rank
// change visible.
type failingWrites struct {
	engine.Engine
	armed bool
}

func (f *failingWrites) Write(ctx context.Context, tbl engine.Table, row engine.Row) error {
	if f.armed {
		return errors.New("write refused")
	}
	return f.Engine.Write(ctx, tbl, row)
}

func TestChangeRank_PartialFailureIsObservable(t *testing.T) {
	fe := &failingWrites{Engine: engine.NewMemory()}
	s := NewRankedCommentStore(fe)
	ctx := context.Background()
	seedComment(t, s, "video-1", "comment-1", baseTime())

	fe.armed = true
	_, err := s.ChangeRank(ctx, "video-1", "comment-1", func(n uint64) uint64 { return n + 1 })

	var pe *PartialRankChangeError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PartialRankChangeError, got %v", err)
	}
	if pe.CommentID != "comment-1" || pe.Likes != 1 {
		t.Fatalf("unexpected partial error payload: %+v", pe)
	}

	// the comment is temporarily invisible until a retry reinserts it
	fe.armed = false
	if _, err := s.Get(ctx, "video-1", "comment-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected comment to be invisible after partial change, got %v", err)
	}
}

func TestScanByRank_PopularityOrder(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()
	t0 := baseTime()

	// three comments, liked to distinct counts; one sharing a like count to
	// exercise the created_at tie-break
	seedComment(t, s, "video-1", "old-popular", t0)
	seedComment(t, s, "video-1", "new-popular", t0.Add(time.Minute))
	seedComment(t, s, "video-1", "quiet", t0.Add(2*time.Minute))

	inc := func(n uint64) uint64 { return n + 1 }
	for i := 0; i < 3; i++ {
		if _, err := s.ChangeRank(ctx, "video-1", "old-popular", inc); err != nil {
			t.Fatalf("like old-popular: %v", err)
		}
		if _, err := s.ChangeRank(ctx, "video-1", "new-popular", inc); err != nil {
			t.Fatalf("like new-popular: %v", err)
		}
	}

	got, next, err := s.ScanByRank(ctx, "video-1", ByPopularityDesc, nil, 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if next != nil {
		t.Fatal("expected exhausted scan")
	}
	ids := idsOf(got)
	// equal likes: newer first; zero likes last
	want := []string{"new-popular", "old-popular", "quiet"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, ids)
		}
	}
}

func TestScanByRank_RecencyOrderIgnoresLikes(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()
	t0 := baseTime()

	seedComment(t, s, "video-1", "older-liked", t0)
	seedComment(t, s, "video-1", "newest", t0.Add(time.Hour))

	if _, err := s.ChangeRank(ctx, "video-1", "older-liked", func(n uint64) uint64 { return n + 10 }); err != nil {
		t.Fatalf("like: %v", err)
	}

	got, _, err := s.ScanByRank(ctx, "video-1", ByRecencyDesc, nil, 10)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got[0].CommentID != "newest" {
		t.Fatalf("expected newest first under recency order, got %v", idsOf(got))
	}
}

func TestScanByRank_ResumeAcrossPageBoundary(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()
	t0 := baseTime()

	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		seedComment(t, s, "video-1", id, t0.Add(time.Duration(i)*time.Minute))
	}

	first, next, err := s.ScanByRank(ctx, "video-1", ByPopularityDesc, nil, 2)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 2 || next == nil {
		t.Fatalf("expected full first page with resume tuple, got %d rows", len(first))
	}

	seen := map[string]bool{}
	for _, c := range first {
		seen[c.CommentID] = true
	}
	for next != nil {
		var page []Comment
		page, next, err = s.ScanByRank(ctx, "video-1", ByPopularityDesc, next, 2)
		if err != nil {
			t.Fatalf("next page: %v", err)
		}
		for _, c := range page {
			if seen[c.CommentID] {
				t.Fatalf("comment %s returned twice", c.CommentID)
			}
			seen[c.CommentID] = true
		}
	}
	if len(seen) != 5 {
		t.Fatalf("expected 5 distinct comments across pages, got %d", len(seen))
	}
}

func TestCount_MatchesDrainedScan(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()
	t0 := baseTime()

	for i := 0; i < 7; i++ {
		seedComment(t, s, "video-1", string(rune('a'+i)), t0.Add(time.Duration(i)*time.Second))
	}

	n, err := s.Count(ctx, "video-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}

	var drained int
	after := []any(nil)
	for {
		page, next, err := s.ScanByRank(ctx, "video-1", ByPopularityDesc, after, 3)
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		drained += len(page)
		if next == nil {
			break
		}
		after = next
	}
	if uint64(drained) != n {
		t.Fatalf("count %d != drained %d", n, drained)
	}
}

func TestBumpReplies(t *testing.T) {
	s := NewRankedCommentStore(engine.NewMemory())
	ctx := context.Background()
	seedComment(t, s, "video-1", "comment-1", baseTime())

	if err := s.BumpReplies(ctx, "video-1", "comment-1"); err != nil {
		t.Fatalf("bump: %v", err)
	}
	if err := s.BumpReplies(ctx, "video-1", "comment-1"); err != nil {
		t.Fatalf("bump: %v", err)
	}

	got, err := s.Get(ctx, "video-1", "comment-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.RepliesCount != 2 {
		t.Fatalf("expected replies_count 2, got %d", got.RepliesCount)
	}
	// the bump must not move the row
	if got.Likes != 0 {
		t.Fatalf("expected likes unchanged, got %d", got.Likes)
	}
}

// interceptWrites runs a hook once, just before the next Write lands.
type interceptWrites struct {
	engine.Engine
	before func()
}

func (e *interceptWrites) Write(ctx context.Context, tbl engine.Table, row engine.Row) error {
	if e.before != nil {
		f := e.before
		e.before = nil
		f()
	}
	return e.Engine.Write(ctx, tbl, row)
}

func TestBumpReplies_RankChangeMidBumpKeepsRowUnique(t *testing.T) {
	inner := engine.NewMemory()
	hooked := &interceptWrites{Engine: inner}
	s := NewRankedCommentStore(hooked)
	ctx := context.Background()
	seedComment(t, s, "video-1", "comment-1", baseTime())

	// a like sneaks in between the bump's read and its write, moving the row
	// to a new sort tuple; the bump must not resurrect the old one
	direct := NewRankedCommentStore(inner)
	hooked.before = func() {
		if _, err := direct.ChangeRank(ctx, "video-1", "comment-1", func(n uint64) uint64 { return n + 1 }); err != nil {
			t.Errorf("mid-bump rank change: %v", err)
		}
	}

	if err := s.BumpReplies(ctx, "video-1", "comment-1"); err != nil {
		t.Fatalf("bump: %v", err)
	}

	n, err := s.Count(ctx, "video-1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 physical row for the comment, got %d", n)
	}

	got, err := s.Get(ctx, "video-1", "comment-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Likes != 1 {
		t.Fatalf("expected the like to survive, got likes %d", got.Likes)
	}
	if got.RepliesCount != 1 {
		t.Fatalf("expected the bump to land on the moved row, got replies_count %d", got.RepliesCount)
	}
}

func idsOf(cs []Comment) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.CommentID
	}
	return ids
}
