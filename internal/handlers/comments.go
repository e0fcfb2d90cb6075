package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/video-comments/internal/platform/api"
	"github.com/example/video-comments/internal/platform/auth"
	"github.com/example/video-comments/internal/platform/config"
	"github.com/example/video-comments/internal/platform/httpserver"
	"github.com/example/video-comments/internal/service"
	"github.com/example/video-comments/internal/store"
)

type createCommentRequest struct {
	Content string `json:"content"`
}

type createdResponse struct {
	CommentID string `json:"comment_id,omitempty"`
	ReplyID   string `json:"reply_id,omitempty"`
}

type likeResponse struct {
	Likes uint64 `json:"likes"`
}

type countResponse struct {
	Count uint64 `json:"count"`
}

// AddComment handles POST /v1/videos/{video_id}/comments
func AddComment(svc *service.CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", requestID(r))
			return
		}

		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", requestID(r), nil)
			return
		}

		var req createCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", requestID(r), nil)
			return
		}

		id, err := svc.AddComment(r.Context(), videoID, userID, req.Content)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, createdResponse{CommentID: id})
	}
}

// AddReply handles POST /v1/videos/{video_id}/comments/{comment_id}/replies
func AddReply(svc *service.CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", requestID(r))
			return
		}

		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if videoID == "" || commentID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id and comment_id are required", requestID(r), nil)
			return
		}

		var req createCommentRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", requestID(r), nil)
			return
		}

		id, err := svc.AddReply(r.Context(), videoID, commentID, userID, req.Content)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, createdResponse{ReplyID: id})
	}
}

// LikeComment handles POST /v1/videos/{video_id}/comments/{comment_id}/like
func LikeComment(svc *service.CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := auth.UserIDFromContext(r.Context())
		if !ok || userID == "" {
			api.Unauthorized(w, "UNAUTHORIZED", "authentication required", requestID(r))
			return
		}

		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if videoID == "" || commentID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id and comment_id are required", requestID(r), nil)
			return
		}

		likes, err := svc.LikeComment(r.Context(), videoID, commentID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, likeResponse{Likes: likes})
	}
}

// ListComments handles GET /v1/videos/{video_id}/comments
func ListComments(svc *service.CommentService, paging config.PagingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", requestID(r), nil)
			return
		}

		order, err := store.ParseOrder(r.URL.Query().Get("sort"))
		if err != nil {
			api.BadRequest(w, "INVALID_SORT", "sort must be 'top' or 'new'", requestID(r), nil)
			return
		}

		limit := parseLimit(r, paging)
		token := strings.TrimSpace(r.URL.Query().Get("token"))

		page, err := svc.ListComments(r.Context(), videoID, order, limit, token)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, page)
	}
}

// ListReplies handles GET /v1/comments/{comment_id}/replies
func ListReplies(svc *service.CommentService, paging config.PagingConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID := strings.TrimSpace(chi.URLParam(r, "comment_id"))
		if commentID == "" {
			api.BadRequest(w, "MISSING_ID", "comment_id is required", requestID(r), nil)
			return
		}

		limit := parseLimit(r, paging)
		token := strings.TrimSpace(r.URL.Query().Get("token"))

		page, err := svc.ListReplies(r.Context(), commentID, limit, token)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, page)
	}
}

// CountComments handles GET /v1/videos/{video_id}/comments/count.
// Admin-gated: the count is a full-partition scan and too expensive for
// anonymous traffic.
func CountComments(svc *service.CommentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := strings.TrimSpace(chi.URLParam(r, "video_id"))
		if videoID == "" {
			api.BadRequest(w, "MISSING_ID", "video_id is required", requestID(r), nil)
			return
		}

		n, err := svc.CountComments(r.Context(), videoID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, countResponse{Count: n})
	}
}

func parseLimit(r *http.Request, paging config.PagingConfig) int {
	limit := paging.DefaultLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= paging.MaxLimit {
			limit = parsed
		}
	}
	return limit
}

func requestID(r *http.Request) string {
	return httpserver.RequestIDFromContext(r.Context())
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *store.ValidationError
	var pe *store.PartialRankChangeError
	var ue *store.UnavailableError
	switch {
	case errors.As(err, &ve):
		api.BadRequest(w, "INVALID_INPUT", ve.Error(), requestID(r), map[string]any{"field": ve.Field})
	case errors.Is(err, store.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "comment not found", requestID(r))
	case errors.As(err, &pe):
		api.Unavailable(w, "PARTIAL_RANK_CHANGE", "rank change interrupted, comment temporarily unavailable", requestID(r))
	case errors.As(err, &ue):
		api.Unavailable(w, "STORE_UNAVAILABLE", "storage engine unavailable", requestID(r))
	default:
		api.Internal(w, requestID(r))
	}
}
