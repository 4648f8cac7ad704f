package normalize

import (
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

var commentFields = map[string][]string{
	"items":      {"comments", "items", "data.comments", "edge_media_to_comment.edges"},
	"comment_id": {"id", "pk", "comment_id"},
	"author":     {"user.username", "username", "owner.username"},
	"text":       {"text", "comment_text"},
	"likes":      {"comment_like_count", "like_count", "edge_liked_by.count"},
	"created_at": {"created_at", "created_at_utc", "taken_at"},
	"replies":    {"preview_child_comments", "child_comments", "replies", "edge_threaded_comments.edges"},
	"likers":     {"likers", "liked_by.users"},
	"liker_name": {"username", "user.username"},
}

// CommentRecords carries a comments payload flattened into comments,
// replies and likes, each back-referencing its parent natural key.
type CommentRecords struct {
	Comments []*types.MediaComment
	Replies  []*types.CommentReply
	Likes    []*types.CommentLike
	Skipped  []SkipReport
}

// Comments normalizes a comments payload for one media post. Reply threads
// nest arbitrarily deep in provider payloads; every descendant is flattened
// into a reply row keyed to the top-level comment.
func Comments(payload map[string]any, mediaID string) CommentRecords {
	var out CommentRecords
	for i, raw := range resolveList(payload, commentFields["items"]) {
		item := itemMap(raw)
		if item == nil {
			out.Skipped = append(out.Skipped, SkipReport{EntityKind: "media_comment", Index: i, Reason: "item is not an object"})
			continue
		}
		commentID := resolveString(item, commentFields["comment_id"])
		if commentID == "" {
			out.Skipped = append(out.Skipped, SkipReport{EntityKind: "media_comment", Index: i, Reason: "missing comment id"})
			continue
		}
		out.Comments = append(out.Comments, &types.MediaComment{
			CommentID:   commentID,
			MediaID:     mediaID,
			Author:      resolveString(item, commentFields["author"]),
			Text:        resolveString(item, commentFields["text"]),
			LikeCount:   resolveCount(item, commentFields["likes"]),
			CommentedAt: resolveTime(item, commentFields["created_at"]),
		})

		collectReplies(&out, item, commentID)

		for _, rawLiker := range resolveList(item, commentFields["likers"]) {
			liker := itemMap(rawLiker)
			if liker == nil {
				continue
			}
			username := resolveString(liker, commentFields["liker_name"])
			if username == "" {
				continue
			}
			out.Likes = append(out.Likes, &types.CommentLike{CommentID: commentID, Username: username})
		}
	}
	return out
}

// collectReplies walks the reply thread recursively; every level is
// flattened onto rootCommentID since the store models one reply depth.
func collectReplies(out *CommentRecords, item map[string]any, rootCommentID string) {
	for j, rawReply := range resolveList(item, commentFields["replies"]) {
		reply := itemMap(rawReply)
		if reply == nil {
			out.Skipped = append(out.Skipped, SkipReport{EntityKind: "comment_reply", Index: j, Reason: "item is not an object"})
			continue
		}
		replyID := resolveString(reply, commentFields["comment_id"])
		if replyID == "" {
			out.Skipped = append(out.Skipped, SkipReport{EntityKind: "comment_reply", Index: j, Reason: "missing reply id"})
			continue
		}
		out.Replies = append(out.Replies, &types.CommentReply{
			ReplyID:   replyID,
			CommentID: rootCommentID,
			Author:    resolveString(reply, commentFields["author"]),
			Text:      resolveString(reply, commentFields["text"]),
			LikeCount: resolveCount(reply, commentFields["likes"]),
			RepliedAt: resolveTime(reply, commentFields["created_at"]),
		})
		collectReplies(out, reply, rootCommentID)
	}
}
