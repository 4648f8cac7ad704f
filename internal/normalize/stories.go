package normalize

import (
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

var storyFields = map[string][]string{
	"items":      {"items", "stories", "reel.items", "data.items"},
	"story_id":   {"id", "pk", "story_id"},
	"media_url":  {"video_versions.0.url", "image_versions2.candidates.0.url", "media_url", "url"},
	"media_type": {"media_type", "product_type"},
	"views":      {"view_count", "viewer_count"},
	"expires_at": {"expiring_at", "expires_at"},
}

// Stories normalizes an active-stories payload for one profile.
func Stories(payload map[string]any, username string) ([]*types.Story, []SkipReport) {
	var recs []*types.Story
	var skipped []SkipReport
	for i, raw := range resolveList(payload, storyFields["items"]) {
		item := itemMap(raw)
		if item == nil {
			skipped = append(skipped, SkipReport{EntityKind: "story", Index: i, Reason: "item is not an object"})
			continue
		}
		storyID := resolveString(item, storyFields["story_id"])
		if storyID == "" {
			skipped = append(skipped, SkipReport{EntityKind: "story", Index: i, Reason: "missing story id"})
			continue
		}
		recs = append(recs, &types.Story{
			StoryID:   storyID,
			Username:  username,
			MediaURL:  resolveString(item, storyFields["media_url"]),
			MediaType: resolveString(item, storyFields["media_type"]),
			ViewCount: resolveCount(item, storyFields["views"]),
			ExpiresAt: resolveTime(item, storyFields["expires_at"]),
		})
	}
	return recs, skipped
}

var highlightFields = map[string][]string{
	"items":        {"items", "tray", "highlights", "data.user.edge_highlight_reels.edges"},
	"highlight_id": {"id", "pk", "highlight_id"},
	"title":        {"title", "name"},
	"cover_url":    {"cover_media.cropped_image_version.url", "cover_media.thumbnail_src", "cover_url"},
	"story_count":  {"media_count"},
	"stories":      {"items", "media_items"},
	"story_id":     {"id", "pk"},
	"media_url":    {"video_versions.0.url", "image_versions2.candidates.0.url", "url"},
	"taken_at":     {"taken_at", "taken_at_timestamp"},
}

// HighlightRecords carries the highlight reels plus their pinned stories,
// which back-reference the reel by highlight id.
type HighlightRecords struct {
	Highlights []*types.Highlight
	Stories    []*types.HighlightStory
	Skipped    []SkipReport
}

func Highlights(payload map[string]any, username string) HighlightRecords {
	var out HighlightRecords
	for i, raw := range resolveList(payload, highlightFields["items"]) {
		item := itemMap(raw)
		if item == nil {
			out.Skipped = append(out.Skipped, SkipReport{EntityKind: "highlight", Index: i, Reason: "item is not an object"})
			continue
		}
		highlightID := resolveString(item, highlightFields["highlight_id"])
		if highlightID == "" {
			out.Skipped = append(out.Skipped, SkipReport{EntityKind: "highlight", Index: i, Reason: "missing highlight id"})
			continue
		}
		out.Highlights = append(out.Highlights, &types.Highlight{
			HighlightID: highlightID,
			Username:    username,
			Title:       resolveString(item, highlightFields["title"]),
			CoverURL:    resolveString(item, highlightFields["cover_url"]),
			StoryCount:  resolveCount(item, highlightFields["story_count"]),
		})

		for j, rawStory := range resolveList(item, highlightFields["stories"]) {
			storyItem := itemMap(rawStory)
			if storyItem == nil {
				out.Skipped = append(out.Skipped, SkipReport{EntityKind: "highlight_story", Index: j, Reason: "item is not an object"})
				continue
			}
			storyID := resolveString(storyItem, highlightFields["story_id"])
			if storyID == "" {
				out.Skipped = append(out.Skipped, SkipReport{EntityKind: "highlight_story", Index: j, Reason: "missing story id"})
				continue
			}
			out.Stories = append(out.Stories, &types.HighlightStory{
				HighlightID: highlightID,
				StoryID:     storyID,
				MediaURL:    resolveString(storyItem, highlightFields["media_url"]),
				TakenAt:     resolveTime(storyItem, highlightFields["taken_at"]),
			})
		}
	}
	return out
}
