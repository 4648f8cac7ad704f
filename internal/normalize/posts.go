package normalize

import (
	"encoding/json"
	"regexp"
	"strings"

	"gorm.io/datatypes"

	"github.com/gramlytics/gramlytics-backend/internal/types"
)

var (
	hashtagRe = regexp.MustCompile(`#([A-Za-z0-9_]+)`)
	mentionRe = regexp.MustCompile(`@([A-Za-z0-9_.]+)`)
)

var postFields = map[string][]string{
	"items":      {"items", "posts", "data.items", "data.user.edge_owner_to_timeline_media.edges"},
	"media_id":   {"id", "pk", "media_id"},
	"caption":    {"caption.text", "caption_text", "edge_media_to_caption.edges.0.node.text"},
	"media_type": {"media_type", "product_type", "__typename"},
	"likes":      {"like_count", "edge_liked_by.count", "edge_media_preview_like.count"},
	"comments":   {"comment_count", "edge_media_to_comment.count"},
	"saves":      {"save_count", "saved_count"},
	"shares":     {"share_count", "reshare_count"},
	"views":      {"view_count", "play_count", "video_view_count"},
	"taken_at":   {"taken_at", "taken_at_timestamp", "device_timestamp"},
	"hashtags":   {"hashtags"},
	"mentions":   {"mentions", "usertags"},
	"location":   {"location", "venue"},
	"audio":      {"music_metadata.music_info.music_asset_info", "clips_metadata.music_info.music_asset_info", "music_info", "audio"},
}

var locationFields = map[string][]string{
	"location_id": {"pk", "id", "location_id", "external_id"},
	"name":        {"name", "short_name"},
	"lat":         {"lat", "latitude"},
	"lng":         {"lng", "longitude"},
}

var audioFields = map[string][]string{
	"audio_id": {"audio_cluster_id", "audio_id", "id", "pk"},
	"title":    {"title", "display_title", "song_name"},
	"artist":   {"display_artist", "artist_name", "ig_artist.username"},
	"usage":    {"usage_count", "media_count"},
}

// HashtagRef ties one post to one hashtag for the N:M join table.
type HashtagRef struct {
	MediaID string
	Hashtag string
}

// PostRecords bundles every entity a posts payload yields: the posts
// themselves plus the locations, audio tracks and hashtags they reference.
type PostRecords struct {
	Posts       []*types.MediaPost
	Locations   []*types.LocationData
	Audios      []*types.AudioData
	Hashtags    []*types.HashtagData
	HashtagRefs []HashtagRef
	Skipped     []SkipReport
}

// Posts normalizes a posts payload for one profile. Items missing their
// media id are reported in Skipped; the rest of the batch survives.
func Posts(payload map[string]any, username string) PostRecords {
	var out PostRecords
	locationsSeen := map[string]bool{}
	audiosSeen := map[string]bool{}
	hashtagsSeen := map[string]bool{}

	for i, raw := range resolveList(payload, postFields["items"]) {
		item := itemMap(raw)
		if item == nil {
			out.Skipped = append(out.Skipped, SkipReport{EntityKind: "media_post", Index: i, Reason: "item is not an object"})
			continue
		}
		mediaID := resolveString(item, postFields["media_id"])
		if mediaID == "" {
			out.Skipped = append(out.Skipped, SkipReport{EntityKind: "media_post", Index: i, Reason: "missing media id"})
			continue
		}

		caption := resolveString(item, postFields["caption"])
		hashtags := resolveStringList(item, postFields["hashtags"])
		if hashtags == nil {
			hashtags = extractTags(hashtagRe, caption)
		}
		mentions := resolveStringList(item, postFields["mentions"])
		if mentions == nil {
			mentions = extractTags(mentionRe, caption)
		}

		post := &types.MediaPost{
			MediaID:      mediaID,
			Username:     username,
			Caption:      caption,
			MediaType:    resolveString(item, postFields["media_type"]),
			LikeCount:    resolveCount(item, postFields["likes"]),
			CommentCount: resolveCount(item, postFields["comments"]),
			SaveCount:    resolveCount(item, postFields["saves"]),
			ShareCount:   resolveCount(item, postFields["shares"]),
			ViewCount:    resolveCount(item, postFields["views"]),
			Hashtags:     toJSONList(hashtags),
			Mentions:     toJSONList(mentions),
			PostDatetime: resolveTime(item, postFields["taken_at"]),
		}

		if loc := resolveMap(item, postFields["location"]); loc != nil {
			locationID := resolveString(loc, locationFields["location_id"])
			if locationID != "" {
				post.LocationID = &locationID
				if !locationsSeen[locationID] {
					locationsSeen[locationID] = true
					out.Locations = append(out.Locations, &types.LocationData{
						LocationID: locationID,
						Name:       resolveString(loc, locationFields["name"]),
						Lat:        resolveFloat(loc, locationFields["lat"]),
						Lng:        resolveFloat(loc, locationFields["lng"]),
					})
				}
			}
		}

		if audio := resolveMap(item, postFields["audio"]); audio != nil {
			audioID := resolveString(audio, audioFields["audio_id"])
			if audioID != "" {
				post.AudioID = &audioID
				if !audiosSeen[audioID] {
					audiosSeen[audioID] = true
					out.Audios = append(out.Audios, &types.AudioData{
						AudioID:    audioID,
						Title:      resolveString(audio, audioFields["title"]),
						Artist:     resolveString(audio, audioFields["artist"]),
						UsageCount: resolveCount(audio, audioFields["usage"]),
					})
				}
			}
		}

		for _, tag := range hashtags {
			tag = strings.ToLower(tag)
			out.HashtagRefs = append(out.HashtagRefs, HashtagRef{MediaID: mediaID, Hashtag: tag})
			if !hashtagsSeen[tag] {
				hashtagsSeen[tag] = true
				out.Hashtags = append(out.Hashtags, &types.HashtagData{
					Hashtag:    tag,
					UsageCount: types.CountUnknown,
					MediaCount: types.CountUnknown,
				})
			}
		}

		out.Posts = append(out.Posts, post)
	}
	return out
}

func extractTags(re *regexp.Regexp, caption string) []string {
	if caption == "" {
		return nil
	}
	matches := re.FindAllStringSubmatch(caption, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := map[string]bool{}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		tag := strings.TrimRight(m[1], ".")
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func toJSONList(items []string) datatypes.JSON {
	if len(items) == 0 {
		return nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
