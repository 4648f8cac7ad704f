package normalize

import (
	"encoding/json"

	"gorm.io/datatypes"

	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

// SkipReport records one payload item dropped during normalization because
// its required natural key could not be resolved.
type SkipReport struct {
	EntityKind string `json:"entity_kind"`
	Index      int    `json:"index"`
	Reason     string `json:"reason"`
}

var profileFields = map[string][]string{
	"username":        {"username", "user.username", "data.user.username", "graphql.user.username"},
	"full_name":       {"full_name", "user.full_name", "data.user.full_name"},
	"bio":             {"biography", "bio", "user.biography", "data.user.biography"},
	"profile_pic_url": {"profile_pic_url_hd", "profile_pic_url", "user.profile_pic_url"},
	"follower_count":  {"follower_count", "user.follower_count", "edge_followed_by.count", "user.edge_followed_by.count"},
	"following_count": {"following_count", "user.following_count", "edge_follow.count", "user.edge_follow.count"},
	"post_count":      {"media_count", "user.media_count", "edge_owner_to_timeline_media.count"},
	"is_verified":     {"is_verified", "user.is_verified"},
	"is_private":      {"is_private", "user.is_private"},
}

// Profile maps one provider profile payload onto a Profile record. The
// username is the natural key; without it the payload is unusable.
func Profile(payload map[string]any) (*types.Profile, error) {
	username := resolveString(payload, profileFields["username"])
	if username == "" {
		return nil, &apperrors.ValidationError{EntityKind: "profile", Field: "username", Reason: "could not be resolved from payload"}
	}
	return &types.Profile{
		Username:       username,
		FullName:       resolveString(payload, profileFields["full_name"]),
		Bio:            resolveString(payload, profileFields["bio"]),
		ProfilePicURL:  resolveString(payload, profileFields["profile_pic_url"]),
		FollowerCount:  resolveCount(payload, profileFields["follower_count"]),
		FollowingCount: resolveCount(payload, profileFields["following_count"]),
		PostCount:      resolveCount(payload, profileFields["post_count"]),
		IsVerified:     resolveBool(payload, profileFields["is_verified"]),
		IsPrivate:      resolveBool(payload, profileFields["is_private"]),
	}, nil
}

var similarFields = map[string][]string{
	"items":     {"users", "items", "data.users", "accounts"},
	"username":  {"username", "user.username"},
	"full_name": {"full_name", "user.full_name"},
	"score":     {"score", "similarity_score"},
	"rank":      {"rank", "position"},
}

// SimilarAccounts flattens a similarity query payload into one record per
// suggested account. Items without a username are skipped individually.
func SimilarAccounts(payload map[string]any, sourceUsername string) ([]*types.SimilarAccount, []SkipReport) {
	var recs []*types.SimilarAccount
	var skipped []SkipReport
	for i, raw := range resolveList(payload, similarFields["items"]) {
		item := itemMap(raw)
		if item == nil {
			skipped = append(skipped, SkipReport{EntityKind: "similar_account", Index: i, Reason: "item is not an object"})
			continue
		}
		username := resolveString(item, similarFields["username"])
		if username == "" {
			skipped = append(skipped, SkipReport{EntityKind: "similar_account", Index: i, Reason: "missing username"})
			continue
		}
		rank := int(resolveFloat(item, similarFields["rank"]))
		if rank == 0 {
			rank = i + 1
		}
		recs = append(recs, &types.SimilarAccount{
			SourceUsername:  sourceUsername,
			SimilarUsername: username,
			FullName:        resolveString(item, similarFields["full_name"]),
			Rank:            rank,
			Score:           resolveFloat(item, similarFields["score"]),
		})
	}
	return recs, skipped
}

var searchItemPaths = map[string][]string{
	types.SearchKindUser:     {"users", "items", "results", "data.users"},
	types.SearchKindLocation: {"places", "locations", "items", "results", "data.places"},
	types.SearchKindAudio:    {"audios", "items", "results", "data.audios"},
}

var searchIDPaths = map[string][]string{
	types.SearchKindUser:     {"pk", "id", "user.pk", "user.id", "username", "user.username"},
	types.SearchKindLocation: {"location.pk", "location.id", "place.location.pk", "pk", "id"},
	types.SearchKindAudio:    {"audio_cluster_id", "id", "pk", "music_info.music_asset_info.audio_cluster_id"},
}

// SearchResults snapshots each hit of a provider search response. The raw
// item is preserved as the payload column so route-layer consumers see
// whatever the provider sent, drift and all.
func SearchResults(payload map[string]any, kind, query string) ([]*types.SearchResult, []SkipReport) {
	var recs []*types.SearchResult
	var skipped []SkipReport
	for i, raw := range resolveList(payload, searchItemPaths[kind]) {
		item := itemMap(raw)
		if item == nil {
			skipped = append(skipped, SkipReport{EntityKind: "search_result", Index: i, Reason: "item is not an object"})
			continue
		}
		resultID := resolveString(item, searchIDPaths[kind])
		if resultID == "" {
			skipped = append(skipped, SkipReport{EntityKind: "search_result", Index: i, Reason: "missing result id"})
			continue
		}
		snapshot, err := json.Marshal(item)
		if err != nil {
			skipped = append(skipped, SkipReport{EntityKind: "search_result", Index: i, Reason: "item not serializable"})
			continue
		}
		recs = append(recs, &types.SearchResult{
			Kind:     kind,
			Query:    query,
			ResultID: resultID,
			Payload:  datatypes.JSON(snapshot),
		})
	}
	return recs, skipped
}
