package normalize

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	apperrors "github.com/gramlytics/gramlytics-backend/internal/pkg/errors"
	"github.com/gramlytics/gramlytics-backend/internal/types"
)

func mustUnmarshal(t *testing.T, raw string) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return payload
}

func TestProfile_ResolvesRenamedAndNestedFields(t *testing.T) {
	// Old flat shape.
	flat := mustUnmarshal(t, `{
		"username": "acme",
		"full_name": "Acme Co",
		"biography": "we make things",
		"follower_count": 1200,
		"media_count": 48,
		"is_verified": true
	}`)
	p, err := Profile(flat)
	if err != nil {
		t.Fatalf("flat profile: %v", err)
	}
	if p.Username != "acme" || p.FollowerCount != 1200 || p.PostCount != 48 || !p.IsVerified {
		t.Fatalf("flat profile mis-resolved: %+v", p)
	}

	// Newer graphql-style nesting with renamed counters.
	nested := mustUnmarshal(t, `{
		"data": {"user": {"username": "acme"}},
		"user": {
			"full_name": "Acme Co",
			"edge_followed_by": {"count": 1300},
			"edge_follow": {"count": 10}
		}
	}`)
	p2, err := Profile(nested)
	if err != nil {
		t.Fatalf("nested profile: %v", err)
	}
	if p2.Username != "acme" || p2.FollowerCount != 1300 || p2.FollowingCount != 10 {
		t.Fatalf("nested profile mis-resolved: %+v", p2)
	}
}

func TestProfile_MissingUsernameIsValidationError(t *testing.T) {
	_, err := Profile(mustUnmarshal(t, `{"full_name": "No Handle"}`))
	var ve *apperrors.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestProfile_UnresolvedCounterIsUnknownNotZero(t *testing.T) {
	p, err := Profile(mustUnmarshal(t, `{"username": "acme"}`))
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.FollowerCount != types.CountUnknown {
		t.Fatalf("follower_count = %d, want CountUnknown sentinel", p.FollowerCount)
	}
}

func TestPosts_SkipsItemsWithoutMediaID(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"items": [
			{"id": "m1", "like_count": 10},
			{"like_count": 99},
			{"id": "m3", "caption": {"text": "hello"}}
		]
	}`)
	out := Posts(payload, "acme")
	if len(out.Posts) != 2 {
		t.Fatalf("posts = %d, want 2", len(out.Posts))
	}
	if len(out.Skipped) != 1 || out.Skipped[0].Index != 1 {
		t.Fatalf("skipped = %+v, want one report for index 1", out.Skipped)
	}
	if out.Posts[0].MediaID != "m1" || out.Posts[1].MediaID != "m3" {
		t.Fatalf("surviving ids = %q, %q", out.Posts[0].MediaID, out.Posts[1].MediaID)
	}
}

func TestPosts_ExtractsTagsFromCaptionWhenAbsent(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"items": [
			{"id": "m1", "caption": {"text": "new drop #Coffee #roast #Coffee with @barista.joe"}}
		]
	}`)
	out := Posts(payload, "acme")
	if len(out.Posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(out.Posts))
	}

	var tags []string
	if err := json.Unmarshal(out.Posts[0].Hashtags, &tags); err != nil {
		t.Fatalf("hashtags column: %v", err)
	}
	if len(tags) != 2 || tags[0] != "Coffee" || tags[1] != "roast" {
		t.Fatalf("tags = %v, want [Coffee roast]", tags)
	}

	var mentions []string
	if err := json.Unmarshal(out.Posts[0].Mentions, &mentions); err != nil {
		t.Fatalf("mentions column: %v", err)
	}
	if len(mentions) != 1 || mentions[0] != "barista.joe" {
		t.Fatalf("mentions = %v, want [barista.joe]", mentions)
	}

	// Hashtag side entities are lowercased and deduped.
	if len(out.Hashtags) != 2 {
		t.Fatalf("hashtag entities = %d, want 2", len(out.Hashtags))
	}
	if out.Hashtags[0].Hashtag != "coffee" || out.Hashtags[1].Hashtag != "roast" {
		t.Fatalf("hashtag entities = %q, %q", out.Hashtags[0].Hashtag, out.Hashtags[1].Hashtag)
	}
	if out.Hashtags[0].UsageCount != types.CountUnknown {
		t.Fatalf("caption-derived hashtag should not claim a usage count")
	}
}

func TestPosts_CollectsLocationAndAudioOnce(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"items": [
			{"id": "m1", "location": {"pk": 77, "name": "Pier 39", "lat": 37.8, "lng": -122.4}},
			{"id": "m2", "location": {"pk": 77, "name": "Pier 39"},
			 "music_info": {"audio_cluster_id": "a9", "title": "Song"}}
		]
	}`)
	out := Posts(payload, "acme")
	if len(out.Locations) != 1 || out.Locations[0].LocationID != "77" {
		t.Fatalf("locations = %+v, want one with id 77", out.Locations)
	}
	if len(out.Audios) != 1 || out.Audios[0].AudioID != "a9" {
		t.Fatalf("audios = %+v, want one with id a9", out.Audios)
	}
	if out.Posts[0].LocationID == nil || *out.Posts[0].LocationID != "77" {
		t.Fatalf("post 0 location ref = %v", out.Posts[0].LocationID)
	}
	if out.Posts[1].AudioID == nil || *out.Posts[1].AudioID != "a9" {
		t.Fatalf("post 1 audio ref = %v", out.Posts[1].AudioID)
	}
}

func TestComments_FlattensNestedRepliesToRootComment(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"comments": [
			{
				"pk": "c1",
				"user": {"username": "fan"},
				"text": "first",
				"child_comments": [
					{
						"pk": "r1", "text": "reply",
						"child_comments": [
							{"pk": "r2", "text": "reply to reply"}
						]
					}
				],
				"likers": [{"username": "liker1"}, {"username": "liker2"}]
			}
		]
	}`)
	out := Comments(payload, "m1")
	if len(out.Comments) != 1 || out.Comments[0].CommentID != "c1" {
		t.Fatalf("comments = %+v", out.Comments)
	}
	if len(out.Replies) != 2 {
		t.Fatalf("replies = %d, want 2 (nested levels flattened)", len(out.Replies))
	}
	for _, reply := range out.Replies {
		if reply.CommentID != "c1" {
			t.Fatalf("reply %s keyed to %q, want root c1", reply.ReplyID, reply.CommentID)
		}
	}
	if len(out.Likes) != 2 || out.Likes[0].Username != "liker1" {
		t.Fatalf("likes = %+v", out.Likes)
	}
}

func TestStories_ResolvesMediaURLFromVersionCandidates(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"reel": {"items": [
			{"pk": "s1",
			 "image_versions2": {"candidates": [{"url": "https://cdn/img.jpg"}]},
			 "expiring_at": 1767225600}
		]}
	}`)
	recs, skipped := Stories(payload, "acme")
	if len(skipped) != 0 {
		t.Fatalf("skipped = %+v", skipped)
	}
	if len(recs) != 1 || recs[0].MediaURL != "https://cdn/img.jpg" {
		t.Fatalf("stories = %+v", recs)
	}
	if recs[0].ExpiresAt == nil || !recs[0].ExpiresAt.Equal(time.Unix(1767225600, 0).UTC()) {
		t.Fatalf("expires_at = %v", recs[0].ExpiresAt)
	}
}

func TestHighlights_EmitsReelAndPinnedStories(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"tray": [
			{"id": "h1", "title": "Travel", "media_count": 2,
			 "items": [
				{"pk": "s1", "taken_at": 1767225600},
				{"pk": "s2"}
			 ]}
		]
	}`)
	out := Highlights(payload, "acme")
	if len(out.Highlights) != 1 || out.Highlights[0].HighlightID != "h1" {
		t.Fatalf("highlights = %+v", out.Highlights)
	}
	if len(out.Stories) != 2 || out.Stories[0].HighlightID != "h1" {
		t.Fatalf("pinned stories = %+v", out.Stories)
	}
}

func TestSimilarAccounts_RankDefaultsToPosition(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"users": [
			{"username": "alpha", "score": 0.9},
			{"username": "beta"},
			{"full_name": "No Handle"}
		]
	}`)
	recs, skipped := SimilarAccounts(payload, "acme")
	if len(recs) != 2 || len(skipped) != 1 {
		t.Fatalf("recs = %d skipped = %d, want 2 / 1", len(recs), len(skipped))
	}
	if recs[0].Rank != 1 || recs[1].Rank != 2 {
		t.Fatalf("ranks = %d, %d, want positional 1, 2", recs[0].Rank, recs[1].Rank)
	}
	if recs[0].SourceUsername != "acme" {
		t.Fatalf("source = %q", recs[0].SourceUsername)
	}
}

func TestSearchResults_UnwrapsNodeEnvelopesAndStringifiesIDs(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"users": [
			{"node": {"pk": 12345, "username": "acme"}},
			{"username": "nokey"}
		]
	}`)
	recs, skipped := SearchResults(payload, types.SearchKindUser, "acme")
	if len(recs) != 2 {
		t.Fatalf("recs = %d skipped = %+v", len(recs), skipped)
	}
	if recs[0].ResultID != "12345" {
		t.Fatalf("numeric id not stringified: %q", recs[0].ResultID)
	}
	// Second item resolves via the username fallback path.
	if recs[1].ResultID != "nokey" {
		t.Fatalf("fallback id = %q", recs[1].ResultID)
	}
}

func TestLookup_IndexesIntoArrays(t *testing.T) {
	payload := mustUnmarshal(t, `{
		"edge_media_to_caption": {"edges": [{"node": {"text": "hi"}}]}
	}`)
	got := resolveString(payload, []string{"edge_media_to_caption.edges.0.node.text"})
	if got != "hi" {
		t.Fatalf("resolved %q, want hi", got)
	}
}
