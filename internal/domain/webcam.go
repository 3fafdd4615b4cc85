package domain

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// WebcamEntry is a view-ready webcam. A webcam is live when LiveEmbedURL is
// set; otherwise it is presented through PreviewImages, which may be empty.
type WebcamEntry struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	ViewCount     int      `json:"view_count"`
	LiveEmbedURL  string   `json:"live_embed_url,omitempty"`
	PreviewImages []string `json:"preview_images"`
}

// Live reports whether the webcam streams through an embedded player.
func (w WebcamEntry) Live() bool {
	return w.LiveEmbedURL != ""
}

// Key returns a deterministic identifier derived from the entry's content, so
// list reconciliation is stable across refreshes of the same data.
func (w WebcamEntry) Key() string {
	input := fmt.Sprintf("%s|%s|%s", w.ID, w.Title, w.LiveEmbedURL)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:8])
}

// WebcamList is ordered as the provider returned it and is replaced wholesale
// on every fetch.
type WebcamList []WebcamEntry

// WebcamsResponse is the envelope served by /api/webcams.
type WebcamsResponse struct {
	Result *struct {
		Webcams []RawWebcam `json:"webcams"`
	} `json:"result"`
}

// RawWebcam mirrors the Windy webcam fields the view consumes. Windy has
// shipped both a v2 shape (string id, player.live.embed) and a v3 shape
// (numeric webcamId, player.live as a URL string); both are accepted.
type RawWebcam struct {
	ID        json.RawMessage `json:"id"`
	WebcamID  json.RawMessage `json:"webcamId"`
	Title     string          `json:"title"`
	ViewCount int             `json:"viewCount"`
	Images    *struct {
		Current  *rawImageSet `json:"current"`
		Daylight *rawImageSet `json:"daylight"`
	} `json:"images"`
	Player *struct {
		Live json.RawMessage `json:"live"`
	} `json:"player"`
}

type rawImageSet struct {
	Preview   *string `json:"preview"`
	Thumbnail *string `json:"thumbnail"`
}

// DecodeWebcams parses a /api/webcams body and normalizes it.
func DecodeWebcams(data []byte) (WebcamList, error) {
	var resp WebcamsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: decode webcams: %w", ErrWebcamFetch, err)
	}
	return NormalizeWebcams(resp), nil
}

// NormalizeWebcams converts the provider envelope into a WebcamList. A missing
// result or webcams field yields an empty, non-nil list.
func NormalizeWebcams(resp WebcamsResponse) WebcamList {
	if resp.Result == nil || len(resp.Result.Webcams) == 0 {
		return WebcamList{}
	}
	out := make(WebcamList, 0, len(resp.Result.Webcams))
	for _, raw := range resp.Result.Webcams {
		out = append(out, normalizeWebcam(raw))
	}
	return out
}

func normalizeWebcam(raw RawWebcam) WebcamEntry {
	id := rawString(raw.ID)
	if id == "" {
		id = rawString(raw.WebcamID)
	}
	views := raw.ViewCount
	if views < 0 {
		views = 0
	}
	return WebcamEntry{
		ID:            id,
		Title:         raw.Title,
		ViewCount:     views,
		LiveEmbedURL:  liveEmbed(raw),
		PreviewImages: previewImages(raw),
	}
}

// previewImages collects preview candidates in display order, dropping empty
// values and repeated URLs.
func previewImages(raw RawWebcam) []string {
	var candidates []*string
	if raw.Images != nil {
		cur, day := raw.Images.Current, raw.Images.Daylight
		if cur == nil {
			cur = &rawImageSet{}
		}
		if day == nil {
			day = &rawImageSet{}
		}
		candidates = []*string{cur.Preview, day.Preview, cur.Thumbnail}
	}

	images := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		if c == nil {
			continue
		}
		u := strings.TrimSpace(*c)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		images = append(images, u)
	}
	return images
}

// liveEmbed reads player.live as either {"embed": "..."} or a bare URL string.
func liveEmbed(raw RawWebcam) string {
	if raw.Player == nil || len(raw.Player.Live) == 0 {
		return ""
	}
	var obj struct {
		Embed string `json:"embed"`
	}
	if err := json.Unmarshal(raw.Player.Live, &obj); err == nil {
		return strings.TrimSpace(obj.Embed)
	}
	var s string
	if err := json.Unmarshal(raw.Player.Live, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}

// rawString renders a JSON string or number as a plain string.
func rawString(b json.RawMessage) string {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
			return strconv.FormatInt(i, 10)
		}
		return n.String()
	}
	return ""
}
