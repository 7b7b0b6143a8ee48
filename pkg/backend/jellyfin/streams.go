package jellyfin

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"

	"streambridge/pkg/backend"
	"streambridge/pkg/prefs"
)

// resolveToken is the opaque payload attached to Jellyfin candidates. It
// carries everything needed to negotiate a play session later.
type resolveToken struct {
	ItemID        string `json:"item_id"`
	MediaSourceID string `json:"media_source_id"`
	Static        bool   `json:"static,omitempty"`
	VideoBitrate  int64  `json:"video_bitrate"`
	AudioBitrate  int64  `json:"audio_bitrate"`
	AudioIndex    *int   `json:"audio_index,omitempty"`
	SubtitleIndex *int   `json:"subtitle_index,omitempty"`
}

// ListCandidates enumerates the source stream plus every transcode rung
// strictly below the source bitrate. No play session is created here; that
// happens during Resolve, once, for the candidate actually played.
func (c *Client) ListCandidates(ctx context.Context, item backend.ItemRef) ([]backend.Candidate, error) {
	dto, err := c.item(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("jellyfin item %s: %w", item.ID, err)
	}
	if len(dto.MediaSources) == 0 {
		return nil, nil
	}
	source := dto.MediaSources[0]
	if source.ID == "" {
		return nil, fmt.Errorf("%w: media source without id", backend.ErrMalformedResponse)
	}

	var (
		subtitles         []backend.SubtitleTrack
		externalSubtitles []backend.SubtitleTrack
		audioIndex        *int
		subtitleIndex     *int
	)

	referenceBitrate := qualitiesList[0].VideoBitrate
	audioLang := c.prefs.Get(prefs.KeyAudioLang)
	subLang := c.prefs.Get(prefs.KeySubtitleLang)

	for _, stream := range source.MediaStreams {
		switch stream.Type {
		case "Video":
			if stream.BitRate > 0 {
				referenceBitrate = stream.BitRate
			}
		case "Subtitle":
			if stream.SupportsExternalStream {
				track := backend.SubtitleTrack{
					URL:   c.subtitleURL(dto.ID, source.ID, stream),
					Label: stream.DisplayTitle,
				}
				if stream.IsExternal {
					externalSubtitles = append(externalSubtitles, track)
				}
				subtitles = append(subtitles, track)
			}
			if stream.Language == subLang && subtitleIndex == nil {
				idx := stream.Index
				subtitleIndex = &idx
			}
		case "Audio":
			if stream.Language == audioLang && audioIndex == nil {
				idx := stream.Index
				audioIndex = &idx
			}
		}
	}

	headers := map[string]string{}
	if token, _ := c.credentials(); token != "" {
		headers["Authorization"] = c.authHeader(token)
	}

	var candidates []backend.Candidate

	if source.SupportsDirectStream {
		tok, err := json.Marshal(resolveToken{
			ItemID:        dto.ID,
			MediaSourceID: source.ID,
			Static:        true,
			VideoBitrate:  referenceBitrate,
			AudioIndex:    audioIndex,
			SubtitleIndex: subtitleIndex,
		})
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, backend.Candidate{
			Title:     fmt.Sprintf("Source - %s", formatBitrate(source.Bitrate)),
			Quality:   prefs.DefaultQuality,
			SortKey:   math.MaxInt64,
			BackendID: "jellyfin",
			Token:     tok,
			Subtitles: externalSubtitles,
			Headers:   headers,
		})
	}

	if source.SupportsTranscoding {
		for _, q := range ladderBelow(referenceBitrate) {
			tok, err := json.Marshal(resolveToken{
				ItemID:        dto.ID,
				MediaSourceID: source.ID,
				VideoBitrate:  q.VideoBitrate,
				AudioBitrate:  q.AudioBitrate,
				AudioIndex:    audioIndex,
				SubtitleIndex: subtitleIndex,
			})
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, backend.Candidate{
				Title:     q.Description,
				Quality:   q.Description,
				SortKey:   q.VideoBitrate,
				BackendID: "jellyfin",
				Token:     tok,
				Subtitles: subtitles,
				Headers:   headers,
			})
		}
	}

	return candidates, nil
}

// Resolve negotiates a play session for the candidate and returns the final
// stream URL. Each call may create a fresh server-side session.
func (c *Client) Resolve(ctx context.Context, cand backend.Candidate) (backend.FinalStream, error) {
	var tok resolveToken
	if err := json.Unmarshal(cand.Token, &tok); err != nil {
		return backend.FinalStream{}, fmt.Errorf("%w: bad jellyfin token: %v", backend.ErrBackendRejected, err)
	}
	if tok.ItemID == "" || tok.MediaSourceID == "" {
		return backend.FinalStream{}, fmt.Errorf("%w: jellyfin token missing ids", backend.ErrBackendRejected)
	}

	_, userID := c.credentials()
	audioBitrate := tok.AudioBitrate
	if audioBitrate == 0 {
		audioBitrate = qualitiesList[len(qualitiesList)-1].AudioBitrate
	}

	payload := playbackInfoRequest{
		UserID:                              userID,
		IsPlayback:                          true,
		MediaSourceID:                       tok.MediaSourceID,
		MaxStreamingBitrate:                 tok.VideoBitrate,
		AudioStreamIndex:                    tok.AudioIndex,
		SubtitleStreamIndex:                 tok.SubtitleIndex,
		AlwaysBurnInSubtitleWhenTranscoding: c.prefs.GetBool(prefs.KeyBurnSubtitles),
		EnableTranscoding:                   !tok.Static,
		DeviceProfile:                       deviceProfile(c.device.Name, c.codec, tok.VideoBitrate, audioBitrate),
	}

	sessionURL := fmt.Sprintf("%s/Items/%s/PlaybackInfo?userId=%s", c.baseURL, url.PathEscape(tok.ItemID), url.QueryEscape(userID))
	var session sessionDto
	if err := c.post(ctx, sessionURL, payload, &session); err != nil {
		return backend.FinalStream{}, fmt.Errorf("jellyfin playback info: %w", err)
	}
	if session.PlaySessionID == "" {
		return backend.FinalStream{}, fmt.Errorf("%w: playback info without session id", backend.ErrMalformedResponse)
	}

	streamURL, err := c.streamURL(tok, session)
	if err != nil {
		return backend.FinalStream{}, err
	}

	return backend.FinalStream{
		URL:       streamURL,
		Headers:   cand.Headers,
		Subtitles: cand.Subtitles,
	}, nil
}

func (c *Client) streamURL(tok resolveToken, session sessionDto) (string, error) {
	if tok.Static {
		return fmt.Sprintf("%s/Videos/%s/stream?static=True&PlaySessionId=%s",
			c.baseURL, url.PathEscape(tok.ItemID), url.QueryEscape(session.PlaySessionID)), nil
	}

	if len(session.MediaSources) == 0 || session.MediaSources[0].TranscodingURL == "" {
		return "", fmt.Errorf("%w: server offered no transcoding url", backend.ErrBackendRejected)
	}

	u, err := url.Parse(c.baseURL + session.MediaSources[0].TranscodingURL)
	if err != nil {
		return "", fmt.Errorf("%w: bad transcoding url: %v", backend.ErrMalformedResponse, err)
	}
	q := u.Query()
	q.Set("VideoBitrate", fmt.Sprintf("%d", tok.VideoBitrate))
	q.Set("AudioBitrate", fmt.Sprintf("%d", tok.AudioBitrate))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) subtitleURL(itemID, mediaSourceID string, stream mediaStreamDto) string {
	return fmt.Sprintf("%s/Videos/%s/%s/Subtitles/%d/0/Stream.%s",
		c.baseURL, url.PathEscape(itemID), url.PathEscape(mediaSourceID), stream.Index, url.PathEscape(stream.Codec))
}
