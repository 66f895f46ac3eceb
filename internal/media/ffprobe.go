package media

import (
	"context"
	"encoding/json"
	"fmt"
)

// Track is one subtitle stream of a container. Index is the
// subtitle-relative index used with ffmpeg's "0:s:N" selector;
// StreamIndex is the absolute stream number in the container.
type Track struct {
	Index       int    `json:"index"`
	StreamIndex int    `json:"stream_index"`
	CodecName   string `json:"codec_name"`
	Language    string `json:"language"`
	Title       string `json:"title"`
}

// imageCodecs are bitmap subtitle formats that cannot be converted to
// text and therefore cannot be translated.
var imageCodecs = map[string]bool{
	"hdmv_pgs_subtitle": true,
	"dvd_subtitle":      true,
}

// ImageBased reports whether the track is a bitmap subtitle.
func (t Track) ImageBased() bool {
	return imageCodecs[t.CodecName]
}

type probeOutput struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecName string `json:"codec_name"`
		Tags      struct {
			Language string `json:"language"`
			Title    string `json:"title"`
		} `json:"tags"`
	} `json:"streams"`
}

// ListSubtitleTracks probes a container and returns its subtitle
// streams in container order.
func (t *Tools) ListSubtitleTracks(ctx context.Context, path string) ([]Track, error) {
	out, err := t.runner.Run(ctx, t.ffprobe,
		"-v", "error",
		"-select_streams", "s",
		"-show_entries", "stream=index,codec_name:stream_tags=language,title",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to probe %s: %w", path, err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	tracks := make([]Track, 0, len(probe.Streams))
	for i, s := range probe.Streams {
		tracks = append(tracks, Track{
			Index:       i,
			StreamIndex: s.Index,
			CodecName:   s.CodecName,
			Language:    s.Tags.Language,
			Title:       s.Tags.Title,
		})
	}
	return tracks, nil
}

// SelectTrack picks the subtitle track to translate. With an explicit
// request the track must exist and be text based; otherwise the first
// text-based track wins.
func SelectTrack(tracks []Track, requested *int) (Track, error) {
	if len(tracks) == 0 {
		return Track{}, fmt.Errorf("no subtitle tracks found")
	}

	if requested != nil {
		for _, t := range tracks {
			if t.Index != *requested {
				continue
			}
			if t.ImageBased() {
				return Track{}, fmt.Errorf("subtitle track %d is image-based (%s) and cannot be translated", t.Index, t.CodecName)
			}
			return t, nil
		}
		return Track{}, fmt.Errorf("subtitle track %d not found", *requested)
	}

	for _, t := range tracks {
		if !t.ImageBased() {
			return t, nil
		}
	}
	return Track{}, fmt.Errorf("all %d subtitle tracks are image-based", len(tracks))
}
