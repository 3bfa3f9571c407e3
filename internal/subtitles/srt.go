// Package subtitles reads and writes SRT captions and derives them from a
// computed video timeline.
package subtitles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"error-english/manager-go/internal/timeline"
)

type Caption struct {
	StartTime string
	EndTime   string
	Text      string
}

var (
	timeRegex  = regexp.MustCompile(`(\d\d:\d\d:\d\d,\d\d\d)\s-->\s(\d\d:\d\d:\d\d,\d\d\d)`)
	blockRegex = regexp.MustCompile(`\r?\n\r?\n+`)
)

func ParseSRT(input string) []Caption {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}
	blocks := blockRegex.Split(trimmed, -1)
	captions := make([]Caption, 0, len(blocks))
	for _, block := range blocks {
		lines := strings.Split(NormalizeText(block), "\n")
		if len(lines) < 2 {
			continue
		}
		// First line is index; second line is time range.
		matches := timeRegex.FindStringSubmatch(lines[1])
		if len(matches) < 3 {
			continue
		}
		text := ""
		if len(lines) > 2 {
			text = strings.Join(lines[2:], "\n")
		}
		captions = append(captions, Caption{
			StartTime: matches[1],
			EndTime:   matches[2],
			Text:      strings.TrimRight(text, "\n"),
		})
	}
	return captions
}

func SerializeSRT(captions []Caption) string {
	var builder strings.Builder
	for idx, caption := range captions {
		builder.WriteString(strconv.Itoa(idx + 1))
		builder.WriteString("\n")
		builder.WriteString(caption.StartTime)
		builder.WriteString(" --> ")
		builder.WriteString(caption.EndTime)
		builder.WriteString("\n")
		builder.WriteString(caption.Text)
		builder.WriteString("\n\n")
	}
	return builder.String()
}

func NormalizeText(input string) string {
	text := strings.ReplaceAll(input, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimRight(text, "\n")
}

// FrameTimestamp formats a frame index as an SRT timestamp (HH:MM:SS,mmm).
func FrameTimestamp(frame, fps int) string {
	if fps <= 0 || frame < 0 {
		return "00:00:00,000"
	}
	ms := int64(frame) * 1000 / int64(fps)
	h := ms / 3_600_000
	m := ms / 60_000 % 60
	s := ms / 1000 % 60
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms%1000)
}

// FromTimeline produces one caption per narrated clip, spanning the frames
// the clip plays. Clips without text or without audio are skipped.
func FromTimeline(tl timeline.Timeline, texts map[string]string) []Caption {
	var captions []Caption
	for _, scene := range tl.Scenes {
		for _, clip := range scene.Clips {
			text := strings.TrimSpace(NormalizeText(texts[clip.ID]))
			if text == "" || clip.Frames == 0 {
				continue
			}
			captions = append(captions, Caption{
				StartTime: FrameTimestamp(clip.AbsoluteStart, tl.FPS),
				EndTime:   FrameTimestamp(clip.AbsoluteStart+clip.Frames, tl.FPS),
				Text:      text,
			})
		}
	}
	return captions
}
