// Package publish uploads rendered videos to YouTube and announces them on
// Threads and Instagram.
package publish

import (
	"fmt"
	"net/url"
	"path/filepath"
	"regexp"
	"strings"

	"error-english/manager-go/internal/entries"
)

const (
	titlePrefix    = "【エンジニア英語】"
	shortsSuffix   = " #shorts"
	maxTitleLength = 100
)

// Metadata is what a video is uploaded with.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
}

// Title builds the YouTube title, truncated so that the #shorts suffix still
// fits in 100 characters.
func Title(entry entries.ErrorEntry) string {
	title := []rune(fmt.Sprintf("%s%s: %s", titlePrefix, entry.TargetWord, entry.ErrorMessage))
	suffix := []rune(shortsSuffix)
	if len(title)+len(suffix) > maxTitleLength {
		title = append(title[:maxTitleLength-len(suffix)-3], []rune("...")...)
	}
	return string(title) + shortsSuffix
}

func Description(entry entries.ErrorEntry) string {
	return strings.TrimSpace(fmt.Sprintf(`
%s
意味: %s

エラーメッセージ:
%s
訳: %s

解説:
%s

#プログラミング #英語 #エンジニア #エラー #English`,
		entry.TargetWord,
		entry.GeneralMeaning,
		entry.ErrorMessage,
		entry.MessageTranslation,
		entry.Explanation,
	))
}

func Tags(entry entries.ErrorEntry) []string {
	return []string{"programming", "english", "error", "engineer", "learning", entry.TargetWord}
}

func EntryMetadata(entry entries.ErrorEntry) Metadata {
	return Metadata{
		Title:       Title(entry),
		Description: Description(entry),
		Tags:        Tags(entry),
	}
}

// ManualMetadata is used for videos uploaded by hand: the file name becomes
// the title.
func ManualMetadata(videoPath string) Metadata {
	name := strings.TrimSuffix(filepath.Base(videoPath), filepath.Ext(videoPath))
	return Metadata{
		Title:       name + shortsSuffix,
		Description: "Uploaded via manual script.\n\n#shorts",
		Tags:        []string{"manual", "upload"},
	}
}

// ShortsURL links to an uploaded video.
func ShortsURL(videoID string) string {
	return "https://www.youtube.com/shorts/" + videoID
}

// AnnouncementText is the Threads post for a published video.
func AnnouncementText(entry entries.ErrorEntry, videoID string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s%s\n", titlePrefix, entry.TargetWord)
	fmt.Fprintf(&b, "意味: %s\n\n", entry.GeneralMeaning)
	fmt.Fprintf(&b, "%s\n訳: %s\n", entry.ErrorMessage, entry.MessageTranslation)
	if videoID != "" {
		fmt.Fprintf(&b, "\n%s\n", ShortsURL(videoID))
	}
	b.WriteString("\n#プログラミング #英語 #エンジニア")
	return b.String()
}

// ReelCaption is the Instagram caption for a published video.
func ReelCaption(entry entries.ErrorEntry) string {
	return Description(entry)
}

var youTubeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

// ExtractYouTubeID accepts a bare id or any common YouTube URL form.
func ExtractYouTubeID(input string) string {
	input = strings.TrimSpace(input)
	if youTubeIDPattern.MatchString(input) {
		return input
	}

	parsed, err := url.Parse(input)
	if err != nil {
		return ""
	}

	var id string
	switch parsed.Host {
	case "youtu.be":
		id = strings.TrimPrefix(parsed.Path, "/")
	case "www.youtube.com", "youtube.com", "m.youtube.com":
		switch {
		case strings.HasPrefix(parsed.Path, "/watch"):
			id = parsed.Query().Get("v")
		case strings.HasPrefix(parsed.Path, "/embed/"):
			id = strings.TrimPrefix(parsed.Path, "/embed/")
		case strings.HasPrefix(parsed.Path, "/shorts/"):
			id = strings.TrimPrefix(parsed.Path, "/shorts/")
		}
	}
	if !youTubeIDPattern.MatchString(id) {
		return ""
	}
	return id
}
