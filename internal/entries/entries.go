// Package entries holds the vocabulary queue (errors.json) and the list of
// already published words (history.json).
package entries

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"

	"error-english/manager-go/internal/utils"
)

const (
	StatusPending = "pending"

	jsonIndent = "    "
)

// ErrorEntry is one vocabulary video: an error message and the word it teaches.
type ErrorEntry struct {
	TargetWord                string `json:"targetWord"`
	ErrorMessage              string `json:"errorMessage"`
	MessageTranslation        string `json:"messageTranslation"`
	GeneralMeaning            string `json:"generalMeaning"`
	GeneralExample            string `json:"generalExample"`
	TechMeaning               string `json:"techMeaning"`
	Explanation               string `json:"explanation"`
	UsageContext              string `json:"usageContext"`
	UsageExample              string `json:"usageExample"`
	UsageExampleTranslation   string `json:"usageExampleTranslation"`
	UsagePunchline            string `json:"usagePunchline"`
	UsagePunchlineTranslation string `json:"usagePunchlineTranslation"`
	Status                    string `json:"status,omitempty"`
	YouTubeID                 string `json:"youtubeId,omitempty"`
	PublishedAt               string `json:"publishedAt,omitempty"`
}

func (e ErrorEntry) Pending() bool {
	return e.Status == "" || e.Status == StatusPending
}

// Field returns the text of the named JSON field, e.g. "usageExample".
func (e ErrorEntry) Field(name string) (string, bool) {
	switch name {
	case "targetWord":
		return e.TargetWord, true
	case "errorMessage":
		return e.ErrorMessage, true
	case "messageTranslation":
		return e.MessageTranslation, true
	case "generalMeaning":
		return e.GeneralMeaning, true
	case "generalExample":
		return e.GeneralExample, true
	case "techMeaning":
		return e.TechMeaning, true
	case "explanation":
		return e.Explanation, true
	case "usageContext":
		return e.UsageContext, true
	case "usageExample":
		return e.UsageExample, true
	case "usageExampleTranslation":
		return e.UsageExampleTranslation, true
	case "usagePunchline":
		return e.UsagePunchline, true
	case "usagePunchlineTranslation":
		return e.UsagePunchlineTranslation, true
	}
	return "", false
}

// Validate checks the fields every video needs. The word names audio and
// video files, so it must be usable as a single path element.
func (e ErrorEntry) Validate() error {
	word := strings.TrimSpace(e.TargetWord)
	if word == "" {
		return errors.New("entry has no targetWord")
	}
	if strings.ContainsAny(word, `/\`) || strings.Contains(word, "..") {
		return fmt.Errorf("entry %q: targetWord cannot contain path separators or \"..\"", e.TargetWord)
	}
	if strings.TrimSpace(e.ErrorMessage) == "" {
		return fmt.Errorf("entry %q has no errorMessage", e.TargetWord)
	}
	return nil
}

var annotation = regexp.MustCompile(`【.*?】`)

// CleanMeaning drops 【...】 annotations so they are not read aloud.
func CleanMeaning(text string) string {
	return annotation.ReplaceAllString(text, "")
}

// LoadQueue reads the queue file. A missing file is returned as fs.ErrNotExist.
func LoadQueue(path string) ([]ErrorEntry, error) {
	var queue []ErrorEntry
	if err := utils.ReadJSONFile(path, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

func SaveQueue(path string, queue []ErrorEntry) error {
	if queue == nil {
		queue = []ErrorEntry{}
	}
	return utils.WriteJSONFile(path, queue, jsonIndent)
}

// FirstPending returns the first entry that has not been processed yet.
func FirstPending(queue []ErrorEntry) (ErrorEntry, bool) {
	for _, entry := range queue {
		if entry.Pending() {
			return entry, true
		}
	}
	return ErrorEntry{}, false
}

// PendingCount counts entries still waiting for a video.
func PendingCount(queue []ErrorEntry) int {
	n := 0
	for _, entry := range queue {
		if entry.Pending() {
			n++
		}
	}
	return n
}

// rawQueue is the queue file as written, so fields ErrorEntry does not know
// survive a rewrite.
type rawQueue []json.RawMessage

func loadRawQueue(path string) (rawQueue, error) {
	var queue rawQueue
	if err := utils.ReadJSONFile(path, &queue); err != nil {
		return nil, err
	}
	return queue, nil
}

func (q rawQueue) save(path string) error {
	if q == nil {
		q = rawQueue{}
	}
	return utils.WriteJSONFile(path, q, jsonIndent)
}

// words decodes just the targetWord of every queued object.
func (q rawQueue) words() ([]string, error) {
	out := make([]string, len(q))
	for i, raw := range q {
		var head struct {
			TargetWord string `json:"targetWord"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return nil, fmt.Errorf("queue entry %d: %w", i, err)
		}
		out[i] = head.TargetWord
	}
	return out, nil
}

// RemoveByWord re-reads the queue file and drops the first entry for word.
// The other entries are written back untouched. It reports false when the
// word was no longer queued.
func RemoveByWord(path, word string) (bool, error) {
	queue, err := loadRawQueue(path)
	if err != nil {
		return false, err
	}
	queued, err := queue.words()
	if err != nil {
		return false, err
	}
	for i, w := range queued {
		if w == word {
			queue = append(queue[:i], queue[i+1:]...)
			return true, queue.save(path)
		}
	}
	return false, nil
}

// AppendUnique appends entries whose word is neither queued nor in history
// (nor repeated within candidates) and returns the ones it kept.
func AppendUnique(path string, candidates []ErrorEntry, history []string) ([]ErrorEntry, error) {
	queue, err := loadRawQueue(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	queued, err := queue.words()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(queued)+len(history))
	for _, word := range history {
		seen[normalizeWord(word)] = true
	}
	for _, word := range queued {
		seen[normalizeWord(word)] = true
	}

	var added []ErrorEntry
	for _, entry := range candidates {
		if err := entry.Validate(); err != nil {
			utils.Warn("skipping generated entry", "err", err)
			continue
		}
		key := normalizeWord(entry.TargetWord)
		if seen[key] {
			utils.Logf("skipping duplicate word %q", entry.TargetWord)
			continue
		}
		seen[key] = true
		added = append(added, entry)
	}
	if len(added) == 0 {
		return nil, nil
	}
	for _, entry := range added {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(entry); err != nil {
			return nil, err
		}
		queue = append(queue, json.RawMessage(bytes.TrimSpace(buf.Bytes())))
	}
	return added, queue.save(path)
}

// LoadHistory returns the published words; a missing file is an empty history.
func LoadHistory(path string) ([]string, error) {
	var words []string
	if err := utils.ReadJSONFile(path, &words); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	return words, nil
}

// AddToHistory records word once. It reports whether the file changed.
func AddToHistory(path, word string) (bool, error) {
	words, err := LoadHistory(path)
	if err != nil {
		return false, err
	}
	for _, existing := range words {
		if existing == word {
			return false, nil
		}
	}
	return true, utils.WriteJSONFile(path, append(words, word), jsonIndent)
}

// Complete removes word from the queue and appends it to history.
func Complete(queuePath, historyPath, word string) error {
	removed, err := RemoveByWord(queuePath, word)
	if err != nil {
		return fmt.Errorf("remove %s from queue: %w", word, err)
	}
	if !removed {
		utils.Warn("word was already removed from the queue", "word", word)
	}
	if _, err := AddToHistory(historyPath, word); err != nil {
		return fmt.Errorf("add %s to history: %w", word, err)
	}
	return nil
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
