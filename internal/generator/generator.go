// Package generator asks a language model for new vocabulary entries and
// appends the ones that are not known yet to the queue.
package generator

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"error-english/manager-go/internal/entries"
	"error-english/manager-go/internal/utils"
)

//go:embed prompt.md
var defaultPrompt string

// ErrNoArray means the model answered with JSON that holds no entry list.
var ErrNoArray = errors.New("no entry array in response")

// Completer returns the model's raw answer to prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// LoadPrompt reads the prompt template, falling back to the built-in one
// when path is empty or missing.
func LoadPrompt(path string) (string, error) {
	if path == "" {
		return defaultPrompt, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			utils.Debug("prompt file missing, using built-in prompt", "path", path)
			return defaultPrompt, nil
		}
		return "", err
	}
	return string(data), nil
}

// BuildPrompt appends the list of words that must not be generated again.
func BuildPrompt(template string, exclude []string) string {
	return template + fmt.Sprintf(`

## 除外リスト
以下の単語は既に生成済みのため、**絶対に**生成しないでください：
%s

JSON形式で出力してください。Markdownのコードブロックは不要です。
`, strings.Join(exclude, ", "))
}

var fence = regexp.MustCompile("```(?:json)?\\n?")

// ParseEntries accepts a bare array, an {"errors": [...]} object or any
// object whose first array-valued field holds the entries. Markdown code
// fences around the JSON are ignored.
func ParseEntries(content string) ([]entries.ErrorEntry, error) {
	content = strings.TrimSpace(fence.ReplaceAllString(content, ""))
	if content == "" {
		return nil, errors.New("empty response")
	}

	var list []entries.ErrorEntry
	if strings.HasPrefix(content, "[") {
		if err := json.Unmarshal([]byte(content), &list); err != nil {
			return nil, fmt.Errorf("decode entry array: %w", err)
		}
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &obj); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if raw, ok := obj["errors"]; ok {
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
	}
	// Map order is random; walk the keys in document order instead.
	for _, key := range objectKeys(content) {
		raw := obj[key]
		if len(raw) == 0 || raw[0] != '[' {
			continue
		}
		if err := json.Unmarshal(raw, &list); err == nil {
			return list, nil
		}
	}
	return nil, ErrNoArray
}

func objectKeys(content string) []string {
	dec := json.NewDecoder(strings.NewReader(content))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil
	}
	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		keys = append(keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
	}
	return keys
}

type Generator struct {
	Model          Completer
	PromptTemplate string
}

// Generate asks the model for entries and appends the unseen ones to the
// queue file. The history file is only read.
func (g Generator) Generate(ctx context.Context, queuePath, historyPath string) ([]entries.ErrorEntry, error) {
	history, err := entries.LoadHistory(historyPath)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	utils.Info("existing words in history", "count", len(history))

	prompt := BuildPrompt(g.PromptTemplate, history)
	utils.Info("generating new entries")
	content, err := g.Model.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generate entries: %w", err)
	}
	candidates, err := ParseEntries(content)
	if err != nil {
		utils.Debug("raw model response", "content", content)
		return nil, fmt.Errorf("parse generated entries: %w", err)
	}

	added, err := entries.AppendUnique(queuePath, candidates, history)
	if err != nil {
		return nil, fmt.Errorf("append entries: %w", err)
	}
	if len(added) == 0 {
		utils.Info("no new unique entries generated")
		return nil, nil
	}
	words := make([]string, 0, len(added))
	for _, e := range added {
		words = append(words, e.TargetWord)
	}
	utils.Info("generated new entries", "count", len(added), "words", strings.Join(words, ", "))
	return added, nil
}
