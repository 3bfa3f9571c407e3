package entries

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func sample(word string) ErrorEntry {
	return ErrorEntry{
		TargetWord:     word,
		ErrorMessage:   "Error: " + word,
		GeneralMeaning: "意味【めいし】",
	}
}

func words(queue []ErrorEntry) []string {
	var out []string
	for _, e := range queue {
		out = append(out, e.TargetWord)
	}
	return out
}

func TestCleanMeaning(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"非推奨【ひすいしょう】の", "非推奨の"},
		{"【名】期限切れ【形】", "期限切れ"},
		{"no annotations", "no annotations"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CleanMeaning(tt.in); got != tt.want {
			t.Errorf("CleanMeaning(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFirstPending(t *testing.T) {
	queue := []ErrorEntry{sample("a"), sample("b"), sample("c")}
	queue[0].Status = "published"
	queue[1].Status = StatusPending

	got, ok := FirstPending(queue)
	if !ok || got.TargetWord != "b" {
		t.Errorf("Expected b, got %q (ok=%v)", got.TargetWord, ok)
	}
	if n := PendingCount(queue); n != 2 {
		t.Errorf("Expected 2 pending, got %d", n)
	}
	if _, ok := FirstPending(queue[:1]); ok {
		t.Error("expected no pending entry")
	}
}

func TestSaveQueueFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "errors.json")
	if err := SaveQueue(path, nil); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "[]" {
		t.Errorf("empty queue should be [], got %q", data)
	}

	if err := SaveQueue(path, []ErrorEntry{sample("deprecated")}); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "\n        \"targetWord\": \"deprecated\"") {
		t.Errorf("expected 4-space indentation, got:\n%s", data)
	}
	if strings.Contains(string(data), "status") {
		t.Errorf("empty status should be omitted:\n%s", data)
	}
	if !strings.Contains(string(data), "【めいし】") {
		t.Errorf("non-ASCII text should be written as is:\n%s", data)
	}
}

func TestRemoveByWordRereadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.json")
	if err := SaveQueue(path, []ErrorEntry{sample("a"), sample("b")}); err != nil {
		t.Fatal(err)
	}
	// Another process appends while "a" is being rendered.
	if err := SaveQueue(path, []ErrorEntry{sample("a"), sample("b"), sample("c")}); err != nil {
		t.Fatal(err)
	}

	removed, err := RemoveByWord(path, "a")
	if err != nil || !removed {
		t.Fatalf("RemoveByWord = %v, %v", removed, err)
	}
	queue, err := LoadQueue(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := words(queue); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("queue = %v, want [b c]", got)
	}

	removed, err = RemoveByWord(path, "a")
	if err != nil || removed {
		t.Errorf("second removal = %v, %v; want false, nil", removed, err)
	}
}

func TestRewritesKeepUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.json")
	body := `[
    {"targetWord": "a", "errorMessage": "Error: a"},
    {"targetWord": "b", "errorMessage": "Error: b", "difficulty": 3, "tags": ["io"]}
]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	if removed, err := RemoveByWord(path, "a"); err != nil || !removed {
		t.Fatalf("RemoveByWord = %v, %v", removed, err)
	}
	if _, err := AppendUnique(path, []ErrorEntry{sample("c")}, nil); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	for _, want := range []string{`"difficulty": 3`, `"io"`, `"targetWord": "c"`} {
		if !strings.Contains(string(data), want) {
			t.Errorf("queue file lost %s:\n%s", want, data)
		}
	}
	if strings.Contains(string(data), `"targetWord": "a"`) {
		t.Errorf("a should be removed:\n%s", data)
	}
	queue, err := LoadQueue(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := words(queue); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Errorf("queue = %v, want [b c]", got)
	}
}

func TestValidateRejectsPathLikeWords(t *testing.T) {
	for _, word := range []string{"I/O", "../x", `a\b`, ".."} {
		if err := sample(word).Validate(); err == nil {
			t.Errorf("Validate(%q) should fail", word)
		}
	}
	for _, word := range []string{"deprecated", "read-only", "e.g."} {
		if err := sample(word).Validate(); err != nil {
			t.Errorf("Validate(%q) = %v", word, err)
		}
	}
}

func TestHistoryIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	history, err := LoadHistory(path)
	if err != nil || len(history) != 0 {
		t.Fatalf("missing history should be empty, got %v, %v", history, err)
	}
	for i := 0; i < 3; i++ {
		changed, err := AddToHistory(path, "deprecated")
		if err != nil {
			t.Fatal(err)
		}
		if changed != (i == 0) {
			t.Errorf("call %d: changed = %v", i, changed)
		}
	}
	if _, err := AddToHistory(path, "mutable"); err != nil {
		t.Fatal(err)
	}
	history, _ = LoadHistory(path)
	if !reflect.DeepEqual(history, []string{"deprecated", "mutable"}) {
		t.Errorf("history = %v", history)
	}
}

func TestAppendUnique(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.json")
	if err := SaveQueue(path, []ErrorEntry{sample("queued")}); err != nil {
		t.Fatal(err)
	}
	candidates := []ErrorEntry{
		sample("Published"),
		sample("queued"),
		sample("fresh"),
		sample("FRESH"),
		{TargetWord: "nomessage"},
		sample("I/O"),
		sample("another"),
	}
	added, err := AppendUnique(path, candidates, []string{"published"})
	if err != nil {
		t.Fatal(err)
	}
	if got := words(added); !reflect.DeepEqual(got, []string{"fresh", "another"}) {
		t.Errorf("added = %v", got)
	}
	queue, _ := LoadQueue(path)
	if got := words(queue); !reflect.DeepEqual(got, []string{"queued", "fresh", "another"}) {
		t.Errorf("queue = %v", got)
	}
}

func TestAppendUniqueCreatesQueue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.json")
	if _, err := LoadQueue(path); !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
	added, err := AppendUnique(path, []ErrorEntry{sample("first")}, nil)
	if err != nil || len(added) != 1 {
		t.Fatalf("AppendUnique = %v, %v", added, err)
	}
	queue, err := LoadQueue(path)
	if err != nil || len(queue) != 1 {
		t.Errorf("queue = %v, %v", queue, err)
	}
}

func TestComplete(t *testing.T) {
	dir := t.TempDir()
	queuePath := filepath.Join(dir, "errors.json")
	historyPath := filepath.Join(dir, "history.json")
	if err := SaveQueue(queuePath, []ErrorEntry{sample("a"), sample("b")}); err != nil {
		t.Fatal(err)
	}
	if err := Complete(queuePath, historyPath, "a"); err != nil {
		t.Fatal(err)
	}
	queue, _ := LoadQueue(queuePath)
	history, _ := LoadHistory(historyPath)
	if !reflect.DeepEqual(words(queue), []string{"b"}) || !reflect.DeepEqual(history, []string{"a"}) {
		t.Errorf("queue=%v history=%v", words(queue), history)
	}
}

func TestField(t *testing.T) {
	e := sample("deprecated")
	e.UsagePunchlineTranslation = "punch"
	if v, ok := e.Field("usagePunchlineTranslation"); !ok || v != "punch" {
		t.Errorf("Field = %q, %v", v, ok)
	}
	if _, ok := e.Field("followMe"); ok {
		t.Error("followMe is not an entry field")
	}
}
