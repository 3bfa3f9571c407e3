package cli

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"testing/fstest"

	"error-english/manager-go/internal/config"
	"error-english/manager-go/internal/timeline"
)

func TestExtractGlobalVerbose(t *testing.T) {
	tests := []struct {
		in      []string
		want    []string
		verbose bool
	}{
		{in: []string{"manager", "job:CreateNext"}, want: []string{"manager", "job:CreateNext"}},
		{in: []string{"manager", "--verbose", "job:CreateNext", "--test"}, want: []string{"manager", "job:CreateNext", "--test"}, verbose: true},
		{in: []string{"manager", "job:CreateNext", "-verbose=true"}, want: []string{"manager", "job:CreateNext"}, verbose: true},
		{in: []string{"manager", "--verbose", "--verbose=false"}, want: []string{"manager"}},
	}
	for _, tt := range tests {
		got, verbose := extractGlobalVerbose(tt.in)
		if !reflect.DeepEqual(got, tt.want) || verbose != tt.verbose {
			t.Errorf("extractGlobalVerbose(%v) = %v, %v; want %v, %v", tt.in, got, verbose, tt.want, tt.verbose)
		}
	}
}

func TestParseArgsInterleaved(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	info := fs.Bool("info", false, "")
	positional, err := parseArgs(fs, []string{"video.mp4", "--info", "extra"})
	if err != nil {
		t.Fatal(err)
	}
	if !*info || !reflect.DeepEqual(positional, []string{"video.mp4", "extra"}) {
		t.Errorf("info=%v positional=%v", *info, positional)
	}
}

func TestParseDailyPublish(t *testing.T) {
	opts, err := parseDailyPublish([]string{"--queue-once", "--skip-threads", "--sleep=5"})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.Queue || !opts.QueueOnce || !opts.SkipThreads || opts.SkipInstagram || opts.Sleep != 5 {
		t.Errorf("opts = %+v", opts)
	}
	if _, err := parseDailyPublish([]string{"--bogus"}); err == nil {
		t.Error("expected unknown flag error")
	}
}

func TestListSQLFiles(t *testing.T) {
	source := fstest.MapFS{
		"002_b.sql":   {Data: []byte("select 2")},
		"001_a.SQL":   {Data: []byte("select 1")},
		"README.md":   {Data: []byte("docs")},
		"old/003.sql": {Data: []byte("nested")},
	}
	files, err := listSQLFiles(source)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(files, []string{"001_a.SQL", "002_b.sql"}) {
		t.Errorf("files = %v", files)
	}
}

func TestMigrationSourceFallsBackToBuiltIn(t *testing.T) {
	source, err := migrationSource(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatal(err)
	}
	files, err := listSQLFiles(source)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 || files[0] != "001_publications.sql" {
		t.Errorf("built-in migrations = %v", files)
	}

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "100_local.sql"), []byte("select 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	source, err = migrationSource(dir)
	if err != nil {
		t.Fatal(err)
	}
	files, _ = listSQLFiles(source)
	if !reflect.DeepEqual(files, []string{"100_local.sql"}) {
		t.Errorf("dir migrations = %v", files)
	}
}

func TestBuildServicesOnlyWiresConfiguredClients(t *testing.T) {
	cfg := config.Config{
		DataFolder:       t.TempDir(),
		RenderFPS:        30,
		ThreadsTokenFile: filepath.Join(t.TempDir(), "none.json"),
	}
	svc, err := buildServices(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if svc.Synth == nil || svc.Probe == nil || svc.Renderer == nil {
		t.Error("local services should always be wired")
	}
	if svc.YouTube != nil || svc.Threads != nil || svc.Instagram != nil || svc.Generator != nil {
		t.Errorf("unconfigured clients wired: %+v", svc)
	}
	if len(svc.Layout) != len(timeline.DefaultLayout()) {
		t.Errorf("layout has %d scenes", len(svc.Layout))
	}

	cfg.YouTubeClientID, cfg.YouTubeClientSecret, cfg.YouTubeRefreshToken = "id", "secret", "refresh"
	cfg.ThreadsAccessToken = "th-token"
	cfg.InstagramAccountID, cfg.InstagramAccessToken = "123", "ig-token"
	cfg.LLMAPIKey = "llm-key"
	cfg.PromptFile = filepath.Join(t.TempDir(), "missing.md")
	svc, err = buildServices(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if svc.YouTube == nil || svc.Threads == nil || svc.Refresher == nil || svc.Instagram == nil || svc.Generator == nil {
		t.Errorf("configured clients missing: %+v", svc)
	}
}

func TestBuildServicesRejectsBadLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.yaml")
	if err := os.WriteFile(path, []byte("scenes: [{name: intro, leading_pad: -1}]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{RenderFPS: 30, LayoutFile: path}
	if _, err := buildServices(context.Background(), cfg); err == nil || !strings.Contains(err.Error(), "layout") {
		t.Errorf("err = %v", err)
	}
}

func TestRunExitCodes(t *testing.T) {
	home := t.TempDir()
	t.Setenv("ERROR_ENGLISH_CONFIG", filepath.Join(home, "missing.ini"))
	t.Setenv("ERROR_ENGLISH_HOME", home)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("RABBITMQ_URL", "")

	tests := []struct {
		args []string
		want int
	}{
		{args: []string{"manager"}, want: 1},
		{args: []string{"manager", "help"}, want: 0},
		{args: []string{"manager", "Nope:Nothing"}, want: 1},
		{args: []string{"manager", "job:UploadSingle"}, want: 1},
		{args: []string{"manager", "Publications:List"}, want: 1},
		{args: []string{"manager", "job:CreateNext", "--verbose"}, want: 1},
	}
	for _, tt := range tests {
		if got := Run(tt.args); got != tt.want {
			t.Errorf("Run(%v) = %d, want %d", tt.args, got, tt.want)
		}
	}
}
