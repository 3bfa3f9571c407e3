package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"error-english/manager-go/internal/config"
	"error-english/manager-go/internal/db"
	"error-english/manager-go/internal/jobs"
	"error-english/manager-go/internal/queue"
	"error-english/manager-go/internal/utils"
)

func Run(args []string) int {
	// Support a global --verbose flag anywhere in the argv (before or after the command).
	// This is helpful because the stdlib flag parser stops at the first non-flag argument.
	args, globalVerbose := extractGlobalVerbose(args)
	utils.ConfigureLogging(globalVerbose)

	if len(args) < 2 {
		printUsage(os.Stdout)
		return 1
	}
	if args[1] == "-h" || args[1] == "--help" || args[1] == "help" {
		printUsage(os.Stdout)
		return 0
	}
	cmd := args[1]
	cmdArgs := args[2:]
	if !knownCommand(cmd) {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage(os.Stderr)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return 1
	}
	utils.Logf("manager: config loaded env=%s hostname=%s base=%s", cfg.AppEnv, cfg.Hostname, cfg.BaseFolder)

	if cmd == "migrate" {
		if err := runMigrate(ctx, cfg, cmdArgs); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	services, err := buildServices(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "services error: %v\n", err)
		return 1
	}
	jctx := jobs.JobContext{Config: cfg, Services: services}

	var store *db.Store
	if cfg.DBEnabled() {
		store, err = db.NewStore(ctx, cfg.DBConnString())
		if err != nil {
			fmt.Fprintf(os.Stderr, "db error: %v\n", err)
			return 1
		}
		defer store.Close()
		jctx.Store = store
		utils.Logf("manager: db connected")
	}

	if cfg.RabbitMQEnabled() {
		queueClient, err := queue.New(cfg.RabbitMQURL())
		if err != nil {
			fmt.Fprintf(os.Stderr, "queue error: %v\n", err)
			return 1
		}
		defer queueClient.Close()
		jctx.Queue = queueClient
		utils.Logf("manager: queue connected")
	}

	utils.Logf("manager: cmd=%s args=%v", cmd, cmdArgs)

	var runErr error
	switch cmd {
	case "job:CreateNext":
		runErr = runCreateNext(ctx, jctx, cmdArgs)
	case "job:DailyPublish":
		runErr = runDailyPublish(ctx, jctx, cmdArgs)
	case "job:GenerateAll":
		runErr = runSimpleJob(ctx, jctx, cmd, cmdArgs, jobs.NewGenerateAllJob())
	case "job:Replenish":
		runErr = runReplenish(ctx, jctx, cmdArgs)
	case "job:GenerateEntries":
		runErr = runSimpleJob(ctx, jctx, cmd, cmdArgs, jobs.NewGenerateEntriesJob())
	case "job:UploadSingle":
		runErr = runUploadSingle(ctx, jctx, cmdArgs)
	case "Threads:RefreshToken":
		runErr = runSimpleJob(ctx, jctx, cmd, cmdArgs, jobs.NewRefreshThreadsTokenJob())
	case "Audio:Update":
		runErr = runSimpleJob(ctx, jctx, cmd, cmdArgs, jobs.NewUpdateAudioJob())
	case "Audio:GenerateExtra":
		runErr = runSimpleJob(ctx, jctx, cmd, cmdArgs, jobs.NewGenerateExtraAudioJob())
	case "Audio:DownloadEffects":
		runErr = runSimpleJob(ctx, jctx, cmd, cmdArgs, jobs.NewDownloadEffectsJob())
	case "Timeline:Show":
		runErr = runShowTimeline(ctx, jctx, cmdArgs)
	case "Schedule:Serve":
		runErr = runScheduleServe(ctx, jctx, cmdArgs)
	case "Publications:List":
		runErr = runPublicationsList(ctx, store, cmdArgs, os.Stdout)
	}

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		return 1
	}

	return 0
}

var commands = []struct {
	name  string
	usage string
}{
	{"job:CreateNext", "[--test]"},
	{"job:DailyPublish", "[--queue] [--queue-once] [--sleep=N] [--skip-threads] [--skip-instagram]"},
	{"job:GenerateAll", ""},
	{"job:Replenish", "[--threshold=N]"},
	{"job:GenerateEntries", ""},
	{"job:UploadSingle", "<video-file> [--info]"},
	{"Threads:RefreshToken", ""},
	{"Audio:Update", ""},
	{"Audio:GenerateExtra", ""},
	{"Audio:DownloadEffects", ""},
	{"Timeline:Show", "[word] [--json]"},
	{"Schedule:Serve", "[--daily=CRON] [--token-refresh=CRON] [--skip-threads] [--skip-instagram]"},
	{"Publications:List", "[--limit=N]"},
	{"migrate", "[up] [--dir=path] [--dry-run]"},
}

func knownCommand(name string) bool {
	for _, c := range commands {
		if c.name == name {
			return true
		}
	}
	return false
}

func extractGlobalVerbose(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}
	verbose := false
	out := make([]string, 0, len(args))
	for _, arg := range args {
		switch {
		case arg == "--verbose" || arg == "-verbose":
			verbose = true
			continue
		case strings.HasPrefix(arg, "--verbose="):
			raw := strings.TrimPrefix(arg, "--verbose=")
			if parsed, err := strconv.ParseBool(raw); err == nil {
				verbose = parsed
			}
			continue
		case strings.HasPrefix(arg, "-verbose="):
			raw := strings.TrimPrefix(arg, "-verbose=")
			if parsed, err := strconv.ParseBool(raw); err == nil {
				verbose = parsed
			}
			continue
		default:
			out = append(out, arg)
		}
	}
	return out, verbose
}

// parseArgs parses flags that may come before or after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func runSimpleJob(ctx context.Context, jctx jobs.JobContext, name string, args []string, job jobs.Job) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	opts := jobs.JobOptions{}
	logJobStart(name, opts)
	return job.Run(ctx, jctx, opts)
}

func runCreateNext(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("job:CreateNext", flag.ContinueOnError)
	test := fs.Bool("test", false, "Render without removing the entry from the queue")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	opts := jobs.JobOptions{Test: *test}
	logJobStart("job:CreateNext", opts)

	return jobs.NewCreateNextJob().Run(ctx, jctx, opts)
}

func parseDailyPublish(args []string) (jobs.JobOptions, error) {
	fs := flag.NewFlagSet("job:DailyPublish", flag.ContinueOnError)
	sleep := fs.Int("sleep", 30, "Sleep time in seconds")
	queueFlag := fs.Bool("queue", false, "Process queue messages")
	queueOnce := fs.Bool("queue-once", false, "Process queue messages until the queue is empty")
	skipThreads := fs.Bool("skip-threads", false, "Do not announce on Threads")
	skipInstagram := fs.Bool("skip-instagram", false, "Do not post an Instagram reel")
	if _, err := parseArgs(fs, args); err != nil {
		return jobs.JobOptions{}, err
	}
	return jobs.JobOptions{
		Sleep:         *sleep,
		Queue:         *queueFlag || *queueOnce,
		QueueOnce:     *queueOnce,
		SkipThreads:   *skipThreads,
		SkipInstagram: *skipInstagram,
	}, nil
}

func runDailyPublish(ctx context.Context, jctx jobs.JobContext, args []string) error {
	opts, err := parseDailyPublish(args)
	if err != nil {
		return err
	}
	logJobStart("job:DailyPublish", opts)

	return jobs.NewDailyPublishJob().Run(ctx, jctx, opts)
}

func runReplenish(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("job:Replenish", flag.ContinueOnError)
	threshold := fs.Int("threshold", jctx.Config.ReplenishThreshold, "Generate when fewer entries are pending")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	opts := jobs.JobOptions{Threshold: *threshold}
	logJobStart("job:Replenish", opts)

	return jobs.NewReplenishJob().Run(ctx, jctx, opts)
}

func runUploadSingle(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("job:UploadSingle", flag.ContinueOnError)
	info := fs.Bool("info", false, "Print metadata and record a video id instead of uploading")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return errors.New("please provide a video file path")
	}
	opts := jobs.JobOptions{Path: positional[0], Info: *info}
	logJobStart("job:UploadSingle", opts)

	return jobs.NewUploadSingleJob().Run(ctx, jctx, opts)
}

func runShowTimeline(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("Timeline:Show", flag.ContinueOnError)
	asJSON := fs.Bool("json", false, "Print the timeline as JSON")
	positional, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	opts := jobs.JobOptions{JSON: *asJSON}
	if len(positional) > 0 {
		opts.Word = positional[0]
	}
	logJobStart("Timeline:Show", opts)

	return jobs.NewShowTimelineJob().Run(ctx, jctx, opts)
}

func runScheduleServe(ctx context.Context, jctx jobs.JobContext, args []string) error {
	fs := flag.NewFlagSet("Schedule:Serve", flag.ContinueOnError)
	daily := fs.String("daily", jctx.Config.DailyPublishSchedule, "Cron spec for the daily publish (empty disables)")
	refresh := fs.String("token-refresh", jctx.Config.TokenRefreshSchedule, "Cron spec for the Threads token refresh (empty disables)")
	skipThreads := fs.Bool("skip-threads", false, "Do not announce on Threads")
	skipInstagram := fs.Bool("skip-instagram", false, "Do not post an Instagram reel")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	opts := jobs.JobOptions{SkipThreads: *skipThreads, SkipInstagram: *skipInstagram}
	logJobStart("Schedule:Serve", opts)

	return jobs.NewScheduleJob(*daily, *refresh).Run(ctx, jctx, opts)
}

func runPublicationsList(ctx context.Context, store *db.Store, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("Publications:List", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "Number of rows")
	if _, err := parseArgs(fs, args); err != nil {
		return err
	}
	if store == nil {
		return errors.New("database is not configured")
	}
	rows, err := store.ListPublications(ctx, *limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PUBLISHED\tWORD\tYOUTUBE\tTHREADS\tINSTAGRAM\tFRAMES")
	for _, p := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			p.PublishedAt.Local().Format(time.DateTime), p.TargetWord, p.YouTubeID, p.ThreadsID, p.InstagramID, p.TotalFrames)
	}
	return w.Flush()
}

func logJobStart(name string, opts jobs.JobOptions) {
	utils.Logf("start %s word=%s path=%s test=%t queue=%t queue_once=%t sleep=%d info=%t threshold=%d",
		name, opts.Word, opts.Path, opts.Test, opts.Queue, opts.QueueOnce, opts.Sleep, opts.Info, opts.Threshold)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: manager <command> [args]")
	fmt.Fprintln(w, "Global flags:")
	fmt.Fprintln(w, "  --verbose   Enable diagnostic logging (can appear before or after the command).")
	fmt.Fprintln(w, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %s\n", strings.TrimSpace(c.name+" "+c.usage))
	}
}
