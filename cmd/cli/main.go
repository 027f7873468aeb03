package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/goccy/go-json"

	"releasehub/internal/app"
	"releasehub/internal/calendar"
	"releasehub/internal/checkpoint"
	"releasehub/internal/dates"
	"releasehub/internal/ledger"
	"releasehub/internal/logging"
)

func main() {
	global := flag.NewFlagSet("releasehub", flag.ExitOnError)
	configPath := global.String("config", "", "config file")
	if err := global.Parse(os.Args[1:]); err != nil {
		fatalf("parse flags: %v", err)
	}
	args := global.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	cmd, rest := args[0], args[1:]

	// parse-date needs no database
	if cmd == "parse-date" {
		handleParseDate(rest)
		return
	}

	a, err := app.Load(*configPath)
	if err != nil {
		fatalf("startup: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "sync":
		report, err := a.Engine.SyncCatalog(ctx)
		printJSON(report)
		exitOn(err)
	case "import":
		report, err := a.Importer.Import(ctx)
		exitOn(err)
		printJSON(report)
	case "backfill":
		fs := flag.NewFlagSet("backfill", flag.ExitOnError)
		limit := fs.Int("limit", 0, "max titles, 0 for all")
		_ = fs.Parse(rest)
		report, err := a.Engine.Backfill(ctx, *limit)
		printJSON(report)
		exitOn(err)
	case "refresh":
		if len(rest) != 1 {
			fatalf("usage: releasehub refresh <appid>")
		}
		id, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			fatalf("invalid appid %q", rest[0])
		}
		t, res, err := a.Engine.Refresh(ctx, id)
		exitOn(err)
		printJSON(map[string]any{"title": t, "result": res})
	case "calendar":
		handleCalendar(ctx, a, rest)
	case "day":
		handleDay(ctx, a, rest)
	case "ledger":
		handleLedger(ctx, a, rest)
	case "checkpoint":
		cp, err := checkpoint.Load(ctx, a.State)
		exitOn(err)
		fmt.Println(cp)
	default:
		printUsage()
		os.Exit(1)
	}
}

func monthArgs(fs *flag.FlagSet, args []string, n int) (calendar.Query, []int) {
	exclude := fs.String("exclude", "", "comma-separated genre ids, overrides calendar.excluded_genres")
	_ = fs.Parse(args)
	if fs.NArg() != n {
		fatalf("usage: releasehub %s [-exclude ids] %s", fs.Name(), strings.Repeat("<n> ", n))
	}
	nums := make([]int, n)
	for i := range nums {
		v, err := strconv.Atoi(fs.Arg(i))
		if err != nil {
			fatalf("%q is not a number", fs.Arg(i))
		}
		nums[i] = v
	}
	q := calendar.Query{Year: nums[0], Month: time.Month(nums[1])}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "exclude" {
			q.Excluded = []string{}
			for _, id := range strings.Split(*exclude, ",") {
				if id = strings.TrimSpace(id); id != "" {
					q.Excluded = append(q.Excluded, id)
				}
			}
		}
	})
	return q, nums
}

func handleCalendar(ctx context.Context, a *app.App, args []string) {
	q, _ := monthArgs(flag.NewFlagSet("calendar", flag.ExitOnError), args, 2)
	m, err := a.Calendar.ReleasesFor(ctx, q)
	exitOn(err)

	for _, d := range m.SortedDays() {
		fmt.Println(d)
		for _, e := range m.Days[d] {
			fmt.Printf("  %-10d %s  (%s)\n", e.AppID, e.Name, e.ReleaseDate)
		}
	}
	if len(m.Unparsed) > 0 {
		fmt.Println("no date")
		for _, e := range m.Unparsed {
			fmt.Printf("  %-10d %s  (%s)\n", e.AppID, e.Name, e.ReleaseDate)
		}
	}
	fmt.Printf("%d titles\n", m.Total())
}

func handleDay(ctx context.Context, a *app.App, args []string) {
	q, nums := monthArgs(flag.NewFlagSet("day", flag.ExitOnError), args, 3)
	entries, err := a.Calendar.ReleasesOn(ctx, q, nums[2])
	exitOn(err)
	for _, e := range entries {
		fmt.Printf("%-10d %s\n", e.AppID, e.Name)
	}
}

func handleParseDate(args []string) {
	text := strings.Join(args, " ")
	r := dates.Normalize(text)
	if !r.OK() {
		fmt.Printf("%q: unparsable\n", text)
		os.Exit(1)
	}
	fmt.Printf("%s  precision=%s strategy=%s\n", r.Date, r.Precision, r.Strategy)
}

func handleLedger(ctx context.Context, a *app.App, args []string) {
	sub := ""
	if len(args) > 0 {
		sub = args[0]
	}
	l, err := ledger.Load(ctx, a.State)
	exitOn(err)

	switch sub {
	case "show", "":
		threshold := a.Config.Sync.MaxGenreRetries
		for _, e := range l.Entries() {
			mark := ""
			if e.Count >= threshold {
				mark = "  skipped"
			}
			fmt.Printf("%-10d %d%s\n", e.AppID, e.Count, mark)
		}
		fmt.Printf("%d entries, %d at or above %d\n", len(l), len(l.Skipped(threshold)), threshold)
	case "clear":
		if len(args) != 2 {
			fatalf("usage: releasehub ledger clear <appid>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			fatalf("invalid appid %q", args[1])
		}
		if !l.Clear(id) {
			fmt.Printf("%d has no ledger entry\n", id)
			return
		}
		exitOn(ledger.Save(ctx, a.State, l))
		fmt.Printf("cleared %d\n", id)
	case "reset":
		exitOn(ledger.Save(ctx, a.State, ledger.Ledger{}))
		fmt.Printf("reset %d entries\n", len(l))
	default:
		fatalf("usage: releasehub ledger <show|clear|reset>")
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatalf("encode: %v", err)
	}
	fmt.Println(string(b))
}

func exitOn(err error) {
	if err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	logging.Error().Msgf(format, args...)
	os.Exit(1)
}

func printUsage() {
	fmt.Fprint(os.Stderr, `usage: releasehub [-config file] <command>

  sync                          run one catalog pass
  import                        insert every title from the full app list
  backfill [-limit n]           enrich titles that were never checked
  refresh <appid>               enrich one title now
  calendar [-exclude ids] <year> <month>
  day [-exclude ids] <year> <month> <day>
  parse-date <text>             run the date normalizer
  ledger show|clear <appid>|reset
  checkpoint                    print the catalog watermark
`)
}
