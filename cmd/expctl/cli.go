package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/codegangsta/cli"
	"github.com/dustin/go-humanize"
	shlex "github.com/flynn-archive/go-shlex"
	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/diag"
	"github.com/freeeve/chessexp/internal/eval"
	"github.com/freeeve/chessexp/internal/experience"
	"github.com/freeeve/chessexp/internal/graph"
	"github.com/freeeve/chessexp/internal/ingest"
	"github.com/freeeve/chessexp/internal/logx"
	"github.com/freeeve/chessexp/internal/opening"
	"github.com/freeeve/chessexp/internal/store"
)

const usage = `Maintains chess engine experience files.

	expctl defrag [file]
	expctl merge <target> <file1> [file2...]
	expctl convert <input> <output> [maxPly] [maxScore] [minDepth] [maxDepth]
	expctl show [--quality] <fen>
	expctl --engine /usr/bin/stockfish analyze <fen>
	expctl stats [file]
	expctl shell

The experience file used by show, analyze and as the default of defrag and
stats is taken from --file (or CHESSEXP_FILE).`

// expCli holds the state shared by commands, including across shell lines.
type expCli struct {
	app *cli.App
	ctx context.Context
	out io.Writer
	log zerolog.Logger

	registry      *prometheus.Registry
	storeMetrics  *store.Metrics
	ingestMetrics *ingest.Metrics

	// True if we are running a shell.
	inShell bool
}

// newExpCli creates the command-line application. Command output goes to out.
func newExpCli(ctx context.Context, out io.Writer) *expCli {
	reg := prometheus.NewRegistry()
	e := &expCli{
		ctx:           ctx,
		out:           out,
		log:           zerolog.Nop(),
		registry:      reg,
		storeMetrics:  store.NewMetrics(reg),
		ingestMetrics: ingest.NewMetrics(reg),
	}

	app := cli.NewApp()
	app.Name = "expctl"
	app.Usage = usage
	app.Writer = out
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "file, f",
			Usage:  "Experience file",
			Value:  experience.DefaultFile,
			EnvVar: "CHESSEXP_FILE",
		},
		cli.BoolFlag{
			Name:   "readonly",
			Usage:  "Never write new experience to the file",
			EnvVar: "CHESSEXP_READONLY",
		},
		cli.StringFlag{
			Name:   "engine, e",
			Usage:  "Path to a UCI engine used by analyze",
			EnvVar: "STOCKFISH_PATH",
		},
		cli.IntFlag{
			Name:  "hash",
			Usage: "Engine hash size in MB",
			Value: 256,
		},
		cli.IntFlag{
			Name:  "threads",
			Usage: "Engine threads per worker",
			Value: 1,
		},
		cli.StringFlag{
			Name:   "log-level",
			Usage:  "debug, info, warn or error",
			Value:  "info",
			EnvVar: "CHESSEXP_LOG_LEVEL",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:      "defrag",
			Usage:     "Merges duplicate entries of an experience file and drops shallow ones.",
			ArgsUsage: "[file]",
			Action:    e.cmdDefrag,
		},
		{
			Name:      "merge",
			Usage:     "Merges experience files into the target, keeping the deepest result per move.",
			ArgsUsage: "<target> <file1> [file2...]",
			Action:    e.cmdMerge,
		},
		{
			Name:      "convert",
			Usage:     "Converts annotated games in compact notation (optionally .zst) into an experience file.",
			ArgsUsage: "<input> <output> [maxPly] [maxScore] [minDepth] [maxDepth]",
			Action:    e.cmdConvert,
		},
		{
			Name:      "show",
			Usage:     "Lists the stored moves of a position.",
			ArgsUsage: "<fen>",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "quality, q",
					Usage: "Rank moves by estimated quality",
				},
				cli.IntFlag{
					Name:  "plies",
					Usage: "Longest line followed by the quality estimate",
					Value: diag.MaxQualityPlies,
				},
				cli.StringFlag{
					Name:   "openings",
					Usage:  "Directory of ECO .tsv files used to name the position",
					EnvVar: "CHESSEXP_OPENINGS",
				},
			},
			Action: e.cmdShow,
		},
		{
			Name:      "analyze",
			Usage:     "Searches every legal move of a position with the engine and records the results.",
			ArgsUsage: "<fen>",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "depth, d",
					Usage: "Search depth per move",
					Value: 20,
				},
				cli.IntFlag{
					Name:  "workers, w",
					Usage: "Engines searching in parallel",
					Value: 1,
				},
				cli.IntFlag{
					Name:  "nice",
					Usage: "Engine process priority, 0 leaves it alone",
				},
			},
			Action: e.cmdAnalyze,
		},
		{
			Name:      "stats",
			Usage:     "Loads an experience file and prints its statistics.",
			ArgsUsage: "[file]",
			Action:    e.cmdStats,
		},
		{
			Name:   "shell",
			Usage:  "Starts a shell for interaction.",
			Action: e.cmdShell,
		},
	}
	app.Before = e.beforeSubcommandRun
	e.app = app

	for i := range e.app.Commands {
		e.app.Commands[i].HelpName = e.app.Commands[i].Name
	}
	return e
}

// run starts a command specified by users.
func (e *expCli) run(args []string) error {
	return e.app.Run(args)
}

// beforeSubcommandRun builds the logger from the global flags.
func (e *expCli) beforeSubcommandRun(c *cli.Context) error {
	log, err := logx.NewLogger(logx.Options{Level: c.String("log-level")})
	if err != nil {
		return err
	}
	e.log = log
	return nil
}

func (e *expCli) storeConfig() store.Config {
	return store.Config{Logger: e.log, Metrics: e.storeMetrics}
}

func usageError(c *cli.Context) error {
	return fmt.Errorf("usage: %s %s", c.Command.Name, c.Command.ArgsUsage)
}

// fileArg returns the first argument, or the global experience file.
func fileArg(c *cli.Context) string {
	if c.Args().Present() {
		return c.Args().First()
	}
	return c.GlobalString("file")
}

// fenArg joins the arguments so an unquoted FEN works too. No arguments
// means the initial position.
func fenArg(c *cli.Context) string {
	if !c.Args().Present() {
		return chess.StartFEN
	}
	return strings.Join(c.Args(), " ")
}

// openSession loads the global experience file and waits for it.
func (e *expCli) openSession(c *cli.Context, readOnly bool) (*experience.Session, error) {
	sess := experience.Open(experience.Config{
		Enabled:  true,
		Path:     c.GlobalString("file"),
		ReadOnly: readOnly,
		Store:    e.storeConfig(),
		Logger:   e.log,
	})
	if err := sess.WaitForLoad(); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// cmdDefrag implements the "defrag" subcommand.
func (e *expCli) cmdDefrag(c *cli.Context) error {
	if len(c.Args()) > 1 {
		return usageError(c)
	}
	path := fileArg(c)
	if err := store.Defrag(path, e.storeConfig()); err != nil {
		return fmt.Errorf("defrag %s: %w", path, err)
	}
	fmt.Fprintf(e.out, "defragmented %s\n", path)
	return nil
}

// cmdMerge implements the "merge" subcommand.
func (e *expCli) cmdMerge(c *cli.Context) error {
	if len(c.Args()) < 2 {
		return usageError(c)
	}
	target := c.Args().First()
	if err := store.Merge(target, c.Args().Tail(), e.storeConfig()); err != nil {
		return fmt.Errorf("merge into %s: %w", target, err)
	}
	fmt.Fprintf(e.out, "merged %d files into %s\n", len(c.Args().Tail()), target)
	return nil
}

// convertConfig parses the optional positional limits of "convert". A maxPly
// of 0 means no ply limit; the score and depth limits must be positive.
func convertConfig(args []string) (ingest.Config, error) {
	var cfg ingest.Config
	if len(args) > 4 {
		return cfg, fmt.Errorf("too many arguments: %q", args[4:])
	}
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			return cfg, fmt.Errorf("invalid maxPly %q", args[0])
		}
		cfg.MaxPly = n
	}
	if len(args) > 1 {
		n, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("invalid maxScore %q: must be positive", args[1])
		}
		cfg.MaxScore = int32(n)
	}
	if len(args) > 2 {
		n, err := strconv.ParseUint(args[2], 10, 32)
		if err != nil || n == 0 {
			return cfg, fmt.Errorf("invalid minDepth %q: must be positive", args[2])
		}
		cfg.MinDepth = uint32(n)
	}
	if len(args) > 3 {
		n, err := strconv.ParseUint(args[3], 10, 32)
		if err != nil || n == 0 {
			return cfg, fmt.Errorf("invalid maxDepth %q: must be positive", args[3])
		}
		cfg.MaxDepth = uint32(n)
	}
	if cfg.MaxDepth > 0 && cfg.MinDepth > cfg.MaxDepth {
		return cfg, fmt.Errorf("minDepth %d is above maxDepth %d", cfg.MinDepth, cfg.MaxDepth)
	}
	return cfg, nil
}

// cmdConvert implements the "convert" subcommand.
func (e *expCli) cmdConvert(c *cli.Context) error {
	if len(c.Args()) < 2 {
		return usageError(c)
	}
	cfg, err := convertConfig(c.Args()[2:])
	if err != nil {
		return err
	}
	cfg.Logger = e.log
	cfg.Metrics = e.ingestMetrics
	cfg.Store = e.storeConfig()

	st, err := ingest.NewConverter(cfg).Run(e.ctx, c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}

	var tw tabwriter.Writer
	tw.Init(e.out, 4, 4, 1, ' ', 0)
	fmt.Fprintf(&tw, "lines\t%d\n", st.Lines)
	fmt.Fprintf(&tw, "games\t%d\n", st.Games)
	fmt.Fprintf(&tw, "accepted\t%d\n", st.Accepted)
	fmt.Fprintf(&tw, "invalid\t%d\n", st.Invalid)
	reasons := make([]string, 0, len(st.Rejected))
	for r := range st.Rejected {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(&tw, "rejected %s\t%d\n", r, st.Rejected[ingest.Reason(r)])
	}
	fmt.Fprintf(&tw, "records\t%d\n", st.Records)
	fmt.Fprintf(&tw, "elapsed\t%s\n", st.Elapsed.Round(time.Millisecond))
	return tw.Flush()
}

// cmdShow implements the "show" subcommand.
func (e *expCli) cmdShow(c *cli.Context) error {
	pos, err := chess.FromFEN(fenArg(c))
	if err != nil {
		return err
	}
	if dir := c.String("openings"); dir != "" {
		book := opening.NewBook()
		if err := book.LoadDir(dir); err != nil {
			return err
		}
		e.log.Debug().Int("positions", book.Len()).Int("skipped", book.Skipped()).Msg("opening book loaded")
		if o, ok := book.Lookup(chess.Fingerprint(pos)); ok {
			fmt.Fprintf(e.out, "opening: %s\n", o)
		}
	}

	sess, err := e.openSession(c, true)
	if err != nil {
		return err
	}
	defer sess.Close()

	return diag.Show(e.out, sess.Prober(), pos, c.Bool("quality"), diag.Config{MaxPlies: c.Int("plies")})
}

// cmdAnalyze implements the "analyze" subcommand.
func (e *expCli) cmdAnalyze(c *cli.Context) error {
	enginePath := c.GlobalString("engine")
	if enginePath == "" {
		return fmt.Errorf("no engine configured, use --engine or STOCKFISH_PATH")
	}
	pos, err := chess.FromFEN(fenArg(c))
	if err != nil {
		return err
	}

	engineCfg := eval.EngineConfig{
		Path:    enginePath,
		HashMB:  c.GlobalInt("hash"),
		Threads: c.GlobalInt("threads"),
		Nice:    c.Int("nice"),
		Logger:  e.log,
	}
	analyzer, err := eval.NewAnalyzer(eval.Config{
		Depth:      c.Int("depth"),
		NumWorkers: c.Int("workers"),
		Logger:     e.log,
		NewSearcher: func() (eval.Searcher, error) {
			eng, err := eval.NewEngine(engineCfg)
			if err != nil {
				return nil, err
			}
			return eng, nil
		},
	})
	if err != nil {
		return err
	}

	readOnly := c.GlobalBool("readonly")
	sess, err := e.openSession(c, readOnly)
	if err != nil {
		return err
	}
	records, err := analyzer.Analyze(e.ctx, pos, sess)
	if err != nil {
		sess.Close()
		return err
	}
	pending := sess.HasNewExperience()
	if err := sess.Close(); err != nil {
		return fmt.Errorf("save experience: %w", err)
	}

	var tw tabwriter.Writer
	tw.Init(e.out, 4, 4, 1, ' ', 0)
	fmt.Fprintln(&tw, "#\tmove\tdepth\tvalue")
	for i, r := range records {
		fmt.Fprintf(&tw, "%d\t%s\t%d\t%s\n", i+1, r.Move, r.Depth, graph.FormatValue(r.Value))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if pending {
		fmt.Fprintf(e.out, "saved %d results to %s\n", len(records), c.GlobalString("file"))
	}
	return nil
}

// cmdStats implements the "stats" subcommand.
func (e *expCli) cmdStats(c *cli.Context) error {
	if len(c.Args()) > 1 {
		return usageError(c)
	}
	path := fileArg(c)
	s := store.New(e.storeConfig())
	defer s.Close()
	if err := s.Load(path, true); err != nil {
		return err
	}
	ls, st := s.LastLoad(), s.Stats()

	var tw tabwriter.Writer
	tw.Init(e.out, 4, 4, 1, ' ', 0)
	fmt.Fprintf(&tw, "file\t%s\n", path)
	fmt.Fprintf(&tw, "size\t%s\n", humanize.Bytes(uint64(ls.Bytes)))
	fmt.Fprintf(&tw, "positions\t%d\n", st.Positions)
	fmt.Fprintf(&tw, "moves\t%d\n", st.Moves)
	fmt.Fprintf(&tw, "records read\t%d\n", ls.Moves)
	fmt.Fprintf(&tw, "duplicates\t%d (%.2f%% fragmentation)\n", ls.DuplicateMoves, ls.Fragmentation())
	fmt.Fprintf(&tw, "load time\t%s\n", ls.Elapsed.Round(time.Millisecond))
	if err := tw.Flush(); err != nil {
		return err
	}
	return e.printMetrics()
}

// printMetrics writes every counter gathered so far, one sample per line.
func (e *expCli) printMetrics() error {
	families, err := e.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	fmt.Fprintln(e.out, "metrics:")
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			fmt.Fprintf(e.out, "  %s%s %s\n", mf.GetName(), formatLabels(m.GetLabel()), strconv.FormatFloat(sampleValue(m), 'f', -1, 64))
		}
	}
	return nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func sampleValue(m *dto.Metric) float64 {
	switch {
	case m.GetCounter() != nil:
		return m.GetCounter().GetValue()
	case m.GetGauge() != nil:
		return m.GetGauge().GetValue()
	}
	return 0
}

// cmdShell implements the "shell" subcommand.
func (e *expCli) cmdShell(c *cli.Context) error {
	if e.inShell {
		return fmt.Errorf("already in a shell")
	}
	e.inShell = true
	defer func() { e.inShell = false }()

	// Make cli not exit on errors.
	cli.OsExiter = func(int) {}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) (c []string) {
		for _, cmd := range e.app.Commands {
			if strings.HasPrefix(cmd.Name, input) {
				c = append(c, cmd.Name)
			}
		}
		return
	})
	defer line.Close()

	for {
		input, err := line.Prompt("(expctl) ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				return nil
			}
			return err
		}

		// Quoted paths and FENs stay one token.
		args, err := shlex.Split(input)
		if err != nil {
			fmt.Fprintln(e.out, "error:", err)
			continue
		}
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" || args[0] == "quit" {
			return nil
		}

		if err := e.runCommand(c, args...); err != nil {
			fmt.Fprintln(e.out, "error:", err)
			continue
		}
		line.AppendHistory(input)
		if e.ctx.Err() != nil {
			return e.ctx.Err()
		}
	}
}

// runCommand runs a command from the shell with the global flags the shell
// was started with.
func (e *expCli) runCommand(c *cli.Context, args ...string) error {
	cmdArgs := []string{
		"expctl",
		"--file", c.GlobalString("file"),
		"--readonly=" + strconv.FormatBool(c.GlobalBool("readonly")),
		"--engine", c.GlobalString("engine"),
		"--hash", strconv.Itoa(c.GlobalInt("hash")),
		"--threads", strconv.Itoa(c.GlobalInt("threads")),
		"--log-level", c.GlobalString("log-level"),
	}
	return e.run(append(cmdArgs, args...))
}
