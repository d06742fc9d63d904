// Command fanout counts words, lines, and bytes of its input by dispatching one event to three concurrent listeners.
//
//	fanout [FLAGS] [TEXT...]
//
// Text is read from STDIN if no arguments are given.
package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/saylorsolutions/fanout/dispatch"
	"github.com/saylorsolutions/fanout/eventbus"
	flag "github.com/spf13/pflag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"
)

const analyzeEvent eventbus.Name = "analyze"

var errEmptyInput = errors.New("no input to analyze")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type options struct {
	suspend bool
	timeout time.Duration
	verbose bool
}

func parseFlags(args []string, stderr io.Writer) (options, []string, error) {
	var opts options
	flags := flag.NewFlagSet("fanout", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.SetInterspersed(false)
	flags.BoolVarP(&opts.suspend, "suspend", "s", false, "Dispatch while listeners are suspended, which produces no results")
	flags.DurationVarP(&opts.timeout, "timeout", "t", 5*time.Second, "Maximum time to wait for results")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enables debug logging")
	flags.Usage = func() {
		fmt.Fprintf(stderr, "Counts words, lines, and bytes of TEXT, or STDIN if no TEXT is given.\n\nUSAGE:\nfanout [FLAGS] [TEXT...]\n\nFLAGS\n%s", flags.FlagUsages())
	}
	if err := flags.Parse(args); err != nil {
		return opts, nil, err
	}
	return opts, flags.Args(), nil
}

func analyzer() dispatch.Events {
	count := func(label string, counter func(string) int) dispatch.Listener {
		return dispatch.Listen(func(text string) (any, error) {
			return fmt.Sprintf("%s: %d", label, counter(text)), nil
		})
	}
	return dispatch.Events{
		analyzeEvent: {
			count("words", func(text string) int { return len(strings.Fields(text)) }),
			count("lines", func(text string) int { return strings.Count(text, "\n") + 1 }),
			count("bytes", func(text string) int { return len(text) }),
		},
	}
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	opts, textArgs, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	text := strings.Join(textArgs, " ")
	if len(textArgs) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		text = strings.TrimSuffix(string(data), "\n")
	}
	if len(text) == 0 {
		return errEmptyInput
	}

	d := dispatch.New(analyzer(), dispatch.WithLogger(logger))
	ctx, cancel := context.WithTimeout(ctx, opts.timeout)
	defer cancel()

	analyze := func() ([]any, error) {
		return d.DispatchAwait(ctx, analyzeEvent, text)
	}
	var results []any
	if opts.suspend {
		logger.Debug("Suspending listeners", "event", analyzeEvent)
		results, err = dispatch.WithoutEvent(d, analyzeEvent, analyze)
	} else {
		results, err = analyze()
	}
	if err != nil {
		return err
	}
	logger.Debug("Dispatch complete", "event", analyzeEvent, "results", len(results))
	for _, result := range results {
		if _, err := fmt.Fprintln(stdout, result); err != nil {
			return err
		}
	}
	return nil
}
