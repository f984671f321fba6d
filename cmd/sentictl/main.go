package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"review-sentiment/internal/client"
	"review-sentiment/internal/common"
	"review-sentiment/internal/evaluate"
	"review-sentiment/internal/ml"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usageText = `Usage: sentictl <command> [flags]

Commands:
  predict   classify one review         sentictl predict [-server URL | -model F -vocab F] text...
  stream    classify stdin lines via /ws sentictl stream [-server URL]
  health    show server health and info  sentictl health [-server URL]
  eval      score a labelled dataset     sentictl eval -data reviews.csv [-output DIR] [-baseline] [-server URL | -model F -vocab F]
  models    manage the model registry    sentictl models add|list|activate|rollback [-registry FILE]

Run "sentictl <command> -h" for the flags of a command.
`

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	setupLogging()

	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}

	var err error
	switch args[0] {
	case "predict":
		err = cmdPredict(args[1:], stdout, stderr)
	case "stream":
		err = cmdStream(args[1:], stdin, stdout, stderr)
	case "health":
		err = cmdHealth(args[1:], stdout, stderr)
	case "eval":
		err = cmdEval(args[1:], stdout, stderr)
	case "models":
		err = cmdModels(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usageText)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	default:
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(os.Getenv(common.EnvLogLevel))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// target selects where predictions come from: a running server, or model
// artifacts loaded in process when -model is given.
type target struct {
	server  string
	model   string
	vocab   string
	timeout time.Duration
}

func (t *target) register(fs *flag.FlagSet, local bool) {
	fs.StringVar(&t.server, "server", serverDefault(), "Sentiment server base URL")
	fs.DurationVar(&t.timeout, "timeout", 10*time.Second, "Request timeout")
	if local {
		fs.StringVar(&t.model, "model", "", "Model file; runs in process instead of calling the server")
		fs.StringVar(&t.vocab, "vocab", "", "Tokenizer file, required with -model")
	}
}

func (t *target) predictor() (evaluate.Predictor, error) {
	if t.model == "" {
		return client.New(t.server, t.timeout), nil
	}
	if t.vocab == "" {
		return nil, errors.New("-vocab is required with -model")
	}
	pipeline, md, err := ml.LoadArtifacts(t.model, t.vocab, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Str("version", md.Version).Msg("Loaded model in process")
	return pipeline, nil
}

func serverDefault() string {
	if v := os.Getenv(common.EnvServerURL); v != "" {
		return v
	}
	return common.DefaultServiceBaseURL
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
