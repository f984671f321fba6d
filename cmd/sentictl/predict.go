package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"review-sentiment/internal/client"
	"review-sentiment/internal/evaluate"
	"review-sentiment/internal/ml"
)

func cmdPredict(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("predict", stderr)
	var t target
	t.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}

	text := strings.Join(fs.Args(), " ")
	if text == "" {
		return errors.New("no text given")
	}

	p, err := t.predictor()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	res, err := p.Predict(ctx, text)
	if err != nil {
		return err
	}
	return printJSON(stdout, res)
}

func cmdStream(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := newFlagSet("stream", stderr)
	var t target
	t.register(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	stream, err := client.New(t.server, t.timeout).DialStream(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()

	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reqCtx, cancel := context.WithTimeout(ctx, t.timeout)
		reply, err := stream.Predict(reqCtx, line)
		cancel()
		if err != nil {
			return err
		}

		switch {
		case reply.Result != nil:
			fmt.Fprintf(stdout, "%-8s %.4f  %s\n", reply.Result.Sentiment, reply.Result.Confidence, line)
		case reply.Detail != "":
			fmt.Fprintf(stdout, "%-8s %s  %s\n", "invalid", reply.Detail, line)
		default:
			fmt.Fprintf(stdout, "%-8s %s  %s\n", "error", reply.Error, line)
		}
	}
	return scanner.Err()
}

func cmdHealth(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("health", stderr)
	var t target
	t.register(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	c := client.New(t.server, t.timeout)
	health, err := c.Health(ctx)
	if err != nil {
		return err
	}
	info, err := c.Info(ctx)
	if err != nil {
		return err
	}
	return printJSON(stdout, map[string]any{"server": c.BaseURL(), "health": health, "info": info})
}

func cmdEval(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("eval", stderr)
	var t target
	t.register(fs, true)
	dataPath := fs.String("data", "", "Labelled dataset (.csv or .json)")
	outputPath := fs.String("output", "", "Directory for report files")
	baseline := fs.Bool("baseline", false, "Also score the lexicon baseline built from -vocab")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dataPath == "" {
		return errors.New("-data is required")
	}
	if *baseline && t.vocab == "" {
		return errors.New("-vocab is required with -baseline")
	}

	samples, err := evaluate.LoadDataset(*dataPath)
	if err != nil {
		return err
	}
	p, err := t.predictor()
	if err != nil {
		return err
	}

	report := evaluate.Run(context.Background(), p, samples)
	reporter := evaluate.NewReporter(report)
	reporter.PrintSummary(stdout)

	if *outputPath != "" {
		if err := reporter.Write(*outputPath); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "\nReports written to %s\n", *outputPath)
	}

	if *baseline {
		return evalBaseline(t, samples, report, *outputPath, stdout)
	}
	return nil
}

// evalBaseline scores the lexicon classifier on the same samples and prints
// it next to the model so a regression below the heuristic stands out.
func evalBaseline(t target, samples []evaluate.Sample, model *evaluate.Report, outputPath string, stdout io.Writer) error {
	p, err := ml.LoadBaseline(t.vocab, t.model)
	if err != nil {
		return fmt.Errorf("build baseline: %w", err)
	}

	report := evaluate.Run(context.Background(), p, samples)
	reporter := evaluate.NewReporter(report)
	fmt.Fprintf(stdout, "\nBASELINE (lexicon)\n\n")
	reporter.PrintSummary(stdout)
	fmt.Fprintf(stdout, "\nModel vs baseline: accuracy %+.4f, F1 %+.4f\n",
		model.Accuracy-report.Accuracy, model.F1-report.F1)

	if outputPath != "" {
		dir := filepath.Join(outputPath, "baseline")
		if err := reporter.Write(dir); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Baseline reports written to %s\n", dir)
	}
	return nil
}
