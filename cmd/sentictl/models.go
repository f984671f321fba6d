package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"review-sentiment/internal/common"
	"review-sentiment/internal/ml"
	"review-sentiment/internal/storage"
)

func cmdModels(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New("models needs a subcommand: add, list, activate or rollback")
	}

	fs := newFlagSet("models "+args[0], stderr)
	registry := fs.String("registry", registryDefault(), "Model registry file")

	switch args[0] {
	case "add":
		return modelsAdd(fs, registry, args[1:], stdout)
	case "list":
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return withStore(*registry, func(s *storage.Store) error { return modelsList(s, stdout) })
	case "activate":
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("usage: sentictl models activate [-registry FILE] <version>")
		}
		return withStore(*registry, func(s *storage.Store) error {
			if err := s.ActivateVersion(fs.Arg(0)); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Activated %s; restart the server to load it\n", fs.Arg(0))
			return nil
		})
	case "rollback":
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		return withStore(*registry, func(s *storage.Store) error {
			v, err := s.Rollback()
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Rolled back to %s; restart the server to load it\n", v.Version)
			return nil
		})
	default:
		return fmt.Errorf("unknown models subcommand %q", args[0])
	}
}

// modelsAdd loads the artifacts before registering them so a broken model
// never enters the registry.
func modelsAdd(fs *flag.FlagSet, registry *string, args []string, stdout io.Writer) error {
	modelPath := fs.String("model", "", "Model file (required)")
	vocabPath := fs.String("vocab", "", "Tokenizer file (required)")
	version := fs.String("version", "", "Version name; defaults to the model's own version")
	notes := fs.String("notes", "", "Free-form notes")
	activate := fs.Bool("activate", false, "Activate the version after registering it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" || *vocabPath == "" {
		return errors.New("-model and -vocab are required")
	}

	_, md, err := ml.LoadArtifacts(*modelPath, *vocabPath, nil)
	if err != nil {
		return fmt.Errorf("artifacts failed validation: %w", err)
	}

	absModel, err := filepath.Abs(*modelPath)
	if err != nil {
		return err
	}
	absVocab, err := filepath.Abs(*vocabPath)
	if err != nil {
		return err
	}

	name := *version
	if name == "" {
		name = md.Version
	}

	return withStore(*registry, func(s *storage.Store) error {
		v, err := s.AddVersion(storage.ModelVersion{
			Version:   name,
			ModelPath: absModel,
			VocabPath: absVocab,
			Metrics:   md.Metrics,
			Notes:     *notes,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Registered %s (%s)\n", v.Version, v.ID)

		if *activate {
			if err := s.ActivateVersion(v.Version); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Activated %s\n", v.Version)
		}
		return nil
	})
}

func modelsList(s *storage.Store, stdout io.Writer) error {
	versions, err := s.ListVersions()
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(stdout, "No models registered")
		return nil
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VERSION\tACTIVE\tCREATED\tVAL ACC\tMODEL")
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%s\n",
			v.Version, active, v.CreatedAt.Format(time.DateTime), v.Metrics.ValidationAcc, v.ModelPath)
	}
	return tw.Flush()
}

func withStore(path string, fn func(*storage.Store) error) error {
	s, err := storage.Open(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}

func registryDefault() string {
	if v := os.Getenv(common.EnvRegistryPath); v != "" {
		return v
	}
	return common.DefaultRegistryPath
}
