package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"rustdiag/internal/config"
	"rustdiag/internal/errors"
	"rustdiag/internal/paths"
	"rustdiag/internal/pipeline"
	"rustdiag/internal/project"
	"rustdiag/internal/slogutil"
	"rustdiag/internal/storage"
	"rustdiag/internal/version"
)

var (
	// verbosity counts -v flags
	verbosity int
	quiet     bool
	dirFlag   string
	rulesFlag []string
	dbFlag    bool
)

var rootCmd = &cobra.Command{
	Use:   "rustdiag",
	Short: "rustdiag - clippy diagnostics as annotated source and fix pairs",
	Long: `rustdiag runs cargo clippy over a Rust project and turns its warnings into
annotated copies of the source, before/after pairs of the items the auto-fixer changed,
and reports of which warnings a given commit touched or resolved.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("rustdiag version {{.Version}}\n")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Silence all logging")
	rootCmd.PersistentFlags().StringVarP(&dirFlag, "dir", "C", ".", "Directory inside the Cargo project")
	rootCmd.PersistentFlags().StringSliceVar(&rulesFlag, "rules", nil,
		"Rules to check, overriding the configured rule set (e.g. unwrap_used,ptr_arg)")
	rootCmd.PersistentFlags().BoolVar(&dbFlag, "db", false, "Record runs in the dataset database")
}

// session is the state shared by the pipeline commands.
type session struct {
	project  *project.Project
	cfg      *config.Config
	rules    []string
	logger   *slog.Logger
	dataset  *storage.DB
	logClose io.Closer
}

// openSession locates the project, loads its configuration and sets up logging.
func openSession() (*session, error) {
	proj, err := project.Find(dirFlag)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(proj.Root)
	if err != nil {
		return nil, errors.New(errors.ConfigInvalid, "cannot load configuration", err)
	}

	s := &session{project: proj, cfg: cfg}
	s.logger, s.logClose = newLogger(proj.Root, cfg.Logging)

	if len(rulesFlag) > 0 {
		s.rules = make([]string, 0, len(rulesFlag))
		for _, r := range rulesFlag {
			s.rules = append(s.rules, strings.TrimPrefix(strings.TrimSpace(r), cfg.Analyzer.LintPrefix))
		}
	} else {
		s.rules, err = cfg.EffectiveRules(proj.Root)
		if err != nil {
			s.Close()
			return nil, errors.New(errors.ConfigInvalid, "cannot load rule set", err)
		}
	}

	if dbFlag || cfg.Dataset.Enabled {
		path := paths.Resolve(proj.Root, cfg.Dataset.Path)
		s.dataset, err = storage.Open(path, cfg.Dataset.Compress, s.logger)
		if err != nil {
			s.Close()
			return nil, errors.New(errors.StorageFailed, "cannot open dataset", err)
		}
	}

	s.logger.Debug("Session opened",
		"project", proj.Name(),
		"root", proj.Root,
		"rules", len(s.rules),
		"dataset", s.dataset != nil,
	)
	return s, nil
}

// newPipeline builds a pipeline for the session's project.
func (s *session) newPipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Options{
		Root:    s.project.Root,
		Config:  s.cfg,
		Rules:   s.rules,
		Logger:  s.logger,
		Dataset: s.dataset,
	})
}

func (s *session) Close() {
	if s.dataset != nil {
		if err := s.dataset.Close(); err != nil {
			s.logger.Warn("Failed to close dataset", "error", err)
		}
	}
	if s.logClose != nil {
		_ = s.logClose.Close()
	}
}

// newLogger logs to stderr at the level chosen by -v/-q, falling back to the configured
// level, and tees everything at info or above into the rotating log file.
func newLogger(root string, lc config.LoggingConfig) (*slog.Logger, io.Closer) {
	level := slogutil.LevelFromString(lc.Level)
	if verbosity > 0 || quiet {
		level = slogutil.LevelFromVerbosity(verbosity, quiet)
	}
	format := slogutil.Format(strings.ToLower(lc.Format))
	console := slogutil.NewFormatLogger(os.Stderr, level, format).Handler()

	logPath := lc.File
	if logPath == "" {
		logPath = paths.LogPath(root)
	} else {
		logPath = paths.Resolve(root, logPath)
	}
	fileLevel := min(level, slog.LevelInfo)
	file, closer, err := slogutil.FileHandler(logPath, fileLevel, format, lc.MaxSize, lc.MaxBackups)
	if err != nil {
		logger := slog.New(console)
		logger.Debug("File logging disabled", "path", logPath, "error", err)
		return logger, nil
	}
	return slog.New(slogutil.NewTeeHandler(console, file)), closer
}

// newContext returns a context cancelled on SIGINT or SIGTERM.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// validateFormat rejects output formats a command does not support.
func validateFormat(format OutputFormat, allowed ...OutputFormat) error {
	for _, f := range allowed {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported format %q", format)
}
