package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/commit"
	"github.com/matzehuels/storagegraph/pkg/errors"
	sgio "github.com/matzehuels/storagegraph/pkg/io"
	"github.com/matzehuels/storagegraph/pkg/pipeline"
	"github.com/matzehuels/storagegraph/pkg/session"
	"github.com/matzehuels/storagegraph/pkg/system"
)

// commitFlags holds the flags of the commit command.
type commitFlags struct {
	dryRun     bool
	force      bool
	yes        bool
	rootPrefix string
	targetSide string
	lockPath   string
	saveDir    string
}

// options merges the configuration file with the flags that were set.
func (f commitFlags) options(c *CLI, cmd *cobra.Command) (commit.Options, error) {
	cfg := c.Config
	opts := commit.Options{
		DryRun:     cfg.Commit.DryRun || f.dryRun,
		Force:      cfg.Commit.Force || f.force,
		TargetSide: cfg.TargetSide(),
		RootPrefix: cfg.RootPrefix,
	}
	if cmd.Flags().Changed("root-prefix") {
		opts.RootPrefix = f.rootPrefix
	}
	if cmd.Flags().Changed("target-side") {
		side, ok := action.ParseSide(f.targetSide)
		if !ok {
			return opts, errors.New(errors.ErrCodeInvalidInput, "unknown target side %q (want lhs or rhs)", f.targetSide)
		}
		opts.TargetSide = side
	}
	return opts, nil
}

// commitCommand creates the commit command.
func (c *CLI) commitCommand() *cobra.Command {
	var flags commitFlags

	cmd := &cobra.Command{
		Use:   "commit SYSTEM STAGING",
		Short: "Apply the actions that turn SYSTEM into STAGING",
		Long: `Commit plans like "plan" and then executes the actions one by one, in order.

The plan is shown for confirmation unless --yes is given. Commit stops at the
first failing action and reports how many actions were committed; the
remaining actions are not resumed. Only one commit may run per machine at a
time, which is enforced with a lock file.`,
		Example: `  storagegraph commit system.yaml staging.yaml --dry-run
  storagegraph commit system.yaml staging.yaml --root-prefix /mnt --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			opts, err := flags.options(c, cmd)
			if err != nil {
				return err
			}

			if !opts.DryRun {
				lockPath := c.Config.LockPath
				if flags.lockPath != "" {
					lockPath = flags.lockPath
				}
				lock, err := system.Acquire(lockPath)
				if err != nil {
					return err
				}
				defer lock.Release()
			}

			staging, err := sgio.Import(args[1])
			if err != nil {
				return err
			}

			runner := c.newRunner(ctx, false)
			defer runner.Close()

			sess, err := session.New(ctx, session.FileProber{Path: args[0]}, runner, c.Logger)
			if err != nil {
				return err
			}
			sess.SetStaging(staging)

			p, err := sess.Plan(ctx)
			if err != nil {
				return err
			}
			if p.Empty() {
				printSuccess("Nothing to do, system already matches staging")
				return nil
			}

			if !opts.DryRun && !flags.yes {
				if !isTerminal(os.Stdin) {
					return errors.New(errors.ErrCodeInvalidInput, "refusing to commit without --yes on a non-interactive terminal")
				}
				ok, err := review(pipeline.Summarize(p).Steps)
				if err != nil {
					return err
				}
				if !ok {
					printWarning("Aborted, nothing was changed")
					return nil
				}
			}

			env := &action.Env{
				LHS:    p.Diff.LHS,
				RHS:    p.Diff.RHS,
				Runner: system.NewExecRunner(c.Logger),
				Files:  system.TabFile{},
				Logger: c.Logger,
			}
			runner.Driver.Progress = func(done, total int, a *action.Action) {
				printDetail("[%d/%d] %s", done, total, a.Describe(env, action.TensePast))
			}

			res, err := sess.Commit(ctx, p, env, opts)
			if flags.saveDir != "" {
				if serr := sess.SaveGraphs(flags.saveDir); serr != nil {
					c.Logger.Warn("could not save session graphs", "err", serr)
				} else {
					printFile(flags.saveDir)
				}
			}
			if err != nil {
				if res != nil {
					printError("Committed %d of %d actions", res.Committed, res.Total)
				}
				return err
			}

			if res.DryRun {
				fmt.Fprintln(stdout, StyleTitle.Render("Dry run"))
				for i, d := range res.Descriptions {
					printDetail("%d. %s", i+1, d)
				}
				return nil
			}
			printSuccess("Committed %d actions (%s)", res.Committed, res.Duration.Round(time.Millisecond))
			printKeyValue("Run", res.RunID.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "only print what would be done")
	cmd.Flags().BoolVar(&flags.force, "force", false, "skip pre-checks such as missing tools")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "commit without asking for confirmation")
	cmd.Flags().StringVar(&flags.rootPrefix, "root-prefix", "", "prefix for mount points and configuration files (e.g. /mnt)")
	cmd.Flags().StringVar(&flags.targetSide, "target-side", "", "resolve every action against this graph: lhs or rhs")
	cmd.Flags().StringVar(&flags.lockPath, "lock", "", "lock file path (default "+system.DefaultLockPath+")")
	cmd.Flags().StringVar(&flags.saveDir, "save", "", "write the probed, system and staging graphs to this directory")

	return cmd
}
