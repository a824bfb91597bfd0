package devices

import (
	"context"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/matzehuels/storagegraph/pkg/action"
	"github.com/matzehuels/storagegraph/pkg/devicegraph"
)

// runFunc performs the work of one action.
type runFunc func(ctx context.Context, env *action.Env, a *action.Action) error

// op is the [action.Op] used by all device types: a verb applied to a
// fixed object phrase, and the work to run on commit.
type op struct {
	verb   action.Verb
	object string
	run    runFunc
}

func (o *op) Commit(ctx context.Context, env *action.Env, a *action.Action) error {
	if o.run == nil {
		return nil
	}
	return o.run(ctx, env, a)
}

func (o *op) Text(_ *action.Env, _ *action.Action, tense action.Tense) string {
	return o.verb.In(tense) + " " + o.object
}

// act builds one action for sid.
func act(kind action.Kind, sid devicegraph.SID, side action.Side, f action.Features, verb action.Verb, object string, run runFunc) *action.Action {
	return action.New(kind, sid, side, &op{verb: verb, object: object, run: run}).WithFeatures(f)
}

// command runs each argv in turn and stops at the first failure.
func command(argvs ...[]string) runFunc {
	return func(ctx context.Context, env *action.Env, _ *action.Action) error {
		for _, argv := range argvs {
			if _, err := env.Run(ctx, argv[0], argv[1:]...); err != nil {
				return err
			}
		}
		return nil
	}
}

// tabSet writes fields into the configuration file below the target root.
func tabSet(file string, keyColumn int, fields []string) runFunc {
	return func(_ context.Context, env *action.Env, _ *action.Action) error {
		tabs, err := env.Tabs()
		if err != nil {
			return err
		}
		env.Log().Debug("set table entry", "file", file, "key", fields[keyColumn])
		return tabs.Set(env.Path(file), keyColumn, fields)
	}
}

// tabRemove deletes the entry keyed by key from the configuration file
// below the target root.
func tabRemove(file string, keyColumn int, key string) runFunc {
	return func(_ context.Context, env *action.Env, _ *action.Action) error {
		tabs, err := env.Tabs()
		if err != nil {
			return err
		}
		env.Log().Debug("remove table entry", "file", file, "key", key)
		return tabs.Remove(env.Path(file), keyColumn, key)
	}
}

// sequence runs fns in order.
func sequence(fns ...runFunc) runFunc {
	return func(ctx context.Context, env *action.Env, a *action.Action) error {
		for _, fn := range fns {
			if err := fn(ctx, env, a); err != nil {
				return err
			}
		}
		return nil
	}
}

// inBytes renders a size the way tools expect it: plain bytes with a suffix.
func inBytes(n uint64) string { return strconv.FormatUint(n, 10) + "B" }

// size renders a size for humans.
func size(n uint64) string { return humanize.IBytes(n) }
