// Package system adapts the planner to the real machine: running external
// tools, editing fstab-like table files, checking that required tools are
// installed, and holding the session lock.
//
// [ExecRunner] and [TabFile] are the production implementations of
// action.Runner and action.TabEditor. [Recorder] is a Runner that records
// command lines instead of executing them; it backs dry runs and tests.
package system
