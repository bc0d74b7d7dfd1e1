// Package cmd implements the CLI surface: ld, info, df, ls,
// mkdir, mv, rm, dl, ul, each a thin wrapper around internal/app and
// internal/fsops so the transfer engine has exactly one non-GUI front
// end exercising it end to end.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dagargo/elektroid/internal/config"
	"github.com/dagargo/elektroid/internal/xerr"
)

var verbosity int

var rootCmd = &cobra.Command{
	Use:   "elektroid",
	Short: "Transfer samples, patterns and presets with Elektron-class MIDI gear",
	Long: `elektroid is a command-line front end over the Elektroid transfer
engine: it discovers devices, lists their filesystems, and moves files
to and from them without the GTK UI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI, mapping the returned error's xerr.Kind to the
// process exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "elektroid:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps an xerr.Kind to a small positive process exit code.
// The values are symbolic rather than platform errno numbers; nothing
// downstream inspects them beyond "zero means success".
func exitCode(err error) int {
	var e *xerr.Error
	if !asXerr(err, &e) {
		return 1
	}
	switch e.Kind {
	case xerr.KindNotConnected:
		return 2
	case xerr.KindTimedOut:
		return 3
	case xerr.KindCanceled:
		return 4
	case xerr.KindWire:
		return 5
	case xerr.KindProtocol:
		return 6
	case xerr.KindUnsupported:
		return 7
	case xerr.KindNotFound:
		return 8
	case xerr.KindExists:
		return 9
	case xerr.KindBusy:
		return 10
	case xerr.KindOutOfSpace:
		return 11
	case xerr.KindBadInput:
		return 12
	case xerr.KindFatal:
		return 13
	default:
		return 1
	}
}

func asXerr(err error, target **xerr.Error) bool {
	for err != nil {
		if e, ok := err.(*xerr.Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "verbosity level (repeatable; no command reads it)")

	rootCmd.AddCommand(ldCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dfCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(mkdirCmd)
	rootCmd.AddCommand(mvCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(dlCmd)
	rootCmd.AddCommand(ulCmd)
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "elektroid: config error:", err)
		os.Exit(1)
	}
}
