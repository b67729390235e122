package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"kba-plugin/internal/matrix"
)

var (
	rootDir     string
	phpVersions []string
)

// repoRoot asks git for the top level of the working tree and falls back to
// the working directory.
func repoRoot(ctx context.Context) string {
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel").Output()
	if err == nil {
		if root := strings.TrimSpace(string(out)); root != "" {
			return root
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// run prints the matrix for root to stdout. An encoding failure is reported
// on stderr; the command itself always succeeds.
func run(root string, versions []string, stdout, stderr io.Writer) {
	m := matrix.Generate(os.DirFS(root), versions)
	if err := matrix.Encode(stdout, m); err != nil {
		fmt.Fprintf(stderr, "Could not generate matrix for project: %s.\nERROR: %s\n", filepath.Base(root), err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "matrix",
		Short:         "Print the CI build matrix for the plugins and apps of this project",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			root := rootDir
			if root == "" {
				root = repoRoot(cmd.Context())
			}
			run(root, phpVersions, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&rootDir, "root", "", "project root (default: git top level)")
	cmd.Flags().StringSliceVar(&phpVersions, "php-version", matrix.DefaultPHPVersions, "PHP versions to test against")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
