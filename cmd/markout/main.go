// Command markout serves and renders markout pages.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/fcapolini/markout/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cli carries the state shared by the commands of one invocation.
type cli struct {
	out    io.Writer
	errOut io.Writer

	dir   string
	debug bool

	level  slog.LevelVar
	logger *slog.Logger
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command line and returns the exit code.
func run(args []string, out, errOut io.Writer) int {
	c := &cli{out: out, errOut: errOut}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)
	if err := root.Execute(); err != nil {
		errors.Print(errOut, err)
		return 1
	}
	return 0
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "markout",
		Short: "Reactive HTML pages rendered on the server",
		Long: `Markout binds HTML pages to reactive scopes described in YAML or JSON.

Pages are rendered on the server and can stay live over a WebSocket:
clients assign values and receive the resulting DOM patches.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			c.setupLogger()
		},
	}

	root.PersistentFlags().StringVarP(&c.dir, "dir", "C", ".", "Project directory holding markout.json and .env files")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		c.serveCmd(),
		c.renderCmd(),
		c.checkCmd(),
		c.versionCmd(),
	)
	return root
}

// setupLogger installs a text handler on terminals and a JSON handler
// otherwise. Colors follow the same check.
func (c *cli) setupLogger() {
	if c.debug {
		c.level.Set(slog.LevelDebug)
	}
	tty := isTerminal(c.errOut)
	errors.SetColor(tty && isTerminal(c.out))

	opts := &slog.HandlerOptions{Level: &c.level}
	var h slog.Handler
	if tty {
		h = slog.NewTextHandler(c.errOut, opts)
	} else {
		h = slog.NewJSONHandler(c.errOut, opts)
	}
	c.logger = slog.New(h)
	slog.SetDefault(c.logger)
}

// setLevel applies a configured level unless --debug is set.
func (c *cli) setLevel(name string) {
	if c.debug {
		return
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(name))); err == nil {
		c.level.Set(l)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

var green = color.New(color.FgGreen).SprintFunc()

// success prints a success message.
func (c *cli) success(format string, args ...any) {
	fmt.Fprintf(c.out, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}
