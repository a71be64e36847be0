// Command vmctl is the host-facing CLI for guestcore: create and drive
// guest VM containers, load boot images into them, dispatch individual
// syscalls for debugging, and inspect the Android property table —
// all via the guestcored daemon (spec.md §9 design note: the core itself
// needs no CLI, this is the embedder driver that supplies one).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	kongcompletion "github.com/jotaen/kong-completion"

	"github.com/aurora-os/guestcore/daemon"
	"github.com/aurora-os/guestcore/internal/obs"
	"github.com/aurora-os/guestcore/version"
)

// Context carries flags and derived state shared by every subcommand's
// Run method, mirroring the teacher's cmd/sand Context.
type Context struct {
	AppBaseDir string
	LogFile    string
	LogLevel   string

	client *daemon.Client
}

// Client lazily dials the daemon, starting it first if necessary.
func (c *Context) Client(ctx context.Context) (*daemon.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	if err := daemon.EnsureDaemon(ctx, c.AppBaseDir, c.LogFile+"-daemon"); err != nil {
		return nil, fmt.Errorf("ensure daemon: %w", err)
	}
	server := daemon.NewServer(c.AppBaseDir, nil)
	client, err := server.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

type CLI struct {
	AppBaseDir string `default:"" placeholder:"<dir>" help:"directory holding the guest registry database and daemon socket. Defaults to ~/.config/guestcore."`
	LogFile    string `default:"/tmp/guestcore/log" placeholder:"<log-file-path>" help:"location of log file"`
	LogLevel   string `default:"info" placeholder:"<debug|info|warn|error>" help:"the logging level"`

	Create      CreateCmd      `cmd:"" help:"create a new guest container"`
	LoadKernel  LoadKernelCmd  `cmd:"" name:"load-kernel" help:"load a kernel/boot image into a guest"`
	LoadRamdisk LoadRamdiskCmd `cmd:"" name:"load-ramdisk" help:"load a ramdisk into an Android guest"`
	SetCmdline  SetCmdlineCmd  `cmd:"" name:"set-cmdline" help:"set a guest's kernel command line"`
	Start       StartCmd       `cmd:"" help:"start a guest"`
	Pause       PauseCmd       `cmd:"" help:"pause a running guest"`
	Resume      ResumeCmd      `cmd:"" help:"resume a paused guest"`
	Stop        StopCmd        `cmd:"" help:"stop a guest"`
	State       StateCmd       `cmd:"" help:"print a guest's current lifecycle state"`
	Ls          LsCmd          `cmd:"" help:"list guests"`
	Destroy     DestroyCmd     `cmd:"" help:"destroy a guest"`
	Syscall     SyscallCmd     `cmd:"" help:"dispatch a single syscall against a guest, for debugging"`
	Property    PropertyCmd    `cmd:"" help:"get or set an Android property"`
	Images      ImagesCmd      `cmd:"" help:"pull or push boot images from/to an OCI registry"`
	Shell       ShellCmd       `cmd:"" help:"attach an interactive debug console to a running guest"`
	Daemon      DaemonCmd      `cmd:"" help:"start, stop, restart, or check the status of the guestcored daemon"`
	Doc         DocCmd         `cmd:"" help:"print complete command help formatted as markdown"`
	Version     VersionCmd     `cmd:"" help:"print version information about this command"`
}

// parsedKongCtx is stashed by main so DocCmd can re-run the markdown help
// printer against the already-parsed command tree.
var parsedKongCtx *kong.Context

func appBaseDir(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("error getting home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".config", "guestcore")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating app base directory: %w", err)
	}
	return dir, nil
}

func main() {
	var cli CLI

	parser := kong.Must(&cli,
		kong.Configuration(kongyaml.Loader, ".vmctl.yaml", "~/.vmctl.yaml"),
		kong.Description("Drive guestcore guest VM containers."),
		kong.UsageOnError(),
		kong.Help(MarkdownHelpPrinterIfDoc),
	)
	kongcompletion.Register(parser)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	parsedKongCtx = kctx

	level := obs.ParseLevel(cli.LogLevel)
	logFile := cli.LogFile
	if kctx.Command() == "daemon start" {
		logFile = logFile + "-daemon"
	}
	if _, err := obs.InitLogger(logFile, level); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}

	base, err := appBaseDir(cli.AppBaseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	slog.Info("main", "appBaseDir", base)

	appCtx := &Context{AppBaseDir: base, LogFile: cli.LogFile, LogLevel: cli.LogLevel}
	err = kctx.Run(appCtx)
	kctx.FatalIfErrorf(err)
}

// MarkdownHelpPrinterIfDoc defers to kong's default printer except when
// invoked via the "doc" subcommand, where MarkdownHelpPrinter formats
// the full command tree as markdown (teacher: cmd/sand's DocCmd wiring).
func MarkdownHelpPrinterIfDoc(options kong.HelpOptions, ctx *kong.Context) error {
	if ctx.Command() == "doc" {
		return MarkdownHelpPrinter(options, ctx)
	}
	return kong.DefaultHelpPrinter(options, ctx)
}
