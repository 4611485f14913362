package cmd

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/zjrosen/grae/internal/gen"
	"github.com/zjrosen/grae/internal/log"
	"github.com/zjrosen/grae/internal/pubsub"
	"github.com/zjrosen/grae/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-parse Gen files as they change",
	Long: `Watch a Gen file, or every Gen file under a directory, and re-parse each
file when it changes. Parse errors are reported with their line; fixed files
are reported as ok. Defaults to the resource root.

Examples:
  grae watch
  grae watch assets/windows/main.gen`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	target := cfg.RootDir
	if len(args) == 1 {
		target = args[0]
	}
	info, err := appFs.Stat(target)
	if err != nil {
		return fmt.Errorf("watching %s: %w", target, err)
	}

	wcfg := watcher.Config{
		Root:       target,
		Debounce:   cfg.Watch.Debounce,
		Extensions: cfg.Watch.Extensions,
	}
	only := ""
	if !info.IsDir() {
		wcfg.Root = filepath.Dir(target)
		wcfg.Extensions = nil
		only = filepath.ToSlash(filepath.Clean(target))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.Default()
	w, err := watcher.New(wcfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = w.Stop() }()

	out := cmd.OutOrStdout()
	initial, err := genFiles(wcfg.Root, wcfg.Extensions, only)
	if err != nil {
		return err
	}
	for _, path := range initial {
		reportParse(out, path)
	}

	// Watcher failures arrive as log entries; surface them in the report.
	failures := logger.SubscribeLevel(ctx, log.LevelError, log.CatWatcher)
	go func() {
		for ev := range failures {
			fmt.Fprintln(out, failStyle.Render("watch error")+" "+ev.Payload.Message)
		}
	}()

	if err := w.Start(); err != nil {
		return err
	}
	fmt.Fprintln(out, subtleStyle.Render("watching "+target+" (ctrl+c to stop)"))

	pubsub.Listen(ctx, w, func(ev pubsub.Event[watcher.Change]) {
		reportChange(out, ev.Payload, only)
	})
	return nil
}

// reportChange re-parses every updated file in c and reports removals. When
// only is set, other paths are ignored.
func reportChange(out io.Writer, c watcher.Change, only string) {
	for _, path := range c.Updated {
		if only != "" && path != only {
			continue
		}
		reportParse(out, path)
	}
	for _, path := range c.Removed {
		if only != "" && path != only {
			continue
		}
		fmt.Fprintln(out, subtleStyle.Render("removed")+" "+path)
	}
}

func reportParse(out io.Writer, path string) {
	tree, err := gen.LoadFile(appFs, path)
	if err != nil {
		log.ErrorErr(log.CatGen, "parse failed", err, "path", path)
		fmt.Fprintln(out, failStyle.Render("error")+" "+err.Error())
		return
	}
	fmt.Fprintf(out, "%s %s (%d keys)\n", okStyle.Render("ok"), path, tree.Len())
}

// genFiles lists the files under root matching exts, or just only when set.
func genFiles(root string, exts []string, only string) ([]string, error) {
	if only != "" {
		return []string{only}, nil
	}
	var files []string
	err := afero.Walk(appFs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !hasExtension(path, exts) {
			return nil
		}
		files = append(files, filepath.ToSlash(path))
		return nil
	})
	return files, err
}

func hasExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	for _, ext := range exts {
		if filepath.Ext(path) == ext {
			return true
		}
	}
	return false
}
