package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/zjrosen/grae/internal/assets"
	"github.com/zjrosen/grae/internal/log"
	"github.com/zjrosen/grae/internal/resource"
	"github.com/zjrosen/grae/internal/tracing"
)

var (
	loadFromRoot bool
	loadRun      bool
	loadStats    bool
)

var loadCmd = &cobra.Command{
	Use:   "load <type> <id>...",
	Short: "Load resources through the registry",
	Long: `Build a registry at the resource root with the built-in types, load each id
and report whether the real resource or the type's default came back.

Types: config, window, texture, font, shader, script. Ids resolve under the
type's directory (see 'grae types') unless --from-root is given.

Examples:
  grae load window main.gen
  grae load texture player.png missing.png --stats
  grae load script hello.lua --run
  grae load config assets/windows/main.gen --from-root`,
	Args: cobra.MinimumNArgs(2),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().BoolVar(&loadFromRoot, "from-root", false, "treat ids as paths relative to the working directory")
	loadCmd.Flags().BoolVar(&loadRun, "run", false, "run loaded scripts and print their results")
	loadCmd.Flags().BoolVar(&loadStats, "stats", false, "print per-type registry statistics")
	rootCmd.AddCommand(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	kind, ok := assets.KindByName(args[0])
	if !ok {
		return fmt.Errorf("unknown resource type %q", args[0])
	}

	provider, err := tracing.NewProvider(appFs, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			log.ErrorErr(log.CatCLI, "failed to flush traces", err)
		}
	}()

	var promReg *prometheus.Registry
	opts := []resource.Option{
		resource.WithFS(appFs),
		resource.WithLogger(log.Default()),
		resource.WithTracer(provider.Tracer()),
	}
	if cfg.Metrics.Enabled {
		promReg = prometheus.NewRegistry()
		opts = append(opts, resource.WithMetrics(resource.NewMetrics(promReg)))
	}

	reg := resource.New(cfg.RootDir, opts...)
	defer func() { _ = reg.Close() }()
	if err := assets.Register(reg, cfg.Types); err != nil {
		return err
	}

	ctx, span := provider.Tracer().Start(cmd.Context(), "grae.load")
	defer span.End()
	lookup := reg.WithContext(ctx)

	out := cmd.OutOrStdout()
	for _, id := range args[1:] {
		var v any
		var isDefault bool
		if loadFromRoot {
			v, isDefault = kind.LoadFromRoot(lookup, id)
		} else {
			v, isDefault = kind.Load(lookup, id)
		}
		writeLoaded(out, kind.Name, id, v, isDefault)

		if s, ok := v.(*assets.Script); ok && loadRun {
			results, err := s.Run(ctx)
			if err != nil {
				fmt.Fprintln(out, "  "+failStyle.Render("error")+" "+err.Error())
				continue
			}
			fmt.Fprintf(out, "  => %s\n", formatResults(results))
		}
	}

	if loadStats {
		writeStats(out, reg.Stats())
	}
	if promReg != nil {
		return writeMetrics(out, promReg)
	}
	return nil
}

func writeLoaded(out io.Writer, kind, id string, v any, isDefault bool) {
	status := okStyle.Render("loaded")
	if isDefault {
		status = failStyle.Render("default")
	}
	fmt.Fprintf(out, "%s %s %s: %v\n", status, kind, id, v)
}

func formatResults(results []any) string {
	if len(results) == 0 {
		return "(no results)"
	}
	parts := make([]string, len(results))
	for i, r := range results {
		if s, ok := r.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
			continue
		}
		parts[i] = fmt.Sprint(r)
	}
	return strings.Join(parts, ", ")
}

func writeStats(out io.Writer, stats []resource.TypeStats) {
	t := newTable("TYPE", "DIR", "CACHED", "DEFAULT")
	for _, s := range stats {
		def := "-"
		if s.DefaultLoaded {
			def = "loaded"
		}
		t.Row(s.Type, s.Dir, strconv.Itoa(s.Cached), def)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, t.Render())
}

func writeMetrics(out io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	fmt.Fprintln(out)
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(out, mf); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}
	return nil
}
