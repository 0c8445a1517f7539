// Command rhiinfo opens an RHI context and reports its limits, pool and
// descriptor heap sizes. It can also print the effective configuration and
// the reflected interface of WGSL shaders.
//
// Usage:
//
//	rhiinfo [-config rhi.toml] [-api vulkan] [-dump yaml] [-stage vertex] [shader.wgsl ...]
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/gogpu/rhi"
	"github.com/gogpu/rhi/device"
	"github.com/gogpu/rhi/shader"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		log.Fatalf("rhiinfo: %v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("rhiinfo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configPath = fs.String("config", "", "TOML or YAML config file")
		apiName    = fs.String("api", "", "backend override (software, noop, vulkan)")
		dump       = fs.String("dump", "", "print the effective config as toml or yaml and exit")
		stageName  = fs.String("stage", "", "reflect only this stage (vertex, pixel, compute, ...)")
		verbose    = fs.Bool("v", false, "log to stderr")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := rhi.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = rhi.LoadConfig(*configPath); err != nil {
			return err
		}
	}
	if *apiName != "" {
		api, err := device.ParseAPI(*apiName)
		if err != nil {
			return err
		}
		cfg.API = api
	}
	if *dump != "" {
		return cfg.Encode(stdout, *dump)
	}

	stages := shader.Stages()
	if *stageName != "" {
		s, err := parseStage(*stageName)
		if err != nil {
			return err
		}
		stages = []shader.Stage{s}
	}

	opts := []rhi.Option{rhi.WithConfig(cfg)}
	if *verbose {
		opts = append(opts, rhi.WithLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}
	ctx, err := rhi.NewContext(opts...)
	if err != nil {
		return err
	}
	defer ctx.Close()

	printContext(stdout, ctx)
	for _, path := range fs.Args() {
		if err := printShader(stdout, path, stages); err != nil {
			return err
		}
	}
	return nil
}

func parseStage(name string) (shader.Stage, error) {
	switch strings.ToLower(name) {
	case "fragment":
		return shader.StagePixel, nil
	case "tesscontrol":
		return shader.StageHull, nil
	case "tesseval":
		return shader.StageDomain, nil
	}
	for _, s := range shader.Stages() {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown stage %q", name)
}

func printContext(w io.Writer, ctx *rhi.Context) {
	lim := ctx.Device().Limits()
	fmt.Fprintf(w, "api:                       %s\n", ctx.API())
	fmt.Fprintf(w, "constant buffer alignment: %d\n", lim.ConstantBufferAlignment)
	fmt.Fprintf(w, "copy alignment:            %d\n", lim.CopyAlignment)
	fmt.Fprintf(w, "texture row alignment:     %d\n", lim.TextureRowAlignment)
	fmt.Fprintf(w, "max buffer size:           %d\n", lim.MaxBufferSize)
	fmt.Fprintf(w, "max texture dimension:     %d\n", lim.MaxTextureDimension2D)

	fmt.Fprintln(w, "\ncommand pools:")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  type\tsize\tidle")
	for _, t := range device.CommandTypes() {
		if p, ok := ctx.Commands().Pool(t); ok {
			fmt.Fprintf(tw, "  %s\t%d\t%d\n", t, p.Size(), p.Idle())
		}
	}
	_ = tw.Flush()

	fmt.Fprintln(w, "\ndescriptor heaps:")
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  heap\tpersistent\tframe\tused")
	for _, h := range ctx.Views().Stats().Heaps {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\n", h.Kind, h.Persistent, h.Frame, h.Used)
	}
	_ = tw.Flush()
}

func printShader(w io.Writer, path string, stages []shader.Stage) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	words, err := shader.CompileWGSL(string(src))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	fmt.Fprintf(w, "\n%s:\n", path)
	found := false
	for _, s := range stages {
		sr, err := shader.ReflectSPIRV(s, words)
		if errors.Is(err, shader.ErrNoEntryPoint) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		found = true
		fmt.Fprintf(w, "  %s\n", s)
		for _, in := range sr.Inputs {
			fmt.Fprintf(w, "    input    @location(%d) %s %s\n", in.Location, in.Name, in.Type)
		}
		for _, b := range sr.Bindings {
			fmt.Fprintf(w, "    binding  (%d, %d) %s %s\n", b.BindPoint, b.BindSpace, b.Type, b.Name)
		}
		for _, blk := range sr.Blocks {
			fmt.Fprintf(w, "    block    %s size=%d\n", blk.Name, blk.Size)
			for _, p := range blk.Parameters {
				fmt.Fprintf(w, "      %-16s offset=%d size=%d\n", p.Name, p.Offset, p.Size)
			}
		}
	}
	if !found {
		fmt.Fprintln(w, "  no entry points")
	}
	return nil
}
