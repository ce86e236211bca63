// Command hdsync drives a render index through a sequence of edited frames
// and prints what each frame synced.
//
// It builds a grid of meshes that share a few topologies, selects the
// reference render delegate through the plugin registry, and runs one
// render task per frame while editing random prims.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/hydra"
	"github.com/gogpu/hydra/backend/reference"
	"github.com/gogpu/hydra/config"
	"github.com/gogpu/hydra/hd"
	"github.com/gogpu/hydra/hdtest"
	"github.com/gogpu/hydra/hdx"
	"github.com/gogpu/hydra/sdfpath"
)

func main() {
	var (
		prims    = flag.Int("prims", 1000, "number of meshes")
		frames   = flag.Int("frames", 10, "number of frames to run")
		editRate = flag.Float64("edit-rate", 0.05, "fraction of prims edited per frame")
		workers  = flag.Int("workers", -1, "sync workers, overrides the config when >= 0")
		cfgPath  = flag.String("config", "", "TOML or YAML config file")
		verbose  = flag.Bool("v", false, "log debug output")
	)
	flag.Parse()

	if *verbose {
		hydra.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	if *workers >= 0 {
		cfg.Workers = *workers
	}

	if err := run(context.Background(), cfg, *prims, *frames, *editRate); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config, prims, frames int, editRate float64) error {
	plugins := hd.NewPluginRegistry(reference.PluginName)
	reference.Register(plugins)
	rd, err := plugins.CreateRenderDelegate("", cfg.DelegateSettings())
	if err != nil {
		return err
	}
	index, err := hd.NewRenderIndex(rd, cfg.IndexOptions(hydra.Logger())...)
	if err != nil {
		return err
	}
	defer index.Close()

	scene := hdtest.NewSceneDelegate(index, sdfpath.AbsoluteRoot())
	g := newGrid(scene, rand.New(rand.NewPCG(1, 2)))
	if err := g.populate(prims); err != nil {
		return err
	}

	col := hd.NewCollection("geometry", hd.NewReprSelector(hd.ReprSmoothHull), sdfpath.MustParse("/World"))
	task := hdx.NewRenderTask(index, sdfpath.MustParse("/hdsync/render"), hdx.WithCollection(col))
	defer task.Close()
	tasks := []hd.Task{task}

	engine := hd.NewEngine(cfg.EngineOptions()...)
	p := message.NewPrinter(language.English)
	p.Printf("delegate %s, %d prims, %d frames\n", plugins.DefaultPluginID(), prims, frames)

	var last hd.MetricsSnapshot
	for f := 0; f < frames; f++ {
		edits := 0
		if f > 0 {
			if edits, err = g.edit(editRate); err != nil {
				return err
			}
		}
		dirty := countDirty(index)
		if err := engine.Execute(ctx, index, tasks, nil); err != nil {
			return fmt.Errorf("frame %d: %w", f, err)
		}
		snap := index.Metrics().Snapshot()
		p.Printf("frame %3d: edits %6d dirty %6d synced %6d skipped %4d\n",
			f, edits, dirty, snap.RprimsSynced-last.RprimsSynced, snap.RprimsSkipped-last.RprimsSkipped)
		last = snap
	}

	if reg, ok := index.ResourceRegistry().(*reference.ResourceRegistry); ok {
		alloc := reg.ResourceAllocation()
		p.Printf("registry: %d mesh topologies, %d index ranges, %d buffer ranges, %d bytes, %d collisions\n",
			alloc["meshTopologies"], alloc["indexRanges"], alloc["bufferRanges"], alloc["bufferBytes"], alloc["hashCollisions"])
	}
	diag := index.Diagnostics()
	p.Printf("diagnostics: %d coding errors, %d warnings\n", diag.CodingErrors(), diag.Warnings())
	return nil
}

func countDirty(index *hd.RenderIndex) int {
	n := 0
	t := index.ChangeTracker()
	for _, id := range index.RprimIDs() {
		if t.RprimDirtyBits(id) != 0 {
			n++
		}
	}
	return n
}
