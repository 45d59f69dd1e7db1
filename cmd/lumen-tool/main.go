// lumen-tool is a utility program for inspecting scenes and the row cache used
// by lumen.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/prototext"

	"lumen/material"
	"lumen/rowcache"
	"lumen/scenepack"
)

var cmdRoot = &cobra.Command{
	Use:          "lumen-tool",
	SilenceUsage: true,

	// glog's flags live on the standard flag set.  Mark it parsed so glog
	// doesn't complain.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		flag.CommandLine.Parse(nil)
	},
}

var cmdScenes = &cobra.Command{
	Use: "scenes [command]",
}

var cmdScenesList = &cobra.Command{
	Use:   "list",
	Short: "List the built-in scenes",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, name := range scenepack.BuiltinNames {
			pack, err := scenepack.Builtin(name)
			if err != nil {
				return fmt.Errorf("while building scene %q: %w", name, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d spheres\n", name, len(pack.Scene.Elements))
		}
		return nil
	},
}

var scenesDumpFormat string

var cmdScenesDump = &cobra.Command{
	Use:   "dump NAME",
	Short: "Print a built-in scene in scene file form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pack, err := scenepack.Builtin(args[0])
		if err != nil {
			return err
		}

		st, err := scenepack.ToStruct(pack)
		if err != nil {
			return fmt.Errorf("while converting scene: %w", err)
		}

		switch scenesDumpFormat {
		case "json":
			out, err := protojson.MarshalOptions{Multiline: true}.Marshal(st)
			if err != nil {
				return fmt.Errorf("while marshaling scene: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
		case "text":
			fmt.Fprintln(cmd.OutOrStdout(), prototext.Format(st))
		default:
			return fmt.Errorf("unknown format %q, want json or text", scenesDumpFormat)
		}
		return nil
	},
}

var cmdScenesCheck = &cobra.Command{
	Use:   "check FILE",
	Short: "Load a scene file and summarize it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pack, err := scenepack.Load(context.Background(), args[0])
		if err != nil {
			return err
		}

		kinds := map[material.Kind]int{}
		for _, e := range pack.Scene.Elements {
			kinds[e.TheMaterial.Kind]++
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "name: %s\n", pack.Scene.Name)
		fmt.Fprintf(out, "spheres: %d\n", len(pack.Scene.Elements))
		for _, k := range []material.Kind{material.KindLambertian, material.KindMetal, material.KindDielectric} {
			fmt.Fprintf(out, "  %s: %d\n", k, kinds[k])
		}
		fmt.Fprintf(out, "camera: %+v\n", pack.Camera)
		return nil
	},
}

var cacheDir string

var cmdCache = &cobra.Command{
	Use: "cache [command]",
}

var cmdCacheStats = &cobra.Command{
	Use:   "stats",
	Short: "Count cached rows per render",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := rowcache.Open(cacheDir)
		if err != nil {
			return err
		}
		defer cache.Close()

		counts, err := cache.RowCounts()
		if err != nil {
			return err
		}

		fingerprints := make([]string, 0, len(counts))
		for fp := range counts {
			fingerprints = append(fingerprints, fp)
		}
		sort.Strings(fingerprints)

		for _, fp := range fingerprints {
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", counts[fp], fp)
		}
		return nil
	},
}

var cmdCachePurge = &cobra.Command{
	Use:   "purge",
	Short: "Delete every cached row",
	RunE: func(cmd *cobra.Command, args []string) error {
		cache, err := rowcache.Open(cacheDir)
		if err != nil {
			return err
		}
		defer cache.Close()

		if err := cache.Purge(); err != nil {
			return err
		}
		glog.Infof("Purged row cache in %s", cacheDir)
		return nil
	},
}

func init() {
	cmdRoot.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	cmdRoot.AddCommand(cmdScenes, cmdCache)
	cmdScenes.AddCommand(cmdScenesList, cmdScenesDump, cmdScenesCheck)
	cmdCache.AddCommand(cmdCacheStats, cmdCachePurge)

	cmdScenesDump.Flags().StringVar(&scenesDumpFormat, "format", "json", "Output format: json or text")
	cmdCache.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Row cache directory, as passed to lumen --cache-dir")
	cmdCache.MarkPersistentFlagRequired("cache-dir")
}

func main() {
	glog.CopyStandardLogTo("INFO")
	defer glog.Flush()

	if err := cmdRoot.Execute(); err != nil {
		glog.Flush()
		os.Exit(1)
	}
}
