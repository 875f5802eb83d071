// atlastool is a CLI utility for generating UV atlases from mesh primitives.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Faultbox/uvatlas/internal/config"
	"github.com/Faultbox/uvatlas/pkg/mesh"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "generate", "gen":
		cmdGenerate(args)
	case "primitives", "prims":
		cmdPrimitives()
	case "config":
		cmdConfig(args)
	case "watch":
		cmdWatch(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`atlastool - UV atlas generator

Usage:
  atlastool <command> [options] [primitive...]

Commands:
  generate [primitive...]   Chart, parametrize and pack a scene of primitives
  primitives                List available primitives
  config [-toml] [path]     Write the default config (stdout if no path)
  watch [primitive...]      Regenerate whenever the config file changes

Options (generate, watch):
  -config <file>   Config file (.yaml, .yml or .toml)
  -resolution <n>  Fixed atlas resolution
  -tpu <x>         Texels per world unit
  -padding <n>     Texels of padding around charts
  -brute           Try every position when packing
  -images          Write PNG previews
  -out <dir>       Output directory
  -input-uvs       Chart along input UV islands
  -workers <n>     Meshes processed in parallel
  -debug           Debug logging

Examples:
  atlastool generate sphere cube
  atlastool generate -resolution 512 -images -out build cylinder
  atlastool config -toml atlas.toml
  atlastool watch -config atlas.yaml`)
}

func cmdPrimitives() {
	for _, name := range mesh.PrimitiveNames() {
		p, err := mesh.NewPrimitive(name)
		if err != nil {
			continue
		}
		fmt.Printf("  %-12s %5d vertices %5d triangles\n", name, p.VertexCount(), len(p.Indices)/3)
	}
}

func cmdConfig(args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	asTOML := fs.Bool("toml", false, "Write TOML instead of YAML")
	fs.Parse(args)

	cfg := config.Default()
	if fs.NArg() < 1 {
		data, err := cfg.Marshal(*asTOML)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Stdout.Write(data)
		return
	}

	path := fs.Arg(0)
	if *asTOML && filepath.Ext(path) != ".toml" {
		path += ".toml"
	}
	if err := cfg.SaveTo(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", path)
}

// invocation holds the parsed generate/watch command line.
type invocation struct {
	flags      config.Flags
	primitives []string
}

func parseInvocation(name string, args []string) *invocation {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	inv := &invocation{}
	inv.flags.Register(fs)
	fs.Parse(args)
	inv.primitives = fs.Args()
	return inv
}

// load reads the config. Positional arguments replace the configured
// primitive list.
func (inv *invocation) load() (*config.Config, error) {
	cfg, err := config.Load(&inv.flags)
	if err != nil {
		return nil, err
	}
	if len(inv.primitives) > 0 {
		cfg.Output.Primitives = inv.primitives
	}
	return cfg, nil
}

// configPath is the file load reads, or "" when only defaults apply.
func (inv *invocation) configPath() string {
	if inv.flags.Config != "" {
		return inv.flags.Config
	}
	return config.FindConfigFile()
}
