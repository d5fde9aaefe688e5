// Command inspectorctl is a headless driver for the spectrogram/waveform
// inspector engine: it loads a config, adds tracks from the command line,
// applies pending changes, and reports the resulting global dB/sample-rate
// bounds and per-track filenames. It exists to exercise the engine outside
// a GUI host and to smoke-test a config file.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	thesiago "github.com/sytronik/thesia-go"
	"github.com/sytronik/thesia-go/internal/config"
	"github.com/sytronik/thesia-go/internal/obslog"

	"github.com/charmbracelet/log"
)

func main() {
	var configPath string
	var mipmapDir string
	var verbose bool

	fs := pflag.NewFlagSet("inspectorctl", pflag.ExitOnError)
	fs.StringVar(&configPath, "config", "", "path to a YAML config file (optional)")
	fs.StringVar(&mipmapDir, "mipmap-dir", "", "directory for mipmap tile files (defaults to a temp dir)")
	fs.BoolVar(&verbose, "verbose", false, "enable debug logging")

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	config.BindFlags(fs, &cfg)
	if err := fs.Parse(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if verbose {
		obslog.SetLevel(log.DebugLevel)
	}

	paths := fs.Args()
	if len(paths) == 0 {
		fmt.Fprintln(os.Stderr, "usage: inspectorctl [flags] <audio-file>...")
		os.Exit(2)
	}

	if mipmapDir == "" {
		dir, err := os.MkdirTemp("", "inspectorctl-mipmap-*")
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		mipmapDir = dir
	}

	eng := thesiago.New(cfg, mipmapDir)
	defer eng.Close()

	ids := make([]int, len(paths))
	for i := range paths {
		ids[i] = i
	}
	added := eng.AddTracks(ids, paths)
	if len(added) != len(ids) {
		fmt.Fprintf(os.Stderr, "warning: %d of %d tracks failed to decode\n", len(ids)-len(added), len(ids))
	}

	eng.ApplyTrackListChanges()
	minDB, maxDB, maxSR := eng.Bounds()
	fmt.Printf("tracks: %d loaded, max_sec=%.3f, min_dB=%.1f max_dB=%.1f max_sr=%d\n",
		len(added), eng.MaxSec(), minDB, maxDB, maxSR)
	for _, id := range added {
		fmt.Printf("  [%d] %s\n", id, eng.FileName(id))
	}
}
