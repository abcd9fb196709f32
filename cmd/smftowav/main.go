// Command smftowav renders a standard MIDI file to a WAV file.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"golang.org/x/term"

	sfsynth "github.com/cbegin/sfsynth-go"
	"github.com/cbegin/sfsynth-go/internal/config"
)

const version = "1.0.4"

func main() {
	var (
		input      = flag.String("i", "", "input MIDI file (required)")
		bank       = flag.String("s", "", "default SF2 bank (required)")
		bankDir    = flag.String("d", "", "directory of banks selected by MIDI instrument name")
		output     = flag.String("o", "", "output WAV file, - for stdout (required)")
		preset     = flag.Bool("preset", false, "print the presets of every bank in -d as JSON and exit")
		configPath = flag.String("config", "", "YAML render settings")
		sampleRate = flag.Int("sample-rate", 0, "output sample rate (overrides -config)")
		serial     = flag.Bool("serial", false, "render without goroutines")
		showVer    = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println("smftowav version", version)
		return
	}
	if *preset {
		if *bankDir == "" {
			log.Fatal("-preset needs -d")
		}
		info, err := sfsynth.DirectoryInfo(*bankDir)
		if err != nil {
			log.Fatal(err)
		}
		out, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(string(out))
		return
	}
	if *input == "" || *bank == "" || *output == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *output == "-" && term.IsTerminal(int(os.Stdout.Fd())) {
		log.Fatal("refusing to write WAV data to a terminal")
	}

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = c
	}
	if *sampleRate > 0 {
		cfg.SampleRate = *sampleRate
	}
	if *serial {
		cfg.Serial = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	lib := sfsynth.NewLibrary(*bank, *bankDir, log.Default())
	samples, err := sfsynth.RenderFile(ctx, *input, lib, sfsynth.WithConfig(cfg))
	if err != nil {
		log.Fatal(err)
	}
	if err := write(*output, samples, cfg.SampleRate); err != nil {
		log.Fatal(err)
	}
	frames := len(samples) / 2
	log.Printf("rendered %.2f s in %v", float64(frames)/float64(cfg.SampleRate), time.Since(start).Round(time.Millisecond))
}

// write encodes to path, or to stdout through a temporary file since the
// encoder needs to seek.
func write(path string, samples []float32, sampleRate int) error {
	if path != "-" {
		return sfsynth.WriteWAVFile(path, samples, sampleRate)
	}
	tmp, err := os.CreateTemp("", "smftowav-*.wav")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if err := sfsynth.WriteWAV(tmp, samples, sampleRate); err != nil {
		return err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err = io.Copy(os.Stdout, tmp)
	return err
}
