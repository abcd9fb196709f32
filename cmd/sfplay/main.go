// Command sfplay plays a standard MIDI file through SF2 banks.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"golang.org/x/term"

	sfsynth "github.com/cbegin/sfsynth-go"
	"github.com/cbegin/sfsynth-go/internal/audio"
	"github.com/cbegin/sfsynth-go/internal/config"
)

func main() {
	var (
		input      = flag.String("i", "", "input MIDI file (required)")
		bank       = flag.String("s", "", "default SF2 bank (required)")
		bankDir    = flag.String("d", "", "directory of banks selected by MIDI instrument name")
		configPath = flag.String("config", "", "YAML render settings")
		backend    = flag.String("backend", "", "audio backend: ebiten or oto (overrides -config)")
		volume     = flag.Float64("volume", 1, "master volume")
	)
	flag.Parse()

	if *input == "" || *bank == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.Load(*configPath)
		if err != nil {
			log.Fatal(err)
		}
		cfg = c
	}
	if *backend != "" {
		cfg.Backend = *backend
	}

	lib := sfsynth.NewLibrary(*bank, *bankDir, log.Default())
	pl, err := sfsynth.NewPlayer(lib,
		sfsynth.WithBackend(audio.Backend(cfg.Backend)),
		sfsynth.WithRender(sfsynth.WithConfig(cfg)))
	if err != nil {
		log.Fatal(err)
	}
	pl.SetMasterVolume(*volume)

	song, err := sfsynth.LoadSong(*input)
	if err != nil {
		log.Fatal(err)
	}
	if err := pl.Play(song); err != nil {
		log.Fatal(err)
	}

	restore := func() {}
	interactive := term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
	if interactive {
		restore, err = rawMode()
		if err != nil {
			log.Fatal(err)
		}
		go keys(pl)
		go progress(pl, song.Duration())
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		_ = pl.Stop()
	}()

	err = pl.Wait()
	restore()
	if interactive {
		fmt.Println()
	}
	if err != nil {
		log.Fatal(err)
	}
}

func rawMode() (func(), error) {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, state) }, nil
}

// keys handles space (pause) and q or ctrl-c (stop).
func keys(pl *sfsynth.Player) {
	paused := false
	buf := make([]byte, 1)
	for {
		if _, err := os.Stdin.Read(buf); err != nil {
			return
		}
		switch buf[0] {
		case ' ':
			if paused {
				pl.Resume()
			} else {
				pl.Pause()
			}
			paused = !paused
		case 'q', 3:
			_ = pl.Stop()
			return
		}
	}
}

func progress(pl *sfsynth.Player, length time.Duration) {
	t := time.NewTicker(250 * time.Millisecond)
	defer t.Stop()
	for range t.C {
		fmt.Printf("\r%s / %s  [space] pause  [q] quit", clock(pl.Position()), clock(length))
	}
}

func clock(d time.Duration) string {
	s := int(d.Seconds())
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
