// Command sfinfo prints SF2 bank information as JSON.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	sfsynth "github.com/cbegin/sfsynth-go"
)

func main() {
	var (
		dir     = flag.String("d", "", "directory of .sf2 files")
		showVer = flag.Bool("version", false, "print the version and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: sfinfo -d dir | sfinfo file.sf2...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVer {
		fmt.Println("sfinfo version 1.0.0")
		return
	}

	var v any
	switch {
	case *dir != "":
		info, err := sfsynth.DirectoryInfo(*dir)
		if err != nil {
			log.Fatal(err)
		}
		v = info
	case flag.NArg() == 1:
		b, err := sfsynth.LoadBank(flag.Arg(0))
		if err != nil {
			log.Fatal(err)
		}
		v = b.Summary()
	case flag.NArg() > 1:
		all := make(map[string]any, flag.NArg())
		for _, path := range flag.Args() {
			b, err := sfsynth.LoadBank(path)
			if err != nil {
				log.Fatal(err)
			}
			all[path] = b.Summary()
		}
		v = all
	default:
		flag.Usage()
		os.Exit(2)
	}

	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))
}
