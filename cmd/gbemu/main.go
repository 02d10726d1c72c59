package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"gbemu/internal/cart"
	"gbemu/internal/emu"
	"gbemu/internal/ui"
)

func main() {
	var (
		scale = flag.Int("scale", 3, "window scale")
		title = flag.String("title", "gbemu", "window title")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <rom-path>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	romPath := flag.Arg(0)

	rom, err := os.ReadFile(romPath)
	if err != nil {
		log.Fatalf("read ROM: %v", err)
	}

	cartridge, err := cart.New(rom)
	if err != nil {
		log.Fatalf("load cartridge: %v", err)
	}

	h := cartridge.Header()
	log.Printf("loaded %q: %s, %d ROM banks, %d bytes RAM, gbc=%v",
		h.Title, h.Model, h.ROMBanks, h.RAMLength, h.GBC)

	savePath := cart.SavePath(romPath)
	if err := cart.LoadSaveFile(cartridge, savePath); err != nil {
		log.Fatalf("%v", err)
	}

	app := ui.New(ui.Config{Title: *title, Scale: *scale})
	gb := emu.New(cartridge, app, savePath)
	app.Attach(gb)

	runErr := app.Run()

	if err := gb.Shutdown(); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
	if runErr != nil {
		log.Fatalf("%v", runErr)
	}
}
