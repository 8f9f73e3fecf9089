package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"

	"github.com/embeddedkv/itstore/its"
	"github.com/embeddedkv/itstore/observability"
)

func main() {
	var (
		configFile = flag.String("config", "", "Path to store config JSON file")
		backend    = flag.String("backend", "", "Backend to use: ram or flash (overrides config)")
		image      = flag.String("image", "", "Path to the flash image file (overrides config)")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging to stderr")
	)
	flag.Parse()

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: itstore [flags] <set|get|info|remove> <uid> [args]")
		fmt.Fprintln(os.Stderr, "  set <uid> <value>          store value under uid")
		fmt.Fprintln(os.Stderr, "  get <uid> [offset] [len]   read stored bytes")
		fmt.Fprintln(os.Stderr, "  info <uid>                 report object metadata")
		fmt.Fprintln(os.Stderr, "  remove <uid>               delete the object")
		flag.PrintDefaults()
		os.Exit(1)
	}

	cfg := its.DefaultConfig()
	if *configFile != "" {
		loaded, err := its.LoadConfig(*configFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = *loaded
	}

	if *backend != "" {
		cfg.Backend = *backend
	}
	if *image != "" {
		cfg.Backend = its.BackendFlash
		cfg.Flash.Path = *image
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))

	store, err := its.NewStore(&cfg, its.WithObserver(observability.NewSlogObserver(logger)))
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}

	uid, err := parseUID(flag.Arg(1))
	if err != nil {
		log.Fatalf("Invalid uid %q: %v", flag.Arg(1), err)
	}

	ctx := context.Background()

	switch flag.Arg(0) {
	case "set":
		if flag.NArg() != 3 {
			log.Fatal("set requires a value argument")
		}
		if err := store.Set(ctx, uid, []byte(flag.Arg(2))); err != nil {
			log.Fatalf("Set failed: %v", err)
		}
		fmt.Printf("stored %d bytes under %#x\n", len(flag.Arg(2)), uint64(uid))

	case "get":
		offset := uint64(0)
		if flag.NArg() >= 3 {
			if offset, err = strconv.ParseUint(flag.Arg(2), 0, 32); err != nil {
				log.Fatalf("Invalid offset %q: %v", flag.Arg(2), err)
			}
		}

		length := uint64(its.DefaultMaxItemSize)
		if flag.NArg() >= 4 {
			if length, err = strconv.ParseUint(flag.Arg(3), 0, 32); err != nil {
				log.Fatalf("Invalid length %q: %v", flag.Arg(3), err)
			}
		}

		buf := make([]byte, length)
		n, err := store.Get(ctx, uid, uint32(offset), buf)
		if err != nil {
			log.Fatalf("Get failed: %v", err)
		}
		fmt.Printf("%d bytes:\n%s", n, hex.Dump(buf[:n]))

	case "info":
		info, err := store.GetInfo(ctx, uid)
		if err != nil {
			log.Fatalf("GetInfo failed: %v", err)
		}
		fmt.Printf("uid %#x: %d bytes\n", uint64(uid), info.Size)

	case "remove":
		if err := store.Remove(ctx, uid); err != nil {
			log.Fatalf("Remove failed: %v", err)
		}
		fmt.Printf("removed %#x\n", uint64(uid))

	default:
		log.Fatalf("Unknown command: %s", flag.Arg(0))
	}
}

func parseUID(s string) (its.UID, error) {
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	return its.UID(v), nil
}
