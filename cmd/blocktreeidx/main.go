// blocktreeidx is a small harness for creating, mutating, and inspecting
// a blocktree index file from the command line.
//
// Usage:
//
//	blocktreeidx create -path FILE -blocksize N -numblocks N -ksz N -vsz N
//	blocktreeidx insert -path FILE -blocksize N -ksz N -vsz N -key K -val V
//	blocktreeidx lookup -path FILE -blocksize N -ksz N -vsz N -key K
//	blocktreeidx update -path FILE -blocksize N -ksz N -vsz N -key K -val V
//	blocktreeidx dump   -path FILE -blocksize N -ksz N -vsz N
//	blocktreeidx dot    -path FILE -blocksize N -ksz N -vsz N
//	blocktreeidx depth  -path FILE -blocksize N -ksz N -vsz N
//
// Keys and values are given as raw command-line strings and must be
// exactly ksz/vsz bytes long.
//
// create/insert/update print a trailing stats line counting how many
// blocks that invocation allocated and deallocated.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"blocktree/blockstore"
	"blocktree/index"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "create":
		cmdCreate(os.Args[2:])
	case "insert":
		cmdInsert(os.Args[2:])
	case "lookup":
		cmdLookup(os.Args[2:])
	case "update":
		cmdUpdate(os.Args[2:])
	case "dump":
		cmdDump(os.Args[2:])
	case "dot":
		cmdDot(os.Args[2:])
	case "depth":
		cmdDepth(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s {create|insert|lookup|update|dump|dot|depth} [flags]\n", os.Args[0])
}

// commonFlags registers the flags every subcommand shares.
func commonFlags(name string) (fs *flag.FlagSet, path *string, blockSize, ksz, vsz *int) {
	fs = flag.NewFlagSet(name, flag.ExitOnError)
	path = fs.String("path", "", "path to the index file")
	blockSize = fs.Int("blocksize", 4096, "block size in bytes")
	ksz = fs.Int("ksz", 8, "key width in bytes")
	vsz = fs.Int("vsz", 8, "value width in bytes")
	return fs, path, blockSize, ksz, vsz
}

func openExisting(path string, blockSize, ksz, vsz int) (*index.Index, *blockstore.File) {
	if path == "" {
		log.Fatalf("missing -path")
	}
	store, err := blockstore.OpenFile(path, blockSize)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	ix := index.New(ksz, vsz, store)
	if err := ix.Attach(0, false); err != nil {
		log.Fatalf("attach %s: %v", path, err)
	}
	return ix, store
}

// printStats reports how many blocks this invocation allocated and
// deallocated, per store's NotifyAllocate/NotifyDeallocate counters.
func printStats(store *blockstore.File) {
	allocs, deallocs := store.Stats()
	fmt.Printf("stats: %d blocks allocated, %d blocks deallocated\n", allocs, deallocs)
}

func cmdCreate(args []string) {
	fs, path, blockSize, ksz, vsz := commonFlags("create")
	numBlocks := fs.Int("numblocks", 64, "total number of blocks in the store")
	fs.Parse(args)

	store, err := blockstore.CreateFile(*path, *blockSize, *numBlocks)
	if err != nil {
		log.Fatalf("create: %v", err)
	}
	defer store.Close()

	ix := index.New(*ksz, *vsz, store)
	if err := ix.Attach(0, true); err != nil {
		log.Fatalf("create: attach: %v", err)
	}
	if err := ix.Detach(); err != nil {
		log.Fatalf("create: detach: %v", err)
	}
	fmt.Printf("created %s: %d blocks of %d bytes, ksz=%d vsz=%d\n", *path, *numBlocks, *blockSize, *ksz, *vsz)
	printStats(store)
}

func cmdInsert(args []string) {
	fs, path, blockSize, ksz, vsz := commonFlags("insert")
	key := fs.String("key", "", "key to insert")
	val := fs.String("val", "", "value to insert")
	fs.Parse(args)

	ix, store := openExisting(*path, *blockSize, *ksz, *vsz)
	if err := ix.Insert([]byte(*key), []byte(*val)); err != nil {
		log.Fatalf("insert: %v", err)
	}
	if err := ix.Detach(); err != nil {
		log.Fatalf("insert: detach: %v", err)
	}
	printStats(store)
}

func cmdLookup(args []string) {
	fs, path, blockSize, ksz, vsz := commonFlags("lookup")
	key := fs.String("key", "", "key to look up")
	fs.Parse(args)

	ix, _ := openExisting(*path, *blockSize, *ksz, *vsz)
	val, err := ix.Lookup([]byte(*key))
	if err != nil {
		log.Fatalf("lookup: %v", err)
	}
	fmt.Printf("%s\n", val)
}

func cmdUpdate(args []string) {
	fs, path, blockSize, ksz, vsz := commonFlags("update")
	key := fs.String("key", "", "key to update")
	val := fs.String("val", "", "new value")
	fs.Parse(args)

	ix, store := openExisting(*path, *blockSize, *ksz, *vsz)
	if err := ix.Update([]byte(*key), []byte(*val)); err != nil {
		log.Fatalf("update: %v", err)
	}
	if err := ix.Detach(); err != nil {
		log.Fatalf("update: detach: %v", err)
	}
	printStats(store)
}

func cmdDump(args []string) {
	fs, path, blockSize, ksz, vsz := commonFlags("dump")
	fs.Parse(args)

	ix, _ := openExisting(*path, *blockSize, *ksz, *vsz)
	if err := ix.Display(os.Stdout, index.DisplaySorted); err != nil {
		log.Fatalf("dump: %v", err)
	}
}

func cmdDot(args []string) {
	fs, path, blockSize, ksz, vsz := commonFlags("dot")
	fs.Parse(args)

	ix, _ := openExisting(*path, *blockSize, *ksz, *vsz)
	if err := ix.Display(os.Stdout, index.DisplayDepthDot); err != nil {
		log.Fatalf("dot: %v", err)
	}
}

func cmdDepth(args []string) {
	fs, path, blockSize, ksz, vsz := commonFlags("depth")
	fs.Parse(args)

	ix, _ := openExisting(*path, *blockSize, *ksz, *vsz)
	if err := ix.Display(os.Stdout, index.DisplayDepth); err != nil {
		log.Fatalf("depth: %v", err)
	}
}
