// Command kvdemo is a small driver over the pagedb store: create or open a
// file, insert/search/delete one key, optionally dump the tree.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	pagedb "github.com/chinarouter/btree"
)

func main() {
	var (
		path      = flag.String("path", "kv.db", "database file path")
		memory    = flag.Bool("memory", false, "use an in-memory store instead of -path")
		dump      = flag.Bool("dump", false, "print the tree after the operation")
		keyLen    = flag.Int("keylen", 16, "fixed key width in bytes (create only)")
		sizeBytes = flag.Int64("size", 16<<20, "target file size in bytes (create only)")
		op        = flag.String("op", "search", "insert | search | delete | stats")
		key       = flag.String("key", "", "key")
		value     = flag.String("value", "", "value (insert only)")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "kvdemo: ", log.LstdFlags)

	var db *pagedb.DB
	var err error
	switch {
	case *memory:
		db, err = pagedb.CreateInMemory(*sizeBytes, *keyLen, pagedb.WithLogger(logger))
	default:
		if _, statErr := os.Stat(*path); statErr == nil {
			db, err = pagedb.Open(*path, pagedb.WithLogger(logger))
		} else {
			db, err = pagedb.Create(*path, *sizeBytes, *keyLen, pagedb.WithLogger(logger))
		}
	}
	if err != nil {
		logger.Fatalf("open/create: %v", err)
	}
	defer db.Close()

	if *key == "" && *op != "stats" {
		logger.Fatalf("-key is required for -op=%s", *op)
	}

	switch *op {
	case "insert":
		if err := db.Insert([]byte(*key), []byte(*value)); err != nil {
			logger.Fatalf("insert: %v", err)
		}
	case "search":
		v, ok, err := db.Search([]byte(*key))
		if err != nil {
			logger.Fatalf("search: %v", err)
		}
		if !ok {
			fmt.Println("(not found)")
		} else {
			fmt.Println(string(v))
		}
	case "delete":
		ok, err := db.Delete([]byte(*key))
		if err != nil {
			logger.Fatalf("delete: %v", err)
		}
		fmt.Println(ok)
	case "stats":
		s, err := db.Stats()
		if err != nil {
			logger.Fatalf("stats: %v", err)
		}
		fmt.Printf("%+v\n", s)
	default:
		logger.Fatalf("unknown -op %q", *op)
	}

	if *dump {
		db.Print()
	}
}
