package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/pebble"
)

// inspect dumps raw fact-store keyspaces from a database directory. It
// opens the store read-only, so it is safe to point at a live server's
// path for a quick look.
func main() {
	var path string
	var prefix string
	var limit int
	flag.StringVar(&path, "path", "", "fact store path")
	flag.StringVar(&prefix, "prefix", "eav:", "keyspace prefix to dump (eav:, vae:, log:)")
	flag.IntVar(&limit, "limit", 0, "max keys to print (0 = all)")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--path required")
		os.Exit(2)
	}
	if !strings.HasSuffix(prefix, ":") && !strings.Contains(prefix, ":") {
		prefix += ":"
	}

	db, err := pebble.Open(path, &pebble.Options{ReadOnly: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer db.Close()

	it, err := db.NewIter(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "iterator: %v\n", err)
		os.Exit(1)
	}
	defer it.Close()

	n := 0
	for ok := it.SeekGE([]byte(prefix)); ok; ok = it.Next() {
		k := string(it.Key())
		if !strings.HasPrefix(k, prefix) {
			break
		}
		fmt.Printf("%s\t%s\n", k, string(it.Value()))
		n++
		if limit > 0 && n >= limit {
			break
		}
	}
	fmt.Fprintf(os.Stderr, "%d keys\n", n)
}
