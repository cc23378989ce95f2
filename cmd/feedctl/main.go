// Command feedctl reads and writes the post feed from a terminal.
//
// It goes through the same sync layer a browser front end would: when the
// server is unreachable, posts are kept in a local cache under --state-dir
// and shown as local until `feedctl sync` pushes them.
//
//	feedctl register sal secret
//	feedctl post "hello from the terminal"
//	feedctl feed
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "feedctl:", err)
		os.Exit(1)
	}
}
