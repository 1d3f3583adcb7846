package main

import (
	"context"
	"fmt"
	"os"

	"github.com/YuminosukeSato/cropadvisor/pkg/cli"
)

func main() {
	if err := cli.APICommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
