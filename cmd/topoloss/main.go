// Package main provides the topoloss CLI.
//
// Commands:
//
//	topoloss version                        Show version and CPU features
//	topoloss sheet N [-f 2 -f 2]            Show the sheet layout and pyramid for N units
//	topoloss train -c run.yaml [-o w.st]    Train a model with topographic losses
//	topoloss report -c run.yaml [-w w.st]   Print the losses of a (trained) model
package main

import (
	"context"
	"os"
)

const version = "v0.1.0-dev"

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
