// Command annotator runs the anomaly API and the command line tools.
package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"

	"thermal-annotator/internal/cli"
	"thermal-annotator/internal/version"
)

func main() {
	root := cli.NewRootCmd()

	if err := fang.Execute(
		context.Background(),
		root,
		fang.WithVersion(version.String()),
		fang.WithNotifySignal(os.Interrupt, os.Kill),
	); err != nil {
		os.Exit(1)
	}
}
