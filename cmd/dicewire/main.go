package main

import (
	"github.com/alecthomas/kong"

	"github.com/dicewire/dicewire/internal/cli"
)

func main() {
	var root cli.CLI
	ctx := kong.Parse(&root,
		kong.Name("dicewire"),
		kong.Description("Host tool for Pixels smart dice: scan, watch rolls, blink, and manage animation data sets."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&root))
}
