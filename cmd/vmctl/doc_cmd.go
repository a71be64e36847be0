package main

import "github.com/alecthomas/kong"

type DocCmd struct{}

// Run prints the full command tree as markdown. main stashes the parsed
// kong.Context so this can drive MarkdownHelpPrinter directly rather than
// going through the --help flag path.
func (c *DocCmd) Run(cctx *Context) error {
	return MarkdownHelpPrinter(kong.HelpOptions{}, parsedKongCtx)
}
