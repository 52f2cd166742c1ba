package main

import (
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
)

// Options is the root command that groups sub-commands. The struct tags are
// interpreted by github.com/jessevdk/go-flags.
type Options struct {
	EnvFile string `short:"e" long:"env" description:"dotenv file to load" default:".env"`

	Index IndexCmd `command:"index" description:"Build the knowledge index from a folder and/or Google Drive"`
	Chat  ChatCmd  `command:"chat" description:"Chat with the assistant in the terminal"`
	Serve ServeCmd `command:"serve" description:"Start the HTTP chat API"`
	Stats StatsCmd `command:"stats" description:"Print knowledge index statistics"`
}

var opts Options

func main() {
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	if _, err := parser.Parse(); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stdout)
			os.Exit(0)
		}
		parser.WriteHelp(os.Stderr)
		os.Stderr.WriteString("\n" + err.Error() + "\n")
		os.Exit(1)
	}
}
