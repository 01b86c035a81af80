package main

import (
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
)

var opts struct {
	Profile  string   `short:"p" long:"profile" description:"if given, all S3 operations (the remote archive source) use this shared AWS profile" value-name:"aws-profile"`
	List     List     `command:"list" alias:"ls" description:"list entry names"`
	Info     Info     `command:"info" description:"print archive summary"`
	Extract  Extract  `command:"extract" alias:"x" description:"extract archives sequentially"`
	Pextract Pextract `command:"pextract" alias:"px" description:"extract archives using the pipelined, concurrent extractor"`
	Verify   Verify   `command:"verify" description:"decompress every entry and check its CRC-32 without extracting"`
}

func main() {
	p := flags.NewNamedParser("xzip", flags.Default)
	if _, err := p.AddGroup("Global Options", "", &opts); err != nil {
		panic(err)
	}

	p.CommandHandler = func(command flags.Commander, args []string) error {
		if opts.Profile != "" {
			if err := os.Setenv("AWS_PROFILE", opts.Profile); err != nil {
				return fmt.Errorf("set AWS_PROFILE: %w", err)
			}
		}

		return command.Execute(args)
	}

	if _, err := p.Parse(); err != nil {
		if !flags.WroteHelp(err) {
			os.Exit(1)
		}
	}
}
