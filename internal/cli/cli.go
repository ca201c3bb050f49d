package cli

import (
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Serve  *ServeCommand
	Add    *AddCommand
	Day    *DayCommand
	Apps   *AppsCommand
	Status *StatusCommand
	Purge  *PurgeCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "nagi"
	parser.LongDescription = "Reconstruct your day as stone (target app active) and wave (everything else) from sparse app-activation events."

	cmds := &commands{
		Serve:  &ServeCommand{globals: &globals, version: version},
		Add:    &AddCommand{globals: &globals, version: version},
		Day:    &DayCommand{globals: &globals, version: version},
		Apps:   &AppsCommand{globals: &globals, version: version},
		Status: &StatusCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
	}

	parser.AddCommand("serve", "Start the nagi daemon", "Start the nagi daemon (local HTTP service for ingestion and day views).", cmds.Serve)
	parser.AddCommand("add", "Record an app-activation event", "Record an app-activation event by hand, bypassing the HTTP ingestion endpoint.", cmds.Add)
	parser.AddCommand("day", "Print one reconstructed day", "Reconstruct a calendar day into stone and wave segments and print it.", cmds.Day)
	parser.AddCommand("apps", "List apps and manage target selection", "List apps seen in the event log and flip apps in or out of the target selection.", cmds.Apps)
	parser.AddCommand("status", "Show daemon health and statistics", "Show daemon health, database statistics, and configuration summary.", cmds.Status)
	parser.AddCommand("purge", "Delete nagi data", "Delete nagi data. Destructive operation with safety prompt.", cmds.Purge)

	return parser, &globals, cmds
}

// Run is the main entry point for the nagi CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("nagi %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		if flagsErr, ok := err.(*goflags.Error); ok {
			if flagsErr.Type == goflags.ErrHelp {
				return nil
			}
		}
		return err
	}

	return nil
}
