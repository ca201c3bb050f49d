package cli

import "database/sql"

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable verbose output"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// ServeCommand — run the nagi daemon (local HTTP service).
type ServeCommand struct {
	Host string `long:"host" description:"Override daemon bind host"`
	Port int    `long:"port" description:"Override daemon port"`

	globals *GlobalFlags
	version string
}

// AddCommand — record an app-activation event by hand.
type AddCommand struct {
	User string `long:"user" description:"Account email (required)"`
	App  string `long:"app" description:"App that became active; omit to record a return to idle"`
	At   string `long:"at" description:"Event time in RFC 3339 (default: now)"`

	globals *GlobalFlags
	version string
}

// DayCommand — reconstruct and print one calendar day.
type DayCommand struct {
	User string `long:"user" description:"Account email (required)"`
	Date string `long:"date" description:"Calendar date as YYYY-MM-DD (default: today)"`
	Unit int    `long:"unit" description:"Dot bucket size in minutes" default:"30"`

	globals *GlobalFlags
	version string
}

// AppsCommand — list seen apps and manage the target selection.
type AppsCommand struct {
	User   string `long:"user" description:"Account email (required)"`
	Toggle string `long:"toggle" description:"Flip this app in or out of the target selection"`

	globals *GlobalFlags
	version string
}

// StatusCommand — show daemon health, database stats, config summary.
type StatusCommand struct {
	globals *GlobalFlags
	version string
}

// PurgeCommand — delete nagi data with safety confirmation.
type PurgeCommand struct {
	All   bool   `long:"all" description:"Delete ALL data for every account"`
	User  string `long:"user" description:"Delete only this account's events"`
	Force bool   `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	db      *sql.DB // injectable for testing; nil means open default DB
}
