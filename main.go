package main

import "github.com/casetrack/cli/cmd"

// Set through -ldflags at release time.
var (
	version = "dev"
	commit  = ""
)

func main() {
	cmd.Execute(version, commit)
}
