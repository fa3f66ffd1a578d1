package main

import (
	"fmt"
	"strings"

	"facebook-group-scraper/internal/procman"
)

// Run lists browser processes, or terminates the stray ones with --kill.
func (c *ProcsCmd) Run(deps *Dependencies) error {
	if c.Kill {
		n, err := deps.Procs.TerminateStray(deps.Ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(deps.Stdout, "Terminated %d processes\n", n)
		return nil
	}

	report, err := deps.Procs.Scan(deps.Ctx)
	if err != nil {
		return err
	}
	printProcs(deps, "Drivers", report.Drivers)
	printProcs(deps, "Automation browsers", report.Automation)
	printProcs(deps, "Regular browsers", report.Regular)
	return nil
}

func printProcs(deps *Dependencies, title string, procs []procman.Process) {
	fmt.Fprintf(deps.Stdout, "%s (%d):\n", title, len(procs))
	for _, p := range procs {
		cmdline := strings.Join(p.Cmdline, " ")
		if len(cmdline) > 100 {
			cmdline = cmdline[:100] + "..."
		}
		fmt.Fprintf(deps.Stdout, "  %d  %s  %s\n", p.PID, p.Name, cmdline)
	}
}
