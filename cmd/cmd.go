// Package cmd provides list of commands to stream, relay and probe chart data
package cmd

import (
	"github.com/relex/gotils/config"
)

func init() {
	config.AddParentCmdWithArgs("", "streamchart pulls NDJSON data streams and publishes bounded chart buffers per query", &rootCmd, rootCmd.preRun, rootCmd.postRun)
	config.AddCmdWithArgs("run ...", "Stream queries from config and write updates to stdout", &runCmd, runCmd.run)
	config.AddCmdWithArgs("serve ...", "Serve queries from WebSocket clients", &serveCmd, serveCmd.run)
	config.AddCmdWithArgs("probe ...", "Test connection to the data source", &probeCmd, probeCmd.run)
}

// Execute parses the command line and runs the specified command
func Execute() {
	// trigger init

	config.Execute()
}
