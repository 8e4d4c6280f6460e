package cmd

import (
	"github.com/relex/streamchart/defs"
	"github.com/relex/streamchart/run"
	"github.com/relex/streamchart/util"
)

type serveCommandState struct {
	Config      string `help:"Configuration file path"`
	Listen      string `help:"The listener address of WebSocket relay"`
	MetricsAddr string `help:"The listener address to expose Prometheus metrics and debug information"`
	TestMode    bool   `help:"Use test mode config: short timeout"`
}

var serveCmd serveCommandState = serveCommandState{
	Config:      "config.yml",
	Listen:      ":8090",
	MetricsAddr: ":9335",
	TestMode:    false,
}

func (cmd *serveCommandState) run(args []string) {
	if cmd.TestMode {
		defs.EnableTestMode()
	}

	msrv := util.LaunchMetricsListener(cmd.MetricsAddr)

	run.Serve(cmd.Config, cmd.Listen)

	shutdownMetricsListener(msrv)
}
