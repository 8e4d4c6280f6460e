package cmd

import (
	"github.com/relex/streamchart/run"
)

type probeCommandState struct {
	Config string `help:"Configuration file path"`
}

var probeCmd probeCommandState = probeCommandState{
	Config: "config.yml",
}

func (cmd *probeCommandState) run(args []string) {
	run.Probe(cmd.Config)
}
