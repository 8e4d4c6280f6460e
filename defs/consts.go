package defs

// Common labels for logging
const (
	LabelComponent = "component"

	LabelAddress = "address"
	LabelKey     = "key"
	LabelSession = "session"
	LabelClient  = "client"
)

// Query string parameters understood by stream producers
const (
	ParamPanelID    = "panelid"
	ParamRefID      = "refid"
	ParamDataRows   = "data-rows"
	ParamStart      = "start"
	ParamEnd        = "end"
	ParamDatapoints = "datapoints"
)
