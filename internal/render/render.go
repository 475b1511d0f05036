// Package render implements the rendering-surface side of the engine's
// contract: a fixed per-step title lookup, a registry of per-step views, and a
// text renderer usable from terminals and tests. Platform surfaces (DOM,
// native) implement flow.Renderer the same way.
package render

import "github.com/fluxr/airtime-widget/internal/flow"

// StepTitles is the fixed per-step title lookup consumed by every surface.
var StepTitles = map[flow.Step]string{
	flow.StepClosed:    "",
	flow.StepReceiver:  "Send Airtime",
	flow.StepSelection: "Use Your Balance",
	flow.StepReview:    "Review & Confirm",
	flow.StepSuccess:   "Success",
}

// Title returns the header title for a step.
func Title(step flow.Step) string {
	return StepTitles[step]
}
