package flow

import "strconv"

// Step is one of the five checkout flow states.
type Step int

const (
	// StepClosed indicates the widget is idle; only the launcher is visible.
	StepClosed Step = iota
	// StepReceiver collects the payment method and receiver details.
	StepReceiver
	// StepSelection offers the bundle / full-airtime choice.
	StepSelection
	// StepReview shows the order summary before payment.
	StepReview
	// StepSuccess displays the transaction reference.
	StepSuccess
)

func (s Step) String() string {
	switch s {
	case StepClosed:
		return "closed"
	case StepReceiver:
		return "receiver"
	case StepSelection:
		return "selection"
	case StepReview:
		return "review"
	case StepSuccess:
		return "success"
	default:
		return "step_" + strconv.Itoa(int(s))
	}
}

// validTransitions contains the permitted forward and backward transitions.
// Closing is always allowed and handled separately.
var validTransitions = map[Step][]Step{
	StepClosed: {
		StepReceiver,
	},
	StepReceiver: {
		StepSelection,
	},
	StepSelection: {
		StepReview,
		StepReceiver,
	},
	StepReview: {
		StepSuccess,
		StepSelection,
	},
	StepSuccess: {},
}

// IsTransitionAllowed reports whether moving from one step to another is valid.
func IsTransitionAllowed(from, to Step) bool {
	if to == StepClosed {
		return true
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, step := range allowed {
		if step == to {
			return true
		}
	}

	return false
}

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder allows external packages to observe step
// transitions, e.g. for metrics.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}

	transitionRecorder = recorder
}
