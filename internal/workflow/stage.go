// Package workflow implements the verification state machine. The engine
// is the only writer of application records: every trigger resolves to at
// most one in-flight transition per application, persisted through the
// store's expected-stage check and announced on the event broadcaster.
package workflow

import "github.com/veriflow-id/veriflow/internal/applications"

// stageOrder positions each automatic stage in process order.
// StageManualReview is a terminal branch and has no position.
var stageOrder = map[applications.Stage]int{
	applications.StageOCRProcessing:   0,
	applications.StageUserReview:      1,
	applications.StageGovVerification: 2,
	applications.StageFraudCheck:      3,
	applications.StageDecision:        4,
}

// compareStages reports whether current sits before, at, or after target
// in process order. Terminal branches count as past every automatic stage.
func compareStages(current, target applications.Stage) int {
	if current == applications.StageManualReview {
		return 1
	}
	c, t := stageOrder[current], stageOrder[target]
	switch {
	case c < t:
		return -1
	case c > t:
		return 1
	default:
		return 0
	}
}
