package models

import "time"

type ScalingAction string

const (
	ActionScaleUp   ScalingAction = "SCALE_UP"
	ActionScaleDown ScalingAction = "SCALE_DOWN"
	ActionMaintain  ScalingAction = "MAINTAIN"
)

// ScalingDecision is the output of one scaler evaluation. It is ephemeral:
// produced each tick, kept only in the recent history used for
// self-correction.
type ScalingDecision struct {
	Timestamp        time.Time          `json:"timestamp"`
	Action           ScalingAction      `json:"action"`
	Count            int                `json:"count"`
	CurrentInstances int                `json:"current_instances"`
	PredictedLoad    float64            `json:"predicted_load"`
	Confidence       float64            `json:"confidence"`
	Factors          map[string]float64 `json:"factors,omitempty"`
	Reason           string             `json:"reason"`
	CooldownActive   bool               `json:"cooldown_active"`
	BudgetRejected   bool               `json:"budget_rejected"`
}

func (d *ScalingDecision) ShouldExecute() bool {
	return d.Action != ActionMaintain && d.Count > 0 && !d.CooldownActive && !d.BudgetRejected
}
