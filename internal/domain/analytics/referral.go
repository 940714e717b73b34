package analytics

import (
	"fmt"
	"strings"
)

// ReferralStatus is the stored decision state of a referral.
type ReferralStatus string

const (
	ReferralPending  ReferralStatus = "Pending"
	ReferralApproved ReferralStatus = "Approved"
	ReferralDenied   ReferralStatus = "Denied"
)

// ParseReferralStatus normalizes stored spellings.
func ParseReferralStatus(s string) (ReferralStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return ReferralPending, true
	case "approved":
		return ReferralApproved, true
	case "denied", "rejected":
		return ReferralDenied, true
	}
	return "", false
}

// FunnelStage is the position of a referral in the funnel. Booked is derived:
// an approved referral with a linked visit.
type FunnelStage string

const (
	StagePending  FunnelStage = "Pending"
	StageApproved FunnelStage = "Approved"
	StageDenied   FunnelStage = "Denied"
	StageBooked   FunnelStage = "Booked"
)

// FunnelStages lists the stages in report order.
var FunnelStages = []FunnelStage{StagePending, StageApproved, StageDenied, StageBooked}

var funnelTransitions = map[FunnelStage][]FunnelStage{
	StagePending:  {StageApproved, StageDenied},
	StageApproved: {StageBooked},
}

// CanTransition reports whether the funnel allows moving from one stage to
// another. Transitions are one-way.
func CanTransition(from, to FunnelStage) bool {
	for _, s := range funnelTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition validates a stage change.
func Transition(from, to FunnelStage) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid referral transition %s -> %s", from, to)
	}
	return nil
}

// Stage derives the funnel stage of r.
func (r Referral) Stage() FunnelStage {
	switch r.Status {
	case ReferralApproved:
		if r.LinkedVisitID != nil {
			return StageBooked
		}
		return StageApproved
	case ReferralDenied:
		return StageDenied
	default:
		return StagePending
	}
}

// Approved reports whether the referral reached approval, including referrals
// that were subsequently booked.
func (r Referral) Approved() bool {
	s := r.Stage()
	return s == StageApproved || s == StageBooked
}
