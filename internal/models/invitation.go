package models

import "time"

type InvitationState string

const (
	InvitationStatePending   InvitationState = "pending"
	InvitationStateAccepted  InvitationState = "accepted"
	InvitationStateCancelled InvitationState = "cancelled"
)

// CancelReason 초대 취소 사유. 재활성화 규칙이 사유에 의존한다.
type CancelReason string

const (
	CancelReasonMatchFull      CancelReason = "match_full"
	CancelReasonMatchCancelled CancelReason = "match_cancelled"
	CancelReasonMatchClosed    CancelReason = "match_closed"
)

// OriginSystem 매칭 전략이 아닌 시스템이 만든 초대
const OriginSystem = "SISTEMA"

type Invitation struct {
	ID           string          `json:"id" db:"id"`
	MatchID      string          `json:"matchId" db:"match_id"`
	UserID       string          `json:"userId" db:"user_id"`
	State        InvitationState `json:"state" db:"state"`
	Origin       string          `json:"origin" db:"origin"`
	CancelReason *CancelReason   `json:"cancelReason,omitempty" db:"cancel_reason"`
	SentAt       time.Time       `json:"sentAt" db:"sent_at"`
	UpdatedAt    time.Time       `json:"updatedAt" db:"updated_at"`
}
