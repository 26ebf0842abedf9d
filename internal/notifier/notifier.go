// Package notifier 사용자 알림 계약. 실제 푸시/이메일 전송은 외부 서비스가 맡는다.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"go.uber.org/zap"
)

type Notifier interface {
	// NotifyStateChange 매치 상태 변경을 수신자들에게 알림
	NotifyStateChange(ctx context.Context, m *models.Match, from models.MatchState, recipients []string) error
	// NotifyNewInvitation 새 초대 알림
	NotifyNewInvitation(ctx context.Context, inv *models.Invitation) error
}

// LogNotifier 알림을 로그로만 남기는 기본 구현
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Named("notifier")}
}

func (n *LogNotifier) NotifyStateChange(_ context.Context, m *models.Match, from models.MatchState, recipients []string) error {
	n.logger.Info("Match state change notification",
		zap.String("matchId", m.ID),
		zap.String("from", string(from)),
		zap.String("to", string(m.State)),
		zap.Strings("recipients", recipients))
	return nil
}

func (n *LogNotifier) NotifyNewInvitation(_ context.Context, inv *models.Invitation) error {
	n.logger.Info("Invitation notification",
		zap.String("matchId", inv.MatchID),
		zap.String("userId", inv.UserID),
		zap.String("origin", inv.Origin))
	return nil
}

// Pusher 연결된 사용자에게 메시지를 전달하는 전송 계층 (websocket.Hub)
type Pusher interface {
	SendToUser(userID, msgType string, payload interface{}) bool
}

// 푸시 메시지 타입. websocket 패키지의 상수와 같은 값이다.
const (
	pushStateChanged = "match_state_changed"
	pushInvitation   = "match_invitation"
)

// StateChangePayload 상태 변경 푸시 본문
type StateChangePayload struct {
	MatchID     string            `json:"matchId"`
	From        models.MatchState `json:"from"`
	To          models.MatchState `json:"to"`
	ScheduledAt string            `json:"scheduledAt"`
	WinningTeam *models.Team      `json:"winningTeam,omitempty"`
}

// InvitationPayload 초대 푸시 본문
type InvitationPayload struct {
	InvitationID string `json:"invitationId"`
	MatchID      string `json:"matchId"`
	Origin       string `json:"origin"`
}

// PushNotifier 접속 중인 사용자에게 WebSocket 으로 알린다.
// 오프라인 사용자는 건너뛴다 (푸시/이메일 전송은 외부 서비스 몫).
type PushNotifier struct {
	pusher Pusher
}

func NewPushNotifier(p Pusher) *PushNotifier {
	return &PushNotifier{pusher: p}
}

func (n *PushNotifier) NotifyStateChange(_ context.Context, m *models.Match, from models.MatchState, recipients []string) error {
	payload := StateChangePayload{
		MatchID:     m.ID,
		From:        from,
		To:          m.State,
		ScheduledAt: m.ScheduledAt.Format(time.RFC3339),
		WinningTeam: m.WinningTeam,
	}

	var dropped []string
	for _, userID := range recipients {
		if !n.pusher.SendToUser(userID, pushStateChanged, payload) {
			dropped = append(dropped, userID)
		}
	}
	if len(dropped) > 0 {
		return fmt.Errorf("push queue full, dropped %d of %d recipients", len(dropped), len(recipients))
	}
	return nil
}

func (n *PushNotifier) NotifyNewInvitation(_ context.Context, inv *models.Invitation) error {
	ok := n.pusher.SendToUser(inv.UserID, pushInvitation, InvitationPayload{
		InvitationID: inv.ID,
		MatchID:      inv.MatchID,
		Origin:       inv.Origin,
	})
	if !ok {
		return fmt.Errorf("push queue full, invitation %s not delivered", inv.ID)
	}
	return nil
}

// Multi 모든 알림 채널에 전달하고 실패는 모아서 반환한다
type Multi []Notifier

func (m Multi) NotifyStateChange(ctx context.Context, match *models.Match, from models.MatchState, recipients []string) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyStateChange(ctx, match, from, recipients); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) NotifyNewInvitation(ctx context.Context, inv *models.Invitation) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyNewInvitation(ctx, inv); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
