package service

import (
	"context"
	"fmt"

	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/event"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/models"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/notifier"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/internal/repository"
	"github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/distributed"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// InvitationObserver 상태 변경에 따라 초대를 취소하거나 복구한다
type InvitationObserver struct {
	invitations repository.InvitationStore
	logger      *zap.Logger
}

func NewInvitationObserver(invitations repository.InvitationStore, logger *zap.Logger) *InvitationObserver {
	return &InvitationObserver{
		invitations: invitations,
		logger:      logger.Named("invitation-observer"),
	}
}

func (o *InvitationObserver) Name() string { return "invitation" }

func (o *InvitationObserver) OnStateChange(ctx context.Context, e event.Event) error {
	var (
		n   int
		err error
	)

	switch {
	case e.From == models.MatchStateNeedsPlayers && e.To == models.MatchStateFormed:
		n, err = o.invitations.CancelPending(ctx, e.Match.ID, models.CancelReasonMatchFull)
	case e.From == models.MatchStateFormed && e.To == models.MatchStateNeedsPlayers:
		n, err = o.invitations.ReactivateCancelled(ctx, e.Match.ID, models.CancelReasonMatchFull)
	case e.To == models.MatchStateCancelled:
		n, err = o.invitations.CancelPending(ctx, e.Match.ID, models.CancelReasonMatchCancelled)
	default:
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to update invitations: %w", err)
	}

	o.logger.Info("Invitations updated",
		zap.String("matchId", e.Match.ID),
		zap.String("from", string(e.From)),
		zap.String("to", string(e.To)),
		zap.Int("affected", n))
	return nil
}

// notifiedStates 진입 시 알림을 보내는 상태
var notifiedStates = []models.MatchState{
	models.MatchStateFormed,
	models.MatchStateConfirmed,
	models.MatchStateInProgress,
	models.MatchStateFinished,
	models.MatchStateCancelled,
}

// NotificationObserver 주최자와 참가자에게 상태 변경 알림
type NotificationObserver struct {
	participants repository.ParticipantStore
	notifier     notifier.Notifier
}

func NewNotificationObserver(participants repository.ParticipantStore, n notifier.Notifier) *NotificationObserver {
	return &NotificationObserver{
		participants: participants,
		notifier:     n,
	}
}

func (o *NotificationObserver) Name() string { return "notification" }

func (o *NotificationObserver) OnStateChange(ctx context.Context, e event.Event) error {
	reopened := e.From == models.MatchStateFormed && e.To == models.MatchStateNeedsPlayers
	if !reopened && !lo.Contains(notifiedStates, e.To) {
		return nil
	}

	participants, err := o.participants.ListByMatch(ctx, e.Match.ID)
	if err != nil {
		return fmt.Errorf("failed to list participants: %w", err)
	}

	recipients := lo.Compact(lo.Uniq(append(
		[]string{e.Match.OrganizerID},
		lo.Map(participants, func(p *models.Participant, _ int) string { return p.UserID })...,
	)))

	if err := o.notifier.NotifyStateChange(ctx, e.Match, e.From, recipients); err != nil {
		return fmt.Errorf("failed to notify state change: %w", err)
	}
	return nil
}

// StateChangePublisher 인스턴스 간 상태 변경 전달
type StateChangePublisher interface {
	Publish(ctx context.Context, change distributed.StateChange) error
}

// RelayObserver 상태 변경을 Redis 채널로 중계한다
type RelayObserver struct {
	publisher StateChangePublisher
}

func NewRelayObserver(publisher StateChangePublisher) *RelayObserver {
	return &RelayObserver{publisher: publisher}
}

func (o *RelayObserver) Name() string { return "relay" }

func (o *RelayObserver) OnStateChange(ctx context.Context, e event.Event) error {
	return o.publisher.Publish(ctx, distributed.StateChange{
		MatchID:    e.Match.ID,
		From:       string(e.From),
		To:         string(e.To),
		OccurredAt: e.OccurredAt,
	})
}
