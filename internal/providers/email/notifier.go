package email

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	userdomain "github.com/MNhat168/careerhub/internal/user/domain"
)

// SubscriptionNotifier emails lifecycle changes to the subscriber. All
// sends are best-effort: failures are logged and dropped.
type SubscriptionNotifier struct {
	provider Provider
	users    userdomain.Service
	log      *zap.Logger
}

func NewSubscriptionNotifier(provider Provider, users userdomain.Service, log *zap.Logger) *SubscriptionNotifier {
	return &SubscriptionNotifier{
		provider: provider,
		users:    users,
		log:      log.Named("email.notifier"),
	}
}

func (n *SubscriptionNotifier) NotifyActivated(ctx context.Context, assignment *subscriptiondomain.PlanAssignment) {
	subject := fmt.Sprintf("Your %s plan is active", assignment.Tier)
	body := fmt.Sprintf(
		"<p>Your <strong>%s</strong> subscription is now active and runs until %s.</p>",
		assignment.Tier, assignment.ExpiresAt.Format("January 2, 2006"),
	)
	n.send(ctx, assignment, subject, body)
}

func (n *SubscriptionNotifier) NotifyCancelled(ctx context.Context, assignment *subscriptiondomain.PlanAssignment) {
	subject := fmt.Sprintf("Your %s plan was cancelled", assignment.Tier)
	body := fmt.Sprintf(
		"<p>Your <strong>%s</strong> subscription was cancelled. You keep access until %s.</p>",
		assignment.Tier, assignment.ExpiresAt.Format("January 2, 2006"),
	)
	n.send(ctx, assignment, subject, body)
}

func (n *SubscriptionNotifier) send(ctx context.Context, assignment *subscriptiondomain.PlanAssignment, subject, body string) {
	user, err := n.users.GetByID(ctx, assignment.UserID)
	if err != nil {
		n.log.Warn("notification recipient lookup failed",
			zap.String("user_id", assignment.UserID.String()),
			zap.Error(err),
		)
		return
	}
	if err := n.provider.Send(ctx, []string{user.Email}, subject, body); err != nil {
		n.log.Warn("notification send failed",
			zap.String("user_id", assignment.UserID.String()),
			zap.Error(err),
		)
	}
}
