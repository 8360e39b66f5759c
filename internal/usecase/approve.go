package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ReviewRelay/internal/domain"
	"ReviewRelay/internal/ports"
)

// Action identifies a button on the approval prompt.
type Action string

const (
	ActionApprove Action = "approve"
	ActionEdit    Action = "edit"
	ActionDismiss Action = "dismiss"
)

// Operator-facing texts. EditPromptText is also used to filter out its own
// quick-reply echo from inbound messages.
const (
	EditPromptText = "Send the corrected reply text as your next message."

	copyPasteHeader  = "Copy the text below and paste it on the review platform:"
	noticeNotPending = "This review is no longer pending."
	noticeResolved   = "This review was already resolved."
	noticeEditSaved  = "Correction saved."
	noticeDismissed  = "Dismissed. No reply will be posted for this review."
)

// editWindow bounds how long a pending edit context stays valid.
const editWindow = 15 * time.Minute

// Callback is an action button press relayed by the chat platform.
type Callback struct {
	OperatorID string
	Action     Action
	ReviewID   string
	ReplyToken string
}

// IncomingMessage is operator free text relayed by the chat platform.
type IncomingMessage struct {
	OperatorID string
	Text       string
	ReplyToken string
}

// ApproverDeps wires the collaborators of the approval stage.
type ApproverDeps struct {
	Repo      ports.ReviewRepository
	Messenger ports.Messenger
	Logger    *slog.Logger
	Now       func() time.Time
}

// Approver resolves reviews to their terminal disposition from chat
// callbacks, and captures manual corrections. The operator always receives
// either the expected confirmation or an explicit notice, never silence on
// a rejected action.
type Approver struct {
	repo      ports.ReviewRepository
	messenger ports.Messenger
	logger    *slog.Logger
	now       func() time.Time
}

// NewApprover constructs the approval stage.
func NewApprover(deps ApproverDeps) *Approver {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Approver{
		repo:      deps.Repo,
		messenger: deps.Messenger,
		logger:    deps.Logger,
		now:       now,
	}
}

// HandleCallback dispatches one action button press.
func (a *Approver) HandleCallback(ctx context.Context, cb Callback) error {
	switch cb.Action {
	case ActionApprove:
		return a.approve(ctx, cb)
	case ActionEdit:
		return a.edit(ctx, cb)
	case ActionDismiss:
		return a.dismiss(ctx, cb)
	default:
		return fmt.Errorf("unknown action %q for review %s", cb.Action, cb.ReviewID)
	}
}

func (a *Approver) approve(ctx context.Context, cb Callback) error {
	review, err := a.repo.GetReview(ctx, cb.ReviewID)
	if errors.Is(err, domain.ErrNotFound) {
		return a.reply(ctx, cb.ReplyToken, noticeNotPending)
	}
	if err != nil {
		return fmt.Errorf("load review %s: %w", cb.ReviewID, err)
	}

	draft, err := a.repo.GetDraft(ctx, review.DraftID)
	if errors.Is(err, domain.ErrNotFound) {
		return a.reply(ctx, cb.ReplyToken, noticeNotPending)
	}
	if err != nil {
		return fmt.Errorf("load draft %s: %w", review.DraftID, err)
	}

	if err := a.repo.UpdateStatus(ctx, cb.ReviewID, domain.StatusPosted, ""); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTransition):
			return a.reply(ctx, cb.ReplyToken, noticeResolved)
		case errors.Is(err, domain.ErrNotFound):
			return a.reply(ctx, cb.ReplyToken, noticeNotPending)
		default:
			return fmt.Errorf("mark review %s posted: %w", cb.ReviewID, err)
		}
	}

	a.logger.Info("review approved", "review", cb.ReviewID, "operator", cb.OperatorID)
	return a.reply(ctx, cb.ReplyToken, copyPasteHeader+"\n\n"+draft.Text)
}

func (a *Approver) edit(ctx context.Context, cb Callback) error {
	review, err := a.repo.GetReview(ctx, cb.ReviewID)
	if errors.Is(err, domain.ErrNotFound) {
		return a.reply(ctx, cb.ReplyToken, noticeNotPending)
	}
	if err != nil {
		return fmt.Errorf("load review %s: %w", cb.ReviewID, err)
	}
	if review.Status.Terminal() {
		return a.reply(ctx, cb.ReplyToken, noticeResolved)
	}

	// The pending record carries the review ID explicitly; a later message
	// is never matched to a review by sender identity alone. One
	// outstanding edit per operator: a new press replaces the old record.
	edit := domain.PendingEdit{
		OperatorID: cb.OperatorID,
		ReviewID:   cb.ReviewID,
		ExpiresAt:  a.now().Add(editWindow),
	}
	if err := a.repo.SetPendingEdit(ctx, edit); err != nil {
		return fmt.Errorf("record pending edit for %s: %w", cb.ReviewID, err)
	}

	return a.reply(ctx, cb.ReplyToken, EditPromptText)
}

func (a *Approver) dismiss(ctx context.Context, cb Callback) error {
	if err := a.repo.UpdateStatus(ctx, cb.ReviewID, domain.StatusIgnored, ""); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTransition):
			return a.reply(ctx, cb.ReplyToken, noticeResolved)
		case errors.Is(err, domain.ErrNotFound):
			return a.reply(ctx, cb.ReplyToken, noticeNotPending)
		default:
			return fmt.Errorf("mark review %s ignored: %w", cb.ReviewID, err)
		}
	}

	a.logger.Info("review dismissed", "review", cb.ReviewID, "operator", cb.OperatorID)
	return a.reply(ctx, cb.ReplyToken, noticeDismissed)
}

// HandleMessage interprets operator free text. It is a correction only when
// the operator holds an unexpired pending edit; anything else (including
// the echoed prompt) is ignored.
func (a *Approver) HandleMessage(ctx context.Context, msg IncomingMessage) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" || text == EditPromptText {
		return nil
	}

	edit, err := a.repo.GetPendingEdit(ctx, msg.OperatorID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load pending edit for %s: %w", msg.OperatorID, err)
	}

	draft, err := a.repo.CreateDraft(ctx, domain.Draft{
		ReviewID:  edit.ReviewID,
		Text:      text,
		TokenCost: 0, // manual authorship
	})
	if err != nil {
		return fmt.Errorf("save correction for %s: %w", edit.ReviewID, err)
	}

	if err := a.repo.UpdateStatus(ctx, edit.ReviewID, domain.StatusDrafted, draft.ID); err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrNotFound):
			if clearErr := a.repo.ClearPendingEdit(ctx, msg.OperatorID); clearErr != nil {
				a.logger.Warn("clear stale pending edit failed",
					"operator", msg.OperatorID, "error", clearErr)
			}
			return a.reply(ctx, msg.ReplyToken, noticeResolved)
		default:
			return fmt.Errorf("repoint review %s to correction: %w", edit.ReviewID, err)
		}
	}

	if err := a.repo.ClearPendingEdit(ctx, msg.OperatorID); err != nil {
		return fmt.Errorf("clear pending edit for %s: %w", msg.OperatorID, err)
	}

	a.logger.Info("correction saved",
		"review", edit.ReviewID, "draft", draft.ID, "operator", msg.OperatorID)
	return a.reply(ctx, msg.ReplyToken, noticeEditSaved)
}

func (a *Approver) reply(ctx context.Context, replyToken, text string) error {
	if err := a.messenger.Reply(ctx, replyToken, text); err != nil {
		return fmt.Errorf("reply to operator: %w", err)
	}
	return nil
}
