package service

import (
	"context"

	apperrors "github.com/kvcfdd/yunzai-go/internal/errors"
	"github.com/kvcfdd/yunzai-go/internal/models"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/sirupsen/logrus"
)

// Dispatcher turns raw event frames into handler invocations. Message
// events go through the command router; request events go to the pending
// request workflow.
type Dispatcher struct {
	store   Store
	bot     types.Client
	router  *Router
	request *RequestService
	admins  map[int64][]int64
	logger  *logrus.Logger
}

func NewDispatcher(store Store, bot types.Client, router *Router, request *RequestService, admins map[int64][]int64, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		store:   store,
		bot:     bot,
		router:  router,
		request: request,
		admins:  admins,
		logger:  logger,
	}
}

// AdminsFor returns the configured administrators of the bot account.
func (d *Dispatcher) AdminsFor(selfID int64) []int64 {
	return d.admins[selfID]
}

func (d *Dispatcher) isAdmin(selfID, userID int64) bool {
	for _, id := range d.admins[selfID] {
		if id == userID {
			return true
		}
	}
	return false
}

// HandleEvent decodes one raw event frame and routes it. Unknown or
// uninteresting events are dropped silently.
func (d *Dispatcher) HandleEvent(ctx context.Context, raw []byte) {
	ev, err := models.ParseEvent(raw)
	if err != nil {
		d.logger.WithError(err).Warn("Dropping undecodable event")
		return
	}

	switch ev.PostType {
	case models.PostTypeMessage:
		d.handleMessage(ctx, ev)
	case models.PostTypeRequest:
		if err := d.request.HandleRequestEvent(ctx, ev); err != nil {
			apperrors.LogRetryable(d.logger.WithFields(logrus.Fields{
				"requestType": ev.RequestType,
				"subType":     ev.SubType,
			}), err, "Failed to handle request event")
		}
	case models.PostTypeMeta:
		d.logger.WithField("postType", ev.PostType).Trace("Meta event")
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, ev *models.Event) {
	if ev.RawMessage == "" {
		return
	}

	pc := &Context{
		Store:   d.store,
		Bot:     d.bot,
		SelfID:  ev.SelfID,
		UserID:  ev.UserID,
		GroupID: ev.GroupID,
		IsAdmin: d.isAdmin(ev.SelfID, ev.UserID),
		Text:    ev.RawMessage,
		Reply:   d.replyFunc(ev),
		Logger: d.logger.WithFields(logrus.Fields{
			"selfId": ev.SelfID,
			"userId": ev.UserID,
		}),
	}

	matched, err := d.router.Dispatch(ctx, pc)
	if err != nil {
		pc.Logger.WithError(err).Error("Command handler failed")
		return
	}
	if matched {
		pc.Logger.WithField("text", pc.Text).Debug("Command handled")
	}
}

// replyFunc answers in the chat the message arrived from.
func (d *Dispatcher) replyFunc(ev *models.Event) ReplyFunc {
	if ev.GroupID != 0 {
		groupID := ev.GroupID
		return func(ctx context.Context, message types.Message) error {
			_, err := d.bot.SendGroupMessage(ctx, groupID, message)
			return err
		}
	}
	userID := ev.UserID
	return func(ctx context.Context, message types.Message) error {
		_, err := d.bot.SendPrivateMessage(ctx, userID, message)
		return err
	}
}
