package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/kvcfdd/yunzai-go/internal/constants"
	apperrors "github.com/kvcfdd/yunzai-go/internal/errors"
	"github.com/kvcfdd/yunzai-go/internal/models"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/sirupsen/logrus"
)

const (
	placeholderNickname  = "未知昵称"
	placeholderGroupName = "未知群名"
)

var resolvePattern = regexp.MustCompile(`^#(同意|拒绝)(好友|群邀请)\s*([0-9]+)$`)

// RequestService implements the friend/group-invite approval workflow: it
// records inbound requests, notifies administrators, and executes their
// approve/deny decisions.
type RequestService struct {
	store  Store
	bot    types.Client
	logger *logrus.Logger

	// adminsFor returns the administrator ids configured for a receiving
	// bot account.
	adminsFor func(selfID int64) []int64
}

func NewRequestService(store Store, bot types.Client, adminsFor func(selfID int64) []int64, logger *logrus.Logger) *RequestService {
	return &RequestService{
		store:     store,
		bot:       bot,
		adminsFor: adminsFor,
		logger:    logger,
	}
}

// Routes returns the resolver command routes.
func (s *RequestService) Routes() []Route {
	return []Route{
		{
			Name:      "request-resolve",
			Pattern:   resolvePattern,
			AdminOnly: true,
			Handler:   s.resolve,
		},
	}
}

// HandleRequestEvent turns an inbound request event into a durable pending
// record and a best-effort administrator broadcast. Events that are neither
// friend requests nor group invites are ignored.
func (s *RequestService) HandleRequestEvent(ctx context.Context, ev *models.Event) error {
	switch {
	case ev.IsFriendRequest():
		return s.notifyFriendRequest(ctx, ev)
	case ev.IsGroupInvite():
		return s.notifyGroupInvite(ctx, ev)
	default:
		return nil
	}
}

func (s *RequestService) notifyFriendRequest(ctx context.Context, ev *models.Event) error {
	record := models.PendingRequest{
		Kind:          models.RequestKindFriend,
		ApprovalToken: ev.Flag,
		CreatedAt:     time.Now().UnixMilli(),
	}

	// The record must be committed before any notification goes out so an
	// administrator reply can never race ahead of persisted state.
	if err := s.saveRecord(ctx, models.RequestKindFriend, ev.UserID, record); err != nil {
		return err
	}

	nickname := placeholderNickname
	if info, err := s.bot.GetStrangerInfo(ctx, ev.UserID); err == nil && info.Nickname != "" {
		nickname = info.Nickname
	}

	comment := ev.Comment
	if comment == "" {
		comment = "无"
	}

	message := types.Message{
		types.Image(fmt.Sprintf("https://q1.qlogo.cn/g?b=qq&s=100&nk=%d", ev.UserID)),
		types.Text(fmt.Sprintf("\n[通知(%d) - 添加好友申请]", ev.SelfID)),
		types.Text(fmt.Sprintf("\n申请人账号：%d", ev.UserID)),
		types.Text(fmt.Sprintf("\n申请人昵称：%s", nickname)),
		types.Text(fmt.Sprintf("\n附加信息：%s", comment)),
		types.Text("\n----------------"),
		types.Text(fmt.Sprintf("\n可发送 #同意好友%d 或 #拒绝好友%d 进行处理", ev.UserID, ev.UserID)),
	}

	s.broadcast(ctx, ev.SelfID, message)
	return nil
}

func (s *RequestService) notifyGroupInvite(ctx context.Context, ev *models.Event) error {
	record := models.PendingRequest{
		Kind:          models.RequestKindGroup,
		ApprovalToken: ev.Flag,
		CreatedAt:     time.Now().UnixMilli(),
	}

	if err := s.saveRecord(ctx, models.RequestKindGroup, ev.GroupID, record); err != nil {
		return err
	}

	// Inviter and group lookups are independent; run them concurrently and
	// fall back per-lookup on failure.
	nickname := placeholderNickname
	groupName := placeholderGroupName

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if info, err := s.bot.GetStrangerInfo(ctx, ev.UserID); err == nil && info.Nickname != "" {
			nickname = info.Nickname
		}
	}()
	go func() {
		defer wg.Done()
		if info, err := s.bot.GetGroupInfo(ctx, ev.GroupID); err == nil && info.GroupName != "" {
			groupName = info.GroupName
		}
	}()
	wg.Wait()

	message := types.Message{
		types.Image(fmt.Sprintf("https://p.qlogo.cn/gh/%d/%d/100", ev.GroupID, ev.GroupID)),
		types.Text(fmt.Sprintf("\n[通知(%d) - 群邀请]", ev.SelfID)),
		types.Text(fmt.Sprintf("\n群号：%d", ev.GroupID)),
		types.Text(fmt.Sprintf("\n群名：%s", groupName)),
		types.Text(fmt.Sprintf("\n邀请人账号：%d", ev.UserID)),
		types.Text(fmt.Sprintf("\n邀请人昵称：%s", nickname)),
		types.Text("\n----------------"),
		types.Text(fmt.Sprintf("\n可发送 #同意群邀请%d 或 #拒绝群邀请%d 进行处理", ev.GroupID, ev.GroupID)),
	}

	s.broadcast(ctx, ev.SelfID, message)
	return nil
}

// broadcast fans the notification out to every administrator of the
// receiving account. Sends run concurrently; a failure to one administrator
// never affects the others.
func (s *RequestService) broadcast(ctx context.Context, selfID int64, message types.Message) {
	admins := s.adminsFor(selfID)
	if len(admins) == 0 {
		s.logger.WithField("self_id", selfID).Warn("No administrators configured for request notification")
		return
	}

	var wg sync.WaitGroup
	for _, adminID := range admins {
		wg.Add(1)
		go func(adminID int64) {
			defer wg.Done()
			if _, err := s.bot.SendPrivateMessage(ctx, adminID, message); err != nil {
				s.logger.WithError(err).WithField("admin_id", adminID).Error("Failed to send request notification")
			}
		}(adminID)
	}
	wg.Wait()
}

func (s *RequestService) saveRecord(ctx context.Context, kind models.RequestKind, identity int64, record models.PendingRequest) error {
	value, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal pending request: %w", err)
	}

	key := constants.RequestKeyPrefix + models.RequestRecordKey(kind, identity)
	ttl := time.Duration(constants.RequestTTLSeconds) * time.Second
	if err := s.store.SetWithTTL(ctx, key, string(value), ttl); err != nil {
		return apperrors.NewStoreError("set", err).WithContext("key", key)
	}
	return nil
}

// resolve executes an administrator's approve/deny decision.
func (s *RequestService) resolve(ctx context.Context, pc *Context, match []string) error {
	action, typ, id := match[1], match[2], match[3]
	approve := action == "同意"

	kind := models.RequestKindFriend
	if typ == "群邀请" {
		kind = models.RequestKindGroup
	}

	key := constants.RequestKeyPrefix + typIdentityKey(kind, id)

	value, found, err := pc.Store.Get(ctx, key)
	if err != nil {
		pc.Logger.WithError(err).Error("Failed to look up pending request")
		return pc.Reply(ctx, types.Message{types.Text("处理请求时发生错误，请查看后台日志")})
	}
	if !found {
		return pc.Reply(ctx, types.Message{types.Text("未找到相关请求或请求已过期")})
	}

	var record models.PendingRequest
	if err := json.Unmarshal([]byte(value), &record); err != nil {
		pc.Logger.WithError(err).Error("Failed to decode pending request")
		return pc.Reply(ctx, types.Message{types.Text("处理请求时发生错误，请查看后台日志")})
	}

	if record.Kind == models.RequestKindFriend {
		err = pc.Bot.SetFriendAddRequest(ctx, record.ApprovalToken, approve)
	} else {
		err = pc.Bot.SetGroupAddRequest(ctx, record.ApprovalToken, models.SubTypeInvite, approve, "")
	}

	if err != nil {
		if apperrors.IsAlreadyProcessed(err) {
			// Stale record; the platform has already settled the request.
			if delErr := pc.Store.Delete(ctx, key); delErr != nil {
				pc.Logger.WithError(delErr).Warn("Failed to delete stale pending request")
			}
			return pc.Reply(ctx, types.Message{types.Text(fmt.Sprintf("该%s请求已被处理过", typ))})
		}

		// Keep the record so a retry stays possible.
		pc.Logger.WithError(err).WithFields(logrus.Fields{
			"kind": record.Kind,
			"id":   id,
		}).Error("Failed to execute request decision")
		return pc.Reply(ctx, types.Message{types.Text(fmt.Sprintf("%s失败：%s", action, apperrors.GetUserMessage(err)))})
	}

	if err := pc.Store.Delete(ctx, key); err != nil {
		pc.Logger.WithError(err).Warn("Failed to delete settled pending request")
	}

	outcome := "好友申请"
	if record.Kind == models.RequestKindGroup {
		outcome = "群邀请"
	}
	return pc.Reply(ctx, types.Message{types.Text(fmt.Sprintf("已%s%s", action, outcome))})
}

func typIdentityKey(kind models.RequestKind, id string) string {
	return fmt.Sprintf("%s_%s", kind, id)
}
