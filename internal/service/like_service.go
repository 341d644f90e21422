package service

import (
	"context"
	"fmt"
	"regexp"

	"github.com/kvcfdd/yunzai-go/internal/constants"
	"github.com/kvcfdd/yunzai-go/pkg/onebot/types"

	"github.com/sirupsen/logrus"
)

var likePattern = regexp.MustCompile(`^#*(我要|给我)?(资料卡)?(点赞|赞我)$`)

// LikeService sends profile likes to the requesting user in bounded batches.
type LikeService struct {
	bot    types.Client
	logger *logrus.Logger

	// checkFriend gates liking behind friend-list membership.
	checkFriend bool
}

func NewLikeService(bot types.Client, checkFriend bool, logger *logrus.Logger) *LikeService {
	return &LikeService{
		bot:         bot,
		checkFriend: checkFriend,
		logger:      logger,
	}
}

func (s *LikeService) Routes() []Route {
	return []Route{
		{
			Name:    "like",
			Pattern: likePattern,
			Handler: s.like,
		},
	}
}

func (s *LikeService) like(ctx context.Context, pc *Context, _ []string) error {
	userID := pc.UserID

	if s.checkFriend {
		isFriend, err := s.isFriend(ctx, userID)
		if err != nil {
			pc.Logger.WithError(err).Warn("Friend list lookup failed, skipping friend gate")
		} else if !isFriend {
			return pc.Reply(ctx, types.Message{
				types.Text("非好友不给赞☹️"),
				types.Image(fmt.Sprintf("http://api.yujn.cn/api/pa.php?qq=%d", userID)),
			})
		}
	}

	totalLiked := 0

	// Up to five batches of ten, stopping at fifty. The platform rejects
	// further likes once the daily allowance is spent.
	for i := 0; i < constants.LikeMaxBatches; i++ {
		err := s.bot.SendLike(ctx, userID, constants.LikeBatchSize)
		if err != nil {
			if i == 0 {
				return pc.Reply(ctx, types.Message{
					types.Text("今天已经赞过啦笨蛋！"),
					types.Image(fmt.Sprintf("http://api.yujn.cn/api/pa.php?qq=%d", userID)),
				})
			}
			break
		}

		totalLiked += constants.LikeBatchSize
		if totalLiked >= constants.LikeTargetTotal {
			break
		}
	}

	if totalLiked > 0 {
		return pc.Reply(ctx, types.Message{
			types.Text(fmt.Sprintf("我已经赞你%d次,记得要回赞哦~", totalLiked)),
			types.Image(fmt.Sprintf("http://api.yujn.cn/api/ju.php?qq=%d", userID)),
		})
	}

	return nil
}

func (s *LikeService) isFriend(ctx context.Context, userID int64) (bool, error) {
	friends, err := s.bot.GetFriendList(ctx)
	if err != nil {
		return false, err
	}
	for _, f := range friends {
		if f.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}
