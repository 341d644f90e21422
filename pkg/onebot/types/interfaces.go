package types

import "context"

// Client is the OneBot action API surface the services depend on.
type Client interface {
	SendPrivateMessage(ctx context.Context, userID int64, message Message) (*SendMessageResult, error)
	SendGroupMessage(ctx context.Context, groupID int64, message Message) (*SendMessageResult, error)
	GetStrangerInfo(ctx context.Context, userID int64) (*StrangerInfo, error)
	GetGroupInfo(ctx context.Context, groupID int64) (*GroupInfo, error)
	GetLoginInfo(ctx context.Context) (*LoginInfo, error)
	GetFriendList(ctx context.Context) ([]Friend, error)

	// SetFriendAddRequest approves or denies a pending friend request
	// identified by its opaque flag.
	SetFriendAddRequest(ctx context.Context, flag string, approve bool) error

	// SetGroupAddRequest approves or denies a pending group request. For
	// invites subType is "invite"; reason is only used when denying.
	SetGroupAddRequest(ctx context.Context, flag, subType string, approve bool, reason string) error

	// SendLike sends up to times profile likes to the user.
	SendLike(ctx context.Context, userID int64, times int) error
}
