//go:generate go run go.uber.org/mock/mockgen -source=services.go -destination=../mocks/mock_services.go -package=mocks
package services

import (
	"context"
	"team-chat/domain"
)

type IAuthService interface {
	Signup(cmd domain.SignupCommand) (domain.Session, error)
	Login(cmd domain.LoginCommand) (domain.Session, error)
	Me(identity domain.Identity) (domain.UserView, error)
}

type IChannelService interface {
	List(ctx context.Context) ([]domain.ChannelSummary, error)
	Create(ctx context.Context, cmd domain.CreateChannelCommand) (domain.ChannelDetails, error)
	Get(ctx context.Context, id domain.ChannelID) (domain.ChannelDetails, error)
	Join(ctx context.Context, id domain.ChannelID, identity domain.Identity) (domain.ChannelDetails, error)
	Leave(ctx context.Context, id domain.ChannelID, identity domain.Identity) (domain.ChannelDetails, error)
}

type IChatService interface {
	PostMessage(ctx context.Context, cmd domain.PostMessageCommand) (domain.WireMessage, error)
	DeleteMessage(ctx context.Context, cmd domain.DeleteMessageCommand) error
	GetMessages(ctx context.Context, cmd domain.GetMessagesCommand) (domain.Page, error)
	SearchMessages(ctx context.Context, cmd domain.SearchMessagesCommand) ([]domain.WireMessage, error)
}
