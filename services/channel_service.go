package services

import (
	"context"
	"log/slog"
	"strings"
	"team-chat/auth"
	"team-chat/domain"
	"team-chat/repositories"

	"github.com/samber/lo"
)

// ChannelService manages persisted channels and their durable membership.
// Realtime room subscriptions live in the runtime and are not touched here.
type ChannelService struct {
	log      *slog.Logger
	channels repositories.IChannelRepository
	users    repositories.IUserRepository
}

func NewChannelService(log *slog.Logger, channels repositories.IChannelRepository, users repositories.IUserRepository) *ChannelService {
	return &ChannelService{log: log, channels: channels, users: users}
}

func (s *ChannelService) List(_ context.Context) ([]domain.ChannelSummary, error) {
	channels, err := s.channels.ListChannels()
	if err != nil {
		return nil, err
	}
	creators := lo.Uniq(lo.Map(channels, func(c domain.Channel, _ int) domain.Identity { return c.CreatedBy }))
	profiles, err := s.users.GetProfiles(creators)
	if err != nil {
		return nil, err
	}
	return lo.Map(channels, func(c domain.Channel, _ int) domain.ChannelSummary {
		return domain.ChannelSummary{
			ID:          c.ID.String(),
			Name:        c.Name,
			Description: c.Description,
			IsPrivate:   c.IsPrivate,
			MemberCount: len(c.Members),
			CreatedBy:   sender(c.CreatedBy, profiles),
			CreatedAt:   c.CreatedAt,
		}
	}), nil
}

func (s *ChannelService) Create(_ context.Context, cmd domain.CreateChannelCommand) (domain.ChannelDetails, error) {
	req := auth.ChannelRequest{
		Name:        strings.TrimSpace(cmd.Name),
		Description: strings.TrimSpace(cmd.Description),
	}
	if err := auth.ValidateChannel(req); err != nil {
		return domain.ChannelDetails{}, err
	}

	channel, err := s.channels.CreateChannel(domain.Channel{
		Name:        req.Name,
		Description: req.Description,
		IsPrivate:   cmd.IsPrivate,
		CreatedBy:   cmd.CreatorID,
	})
	if err != nil {
		return domain.ChannelDetails{}, err
	}
	s.log.Info("Channel created", "id", channel.ID, "name", channel.Name, "creator", cmd.CreatorID)
	return s.details(channel)
}

func (s *ChannelService) Get(_ context.Context, id domain.ChannelID) (domain.ChannelDetails, error) {
	channel, err := s.channels.GetChannel(id)
	if err != nil {
		return domain.ChannelDetails{}, err
	}
	return s.details(channel)
}

// Join adds the identity to the channel's persisted members. Joining twice
// leaves a single entry.
func (s *ChannelService) Join(_ context.Context, id domain.ChannelID, identity domain.Identity) (domain.ChannelDetails, error) {
	channel, err := s.channels.AddMember(id, identity)
	if err != nil {
		return domain.ChannelDetails{}, err
	}
	return s.details(channel)
}

func (s *ChannelService) Leave(_ context.Context, id domain.ChannelID, identity domain.Identity) (domain.ChannelDetails, error) {
	channel, err := s.channels.RemoveMember(id, identity)
	if err != nil {
		return domain.ChannelDetails{}, err
	}
	return s.details(channel)
}

func (s *ChannelService) details(c domain.Channel) (domain.ChannelDetails, error) {
	profiles, err := s.users.GetProfiles(append([]domain.Identity{c.CreatedBy}, c.Members...))
	if err != nil {
		return domain.ChannelDetails{}, err
	}
	return domain.ChannelDetails{
		ID:          c.ID.String(),
		Name:        c.Name,
		Description: c.Description,
		IsPrivate:   c.IsPrivate,
		CreatedBy:   sender(c.CreatedBy, profiles),
		Members: lo.Map(c.Members, func(id domain.Identity, _ int) domain.WireSender {
			return sender(id, profiles)
		}),
		CreatedAt: c.CreatedAt,
	}, nil
}

func sender(id domain.Identity, profiles map[domain.Identity]domain.SenderProfile) domain.WireSender {
	profile, ok := profiles[id]
	if !ok {
		return domain.WireSender{ID: id.String()}
	}
	return domain.WireSender{
		ID:          id.String(),
		Username:    profile.Username,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
	}
}
