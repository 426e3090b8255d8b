package httpdto

import (
	"time"

	"linkup-chat/internal/services"
)

type CreateGroupRequest struct {
	Name           string   `json:"name"`
	Participants   []string `json:"participants"`
	InitialMessage string   `json:"initialMessage"`
}

type AddParticipantsRequest struct {
	Participants []string `json:"participants"`
}

type RenameGroupRequest struct {
	GroupName string `json:"groupName"`
}

type GroupResponse struct {
	ID               string               `json:"_id"`
	GroupName        string               `json:"groupName"`
	IsAdmin          bool                 `json:"isAdmin"`
	CreatedAt        time.Time            `json:"createdAt"`
	GroupAdmin       UserResponse         `json:"groupAdmin"`
	Participants     []UserResponse       `json:"participants"`
	ParticipantCount int                  `json:"participantCount"`
	LastMessage      *LastMessageResponse `json:"lastMessage,omitempty"`
}

type GroupMessagesResponse struct {
	GroupID      string            `json:"groupId"`
	GroupName    string            `json:"groupName"`
	IsAdmin      bool              `json:"isAdmin"`
	Participants []UserResponse    `json:"participants"`
	Messages     []MessageResponse `json:"messages"`
}

type RemoveParticipantResponse struct {
	GroupDeleted bool           `json:"groupDeleted"`
	Group        *GroupResponse `json:"group,omitempty"`
}

func ToGroupResponse(g services.GroupDetails) GroupResponse {
	participants := make([]UserResponse, 0, len(g.Participants))
	for _, u := range g.Participants {
		participants = append(participants, ToUserResponse(u))
	}
	return GroupResponse{
		ID:               g.ID.String(),
		GroupName:        g.Name,
		IsAdmin:          g.IsAdmin,
		CreatedAt:        g.CreatedAt,
		GroupAdmin:       ToUserResponse(g.Admin),
		Participants:     participants,
		ParticipantCount: g.ParticipantCount,
		LastMessage:      toLastMessageResponse(g.LastMessage),
	}
}

func ToGroupResponses(groups []services.GroupDetails) []GroupResponse {
	out := make([]GroupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, ToGroupResponse(g))
	}
	return out
}

func ToGroupMessagesResponse(gm services.GroupMessages) GroupMessagesResponse {
	participants := make([]UserResponse, 0, len(gm.Participants))
	for _, u := range gm.Participants {
		participants = append(participants, ToUserResponse(u))
	}
	return GroupMessagesResponse{
		GroupID:      gm.GroupID.String(),
		GroupName:    gm.GroupName,
		IsAdmin:      gm.IsAdmin,
		Participants: participants,
		Messages:     ToMessageResponses(gm.Messages),
	}
}

func ToRemoveParticipantResponse(r services.RemoveResult) RemoveParticipantResponse {
	resp := RemoveParticipantResponse{GroupDeleted: r.GroupDeleted}
	if r.Group != nil {
		g := ToGroupResponse(*r.Group)
		resp.Group = &g
	}
	return resp
}
