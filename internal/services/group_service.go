package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"linkup-chat/internal/delivery"
	"linkup-chat/internal/domain/conversation"
	"linkup-chat/internal/domain/user"
	"linkup-chat/internal/events"
	"linkup-chat/internal/repository"
	linkup_errors "linkup-chat/pkg/errors"
	"linkup-chat/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GroupService owns group conversations: creation, messaging, membership and
// admin transitions, and renaming. All membership changes append system
// messages to the same log as user messages and fan out live updates.
type GroupService struct {
	db       *gorm.DB
	convs    repository.ConversationRepository
	users    repository.UserRepository
	delivery *delivery.Engine
	log      *logger.Logger
}

func NewGroupService(db *gorm.DB, convs repository.ConversationRepository, users repository.UserRepository, engine *delivery.Engine, log *logger.Logger) *GroupService {
	return &GroupService{db: db, convs: convs, users: users, delivery: engine, log: log}
}

// CreateGroup creates a named group with the creator as admin. The creator
// must name at least two other participants; every id must resolve to an
// existing user. An optional seed message is stored as the first entry.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID uuid.UUID, name string, participantIDs []uuid.UUID, initialMessage string) (GroupDetails, error) {
	name = strings.TrimSpace(name)
	if name == "" || countOthers(participantIDs, creatorID) < 2 {
		return GroupDetails{}, linkup_errors.ErrInvalidInput
	}

	ids := dedupe(participantIDs)
	if !contains(ids, creatorID) {
		ids = append(ids, creatorID)
	}

	members, err := s.resolveUsers(ctx, ids)
	if err != nil {
		return GroupDetails{}, err
	}

	now := time.Now()
	conv := conversation.Conversation{
		ID:           uuid.New(),
		IsGroup:      true,
		GroupName:    nullString(name),
		GroupAdminID: uuid.NullUUID{UUID: creatorID, Valid: true},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i, id := range ids {
		conv.Participants = append(conv.Participants, conversation.Participant{
			ConversationID: conv.ID,
			UserID:         id,
			Position:       i,
			JoinedAt:       now,
		})
	}

	initialMessage = strings.TrimSpace(initialMessage)
	if initialMessage != "" {
		seed := newUserMessage(conv.ID, creatorID, initialMessage)
		seed.Seq = 1
		conv.Messages = append(conv.Messages, seed)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repository.NewConversationRepository(tx).Create(ctx, &conv)
	})
	if err != nil {
		return GroupDetails{}, err
	}

	s.delivery.FanOut(conv.ParticipantIDs(), creatorID, events.TypeNewGroupConversation, events.GroupEvent{
		Conversation: groupState(conv, members),
	})

	return s.details(ctx, conv, members, creatorID)
}

// SendGroupMessage persists a message to a group the sender belongs to and
// fans it out to every other participant's live connection.
func (s *GroupService) SendGroupMessage(ctx context.Context, senderID, groupID uuid.UUID, content string) (MessageWithSender, error) {
	conv, err := s.getGroup(ctx, groupID)
	if err != nil {
		return MessageWithSender{}, err
	}
	if !conv.HasParticipant(senderID) {
		return MessageWithSender{}, linkup_errors.ErrForbidden
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return MessageWithSender{}, linkup_errors.ErrInvalidInput
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return MessageWithSender{}, err
	}

	msg := newUserMessage(conv.ID, senderID, content)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return repository.NewConversationRepository(tx).AppendMessage(ctx, &msg)
	})
	if err != nil {
		return MessageWithSender{}, err
	}

	s.delivery.FanOut(conv.ParticipantIDs(), senderID, events.TypeNewGroupMessage, events.MessageEvent{
		ConversationID: conv.ID.String(),
		Message:        messageBody(msg),
		Sender:         userSummary(sender),
		GroupName:      conv.GroupName.String,
	})

	return MessageWithSender{Message: msg, Sender: sender}, nil
}

// GetGroupMessages returns the ordered history of a group the caller belongs
// to, marking every message as read by the caller.
func (s *GroupService) GetGroupMessages(ctx context.Context, userID, groupID uuid.UUID) (GroupMessages, error) {
	conv, err := s.getGroup(ctx, groupID)
	if err != nil {
		return GroupMessages{}, err
	}
	if !conv.HasParticipant(userID) {
		return GroupMessages{}, linkup_errors.ErrForbidden
	}

	var msgs []conversation.Message
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		if err := repo.MarkAllRead(ctx, conv.ID, userID); err != nil {
			return err
		}
		msgs, err = repo.GetMessages(ctx, conv.ID)
		return err
	})
	if err != nil {
		return GroupMessages{}, err
	}

	withSenders, err := attachSenders(ctx, s.users, msgs)
	if err != nil {
		return GroupMessages{}, err
	}
	members, err := s.resolveUsers(ctx, conv.ParticipantIDs())
	if err != nil {
		return GroupMessages{}, err
	}

	return GroupMessages{
		GroupID:      conv.ID,
		GroupName:    conv.GroupName.String,
		IsAdmin:      conv.IsAdmin(userID),
		Participants: members,
		Messages:     withSenders,
	}, nil
}

// AddParticipants adds new members to a group. Admin-only. Ids already in
// the group are ignored; if nothing new remains the call fails with a
// conflict. A system message naming the additions is appended and the
// updated group state is fanned out.
func (s *GroupService) AddParticipants(ctx context.Context, requesterID, groupID uuid.UUID, participantIDs []uuid.UUID) (GroupDetails, error) {
	if len(participantIDs) == 0 {
		return GroupDetails{}, linkup_errors.ErrInvalidInput
	}

	conv, err := s.getGroup(ctx, groupID)
	if err != nil {
		return GroupDetails{}, err
	}
	if !conv.IsAdmin(requesterID) {
		return GroupDetails{}, linkup_errors.ErrForbidden
	}

	candidates, err := s.resolveUsers(ctx, dedupe(participantIDs))
	if err != nil {
		return GroupDetails{}, err
	}

	var newUsers []user.User
	for _, u := range candidates {
		if !conv.HasParticipant(u.ID) {
			newUsers = append(newUsers, u)
		}
	}
	if len(newUsers) == 0 {
		return GroupDetails{}, linkup_errors.ErrConflict
	}

	actor, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return GroupDetails{}, err
	}

	names := make([]string, 0, len(newUsers))
	nextPos := nextPosition(conv)
	parts := make([]conversation.Participant, 0, len(newUsers))
	now := time.Now()
	for i, u := range newUsers {
		names = append(names, u.Name)
		parts = append(parts, conversation.Participant{
			ConversationID: conv.ID,
			UserID:         u.ID,
			Position:       nextPos + i,
			JoinedAt:       now,
		})
	}

	sysMsg := newSystemMessage(conv.ID, requesterID,
		fmt.Sprintf("%s added %s to the group", actor.Name, strings.Join(names, ", ")))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		if err := repo.AddParticipants(ctx, parts); err != nil {
			return err
		}
		return repo.AppendMessage(ctx, &sysMsg)
	})
	if err != nil {
		return GroupDetails{}, err
	}

	conv.Participants = append(conv.Participants, parts...)
	members, err := s.resolveUsers(ctx, conv.ParticipantIDs())
	if err != nil {
		return GroupDetails{}, err
	}

	s.delivery.FanOut(conv.ParticipantIDs(), requesterID, events.TypeGroupUpdated, events.GroupEvent{
		Conversation: groupState(conv, members),
	})

	return s.details(ctx, conv, members, requesterID)
}

// RemoveParticipant removes a member from a group. The admin may remove
// anyone but themselves only by leaving; a non-admin may only remove
// themselves. When the admin leaves with others remaining, the first
// remaining participant in insertion order becomes admin and two system
// messages are appended in order: the leave, then the new-admin
// announcement. When the last participant leaves, the group is deleted.
func (s *GroupService) RemoveParticipant(ctx context.Context, requesterID, groupID, targetID uuid.UUID) (RemoveResult, error) {
	conv, err := s.getGroup(ctx, groupID)
	if err != nil {
		return RemoveResult{}, err
	}
	if !conv.IsAdmin(requesterID) && requesterID != targetID {
		return RemoveResult{}, linkup_errors.ErrForbidden
	}
	if !conv.HasParticipant(targetID) {
		return RemoveResult{}, linkup_errors.ErrNotFound
	}
	if conv.IsAdmin(targetID) && requesterID != targetID {
		return RemoveResult{}, linkup_errors.ErrForbidden
	}

	// Admin self-leave with others remaining: reassign to the first
	// remaining participant in insertion order. Arbitrary but deterministic.
	var newAdmin *user.User
	if conv.IsAdmin(targetID) && len(conv.Participants) > 1 {
		for _, p := range conv.Participants {
			if p.UserID != targetID {
				u, err := s.users.GetByID(ctx, p.UserID)
				if err != nil {
					return RemoveResult{}, err
				}
				newAdmin = &u
				break
			}
		}
	}

	target, err := s.users.GetByID(ctx, targetID)
	if err != nil {
		return RemoveResult{}, err
	}

	var leaveText string
	if requesterID == targetID {
		leaveText = fmt.Sprintf("%s left the group", target.Name)
	} else {
		actor, err := s.users.GetByID(ctx, requesterID)
		if err != nil {
			return RemoveResult{}, err
		}
		leaveText = fmt.Sprintf("%s removed %s from the group", actor.Name, target.Name)
	}

	remaining := len(conv.Participants) - 1
	groupDeleted := remaining == 0

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)

		if err := repo.RemoveParticipant(ctx, conv.ID, targetID); err != nil {
			return err
		}

		// Nobody left to read anything: drop the whole conversation instead
		// of persisting farewell messages into an orphan.
		if groupDeleted {
			return repo.Delete(ctx, conv.ID)
		}

		if newAdmin != nil {
			conv.GroupAdminID = uuid.NullUUID{UUID: newAdmin.ID, Valid: true}
			if err := repo.Update(ctx, &conv); err != nil {
				return err
			}
		}

		leaveMsg := newSystemMessage(conv.ID, requesterID, leaveText)
		if err := repo.AppendMessage(ctx, &leaveMsg); err != nil {
			return err
		}
		if newAdmin != nil {
			adminMsg := newSystemMessage(conv.ID, requesterID,
				fmt.Sprintf("%s is now the group admin", newAdmin.Name))
			if err := repo.AppendMessage(ctx, &adminMsg); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return RemoveResult{}, err
	}

	if groupDeleted {
		return RemoveResult{GroupDeleted: true}, nil
	}

	kept := conv.Participants[:0]
	for _, p := range conv.Participants {
		if p.UserID != targetID {
			kept = append(kept, p)
		}
	}
	conv.Participants = kept

	members, err := s.resolveUsers(ctx, conv.ParticipantIDs())
	if err != nil {
		return RemoveResult{}, err
	}

	s.delivery.FanOut(conv.ParticipantIDs(), uuid.Nil, events.TypeGroupUpdated, events.GroupEvent{
		Conversation: groupState(conv, members),
	})
	s.delivery.Push(targetID, events.TypeRemovedFromGroup, events.RemovedFromGroupEvent{
		GroupID:   conv.ID.String(),
		GroupName: conv.GroupName.String,
	})

	details, err := s.details(ctx, conv, members, requesterID)
	if err != nil {
		return RemoveResult{}, err
	}
	return RemoveResult{Group: &details}, nil
}

// RenameGroup changes a group's name. Admin-only; the new name must be
// non-empty. A system message records the change.
func (s *GroupService) RenameGroup(ctx context.Context, requesterID, groupID uuid.UUID, newName string) (GroupDetails, error) {
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return GroupDetails{}, linkup_errors.ErrInvalidInput
	}

	conv, err := s.getGroup(ctx, groupID)
	if err != nil {
		return GroupDetails{}, err
	}
	if !conv.IsAdmin(requesterID) {
		return GroupDetails{}, linkup_errors.ErrForbidden
	}

	actor, err := s.users.GetByID(ctx, requesterID)
	if err != nil {
		return GroupDetails{}, err
	}

	conv.GroupName = nullString(newName)
	sysMsg := newSystemMessage(conv.ID, requesterID,
		fmt.Sprintf("%s changed the group name to %q", actor.Name, newName))

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := repository.NewConversationRepository(tx)
		if err := repo.Update(ctx, &conv); err != nil {
			return err
		}
		return repo.AppendMessage(ctx, &sysMsg)
	})
	if err != nil {
		return GroupDetails{}, err
	}

	members, err := s.resolveUsers(ctx, conv.ParticipantIDs())
	if err != nil {
		return GroupDetails{}, err
	}

	s.delivery.FanOut(conv.ParticipantIDs(), requesterID, events.TypeGroupUpdated, events.GroupEvent{
		Conversation: groupState(conv, members),
	})

	return s.details(ctx, conv, members, requesterID)
}

// ListGroups returns every group the caller belongs to, most recently active
// first.
func (s *GroupService) ListGroups(ctx context.Context, userID uuid.UUID) ([]GroupDetails, error) {
	convs, err := s.convs.ListGroupsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]GroupDetails, 0, len(convs))
	for _, conv := range convs {
		members, err := s.resolveUsers(ctx, conv.ParticipantIDs())
		if err != nil {
			return nil, err
		}
		details, err := s.details(ctx, conv, members, userID)
		if err != nil {
			return nil, err
		}
		out = append(out, details)
	}
	return out, nil
}

// GetGroupDetails returns the full projection of one group the caller
// belongs to.
func (s *GroupService) GetGroupDetails(ctx context.Context, userID, groupID uuid.UUID) (GroupDetails, error) {
	conv, err := s.getGroup(ctx, groupID)
	if err != nil {
		return GroupDetails{}, err
	}
	if !conv.HasParticipant(userID) {
		return GroupDetails{}, linkup_errors.ErrForbidden
	}

	members, err := s.resolveUsers(ctx, conv.ParticipantIDs())
	if err != nil {
		return GroupDetails{}, err
	}
	return s.details(ctx, conv, members, userID)
}

// getGroup loads a conversation and hides non-groups behind NotFound.
func (s *GroupService) getGroup(ctx context.Context, groupID uuid.UUID) (conversation.Conversation, error) {
	conv, err := s.convs.GetByID(ctx, groupID)
	if err != nil {
		return conversation.Conversation{}, err
	}
	if !conv.IsGroup {
		return conversation.Conversation{}, linkup_errors.ErrNotFound
	}
	return conv, nil
}

// resolveUsers maps ids to users, failing with NotFound when any id is
// unknown.
func (s *GroupService) resolveUsers(ctx context.Context, ids []uuid.UUID) ([]user.User, error) {
	found, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(found) != len(ids) {
		return nil, linkup_errors.ErrNotFound
	}
	byID := make(map[uuid.UUID]user.User, len(found))
	for _, u := range found {
		byID[u.ID] = u
	}
	// Preserve the requested order.
	out := make([]user.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out, nil
}

func (s *GroupService) details(ctx context.Context, conv conversation.Conversation, members []user.User, viewerID uuid.UUID) (GroupDetails, error) {
	var admin user.User
	if conv.GroupAdminID.Valid {
		for _, u := range members {
			if u.ID == conv.GroupAdminID.UUID {
				admin = u
				break
			}
		}
	}

	last, err := s.lastMessage(ctx, conv.ID)
	if err != nil {
		return GroupDetails{}, err
	}

	return GroupDetails{
		ID:               conv.ID,
		Name:             conv.GroupName.String,
		IsAdmin:          conv.IsAdmin(viewerID),
		CreatedAt:        conv.CreatedAt,
		Admin:            admin,
		Participants:     members,
		ParticipantCount: len(members),
		LastMessage:      last,
	}, nil
}

func (s *GroupService) lastMessage(ctx context.Context, conversationID uuid.UUID) (*LastMessage, error) {
	msg, err := s.convs.GetLastMessage(ctx, conversationID)
	if errors.Is(err, linkup_errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	senderName := "Unknown"
	if sender, err := s.users.GetByID(ctx, msg.SenderID); err == nil {
		senderName = sender.Name
	}
	return &LastMessage{
		Text:            msg.Content,
		Sender:          senderName,
		Timestamp:       msg.Timestamp,
		IsSystemMessage: msg.IsSystemMessage,
	}, nil
}

// newSystemMessage builds a server-synthesized membership/admin/rename
// record, attributed to the acting user.
func newSystemMessage(conversationID, actorID uuid.UUID, content string) conversation.Message {
	m := newUserMessage(conversationID, actorID, content)
	m.IsSystemMessage = true
	return m
}

func groupState(conv conversation.Conversation, members []user.User) events.GroupState {
	summaries := make([]events.UserSummary, 0, len(members))
	for _, u := range members {
		summaries = append(summaries, userSummary(u))
	}
	adminID := ""
	if conv.GroupAdminID.Valid {
		adminID = conv.GroupAdminID.UUID.String()
	}
	return events.GroupState{
		ID:           conv.ID.String(),
		Name:         conv.GroupName.String,
		AdminID:      adminID,
		Participants: summaries,
	}
}

func nextPosition(conv conversation.Conversation) int {
	next := 0
	for _, p := range conv.Participants {
		if p.Position >= next {
			next = p.Position + 1
		}
	}
	return next
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func countOthers(ids []uuid.UUID, self uuid.UUID) int {
	seen := make(map[uuid.UUID]struct{})
	for _, id := range ids {
		if id != self {
			seen[id] = struct{}{}
		}
	}
	return len(seen)
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}

func contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
