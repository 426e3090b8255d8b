package services

import (
	"context"
	"errors"
	"testing"

	"linkup-chat/internal/domain/conversation"
	"linkup-chat/internal/domain/user"
	linkup_errors "linkup-chat/pkg/errors"

	"github.com/google/uuid"
)

func newTestGroup(t *testing.T, env *testEnv, creator user.User, others ...user.User) GroupDetails {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(others))
	for _, u := range others {
		ids = append(ids, u.ID)
	}
	g, err := env.groups.CreateGroup(context.Background(), creator.ID, "weekend plans", ids, "")
	if err != nil {
		t.Fatalf("CreateGroup error: %v", err)
	}
	return g
}

func TestCreateGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	t.Run("requires a name and at least two others", func(t *testing.T) {
		if _, err := env.groups.CreateGroup(ctx, alice.ID, "  ", []uuid.UUID{bob.ID, carol.ID}, ""); !errors.Is(err, linkup_errors.ErrInvalidInput) {
			t.Errorf("blank name: got %v, want ErrInvalidInput", err)
		}
		if _, err := env.groups.CreateGroup(ctx, alice.ID, "duo", []uuid.UUID{bob.ID}, ""); !errors.Is(err, linkup_errors.ErrInvalidInput) {
			t.Errorf("one other: got %v, want ErrInvalidInput", err)
		}
		// The creator in the list does not count towards the minimum.
		if _, err := env.groups.CreateGroup(ctx, alice.ID, "duo", []uuid.UUID{alice.ID, bob.ID}, ""); !errors.Is(err, linkup_errors.ErrInvalidInput) {
			t.Errorf("creator plus one: got %v, want ErrInvalidInput", err)
		}
	})

	t.Run("rejects unknown participants", func(t *testing.T) {
		_, err := env.groups.CreateGroup(ctx, alice.ID, "ghosts", []uuid.UUID{bob.ID, uuid.New()}, "")
		if !errors.Is(err, linkup_errors.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("creator becomes admin and member", func(t *testing.T) {
		bobConn := env.connect(bob.ID)
		aliceConn := env.connect(alice.ID)

		g, err := env.groups.CreateGroup(ctx, alice.ID, "book club", []uuid.UUID{bob.ID, carol.ID}, "welcome all")
		if err != nil {
			t.Fatalf("CreateGroup error: %v", err)
		}
		if !g.IsAdmin {
			t.Errorf("creator is not admin")
		}
		if g.Admin.ID != alice.ID {
			t.Errorf("got admin %s, want alice", g.Admin.ID)
		}
		if g.ParticipantCount != 3 {
			t.Errorf("got %d participants, want 3", g.ParticipantCount)
		}
		if g.LastMessage == nil || g.LastMessage.Text != "welcome all" {
			t.Errorf("seed message missing: %+v", g.LastMessage)
		}

		if got := bobConn.lastEventType(); got != "newGroupConversation" {
			t.Errorf("member got event %q, want newGroupConversation", got)
		}
		if got := aliceConn.lastEventType(); got != "" {
			t.Errorf("creator should not be notified, got %q", got)
		}
	})
}

func TestSendGroupMessage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	dave := env.createUser(t, "dave")

	g := newTestGroup(t, env, alice, bob, carol)

	t.Run("non-members are rejected", func(t *testing.T) {
		_, err := env.groups.SendGroupMessage(ctx, dave.ID, g.ID, "let me in")
		if !errors.Is(err, linkup_errors.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("unknown group is rejected", func(t *testing.T) {
		_, err := env.groups.SendGroupMessage(ctx, alice.ID, uuid.New(), "hello?")
		if !errors.Is(err, linkup_errors.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("fans out to other members only", func(t *testing.T) {
		bobConn := env.connect(bob.ID)
		carolConn := env.connect(carol.ID)
		aliceConn := env.connect(alice.ID)

		msg, err := env.groups.SendGroupMessage(ctx, alice.ID, g.ID, "meeting at 5")
		if err != nil {
			t.Fatalf("SendGroupMessage error: %v", err)
		}
		if msg.Sender.ID != alice.ID {
			t.Errorf("got sender %s, want alice", msg.Sender.ID)
		}

		if got := bobConn.lastEventType(); got != "newGroupMessage" {
			t.Errorf("bob got event %q, want newGroupMessage", got)
		}
		if got := carolConn.lastEventType(); got != "newGroupMessage" {
			t.Errorf("carol got event %q, want newGroupMessage", got)
		}
		if got := aliceConn.lastEventType(); got != "" {
			t.Errorf("sender should not be notified, got %q", got)
		}

		events := bobConn.received()
		last := events[len(events)-1]
		if last["groupName"] != "weekend plans" {
			t.Errorf("got groupName %v, want weekend plans", last["groupName"])
		}
	})
}

func TestGetGroupMessages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	dave := env.createUser(t, "dave")

	g := newTestGroup(t, env, alice, bob, carol)
	if _, err := env.groups.SendGroupMessage(ctx, alice.ID, g.ID, "first"); err != nil {
		t.Fatalf("SendGroupMessage error: %v", err)
	}
	if _, err := env.groups.SendGroupMessage(ctx, bob.ID, g.ID, "second"); err != nil {
		t.Fatalf("SendGroupMessage error: %v", err)
	}

	t.Run("non-members are rejected", func(t *testing.T) {
		_, err := env.groups.GetGroupMessages(ctx, dave.ID, g.ID)
		if !errors.Is(err, linkup_errors.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("returns ordered history and marks read", func(t *testing.T) {
		got, err := env.groups.GetGroupMessages(ctx, carol.ID, g.ID)
		if err != nil {
			t.Fatalf("GetGroupMessages error: %v", err)
		}
		if got.GroupName != "weekend plans" {
			t.Errorf("got group name %q", got.GroupName)
		}
		if got.IsAdmin {
			t.Errorf("carol should not be admin")
		}
		if len(got.Messages) != 2 {
			t.Fatalf("got %d messages, want 2", len(got.Messages))
		}
		if got.Messages[0].Content != "first" || got.Messages[1].Content != "second" {
			t.Errorf("messages out of order")
		}
		for _, m := range got.Messages {
			readers := make(map[uuid.UUID]bool)
			for _, r := range m.ReadBy {
				readers[r.UserID] = true
			}
			if !readers[carol.ID] {
				t.Errorf("message %q not marked read by carol", m.Content)
			}
		}
	})
}

func TestAddParticipants(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	dave := env.createUser(t, "dave")
	erin := env.createUser(t, "erin")

	g := newTestGroup(t, env, alice, bob, carol)

	t.Run("only the admin may add", func(t *testing.T) {
		_, err := env.groups.AddParticipants(ctx, bob.ID, g.ID, []uuid.UUID{dave.ID})
		if !errors.Is(err, linkup_errors.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("all already members is a conflict", func(t *testing.T) {
		_, err := env.groups.AddParticipants(ctx, alice.ID, g.ID, []uuid.UUID{bob.ID, carol.ID})
		if !errors.Is(err, linkup_errors.ErrConflict) {
			t.Errorf("got %v, want ErrConflict", err)
		}
	})

	t.Run("adds new members and announces them", func(t *testing.T) {
		bobConn := env.connect(bob.ID)

		// carol is already in and must be silently skipped.
		got, err := env.groups.AddParticipants(ctx, alice.ID, g.ID, []uuid.UUID{carol.ID, dave.ID, erin.ID})
		if err != nil {
			t.Fatalf("AddParticipants error: %v", err)
		}
		if got.ParticipantCount != 5 {
			t.Errorf("got %d participants, want 5", got.ParticipantCount)
		}

		history, err := env.groups.GetGroupMessages(ctx, alice.ID, g.ID)
		if err != nil {
			t.Fatalf("GetGroupMessages error: %v", err)
		}
		last := history.Messages[len(history.Messages)-1]
		if !last.IsSystemMessage {
			t.Errorf("announcement is not a system message")
		}
		if last.Content != "alice added dave, erin to the group" {
			t.Errorf("got announcement %q", last.Content)
		}

		if got := bobConn.lastEventType(); got != "groupUpdated" {
			t.Errorf("bob got event %q, want groupUpdated", got)
		}
	})
}

func TestRemoveParticipant(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	dave := env.createUser(t, "dave")

	t.Run("non-admins may only remove themselves", func(t *testing.T) {
		g := newTestGroup(t, env, alice, bob, carol)
		err := func() error {
			_, err := env.groups.RemoveParticipant(ctx, bob.ID, g.ID, carol.ID)
			return err
		}()
		if !errors.Is(err, linkup_errors.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("the admin cannot be removed by anyone else", func(t *testing.T) {
		g := newTestGroup(t, env, alice, bob, carol)
		_, err := env.groups.RemoveParticipant(ctx, bob.ID, g.ID, alice.ID)
		if !errors.Is(err, linkup_errors.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("member leaves on their own", func(t *testing.T) {
		g := newTestGroup(t, env, alice, bob, carol)
		res, err := env.groups.RemoveParticipant(ctx, carol.ID, g.ID, carol.ID)
		if err != nil {
			t.Fatalf("RemoveParticipant error: %v", err)
		}
		if res.GroupDeleted {
			t.Errorf("group unexpectedly deleted")
		}
		if res.Group.ParticipantCount != 2 {
			t.Errorf("got %d participants, want 2", res.Group.ParticipantCount)
		}

		history, err := env.groups.GetGroupMessages(ctx, alice.ID, g.ID)
		if err != nil {
			t.Fatalf("GetGroupMessages error: %v", err)
		}
		last := history.Messages[len(history.Messages)-1]
		if last.Content != "carol left the group" || !last.IsSystemMessage {
			t.Errorf("got announcement %q", last.Content)
		}
	})

	t.Run("admin removes a member", func(t *testing.T) {
		g := newTestGroup(t, env, alice, bob, carol)
		bobConn := env.connect(bob.ID)

		res, err := env.groups.RemoveParticipant(ctx, alice.ID, g.ID, bob.ID)
		if err != nil {
			t.Fatalf("RemoveParticipant error: %v", err)
		}
		if res.Group.ParticipantCount != 2 {
			t.Errorf("got %d participants, want 2", res.Group.ParticipantCount)
		}

		history, err := env.groups.GetGroupMessages(ctx, alice.ID, g.ID)
		if err != nil {
			t.Fatalf("GetGroupMessages error: %v", err)
		}
		last := history.Messages[len(history.Messages)-1]
		if last.Content != "alice removed bob from the group" {
			t.Errorf("got announcement %q", last.Content)
		}

		if got := bobConn.lastEventType(); got != "removedFromGroup" {
			t.Errorf("bob got event %q, want removedFromGroup", got)
		}
		env.registry.Unregister(bobConn)
	})

	t.Run("admin leaving hands off to the earliest remaining member", func(t *testing.T) {
		g, err := env.groups.CreateGroup(ctx, alice.ID, "handoff", []uuid.UUID{bob.ID, carol.ID, dave.ID}, "")
		if err != nil {
			t.Fatalf("CreateGroup error: %v", err)
		}

		res, err := env.groups.RemoveParticipant(ctx, alice.ID, g.ID, alice.ID)
		if err != nil {
			t.Fatalf("RemoveParticipant error: %v", err)
		}
		if res.Group.Admin.ID != bob.ID {
			t.Errorf("got new admin %s, want bob", res.Group.Admin.ID)
		}

		history, err := env.groups.GetGroupMessages(ctx, bob.ID, g.ID)
		if err != nil {
			t.Fatalf("GetGroupMessages error: %v", err)
		}
		n := len(history.Messages)
		if n < 2 {
			t.Fatalf("got %d messages, want at least 2", n)
		}
		if history.Messages[n-2].Content != "alice left the group" {
			t.Errorf("got first announcement %q", history.Messages[n-2].Content)
		}
		if history.Messages[n-1].Content != "bob is now the group admin" {
			t.Errorf("got second announcement %q", history.Messages[n-1].Content)
		}
	})

	t.Run("last member leaving deletes the group", func(t *testing.T) {
		g, err := env.groups.CreateGroup(ctx, alice.ID, "fleeting", []uuid.UUID{bob.ID, carol.ID}, "")
		if err != nil {
			t.Fatalf("CreateGroup error: %v", err)
		}
		for _, u := range []uuid.UUID{bob.ID, carol.ID} {
			if _, err := env.groups.RemoveParticipant(ctx, u, g.ID, u); err != nil {
				t.Fatalf("RemoveParticipant error: %v", err)
			}
		}

		res, err := env.groups.RemoveParticipant(ctx, alice.ID, g.ID, alice.ID)
		if err != nil {
			t.Fatalf("final RemoveParticipant error: %v", err)
		}
		if !res.GroupDeleted || res.Group != nil {
			t.Errorf("got %+v, want deleted with no group", res)
		}

		var count int64
		env.db.Model(&conversation.Conversation{}).Where("id = ?", g.ID).Count(&count)
		if count != 0 {
			t.Errorf("conversation row survived deletion")
		}
	})

	t.Run("removing a non-member fails", func(t *testing.T) {
		g := newTestGroup(t, env, alice, bob, carol)
		_, err := env.groups.RemoveParticipant(ctx, alice.ID, g.ID, dave.ID)
		if !errors.Is(err, linkup_errors.ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}

func TestRenameGroup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")

	g := newTestGroup(t, env, alice, bob, carol)

	t.Run("only the admin may rename", func(t *testing.T) {
		_, err := env.groups.RenameGroup(ctx, bob.ID, g.ID, "bobs group")
		if !errors.Is(err, linkup_errors.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}
	})

	t.Run("blank names are rejected", func(t *testing.T) {
		_, err := env.groups.RenameGroup(ctx, alice.ID, g.ID, "  ")
		if !errors.Is(err, linkup_errors.ErrInvalidInput) {
			t.Errorf("got %v, want ErrInvalidInput", err)
		}
	})

	t.Run("rename updates state and announces", func(t *testing.T) {
		got, err := env.groups.RenameGroup(ctx, alice.ID, g.ID, "new horizons")
		if err != nil {
			t.Fatalf("RenameGroup error: %v", err)
		}
		if got.Name != "new horizons" {
			t.Errorf("got name %q", got.Name)
		}

		history, err := env.groups.GetGroupMessages(ctx, alice.ID, g.ID)
		if err != nil {
			t.Fatalf("GetGroupMessages error: %v", err)
		}
		last := history.Messages[len(history.Messages)-1]
		if last.Content != `alice changed the group name to "new horizons"` {
			t.Errorf("got announcement %q", last.Content)
		}
	})
}

func TestListGroupsAndDetails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	alice := env.createUser(t, "alice")
	bob := env.createUser(t, "bob")
	carol := env.createUser(t, "carol")
	dave := env.createUser(t, "dave")

	g := newTestGroup(t, env, alice, bob, carol)

	t.Run("lists only the caller's groups", func(t *testing.T) {
		groups, err := env.groups.ListGroups(ctx, bob.ID)
		if err != nil {
			t.Fatalf("ListGroups error: %v", err)
		}
		if len(groups) != 1 || groups[0].ID != g.ID {
			t.Errorf("bob sees %d groups", len(groups))
		}

		none, err := env.groups.ListGroups(ctx, dave.ID)
		if err != nil {
			t.Fatalf("ListGroups error: %v", err)
		}
		if len(none) != 0 {
			t.Errorf("dave sees %d groups, want 0", len(none))
		}
	})

	t.Run("details are member-only", func(t *testing.T) {
		if _, err := env.groups.GetGroupDetails(ctx, dave.ID, g.ID); !errors.Is(err, linkup_errors.ErrForbidden) {
			t.Errorf("got %v, want ErrForbidden", err)
		}

		details, err := env.groups.GetGroupDetails(ctx, bob.ID, g.ID)
		if err != nil {
			t.Fatalf("GetGroupDetails error: %v", err)
		}
		if details.Admin.ID != alice.ID {
			t.Errorf("got admin %s, want alice", details.Admin.ID)
		}
		if details.IsAdmin {
			t.Errorf("bob should not be admin")
		}
		if len(details.Participants) != 3 {
			t.Errorf("got %d participants, want 3", len(details.Participants))
		}
	})

	t.Run("direct conversations never appear as groups", func(t *testing.T) {
		if _, err := env.convs.SendDirectMessage(ctx, alice.ID, bob.ID, "psst"); err != nil {
			t.Fatalf("SendDirectMessage error: %v", err)
		}
		groups, err := env.groups.ListGroups(ctx, alice.ID)
		if err != nil {
			t.Fatalf("ListGroups error: %v", err)
		}
		if len(groups) != 1 {
			t.Errorf("got %d groups, want 1", len(groups))
		}
	})
}
