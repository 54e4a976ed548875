// Package chat implements two-party messaging on top of a realtime store.
//
// Each pair of users shares one room whose key is derived from both user
// ids, so either side can find the room without asking the other. Rooms
// live under the "chats" parent of the store as append-only lists.
package chat

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/npezzotti/go-agritour/internal/database"
	"github.com/npezzotti/go-agritour/internal/observable"
	"github.com/npezzotti/go-agritour/internal/realtime"
	"github.com/npezzotti/go-agritour/internal/stats"
	"github.com/npezzotti/go-agritour/internal/types"
)

const (
	chatsParent = "chats"
	keySep      = "_"

	LoadingName    = "Loading..."
	UnknownName    = "Unknown User"
	NoMessagesText = "No messages"

	MetricMessagesSent = "MessagesSent"
)

var ErrEmptyMessage = errors.New("message text is blank")

// RoomKey joins the two ids in lexicographic order.
func RoomKey(a, b string) string {
	if a < b {
		return a + keySep + b
	}
	return b + keySep + a
}

// PeerId returns the participant of room that is not self.
func PeerId(room, self string) string {
	for _, part := range strings.Split(room, keySep) {
		if part != self {
			return part
		}
	}
	return ""
}

func isMember(room, self string) bool {
	for _, part := range strings.Split(room, keySep) {
		if part == self {
			return true
		}
	}
	return false
}

func roomPath(room string) string {
	return chatsParent + "/" + room
}

type ProfileLookup interface {
	GetAccountById(accountId string) (database.Account, error)
}

type Service struct {
	log      *log.Logger
	store    realtime.Store
	profiles ProfileLookup
	stats    stats.StatsProvider
	now      func() time.Time
}

func NewService(logger *log.Logger, store realtime.Store, profiles ProfileLookup, su stats.StatsProvider) *Service {
	su.RegisterMetric(MetricMessagesSent)

	return &Service{
		log:      logger,
		store:    store,
		profiles: profiles,
		stats:    su,
		now:      time.Now,
	}
}

// Send appends text from one user to the room shared with another.
func (s *Service) Send(ctx context.Context, from, to, text string) (types.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return types.ChatMessage{}, ErrEmptyMessage
	}

	key, err := realtime.GenerateKey()
	if err != nil {
		return types.ChatMessage{}, fmt.Errorf("generate key: %w", err)
	}

	msg := types.ChatMessage{
		Id:        key,
		SenderId:  from,
		Text:      text,
		Timestamp: s.now().UnixMilli(),
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return types.ChatMessage{}, fmt.Errorf("encode message: %w", err)
	}

	if err := s.store.Append(ctx, roomPath(RoomKey(from, to)), key, raw); err != nil {
		return types.ChatMessage{}, fmt.Errorf("append message: %w", err)
	}

	s.stats.Incr(MetricMessagesSent)
	return msg, nil
}

// History returns the messages of room in insertion order.
func (s *Service) History(ctx context.Context, room string) ([]types.ChatMessage, error) {
	entries, err := s.store.List(ctx, roomPath(room))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return s.decode(room, entries), nil
}

// Messages streams the full message list of room after every change until
// ctx is done.
func (s *Service) Messages(ctx context.Context, room string) (<-chan []types.ChatMessage, error) {
	snapshots, err := s.store.Subscribe(ctx, roomPath(room))
	if err != nil {
		return nil, fmt.Errorf("subscribe messages: %w", err)
	}

	out := make(chan []types.ChatMessage, 1)
	go func() {
		defer close(out)
		for entries := range snapshots {
			observable.Offer(out, s.decode(room, entries))
		}
	}()

	return out, nil
}

func (s *Service) decode(room string, entries []realtime.Entry) []types.ChatMessage {
	msgs := make([]types.ChatMessage, 0, len(entries))
	for _, e := range entries {
		var m types.ChatMessage
		if err := json.Unmarshal(e.Value, &m); err != nil {
			s.log.Printf("skipping malformed message %q in room %q: %v", e.Key, room, err)
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs
}

// Summaries lists the rooms self belongs to, most recent first, with
// every peer name still unresolved.
func (s *Service) Summaries(self string, rooms map[string][]realtime.Entry) []types.Conversation {
	convos := make([]types.Conversation, 0)
	for room, entries := range rooms {
		if !isMember(room, self) {
			continue
		}

		c := types.Conversation{
			PeerId:      PeerId(room, self),
			PeerName:    LoadingName,
			LastMessage: NoMessagesText,
			RoomId:      room,
		}

		if msgs := s.decode(room, entries); len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			c.LastMessage = last.Text
			c.Timestamp = last.Timestamp
		}

		convos = append(convos, c)
	}

	sort.SliceStable(convos, func(i, j int) bool {
		if convos[i].Timestamp == convos[j].Timestamp {
			return convos[i].RoomId < convos[j].RoomId
		}
		return convos[i].Timestamp > convos[j].Timestamp
	})

	return convos
}

// PeerName looks up the display name of a peer. A missing profile or an
// empty name is reported as "Unknown User".
func (s *Service) PeerName(peerId string) (string, error) {
	acc, err := s.profiles.GetAccountById(peerId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UnknownName, nil
		}
		return "", err
	}

	if acc.Name == "" {
		return UnknownName, nil
	}
	return acc.Name, nil
}

// Conversations streams self's conversation list until ctx is done. Each
// change to any room first emits the list with placeholder peer names;
// names are then resolved in the background and patched into the list,
// each resolution producing another emission.
func (s *Service) Conversations(ctx context.Context, self string) (<-chan []types.Conversation, error) {
	trees, err := s.store.SubscribeChildren(ctx, chatsParent)
	if err != nil {
		return nil, fmt.Errorf("subscribe conversations: %w", err)
	}

	convos := observable.New([]types.Conversation{})
	out := convos.Subscribe(ctx)
	// drop the empty initial value so the first emission is real
	<-out

	go func() {
		for tree := range trees {
			list := s.Summaries(self, tree)
			convos.Set(list)

			for _, peer := range uniquePeers(list) {
				go s.resolveName(convos, peer)
			}
		}
	}()

	return out, nil
}

func (s *Service) resolveName(convos *observable.Value[[]types.Conversation], peerId string) {
	name, err := s.PeerName(peerId)
	if err != nil {
		s.log.Printf("get peer name %q: %v", peerId, err)
		return
	}

	convos.Update(func(cur []types.Conversation) []types.Conversation {
		next := make([]types.Conversation, len(cur))
		for i, c := range cur {
			if c.PeerId == peerId {
				c.PeerName = name
			}
			next[i] = c
		}
		return next
	})
}

func uniquePeers(convos []types.Conversation) []string {
	seen := make(map[string]struct{}, len(convos))
	peers := make([]string, 0, len(convos))
	for _, c := range convos {
		if _, ok := seen[c.PeerId]; ok {
			continue
		}
		seen[c.PeerId] = struct{}{}
		peers = append(peers, c.PeerId)
	}
	return peers
}

// ResolveNames fills in every peer name of convos synchronously.
func (s *Service) ResolveNames(convos []types.Conversation) []types.Conversation {
	names := make(map[string]string)
	for _, peer := range uniquePeers(convos) {
		name, err := s.PeerName(peer)
		if err != nil {
			s.log.Printf("get peer name %q: %v", peer, err)
			continue
		}
		names[peer] = name
	}

	out := make([]types.Conversation, len(convos))
	for i, c := range convos {
		if name, ok := names[c.PeerId]; ok {
			c.PeerName = name
		}
		out[i] = c
	}
	return out
}

// List returns self's conversations with resolved peer names.
func (s *Service) List(ctx context.Context, self string) ([]types.Conversation, error) {
	tree, err := s.store.Children(ctx, chatsParent)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return s.ResolveNames(s.Summaries(self, tree)), nil
}
