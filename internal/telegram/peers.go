package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/gotd/td/telegram/query"
	"github.com/gotd/td/telegram/query/dialogs"
	"github.com/gotd/td/tg"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

const channelChatIDOffset int64 = 1_000_000_000_000

type PeerKind string

const (
	PeerUser    PeerKind = "user"
	PeerChat    PeerKind = "chat"
	PeerChannel PeerKind = "channel"
)

// PeerRef identifies a user, basic group or channel together with the
// access hash the current account received for it.
type PeerRef struct {
	Kind       PeerKind
	ID         int64
	AccessHash int64
	Megagroup  bool
}

func userRef(id, hash int64) PeerRef { return PeerRef{Kind: PeerUser, ID: id, AccessHash: hash} }
func chatRef(id int64) PeerRef       { return PeerRef{Kind: PeerChat, ID: id} }

func channelRef(id, hash int64, megagroup bool) PeerRef {
	return PeerRef{Kind: PeerChannel, ID: id, AccessHash: hash, Megagroup: megagroup}
}

func (p PeerRef) IsZero() bool { return p.Kind == "" }

func (p PeerRef) InputPeer() tg.InputPeerClass {
	switch p.Kind {
	case PeerUser:
		return &tg.InputPeerUser{UserID: p.ID, AccessHash: p.AccessHash}
	case PeerChat:
		return &tg.InputPeerChat{ChatID: p.ID}
	case PeerChannel:
		return &tg.InputPeerChannel{ChannelID: p.ID, AccessHash: p.AccessHash}
	default:
		return &tg.InputPeerEmpty{}
	}
}

func (p PeerRef) InputUser() (tg.InputUserClass, error) {
	if p.Kind != PeerUser {
		return nil, newError(KindInvalidPeerShape, nil, "%s %d is not a user peer", p.Kind, p.ID)
	}
	return &tg.InputUser{UserID: p.ID, AccessHash: p.AccessHash}, nil
}

func (p PeerRef) InputChannel() (tg.InputChannelClass, error) {
	if p.Kind != PeerChannel {
		return nil, newError(KindInvalidPeerShape, nil, "%s %d is not a channel peer", p.Kind, p.ID)
	}
	return &tg.InputChannel{ChannelID: p.ID, AccessHash: p.AccessHash}, nil
}

// ChatID returns the id in the signed form callers type in: users are
// positive, basic groups negative and channels offset by -100.
func (p PeerRef) ChatID() int64 {
	switch p.Kind {
	case PeerChat:
		return -p.ID
	case PeerChannel:
		return -(channelChatIDOffset + p.ID)
	default:
		return p.ID
	}
}

func (p PeerRef) String() string {
	return fmt.Sprintf("%s:%d", p.Kind, p.ID)
}

type identifierKind int

const (
	identUsername identifierKind = iota + 1
	identPhone
	identSelf
	identUserID
	identChatID
	identChannelID
	identInvite
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{3,31}$`)
	phonePattern    = regexp.MustCompile(`^\+[0-9]{7,15}$`)
	invitePattern   = regexp.MustCompile(`^(?:https?://)?(?:t|telegram)\.me/(?:\+|joinchat/)([A-Za-z0-9_-]+)$`)
	linkPattern     = regexp.MustCompile(`^(?:https?://)?(?:t|telegram)\.me/([A-Za-z][A-Za-z0-9_]{3,31})/?$`)
)

type identifier struct {
	kind  identifierKind
	key   string
	value string
	id    int64
}

func classifyIdentifier(raw string) (identifier, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return identifier{}, newError(KindInvalidPeerShape, nil, "empty peer identifier")
	}
	switch lower := strings.ToLower(s); {
	case lower == "me" || lower == "self":
		return identifier{kind: identSelf, key: "self"}, nil
	case invitePattern.MatchString(s):
		hash := invitePattern.FindStringSubmatch(s)[1]
		return identifier{kind: identInvite, key: "invite:" + hash, value: hash}, nil
	case linkPattern.MatchString(s):
		name := linkPattern.FindStringSubmatch(s)[1]
		return identifier{kind: identUsername, key: "@" + strings.ToLower(name), value: name}, nil
	case strings.HasPrefix(s, "@"):
		name := strings.TrimPrefix(s, "@")
		if !usernamePattern.MatchString(name) {
			return identifier{}, newError(KindInvalidPeerShape, nil, "%q is not a valid username", s)
		}
		return identifier{kind: identUsername, key: "@" + strings.ToLower(name), value: name}, nil
	case phonePattern.MatchString(s):
		return identifier{kind: identPhone, key: s, value: strings.TrimPrefix(s, "+")}, nil
	}

	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		switch {
		case id > 0:
			return identifier{kind: identUserID, key: s, id: id}, nil
		case id < -channelChatIDOffset:
			return identifier{kind: identChannelID, key: s, id: -id - channelChatIDOffset}, nil
		case id < 0:
			return identifier{kind: identChatID, key: s, id: -id}, nil
		default:
			return identifier{}, newError(KindInvalidPeerShape, nil, "peer id 0 is not valid")
		}
	}
	if usernamePattern.MatchString(s) {
		return identifier{kind: identUsername, key: "@" + strings.ToLower(s), value: s}, nil
	}
	return identifier{}, newError(KindInvalidPeerShape, nil, "%q is neither a username nor a numeric chat id", s)
}

// Resolver maps caller identifiers to peer references, memoizing every
// successful lookup in its cache.
type Resolver struct {
	api   *tg.Client
	cache *PeerCache
	group singleflight.Group
	log   *slog.Logger
	now   func() time.Time

	lookups atomic.Int64
}

func NewResolver(invoker tg.Invoker, cache *PeerCache, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if cache == nil {
		cache = NewPeerCache(0, nil, 0, log)
	}
	return &Resolver{
		api:   tg.NewClient(invoker),
		cache: cache,
		log:   log,
		now:   time.Now,
	}
}

// Lookups returns how many network lookups the resolver has issued.
func (r *Resolver) Lookups() int64 { return r.lookups.Load() }

func (r *Resolver) Resolve(ctx context.Context, raw string) (PeerRef, error) {
	ident, err := classifyIdentifier(raw)
	if err != nil {
		return PeerRef{}, err
	}
	if ident.kind == identInvite {
		return PeerRef{}, newError(KindInvalidPeerShape, nil, "invite links can only be joined, not resolved")
	}
	if ref, ok := r.cache.Get(ctx, ident.key); ok {
		return ref, nil
	}

	v, err, _ := r.group.Do(ident.key, func() (any, error) {
		if ref, ok := r.cache.Get(ctx, ident.key); ok {
			return ref, nil
		}
		r.lookups.Inc()
		ref, err := r.lookup(ctx, ident)
		if err != nil {
			return PeerRef{}, err
		}
		r.cache.Add(ctx, ident.key, ref, r.now())
		r.log.Debug("peer resolved", "identifier", ident.key, "peer", ref.String())
		return ref, nil
	})
	if err != nil {
		return PeerRef{}, err
	}
	return v.(PeerRef), nil
}

// Forget evicts raw from the cache so the next Resolve goes to the network.
func (r *Resolver) Forget(ctx context.Context, raw string) {
	ident, err := classifyIdentifier(raw)
	if err != nil {
		return
	}
	r.cache.Remove(ctx, ident.key)
}

func (r *Resolver) lookup(ctx context.Context, ident identifier) (PeerRef, error) {
	switch ident.kind {
	case identUsername:
		res, err := r.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: ident.value})
		if err != nil {
			return PeerRef{}, resolutionFailure(ident, "contacts.resolveUsername", err)
		}
		return refFromResolved(ident, res)
	case identPhone:
		res, err := r.api.ContactsResolvePhone(ctx, ident.value)
		if err != nil {
			return PeerRef{}, resolutionFailure(ident, "contacts.resolvePhone", err)
		}
		return refFromResolved(ident, res)
	case identSelf:
		return r.lookupUser(ctx, ident, &tg.InputUserSelf{})
	case identUserID:
		ref, err := r.lookupUser(ctx, ident, &tg.InputUser{UserID: ident.id})
		if KindOf(err) == KindResolution {
			return r.lookupDialogs(ctx, ident)
		}
		return ref, err
	case identChatID:
		chats, err := r.api.MessagesGetChats(ctx, []int64{ident.id})
		if err != nil {
			return PeerRef{}, resolutionFailure(ident, "messages.getChats", err)
		}
		return refFromChats(ident, chats.GetChats())
	case identChannelID:
		chats, err := r.api.ChannelsGetChannels(ctx, []tg.InputChannelClass{&tg.InputChannel{ChannelID: ident.id}})
		if err == nil {
			if ref, refErr := refFromChats(ident, chats.GetChats()); refErr == nil {
				return ref, nil
			}
		} else if !isPeerInvalid(err) && !isNotFound(err) {
			return PeerRef{}, transportError("channels.getChannels", err)
		}
		return r.lookupDialogs(ctx, ident)
	default:
		return PeerRef{}, newError(KindInvalidPeerShape, nil, "unsupported identifier %q", ident.key)
	}
}

func (r *Resolver) lookupUser(ctx context.Context, ident identifier, input tg.InputUserClass) (PeerRef, error) {
	users, err := r.api.UsersGetUsers(ctx, []tg.InputUserClass{input})
	if err != nil {
		return PeerRef{}, resolutionFailure(ident, "users.getUsers", err)
	}
	for _, u := range users {
		if user, ok := u.(*tg.User); ok {
			return userRef(user.ID, user.AccessHash), nil
		}
	}
	return PeerRef{}, newError(KindResolution, nil, "user %s not found", ident.key)
}

// lookupDialogs walks the account's dialogs to find the access hash of a
// numeric id the server would not resolve directly.
func (r *Resolver) lookupDialogs(ctx context.Context, ident identifier) (PeerRef, error) {
	var found PeerRef
	errStop := errors.New("found")
	err := query.GetDialogs(r.api).BatchSize(100).ForEach(ctx, func(_ context.Context, elem dialogs.Elem) error {
		ref, ok := refFromDialog(elem)
		if !ok {
			return nil
		}
		r.cache.Add(ctx, strconv.FormatInt(ref.ChatID(), 10), ref, r.now())
		if (ident.kind == identUserID && ref.Kind == PeerUser && ref.ID == ident.id) ||
			(ident.kind == identChannelID && ref.Kind == PeerChannel && ref.ID == ident.id) {
			found = ref
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return PeerRef{}, transportError("messages.getDialogs", err)
	}
	if found.IsZero() {
		return PeerRef{}, newError(KindResolution, nil, "peer %s is not accessible to this account", ident.key)
	}
	return found, nil
}

func refFromDialog(elem dialogs.Elem) (PeerRef, bool) {
	switch peer := elem.Dialog.GetPeer().(type) {
	case *tg.PeerUser:
		user, ok := elem.Entities.User(peer.UserID)
		if !ok || user == nil {
			return PeerRef{}, false
		}
		return userRef(user.ID, user.AccessHash), true
	case *tg.PeerChat:
		return chatRef(peer.ChatID), true
	case *tg.PeerChannel:
		channel, ok := elem.Entities.Channel(peer.ChannelID)
		if !ok || channel == nil {
			return PeerRef{}, false
		}
		return channelRef(channel.ID, channel.AccessHash, channel.Megagroup), true
	}
	return PeerRef{}, false
}

func refFromResolved(ident identifier, res *tg.ContactsResolvedPeer) (PeerRef, error) {
	switch peer := res.Peer.(type) {
	case *tg.PeerUser:
		for _, u := range res.Users {
			if user, ok := u.(*tg.User); ok && user.ID == peer.UserID {
				return userRef(user.ID, user.AccessHash), nil
			}
		}
	case *tg.PeerChannel:
		for _, c := range res.Chats {
			if channel, ok := c.(*tg.Channel); ok && channel.ID == peer.ChannelID {
				return channelRef(channel.ID, channel.AccessHash, channel.Megagroup), nil
			}
		}
	case *tg.PeerChat:
		return chatRef(peer.ChatID), nil
	}
	return PeerRef{}, newError(KindResolution, nil, "%s resolved to no accessible entity", ident.key)
}

func refFromChats(ident identifier, chats []tg.ChatClass) (PeerRef, error) {
	for _, c := range chats {
		switch chat := c.(type) {
		case *tg.Chat:
			if ident.kind == identChatID && chat.ID == ident.id {
				return chatRef(chat.ID), nil
			}
		case *tg.Channel:
			if ident.kind == identChannelID && chat.ID == ident.id {
				return channelRef(chat.ID, chat.AccessHash, chat.Megagroup), nil
			}
		case *tg.ChatForbidden, *tg.ChannelForbidden:
			return PeerRef{}, newError(KindResolution, nil, "chat %s is not accessible to this account", ident.key)
		}
	}
	return PeerRef{}, newError(KindResolution, nil, "chat %s not found", ident.key)
}

func resolutionFailure(ident identifier, method string, err error) error {
	if isNotFound(err) || isPeerInvalid(err) {
		return newError(KindResolution, err, "peer %s not found (%s)", ident.key, rpcType(err))
	}
	return transportError(method, err)
}
