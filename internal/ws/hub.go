package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/emotionwall/internal/assets"
	"github.com/emotionwall/internal/audio"
	"github.com/emotionwall/internal/broadcast"
	"github.com/emotionwall/internal/hossii"
	"github.com/emotionwall/internal/identity"
	"github.com/emotionwall/internal/layout"
	"github.com/emotionwall/internal/logger"
	"github.com/emotionwall/internal/mascot"
	"github.com/emotionwall/internal/model"
	"github.com/emotionwall/internal/space"
	"github.com/emotionwall/internal/speech"
)

// PushNotifier sends web-push notifications. Nil disables push.
type PushNotifier interface {
	NotifySpace(ctx context.Context, spaceID, excludeUserID, title, body string, data map[string]string)
}

// narrowViewportPx is the phone-layout breakpoint; below it bubble placement
// keeps the bottom of the wall clear for the input bar.
const narrowViewportPx = 768

// session is one tab's live engine: its own mascot state machine, audio
// monitor, speech aggregator and reaction endpoint, created on join and torn
// down on disconnect or re-join.
type session struct {
	spaceID string
	caster  *broadcast.Caster
	mascot  *mascot.Controller
	monitor *audio.Monitor
	speech  *speech.Aggregator

	editor    *layout.Editor
	canEdit   func(model.Hossii) bool
	placement layout.PlacementConfig
}

func (s *session) teardown() {
	s.caster.Close()
	s.mascot.Close()
	s.monitor.Disable()
	s.speech.Disable()
}

// Hub owns all connected clients and routes socket events into the engine.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*Client]struct{}
	total    int
	maxConns int

	posts     *hossii.Store
	spaces    *space.Store
	transport broadcast.Transport
	faces     assets.Lookup
	push      PushNotifier
	admins    identity.AdminSet

	audioCfg  audio.Config
	speechCfg speech.Config
	mascotCfg mascot.Config

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// Deps bundles the hub's collaborators.
type Deps struct {
	Posts     *hossii.Store
	Spaces    *space.Store
	Transport broadcast.Transport
	Faces     assets.Lookup
	Push      PushNotifier
	Admins    identity.AdminSet

	AudioConfig  audio.Config
	SpeechConfig speech.Config
	MascotConfig mascot.Config
}

func NewHub(deps Deps, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		maxConns:   maxConns,
		posts:      deps.Posts,
		spaces:     deps.Spaces,
		transport:  deps.Transport,
		faces:      deps.Faces,
		push:       deps.Push,
		admins:     deps.Admins,
		audioCfg:   deps.AudioConfig,
		speechCfg:  deps.SpeechConfig,
		mascotCfg:  deps.MascotConfig,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	allClients := make([]*Client, 0, h.total)
	for c := range h.clients {
		allClients = append(allClients, c)
	}
	h.clients = make(map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range allClients {
		c.setSession(nil)
		c.Close()
	}
	for _, c := range allClients {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, c.userID)
		c.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.total++
	h.mu.Unlock()
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	h.total--
	h.mu.Unlock()

	// Session teardown and network I/O outside the lock.
	c.setSession(nil)
	c.Close()
}

// HandleMessage dispatches incoming WebSocket messages.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	if msg.Type == EventJoin {
		h.handleJoin(c, msg)
		return
	}

	sess := c.getSession()
	if sess == nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "join a space first"}})
		return
	}

	switch msg.Type {
	case EventNewHossii:
		h.handleNewHossii(ctx, c, sess, msg)
	case EventAudioFrame:
		sess.monitor.Process(msg.RMS, time.Now())
	case EventTranscript:
		sess.speech.OnResult(msg.Text)
		if msg.Text != "" {
			// Echo recognized speech in the mascot's thought bubble while
			// the aggregator decides whether it becomes a post.
			sess.mascot.ShowBrainMessage(msg.Text, 2500*time.Millisecond)
		}
	case EventTap:
		sess.mascot.Tap(msg.X, msg.Y)
	case EventListening:
		h.handleListening(c, sess, msg)
	case EventResize:
		sess.mascot.Resize(msg.Width, msg.Height)
		sess.editor.SetContainer(msg.Width, msg.Height)
		sess.placement.Narrow = msg.Width > 0 && msg.Width < narrowViewportPx
	case EventPointerDown:
		h.handlePointerDown(c, sess, msg)
	case EventPointerMove:
		sess.editor.PointerMove(msg.PX, msg.PY)
	case EventPointerUp:
		h.handlePointerUp(ctx, c, sess)
	case EventClickOutside:
		sess.editor.ClickOutside()
		h.sendSelection(c, sess)
	case EventEscape:
		sess.editor.Escape()
		h.sendSelection(c, sess)
	case EventRecolor:
		h.handleRecolor(ctx, c, sess, msg)
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "unknown event type"}})
	}
}

// handleJoin resolves the space (by id or public slug), builds the tab's
// live session and answers with the space snapshot.
func (h *Hub) handleJoin(c *Client, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleJoin", time.Now())()

	var sp model.Space
	var err error
	switch {
	case msg.SpaceID != "":
		sp, err = h.spaces.Get(msg.SpaceID)
	case msg.Slug != "":
		sp, err = h.spaces.BySlug(msg.Slug)
	default:
		err = space.ErrNotFound
	}
	if err != nil {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "space not found"}})
		return
	}

	width, height := msg.Width, msg.Height
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 800
	}

	ctrl := mascot.New(h.mascotCfg, h.faces, width, height, func(st mascot.State) {
		h.sendToClient(c, OutgoingMessage{Type: EventMascotState, Payload: st})
	}, mascot.WithParticles(func(e model.Emotion) {
		h.sendToClient(c, OutgoingMessage{Type: EventParticles, Payload: ParticlesPayload{Emotion: e}})
	}))

	caster, err := broadcast.NewCaster(h.transport, sp.ID, func(ev model.ReactionEvent) {
		ctrl.NotifyPost(ev.HossiiID, ev.Emotion)
		h.sendToClient(c, OutgoingMessage{Type: EventReaction, Payload: ev})
	})
	if err != nil {
		ctrl.Close()
		logger.Errorf("ws subscribe reactions user=%s: %v", c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "internal error"}})
		return
	}

	sess := &session{spaceID: sp.ID, caster: caster, mascot: ctrl}
	sess.canEdit = func(p model.Hossii) bool {
		// Auto posts carry no author, so only moderators may move them.
		return (p.AuthorID != "" && p.AuthorID == c.userID) || h.admins.Contains(c.userID)
	}
	sess.editor = layout.NewEditor(h.posts, width, height, sess.canEdit)
	sess.placement = layout.DefaultPlacement()
	sess.placement.Narrow = width < narrowViewportPx
	sess.monitor = audio.NewMonitor(h.audioCfg, func(ev model.AudioEvent) {
		h.autoPostAudio(c, sess, ev)
	})
	sess.speech = speech.NewAggregator(h.speechCfg, nil, func(ev model.SpeechEvent) {
		h.autoPostSpeech(c, sess, ev)
	})

	c.setSession(sess)
	ctrl.Start()

	h.sendToClient(c, OutgoingMessage{Type: EventJoined, Payload: JoinedPayload{
		Space:   sp,
		Hossiis: h.posts.VisibleBySpace(sp.ID),
		Mascot:  ctrl.Snapshot(),
	}})
}

func (h *Hub) handleNewHossii(ctx context.Context, c *Client, sess *session, msg IncomingMessage) {
	defer logger.DeferLogDuration("ws.handleNewHossii", time.Now())()

	emotion := model.Emotion(msg.Emotion)
	if msg.Emotion != "" && !emotion.Valid() {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "unknown emotion"}})
		return
	}

	h.addAndAnnounce(ctx, c, sess, hossii.AddInput{
		SpaceID:     sess.spaceID,
		Message:     msg.Message,
		Emotion:     emotion,
		AuthorID:    c.userID,
		Origin:      model.OriginManual,
		BubbleColor: msg.BubbleColor,
		ImageURL:    msg.ImageURL,
		NumberValue: msg.NumberValue,
		Hashtags:    msg.Hashtags,
	})
}

func (h *Hub) handleListening(c *Client, sess *session, msg IncomingMessage) {
	var errMsg string
	if msg.On {
		// The browser owns the actual microphone; by the time the toggle
		// arrives, acquisition already succeeded client-side.
		if err := sess.monitor.Enable(nil, nil); err != nil {
			errMsg = err.Error()
		}
		if msg.Speech {
			if err := sess.speech.Enable(); err != nil && !errors.Is(err, speech.ErrUnsupported) {
				logger.Errorf("ws speech enable user=%s: %v", c.userID, err)
			}
		} else {
			sess.speech.Disable()
		}
	} else {
		sess.monitor.Disable()
		sess.speech.Disable()
	}
	sess.mascot.SetListening(sess.monitor.Listening())

	h.sendToClient(c, OutgoingMessage{Type: EventListeningState, Payload: ListeningStatePayload{
		On:     sess.monitor.Listening(),
		Speech: sess.speech.Enabled(),
		Error:  errMsg,
	}})
}

// handlePointerDown starts an editing gesture on a bubble. The effective
// position fed to the editor resolves manual overrides against the computed
// layout, so a first drag starts from where the bubble is actually drawn.
func (h *Hub) handlePointerDown(c *Client, sess *session, msg IncomingMessage) {
	post, ok := h.posts.Get(msg.HossiiID)
	if !ok || post.SpaceID != sess.spaceID || post.IsHidden {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "post not found"}})
		return
	}

	posX, posY := layout.PositionOf(post, h.visibleIndex(sess.spaceID, post.ID), sess.placement)
	sess.editor.PointerDown(post, msg.PX, msg.PY, msg.OnHandle, posX, posY, layout.ScaleOf(post))
	h.sendSelection(c, sess)
}

func (h *Hub) handlePointerUp(ctx context.Context, c *Client, sess *session) {
	id := sess.editor.Selected()
	dragging := sess.editor.State() == layout.StateDragging

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	sess.editor.PointerUp(ctx)
	cancel()

	if dragging && id != "" {
		if post, ok := h.posts.Get(id); ok {
			h.BroadcastSpace(sess.spaceID, OutgoingMessage{Type: EventHossiiUpdated, Payload: post})
		}
	}
	h.sendSelection(c, sess)
}

func (h *Hub) handleRecolor(ctx context.Context, c *Client, sess *session, msg IncomingMessage) {
	post, ok := h.posts.Get(msg.HossiiID)
	if !ok || post.SpaceID != sess.spaceID {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "post not found"}})
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	allowed := sess.editor.Recolor(ctx, post, msg.Color)
	cancel()
	if !allowed {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "not allowed"}})
		return
	}
	if post, ok := h.posts.Get(post.ID); ok {
		h.BroadcastSpace(sess.spaceID, OutgoingMessage{Type: EventHossiiUpdated, Payload: post})
	}
}

// sendSelection mirrors the editor's selection back to the owning tab.
func (h *Hub) sendSelection(c *Client, sess *session) {
	var p SelectionPayload
	if id := sess.editor.Selected(); id != "" {
		p.HossiiID = id
		if post, ok := h.posts.Get(id); ok {
			p.Editable = sess.canEdit(post)
		}
	}
	h.sendToClient(c, OutgoingMessage{Type: EventSelection, Payload: p})
}

// visibleIndex is the post's index within its space's visible list, the input
// to the computed placement.
func (h *Hub) visibleIndex(spaceID, id string) int {
	for i, p := range h.posts.VisibleBySpace(spaceID) {
		if p.ID == id {
			return i
		}
	}
	return 0
}

func (h *Hub) autoPostAudio(c *Client, sess *session, ev model.AudioEvent) {
	autoType := model.AutoTypeEmotion
	if ev.Type == model.AudioEventLaugh {
		autoType = model.AutoTypeLaughter
	}
	h.addAndAnnounce(context.Background(), c, sess, hossii.AddInput{
		SpaceID:  sess.spaceID,
		Message:  ev.Message,
		Emotion:  ev.Emotion,
		Origin:   model.OriginAuto,
		AutoType: autoType,
		Language: ev.Language,
	})
}

func (h *Hub) autoPostSpeech(c *Client, sess *session, ev model.SpeechEvent) {
	h.addAndAnnounce(context.Background(), c, sess, hossii.AddInput{
		SpaceID:     sess.spaceID,
		Message:     ev.Text,
		Origin:      model.OriginAuto,
		AutoType:    model.AutoTypeSpeech,
		SpeechLevel: ev.Level,
		Language:    ev.Language,
	})
}

// addAndAnnounce appends the post and announces it on the reaction channel.
// Local clients of the space get the post itself through OnPostAppended (the
// store's append hook); the announcement covers tabs served elsewhere.
func (h *Hub) addAndAnnounce(ctx context.Context, c *Client, sess *session, in hossii.AddInput) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	post, err := h.posts.Add(ctx, in)
	if err != nil {
		if errors.Is(err, hossii.ErrEmptyPost) {
			// Expected and frequent for manual posts; auto posts never
			// reach here (classified events always carry content).
			if in.Origin == model.OriginManual {
				h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "post needs content"}})
			}
			return
		}
		logger.Errorf("ws add post space=%s user=%s: %v", sess.spaceID, c.userID, err)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: ErrorPayload{Message: "failed to save post"}})
		return
	}
	sess.caster.Announce(post)
}

// OnPostAppended is the post store's append hook: fan the new post out to
// every client on its space and nudge their mascots. The mascot's post-id
// idempotency absorbs the overlap with the reaction channel.
func (h *Hub) OnPostAppended(post model.Hossii) {
	for _, target := range h.clientsOnSpace(post.SpaceID) {
		if sess := target.getSession(); sess != nil {
			sess.mascot.NotifyPost(post.ID, post.Emotion)
		}
		h.sendToClient(target, OutgoingMessage{Type: EventHossiiAdded, Payload: post})
	}

	if h.push != nil {
		title := post.AuthorName
		if title == "" {
			title = "New post"
		}
		body := post.Message
		if body == "" && post.ImageURL != "" {
			body = "Image"
		}
		if r := []rune(body); len(r) > 120 {
			body = string(r[:117]) + "..."
		}
		data := map[string]string{"space_id": post.SpaceID, "hossii_id": post.ID}
		go h.push.NotifySpace(context.Background(), post.SpaceID, post.AuthorID, title, body, data)
	}
}

// BroadcastSpace sends a message to every client on the space (used by the
// REST handlers after moderation and placement changes).
func (h *Hub) BroadcastSpace(spaceID string, msg OutgoingMessage) {
	for _, target := range h.clientsOnSpace(spaceID) {
		h.sendToClient(target, msg)
	}
}

func (h *Hub) clientsOnSpace(spaceID string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		if sess := c.getSession(); sess != nil && sess.spaceID == spaceID {
			targets = append(targets, c)
		}
	}
	return targets
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", c.userID)
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
