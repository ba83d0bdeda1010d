// Package dispatch is the request queue and model-routing core: a
// single-consumer FIFO that serializes every generation request,
// routes it to the right backend client, mutates the conversation
// transcript, and emits outbound deliveries through a Transport.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/tmajor9/relaybot/internal/backend"
	"github.com/tmajor9/relaybot/internal/config"
	"github.com/tmajor9/relaybot/internal/domain"
	"github.com/tmajor9/relaybot/internal/resource"
	"github.com/tmajor9/relaybot/internal/settings"
	"github.com/tmajor9/relaybot/internal/store"
)

// ClientRouter selects backend clients for model descriptors.
// Implemented by backend.Router; faked in tests.
type ClientRouter interface {
	TextClient(desc domain.ModelDescriptor) (backend.TextCompleter, func(), error)
	ImageClient(desc domain.ModelDescriptor) (backend.ImageGenerator, error)
}

// Dispatcher owns the queue and the single worker that drains it.
type Dispatcher struct {
	queue     *Queue
	store     *store.Store
	settings  *settings.Manager
	router    ClientRouter
	resources *resource.Manager
	transport Transport
	intent    *IntentClassifier
	chunkSize int
}

// Deps contains everything a Dispatcher needs.
type Deps struct {
	Store     *store.Store
	Settings  *settings.Manager
	Router    ClientRouter
	Resources *resource.Manager
	Transport Transport
	Intent    *IntentClassifier
	ChunkSize int
}

func New(deps Deps) *Dispatcher {
	chunkSize := deps.ChunkSize
	if chunkSize <= 0 {
		chunkSize = config.ChunkSize
	}
	return &Dispatcher{
		queue:     NewQueue(),
		store:     deps.Store,
		settings:  deps.Settings,
		router:    deps.Router,
		resources: deps.Resources,
		transport: deps.Transport,
		intent:    deps.Intent,
		chunkSize: chunkSize,
	}
}

// Queue exposes the underlying queue for busy checks.
func (d *Dispatcher) Queue() *Queue {
	return d.queue
}

// Enqueue is the inbound entry point. It creates the conversation on
// first contact (snapshotting the active settings), classifies the
// message for image intent, appends the user entry and puts the work
// item. With createEmpty the conversation is created and persisted but
// nothing is queued.
func (d *Dispatcher) Enqueue(ctx context.Context, channelID, userID int64, text, role string, messageID int, createEmpty bool) error {
	id := domain.ConversationID(channelID, userID)

	if !d.store.Has(id) {
		if err := d.createConversation(id, channelID, userID); err != nil {
			return err
		}
	}
	if createEmpty {
		return nil
	}

	// The previous response loses its edit affordances once newer work
	// for the conversation exists. Best-effort.
	d.revokePreviousAffordances(ctx, id)

	if role == domain.RoleUser && d.intent != nil && d.intent.Matches(text) && d.intent.Confirm(ctx, text) {
		snap, _ := d.store.Snapshot(id)
		prompt := d.intent.Rewrite(ctx, snap.Messages, text)
		if err := d.appendInbound(id, role, text, messageID); err != nil {
			return err
		}
		d.put(id, prompt, RequestImage)
		return nil
	}

	if err := d.appendInbound(id, role, text, messageID); err != nil {
		return err
	}
	d.put(id, text, RequestText)
	return nil
}

func (d *Dispatcher) put(conversationID, payload string, kind RequestKind) {
	req := PendingRequest{
		ID:             uuid.New(),
		ConversationID: conversationID,
		Payload:        payload,
		Kind:           kind,
		EnqueuedAt:     time.Now(),
	}
	d.queue.Put(req)
	slog.Info("request enqueued", "request", req.ID, "conversation", conversationID, "kind", kind)
}

func (d *Dispatcher) appendInbound(id, role, text string, messageID int) error {
	entry := domain.TranscriptEntry{
		Role:       role,
		Content:    text,
		MessageIDs: []int{},
	}
	if messageID != 0 {
		entry.MessageIDs = []int{messageID}
	}
	return d.store.Append(id, entry)
}

func (d *Dispatcher) createConversation(id string, channelID, userID int64) error {
	charName, char := d.settings.ActiveCharacter()

	messages := []domain.TranscriptEntry{{
		Role:       domain.RoleSystem,
		Content:    char.SystemPrompt,
		MessageIDs: []int{},
		Type:       domain.EntryTypeCharacter,
	}}
	for _, seed := range char.Messages {
		seed.MessageIDs = []int{}
		messages = append(messages, seed)
	}

	rec := d.settings.Snapshot()
	conv := &domain.Conversation{
		ID:          id,
		ChannelID:   channelID,
		UserID:      userID,
		Timestamp:   time.Now().Format(time.RFC3339),
		ModelText:   rec.ModelText.Value,
		ModelImg:    rec.ModelImg.Value,
		Character:   charName,
		Temperature: rec.Temperature.Value,
		MaxTokens:   rec.MaxTokens.Value,
		Messages:    messages,
	}
	if err := d.store.Create(conv); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	slog.Info("conversation created", "conversation", id, "character", charName)
	return nil
}

// Clear removes a conversation on behalf of a user, subject to the
// owner and busy guards.
func (d *Dispatcher) Clear(channelID, userID int64) error {
	return d.store.Clear(domain.ConversationID(channelID, userID), userID, d.queue.Busy)
}

// Run drains the queue until ctx is done. Strict FIFO across all
// conversations: one request at a time, arrival order.
func (d *Dispatcher) Run(ctx context.Context) {
	slog.Info("dispatcher worker started")
	for {
		req, ok := d.queue.Get(ctx)
		if !ok {
			slog.Info("dispatcher worker stopped")
			return
		}
		d.process(ctx, req)
		d.queue.Done()
	}
}

func (d *Dispatcher) process(ctx context.Context, req PendingRequest) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic while processing request",
				"request", req.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	start := time.Now()
	var err error
	switch req.Kind {
	case RequestImage:
		err = d.processImage(ctx, req)
	default:
		err = d.processText(ctx, req)
	}
	if err != nil {
		slog.Error("request failed",
			"request", req.ID,
			"conversation", req.ConversationID,
			"kind", req.Kind,
			"error", err,
		)
		d.notifyFailure(ctx, req.ConversationID, err)
		return
	}
	slog.Info("request delivered",
		"request", req.ID,
		"conversation", req.ConversationID,
		"kind", req.Kind,
		"duration", time.Since(start),
	)
}

func (d *Dispatcher) processText(ctx context.Context, req PendingRequest) error {
	conv, ok := d.store.Snapshot(req.ConversationID)
	if !ok {
		return domain.ErrConversationNotFound
	}

	desc, err := d.settings.TextModel(conv.ModelText)
	if err != nil {
		return err
	}

	if desc.IsLocal() {
		if err := d.admit(ctx, desc); err != nil {
			return err
		}
	}

	client, cleanup, err := d.router.TextClient(desc)
	if err != nil {
		return err
	}
	defer cleanup()

	callCtx, cancel := context.WithTimeout(ctx, config.RequestTimeout)
	defer cancel()
	answer, err := client.Complete(callCtx, conv.Messages, desc, backend.CompletionParams{
		Temperature: conv.Temperature,
		MaxTokens:   conv.MaxTokens,
		TopP:        config.DefaultTopP,
	})
	if err != nil {
		return err
	}

	if err := d.store.Append(req.ConversationID, domain.TranscriptEntry{
		Role:       domain.RoleAssistant,
		Content:    answer,
		MessageIDs: []int{},
	}); err != nil {
		return err
	}

	ids := d.deliverText(ctx, conv.ChannelID, answer)
	if len(ids) == 0 {
		return nil
	}
	if err := d.store.AttachToLast(req.ConversationID, ids); err != nil {
		slog.Error("attach message ids", "conversation", req.ConversationID, "error", err)
	}
	d.addAffordances(ctx, conv.ChannelID, ids[len(ids)-1])
	return nil
}

func (d *Dispatcher) processImage(ctx context.Context, req PendingRequest) error {
	conv, ok := d.store.Snapshot(req.ConversationID)
	if !ok {
		return domain.ErrConversationNotFound
	}

	desc, err := d.settings.ImageModel(conv.ModelImg)
	if err != nil {
		return err
	}
	gen, err := d.router.ImageClient(desc)
	if err != nil {
		return err
	}

	img, err := gen.Generate(ctx, req.Payload, desc)
	if err != nil {
		return err
	}
	if img == nil {
		if _, sendErr := d.transport.Send(ctx, conv.ChannelID, "🖼 Image generation failed, please try again."); sendErr != nil {
			slog.Error("send failure notice", "conversation", req.ConversationID, "error", sendErr)
		}
		return d.store.Append(req.ConversationID, domain.TranscriptEntry{
			Role:       domain.RoleAssistant,
			Content:    "[image generation failed: " + req.Payload + "]",
			MessageIDs: []int{},
		})
	}

	path, err := d.store.SaveMedia(req.ConversationID, img)
	if err != nil {
		return err
	}

	msgID, err := d.transport.SendPhoto(ctx, conv.ChannelID, path)
	if err != nil {
		slog.Error("deliver image", "conversation", req.ConversationID, "error", err)
		msgID = 0
	}

	entry := domain.TranscriptEntry{
		Role:       domain.RoleAssistant,
		Content:    req.Payload,
		MessageIDs: []int{},
		Type:       domain.EntryTypeImage,
	}
	if msgID != 0 {
		entry.MessageIDs = []int{msgID}
	}
	if err := d.store.Append(req.ConversationID, entry); err != nil {
		return err
	}
	if msgID != 0 {
		d.addAffordances(ctx, conv.ChannelID, msgID)
	}
	return nil
}

// admit reserves local capacity for desc, evicting models no longer
// assigned to any conversation and retrying once before giving up.
func (d *Dispatcher) admit(ctx context.Context, desc domain.ModelDescriptor) error {
	if d.resources == nil || d.resources.Admit(desc.Name, desc.VRAMUsageGB) {
		return nil
	}
	d.resources.EvictUnused(ctx, d.store.ActiveTextModels())
	if d.resources.Admit(desc.Name, desc.VRAMUsageGB) {
		return nil
	}
	return fmt.Errorf("model %s needs %.1f GB: %w", desc.Name, desc.VRAMUsageGB, domain.ErrResourceExhausted)
}

func (d *Dispatcher) deliverText(ctx context.Context, channelID int64, text string) []int {
	var ids []int
	for _, part := range Chunk(text, d.chunkSize) {
		id, err := d.transport.Send(ctx, channelID, part)
		if err != nil {
			slog.Error("send chunk", "channel", channelID, "error", err)
			break
		}
		ids = append(ids, id)
	}
	return ids
}

func (d *Dispatcher) addAffordances(ctx context.Context, channelID int64, messageID int) {
	if err := d.transport.AddEditAffordances(ctx, channelID, messageID); err != nil {
		slog.Warn("add edit affordances", "message", messageID, "error", err)
	}
}

func (d *Dispatcher) revokePreviousAffordances(ctx context.Context, id string) {
	conv, ok := d.store.Snapshot(id)
	if !ok {
		return
	}
	last := conv.LastEntryWithRole(domain.RoleAssistant)
	if last == nil || len(last.MessageIDs) == 0 {
		return
	}
	messageID := last.MessageIDs[len(last.MessageIDs)-1]
	if err := d.transport.RemoveEditAffordances(ctx, conv.ChannelID, messageID); err != nil {
		slog.Warn("remove edit affordances", "message", messageID, "error", err)
	}
}

func (d *Dispatcher) notifyFailure(ctx context.Context, conversationID string, err error) {
	conv, ok := d.store.Snapshot(conversationID)
	if !ok {
		return
	}

	var text string
	var backendErr *domain.BackendError
	switch {
	case errors.Is(err, domain.ErrResourceExhausted):
		text = "⚠️ Not enough free VRAM for the selected model. Try again later or pick a smaller model."
	case errors.Is(err, domain.ErrUnknownModel):
		text = "⚠️ The selected model is not configured. Check the bot settings."
	case errors.As(err, &backendErr):
		text = "⚠️ The model backend returned an error. Please try again."
	default:
		text = "⚠️ Request failed. Please try again."
	}

	if _, sendErr := d.transport.Send(ctx, conv.ChannelID, text); sendErr != nil {
		slog.Error("send failure notice", "conversation", conversationID, "error", sendErr)
	}
}
