package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vartika/linkup/internal/backend"
	"github.com/vartika/linkup/internal/model"
)

// Store はメッセージと関連プロフィールの外部ストア操作インターフェース。
type Store interface {
	// History は自分が送信者または受信者である全メッセージを返す（新しい順）。
	History(ctx context.Context, selfID string) ([]model.Message, error)
	// Thread は指定2者間の双方向メッセージを返す（古い順）。
	Thread(ctx context.Context, selfID, peerID string) ([]model.Message, error)
	// MarkRead はpeer→selfの全メッセージを既読にする。
	MarkRead(ctx context.Context, selfID, peerID string) error
	// Insert はメッセージ行を挿入し、採番済みの行を返す。
	Insert(ctx context.Context, senderID, receiverID, content string) (*model.Message, error)
	// ProfileSummaries は指定ID集合のプロフィール要約を返す。
	ProfileSummaries(ctx context.Context, ids []string) (map[string]model.ProfileSummary, error)
}

// AssistantChat はAIアシスタント宛の送信インターフェース。
// 送信はメッセージストアを完全にバイパスし、端末ローカル履歴のみを更新する。
type AssistantChat interface {
	Send(ctx context.Context, text string) (model.ChatTurn, model.ChatTurn, error)
	History() ([]model.ChatTurn, error)
	Clear() error
}

// Service はメッセージングページのクライアント状態を同期するサービス層。
//
// 選択状態の遷移: {未選択} → {AIアシスタント} | {相手との会話}。
// 相手選択時はスレッド読み込み・既読化・相手スコープ購読の登録を行い、
// 選択解除時に購読を解除する。これと独立に、ページ寿命の全メッセージ購読が
// 会話一覧のプレビューを最新に保つ。
//
// 2系統の通知と送信成功時の楽観的追記はすべてingestを経由し、
// メッセージIDベースの集合和として適用される。同一IDがスレッドに
// 2回現れることはない。
type Service struct {
	selfID    string
	store     Store
	realtime  backend.Realtime
	assistant AssistantChat
	logger    *slog.Logger

	mu            sync.Mutex
	conversations []model.Conversation
	selected      string
	thread        []model.Message
	threadIDs     map[string]struct{}
	draft         string
	unsubPeer     func()
	unsubAll      func()
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(selfID string, store Store, realtime backend.Realtime, assistant AssistantChat, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		selfID:    selfID,
		store:     store,
		realtime:  realtime,
		assistant: assistant,
		logger:    logger,
		threadIDs: make(map[string]struct{}),
	}
}

// Start は会話一覧を読み込み、ページ寿命の全メッセージ購読を登録する。
func (s *Service) Start(ctx context.Context) error {
	if err := s.ReloadConversations(ctx); err != nil {
		return err
	}

	unsub, err := s.realtime.Subscribe("all-messages",
		backend.ChangeFilter{Event: string(backend.ChangeInsert), Table: "messages"},
		s.handleGlobalInsert,
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe all-messages channel: %w", err)
	}

	s.mu.Lock()
	s.unsubAll = unsub
	s.mu.Unlock()
	return nil
}

// Close は保持中の購読をすべて解除する。ページ破棄時に呼ぶ。
func (s *Service) Close() {
	s.mu.Lock()
	unsubPeer, unsubAll := s.unsubPeer, s.unsubAll
	s.unsubPeer, s.unsubAll = nil, nil
	s.mu.Unlock()

	if unsubPeer != nil {
		unsubPeer()
	}
	if unsubAll != nil {
		unsubAll()
	}
}

// ReloadConversations はメッセージ履歴から会話一覧を再構築する。
func (s *Service) ReloadConversations(ctx context.Context) error {
	history, err := s.store.History(ctx, s.selfID)
	if err != nil {
		return fmt.Errorf("failed to load message history: %w", err)
	}

	correspondents := DeriveCorrespondents(history, s.selfID)

	ids := make([]string, 0, len(correspondents))
	for _, c := range correspondents {
		ids = append(ids, c.ID)
	}

	profiles := map[string]model.ProfileSummary{}
	if len(ids) > 0 {
		profiles, err = s.store.ProfileSummaries(ctx, ids)
		if err != nil {
			return fmt.Errorf("failed to load correspondent profiles: %w", err)
		}
	}

	conversations := BuildConversations(correspondents, profiles)

	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()
	return nil
}

// Conversations は会話一覧のスナップショットを返す。
func (s *Service) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Conversation(nil), s.conversations...)
}

// Selected は現在選択中の会話IDを返す。未選択の場合は空文字列。
func (s *Service) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Select は会話を選択する。
//
// 相手との会話を選択した場合は全履歴の読み込み・既読化・相手スコープ購読の
// 登録を行う。以前の相手スコープ購読は必ず解除される（コールバックが
// 古い状態へ発火し続けるのを防ぐ）。空文字列で未選択状態に戻る。
func (s *Service) Select(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	unsubPeer := s.unsubPeer
	s.unsubPeer = nil
	s.selected = conversationID
	s.thread = nil
	s.threadIDs = make(map[string]struct{})
	s.mu.Unlock()

	if unsubPeer != nil {
		unsubPeer()
	}

	if conversationID == "" || conversationID == model.AssistantConversationID {
		return nil
	}

	messages, err := s.store.Thread(ctx, s.selfID, conversationID)
	if err != nil {
		return fmt.Errorf("failed to load messages: %w", err)
	}

	if err := s.store.MarkRead(ctx, s.selfID, conversationID); err != nil {
		// 既読化の失敗は表示を妨げない
		s.logger.Warn("既読化に失敗しました",
			slog.String("peer_id", conversationID),
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	if s.selected != conversationID {
		// 読み込み中に別の会話へ遷移済み。結果を破棄する。
		s.mu.Unlock()
		return nil
	}
	s.thread = messages
	s.threadIDs = make(map[string]struct{}, len(messages))
	for _, m := range messages {
		s.threadIDs[m.ID] = struct{}{}
	}
	s.mu.Unlock()

	peerID := conversationID
	unsub, err := s.realtime.Subscribe("messages-"+peerID,
		backend.ChangeFilter{Event: string(backend.ChangeInsert), Table: "messages"},
		func(ev backend.ChangeEvent) { s.handlePeerInsert(peerID, ev) },
	)
	if err != nil {
		return fmt.Errorf("failed to subscribe peer channel: %w", err)
	}

	s.mu.Lock()
	if s.selected != peerID {
		s.mu.Unlock()
		unsub()
		return nil
	}
	s.unsubPeer = unsub
	s.mu.Unlock()
	return nil
}

// Messages は選択中スレッドのスナップショットを返す（古い順）。
func (s *Service) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.thread...)
}

// SetDraft は入力中のメッセージ本文を設定する。
func (s *Service) SetDraft(text string) {
	s.mu.Lock()
	s.draft = text
	s.mu.Unlock()
}

// Draft は入力中のメッセージ本文を返す。
func (s *Service) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// Send は入力中の本文を選択中の会話へ送信する。
//
// 入力は送信前に楽観的にクリアされる。AIアシスタント宛の場合は
// メッセージストアを介さず端末ローカル履歴と生成APIのみを使う。
// 相手宛の挿入失敗時は入力本文を復元し、自動リトライは行わない。
func (s *Service) Send(ctx context.Context) (*model.Message, error) {
	s.mu.Lock()
	content := strings.TrimSpace(s.draft)
	selected := s.selected
	if content == "" {
		s.mu.Unlock()
		return nil, model.NewEmptyMessageError()
	}
	if selected == "" {
		s.mu.Unlock()
		return nil, model.NewNoSelectionError()
	}
	// 楽観的クリア。失敗時はこの値を復元する。
	s.draft = ""
	s.mu.Unlock()

	if selected == model.AssistantConversationID {
		if _, _, err := s.assistant.Send(ctx, content); err != nil {
			return nil, err
		}
		return nil, nil
	}

	sent, err := s.store.Insert(ctx, s.selfID, selected, content)
	if err != nil {
		s.mu.Lock()
		s.draft = content
		s.mu.Unlock()
		s.logger.Error("メッセージ送信に失敗しました",
			slog.String("peer_id", selected),
			slog.String("error", err.Error()),
		)
		return nil, model.NewBackendRejectedError("send message")
	}

	// リアルタイム通知でも同じ行が届くが、ingestのID重複排除により
	// スレッドには1回だけ現れる。
	s.ingest(selected, *sent)

	if err := s.ReloadConversations(ctx); err != nil {
		s.logger.Warn("会話一覧の再読み込みに失敗しました", slog.String("error", err.Error()))
	}
	return sent, nil
}

// ingest は通知・楽観的追記の全経路が通る単一のマージ関数。
// 選択中の相手に属さないメッセージと既知IDのメッセージは無視される。
func (s *Service) ingest(peerID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.selected != peerID {
		return
	}
	if !msg.Between(s.selfID, peerID) {
		return
	}
	if _, seen := s.threadIDs[msg.ID]; seen {
		return
	}
	s.threadIDs[msg.ID] = struct{}{}
	s.thread = append(s.thread, msg)
}

// handleGlobalInsert はページ寿命の全メッセージ購読のハンドラ。
// 自分が関与するメッセージであれば会話一覧を再読み込みし、
// 選択中の相手に該当する場合はスレッドへもマージする。
func (s *Service) handleGlobalInsert(ev backend.ChangeEvent) {
	msg, ok := decodeMessage(ev.NewRow)
	if !ok {
		s.logger.Warn("メッセージ通知のパースに失敗しました")
		return
	}
	if !msg.Involves(s.selfID) {
		return
	}

	if err := s.ReloadConversations(context.Background()); err != nil {
		s.logger.Warn("会話一覧の再読み込みに失敗しました", slog.String("error", err.Error()))
	}

	s.mu.Lock()
	selected := s.selected
	s.mu.Unlock()
	if selected != "" && selected != model.AssistantConversationID {
		s.ingest(selected, msg)
	}
}

// handlePeerInsert は相手スコープ購読のハンドラ。
func (s *Service) handlePeerInsert(peerID string, ev backend.ChangeEvent) {
	msg, ok := decodeMessage(ev.NewRow)
	if !ok {
		s.logger.Warn("メッセージ通知のパースに失敗しました")
		return
	}
	s.ingest(peerID, msg)
}

// decodeMessage は通知ペイロードの行をmodel.Messageへ復元する。
func decodeMessage(raw json.RawMessage) (model.Message, bool) {
	var msg model.Message
	if len(raw) == 0 {
		return msg, false
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, false
	}
	return msg, msg.ID != ""
}

// Assistant はAIアシスタントチャットへの参照を返す。
// 履歴の取得とクリアはメッセージングページ側のUIからも行われる。
func (s *Service) Assistant() AssistantChat {
	return s.assistant
}
