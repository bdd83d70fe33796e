package backend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/vartika/linkup/internal/metrics"
)

// heartbeatInterval はリアルタイム接続のハートビート間隔。
const heartbeatInterval = 30 * time.Second

// ChangeType は行ストアの変更種別を表す。
type ChangeType string

const (
	// ChangeInsert は行の挿入を表す。
	ChangeInsert ChangeType = "INSERT"
	// ChangeUpdate は行の更新を表す。
	ChangeUpdate ChangeType = "UPDATE"
	// ChangeDelete は行の削除を表す。
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent はリアルタイムチャネル経由でプッシュされる行変更通知を表す。
// NewRowは挿入・更新後の行、OldRowは削除・更新前の行（主キーのみの場合がある）。
type ChangeEvent struct {
	Type   ChangeType
	Table  string
	NewRow json.RawMessage
	OldRow json.RawMessage
}

// ChangeFilter は購読対象の変更を絞り込む。Eventは"*"で全種別。
type ChangeFilter struct {
	Event string
	Table string
}

// ChangeHandler は変更通知を受け取るコールバック。
// ソケット読み取りゴルーチンから呼ばれるため、受け側で排他すること。
type ChangeHandler func(ChangeEvent)

// Realtime はリアルタイム購読の獲得インターフェース。
// 返される関数で購読を解除する（選択解除・画面破棄時に必ず呼ぶ）。
type Realtime interface {
	Subscribe(channel string, filter ChangeFilter, handler ChangeHandler) (func(), error)
}

// phoenixMessage はリアルタイムサーバーとのワイヤメッセージ。
type phoenixMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// changePayload はpostgres_changesイベントのペイロード。
type changePayload struct {
	Data struct {
		Type      ChangeType      `json:"type"`
		Table     string          `json:"table"`
		Record    json.RawMessage `json:"record"`
		OldRecord json.RawMessage `json:"old_record"`
	} `json:"data"`
}

// subscription は1チャネル分の購読状態。
type subscription struct {
	filter  ChangeFilter
	handler ChangeHandler
}

// RealtimeClient はWebSocket上のリアルタイム変更フィードクライアント。
// 接続は最初の購読時に確立し、以後のチャネル参加を多重化する。
// 切断時の自動再接続は行わない（失敗はその試行限りで終端）。
type RealtimeClient struct {
	wsURL     string
	anonKey   string
	logger    *slog.Logger
	collector metrics.MetricsCollector

	mu     sync.Mutex
	conn   *websocket.Conn
	topics map[string][]*subscription
	closed bool
}

// NewRealtimeClient はRealtimeClientの新しいインスタンスを生成する。
// baseURLはプラットフォームのHTTP URLを指定する（ws URLへは内部で変換）。
func NewRealtimeClient(baseURL, anonKey string, logger *slog.Logger) *RealtimeClient {
	if logger == nil {
		logger = slog.Default()
	}
	wsURL := strings.Replace(strings.TrimRight(baseURL, "/"), "http", "ws", 1)
	return &RealtimeClient{
		wsURL:   wsURL + "/realtime/v1/websocket?vsn=1.0.0&apikey=" + anonKey,
		anonKey: anonKey,
		logger:  logger,
		topics:  make(map[string][]*subscription),
	}
}

// SetMetrics は変更通知を記録するコレクターを設定する。nil可。
func (r *RealtimeClient) SetMetrics(collector metrics.MetricsCollector) {
	r.collector = collector
}

// Subscribe は論理チャネルを購読し、フィルタに一致する変更をhandlerへ配送する。
// 返される関数を呼ぶと購読を解除する。
func (r *RealtimeClient) Subscribe(channel string, filter ChangeFilter, handler ChangeHandler) (func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("realtime client is closed")
	}
	if r.conn == nil {
		conn, err := websocket.Dial(r.wsURL, "", "http://localhost/")
		if err != nil {
			return nil, fmt.Errorf("failed to connect realtime endpoint: %w", err)
		}
		r.conn = conn
		go r.readLoop(conn)
		go r.heartbeatLoop(conn)
	}

	topic := "realtime:" + channel
	sub := &subscription{filter: filter, handler: handler}

	if err := r.send(topic, "phx_join", map[string]any{
		"config": map[string]any{
			"postgres_changes": []map[string]string{
				{"event": filter.Event, "schema": "public", "table": filter.Table},
			},
		},
	}); err != nil {
		return nil, fmt.Errorf("failed to join channel %q: %w", channel, err)
	}

	r.topics[topic] = append(r.topics[topic], sub)
	r.logger.Info("リアルタイムチャネルを購読しました",
		slog.String("channel", channel),
		slog.String("table", filter.Table),
		slog.String("event", filter.Event),
	)

	return func() { r.unsubscribe(topic, sub) }, nil
}

// unsubscribe は購読を解除し、チャネルの最後の購読だった場合はphx_leaveを送る。
func (r *RealtimeClient) unsubscribe(topic string, sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.topics[topic]
	for i, s := range subs {
		if s == sub {
			r.topics[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.topics[topic]) == 0 {
		delete(r.topics, topic)
		if err := r.send(topic, "phx_leave", struct{}{}); err != nil {
			r.logger.Warn("チャネル離脱の送信に失敗しました",
				slog.String("topic", topic),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Close は接続を閉じ、以降の購読を拒否する。
func (r *RealtimeClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.topics = make(map[string][]*subscription)
	if r.conn != nil {
		conn := r.conn
		r.conn = nil
		return conn.Close()
	}
	return nil
}

// send はワイヤメッセージを送信する。呼び出し側でmuを保持していること。
func (r *RealtimeClient) send(topic, event string, payload any) error {
	if r.conn == nil {
		return fmt.Errorf("realtime connection is not established")
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return websocket.JSON.Send(r.conn, phoenixMessage{
		Topic:   topic,
		Event:   event,
		Payload: encoded,
		Ref:     uuid.NewString(),
	})
}

// readLoop は受信メッセージを購読へディスパッチする。
// 読み取りエラーで終了する（再接続しない）。
func (r *RealtimeClient) readLoop(conn *websocket.Conn) {
	for {
		var msg phoenixMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			r.logger.Error("リアルタイム接続の読み取りに失敗しました",
				slog.String("error", err.Error()),
			)
			return
		}
		if msg.Event != "postgres_changes" {
			continue
		}

		var payload changePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			r.logger.Warn("変更通知ペイロードのパースに失敗しました",
				slog.String("topic", msg.Topic),
				slog.String("error", err.Error()),
			)
			continue
		}

		event := ChangeEvent{
			Type:   payload.Data.Type,
			Table:  payload.Data.Table,
			NewRow: payload.Data.Record,
			OldRow: payload.Data.OldRecord,
		}
		if r.collector != nil {
			r.collector.RecordRealtimeEvent(event.Table)
		}

		r.mu.Lock()
		subs := append([]*subscription(nil), r.topics[msg.Topic]...)
		r.mu.Unlock()

		for _, sub := range subs {
			if sub.filter.Table != "" && sub.filter.Table != event.Table {
				continue
			}
			if sub.filter.Event != "*" && sub.filter.Event != string(event.Type) {
				continue
			}
			sub.handler(event)
		}
	}
}

// heartbeatLoop は一定間隔でハートビートを送信する。
// 送信エラーで終了する。
func (r *RealtimeClient) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for range ticker.C {
		r.mu.Lock()
		stale := r.conn != conn
		var err error
		if !stale {
			err = r.send("phoenix", "heartbeat", struct{}{})
		}
		r.mu.Unlock()
		if stale {
			return
		}
		if err != nil {
			r.logger.Warn("ハートビート送信に失敗しました", slog.String("error", err.Error()))
			return
		}
	}
}
