package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/vartika/linkup/internal/model"
)

// Replier は1ターン分のアシスタント応答を取得するインターフェース。
// 失敗は固定フォールバック文言へ丸められ、決してハードエラーにならない。
type Replier interface {
	Reply(ctx context.Context, text string) string
}

// Service はAIチャットの送信と履歴管理をまとめるサービス層。
// 独立チャット画面とメッセージング内パネルの両方から共用される。
type Service struct {
	replier   Replier
	history   HistoryStore
	formatter *Formatter
	logger    *slog.Logger

	// now はテストで時刻を固定するためのフック。
	now func() time.Time
}

// SetFormatter は表示用HTML整形に使うフォーマッタを設定する。nil可。
// 履歴には常に整形前のテキストが保存される。
func (s *Service) SetFormatter(f *Formatter) {
	s.formatter = f
}

// Render は応答テキストを表示用HTMLへ整形する。
// フォーマッタ未設定の場合はテキストをそのまま返す。
func (s *Service) Render(text string) string {
	if s.formatter == nil {
		return text
	}
	return s.formatter.Format(text)
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(replier Replier, history HistoryStore, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		replier: replier,
		history: history,
		logger:  logger,
		now:     time.Now,
	}
}

// Send はユーザーテキストを履歴へ追加し、アシスタント応答を取得して
// さらに履歴へ追加する。ユーザーターンと応答ターンを返す。
// 応答取得の失敗は固定文言のターンとして履歴に残る（ユーザーターンは保持される）。
func (s *Service) Send(ctx context.Context, text string) (model.ChatTurn, model.ChatTurn, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return model.ChatTurn{}, model.ChatTurn{}, model.NewEmptyMessageError()
	}

	userTurn := model.ChatTurn{
		Role:      model.ChatRoleUser,
		Content:   trimmed,
		Timestamp: s.now(),
	}
	if err := s.history.Append(userTurn); err != nil {
		s.logger.Warn("チャット履歴の保存に失敗しました", slog.String("error", err.Error()))
	}

	reply := s.replier.Reply(ctx, trimmed)

	assistantTurn := model.ChatTurn{
		Role:      model.ChatRoleAssistant,
		Content:   reply,
		Timestamp: s.now(),
	}
	if err := s.history.Append(assistantTurn); err != nil {
		s.logger.Warn("チャット履歴の保存に失敗しました", slog.String("error", err.Error()))
	}

	return userTurn, assistantTurn, nil
}

// History は保存済みのチャット履歴を返す。
func (s *Service) History() ([]model.ChatTurn, error) {
	return s.history.Load()
}

// Clear はチャット履歴をすべて削除する。
func (s *Service) Clear() error {
	return s.history.Clear()
}
