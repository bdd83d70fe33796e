// Package upload は画像のオブジェクトストレージへのアップロードを提供する。
// 検証はクライアント側のみで行う（MIME種別と最大サイズ）。アップロード成功と
// 所有レコード更新の間にトランザクション的な紐付けはない（仕様上の既知のギャップ）。
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/vartika/linkup/internal/metrics"
	"github.com/vartika/linkup/internal/model"
)

const (
	// BucketPosts は投稿画像のバケット名。
	BucketPosts = "posts"
	// BucketAvatars はプロフィール・カバー画像のバケット名。
	BucketAvatars = "avatars"
)

// ImageKind はプロフィール系画像の種別を表す。
type ImageKind string

const (
	// KindProfile はプロフィール（アバター）画像。
	KindProfile ImageKind = "profile"
	// KindCover はカバー画像。
	KindCover ImageKind = "cover"
)

// File はアップロード対象のファイルを表す。
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ObjectStore はオブジェクトストレージ操作のインターフェース。
type ObjectStore interface {
	Upload(ctx context.Context, bucket, objectPath string, data []byte, contentType string) error
	Remove(ctx context.Context, bucket string, objectPaths []string) error
	PublicURL(bucket, objectPath string) string
}

// Service は画像アップロードのサービス層。
type Service struct {
	store     ObjectStore
	maxSize   int64
	logger    *slog.Logger
	collector metrics.MetricsCollector

	// now はテストでファイル名を固定するためのフック。
	now func() time.Time
}

// SetMetrics はアップロード量を記録するコレクターを設定する。nil可。
func (s *Service) SetMetrics(collector metrics.MetricsCollector) {
	s.collector = collector
}

// NewService はServiceの新しいインスタンスを生成する。
// maxSizeが0以下の場合は既定の5MiBを使用する。
func NewService(store ObjectStore, maxSize int64, logger *slog.Logger) *Service {
	if maxSize <= 0 {
		maxSize = 5 * 1024 * 1024
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:   store,
		maxSize: maxSize,
		logger:  logger,
		now:     time.Now,
	}
}

// Validate はファイルがアップロード可能かを検証する。
// MIME種別が image/ で始まり、サイズが上限以下であること。
// 上限ちょうどは許容し、1バイト超過で拒否する。
func (s *Service) Validate(f File) error {
	if !strings.HasPrefix(f.ContentType, "image/") {
		return model.NewNotAnImageError()
	}
	if int64(len(f.Data)) > s.maxSize {
		return model.NewImageTooLargeError()
	}
	return nil
}

// UploadPostImage は投稿画像をアップロードし、公開URLを返す。
// オブジェクト名は現在時刻（ミリ秒）と元ファイルの拡張子から導出する。
func (s *Service) UploadPostImage(ctx context.Context, userID string, f File) (string, error) {
	if err := s.Validate(f); err != nil {
		return "", err
	}

	objectPath := userID + "/" + s.objectName("", f.Name)
	if err := s.store.Upload(ctx, BucketPosts, objectPath, f.Data, f.ContentType); err != nil {
		s.logger.Error("投稿画像のアップロードに失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to upload post image: %w", err)
	}
	if s.collector != nil {
		s.collector.RecordUploadBytes(int64(len(f.Data)))
	}
	return s.store.PublicURL(BucketPosts, objectPath), nil
}

// ReplaceProfileImage はプロフィール系画像を差し替えて公開URLを返す。
// 旧オブジェクトの削除はベストエフォートであり、失敗しても続行する。
// 所有レコードのURL更新は呼び出し元の責務。
func (s *Service) ReplaceProfileImage(ctx context.Context, userID string, kind ImageKind, f File, oldURL string) (string, error) {
	if err := s.Validate(f); err != nil {
		return "", err
	}

	if oldURL != "" {
		oldPath := path.Base(oldURL)
		if err := s.store.Remove(ctx, BucketAvatars, []string{oldPath}); err != nil {
			s.logger.Warn("旧画像の削除に失敗しました（続行します）",
				slog.String("object", oldPath),
				slog.String("error", err.Error()),
			)
		}
	}

	objectPath := s.objectName(userID+"_"+string(kind)+"_", f.Name)
	if err := s.store.Upload(ctx, BucketAvatars, objectPath, f.Data, f.ContentType); err != nil {
		s.logger.Error("プロフィール画像のアップロードに失敗しました",
			slog.String("user_id", userID),
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to upload %s image: %w", kind, err)
	}
	if s.collector != nil {
		s.collector.RecordUploadBytes(int64(len(f.Data)))
	}
	return s.store.PublicURL(BucketAvatars, objectPath), nil
}

// objectName は現在時刻（ミリ秒）と元ファイル名の拡張子からオブジェクト名を導出する。
func (s *Service) objectName(prefix, originalName string) string {
	ext := strings.TrimPrefix(path.Ext(originalName), ".")
	name := fmt.Sprintf("%s%d", prefix, s.now().UnixMilli())
	if ext != "" {
		name += "." + ext
	}
	return name
}
