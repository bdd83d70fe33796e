package backend

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// unsignedJWT は指定expクレームを持つ検証不能なテスト用トークンを組み立てる。
func unsignedJWT(t *testing.T, exp int64) string {
	t.Helper()
	encode := func(v any) string {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("failed to marshal claims: %v", err)
		}
		return base64.RawURLEncoding.EncodeToString(raw)
	}
	header := encode(map[string]string{"alg": "HS256", "typ": "JWT"})
	claims := encode(map[string]int64{"exp": exp})
	// 署名部も正当なbase64urlでなければParseUnverifiedがトークン全体を拒否する
	signature := base64.RawURLEncoding.EncodeToString([]byte("sig"))
	return header + "." + claims + "." + signature
}

// TestClient_SignInWithPassword はサインインのレスポンス変換を検証する。
func TestClient_SignInWithPassword(t *testing.T) {
	t.Run("トークンと有効期限が復元される", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Unix()
		token := unsignedJWT(t, exp)

		var gotPath, gotQuery string
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			json.NewEncoder(w).Encode(map[string]any{
				"access_token":  token,
				"refresh_token": "refresh-1",
				"user":          map[string]string{"id": "user-1", "email": "taro@example.com"},
			})
		})

		sess, err := client.SignInWithPassword(context.Background(), "taro@example.com", "secret")
		if err != nil {
			t.Fatalf("sign-in failed: %v", err)
		}
		if gotPath != "/auth/v1/token" || gotQuery != "grant_type=password" {
			t.Errorf("unexpected request %s?%s", gotPath, gotQuery)
		}
		if sess.AccessToken != token || sess.RefreshToken != "refresh-1" {
			t.Errorf("unexpected session tokens: %+v", sess)
		}
		if sess.User.ID != "user-1" || sess.User.Email != "taro@example.com" {
			t.Errorf("unexpected user: %+v", sess.User)
		}
		if sess.ExpiresAt.Unix() != exp {
			t.Errorf("expected expiry %d, got %d", exp, sess.ExpiresAt.Unix())
		}
	})

	t.Run("不正なトークンでも有効期限ゼロ値で継続する", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "not-a-jwt",
				"user":         map[string]string{"id": "user-1"},
			})
		})

		sess, err := client.SignInWithPassword(context.Background(), "taro@example.com", "secret")
		if err != nil {
			t.Fatalf("sign-in failed: %v", err)
		}
		if !sess.ExpiresAt.IsZero() {
			t.Errorf("expected zero expiry, got %v", sess.ExpiresAt)
		}
	})

	t.Run("アクセストークンなしのレスポンスはエラー", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("{}"))
		})

		if _, err := client.SignInWithPassword(context.Background(), "taro@example.com", "secret"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("認証失敗ステータスはAPIErrorになる", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"message": "Invalid login credentials"})
		})

		if _, err := client.SignInWithPassword(context.Background(), "taro@example.com", "wrong"); err == nil {
			t.Error("expected error")
		}
	})
}

// TestTokenExpiry はJWT expクレームの復元を検証する。
func TestTokenExpiry(t *testing.T) {
	t.Run("3セグメントすべてが正当なbase64urlなら復元できる", func(t *testing.T) {
		exp := int64(1788141439)
		got := tokenExpiry(unsignedJWT(t, exp))
		if got.Unix() != exp {
			t.Errorf("tokenExpiry = %v, want unix %d", got, exp)
		}
	})

	t.Run("署名部がbase64urlとして不正ならゼロ値を返す", func(t *testing.T) {
		exp := int64(1788141439)
		token := unsignedJWT(t, exp)
		// 長さ9はbase64urlとして不正（9 mod 4 == 1）
		malformed := token[:strings.LastIndex(token, ".")+1] + "signature"
		if got := tokenExpiry(malformed); !got.IsZero() {
			t.Errorf("tokenExpiry = %v, want zero time", got)
		}
	})
}

// TestClient_Upload はストレージアップロードのヘッダとパスを検証する。
func TestClient_Upload(t *testing.T) {
	var gotPath, gotContentType, gotUpsert string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		gotUpsert = r.Header.Get("x-upsert")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	client := New(server.URL, "anon-key", 0, nil)

	err := client.Upload(context.Background(), "posts", "user-1/1.png", []byte{0x1}, "image/png")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if gotPath != "/storage/v1/object/posts/user-1/1.png" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotContentType != "image/png" {
		t.Errorf("unexpected content type %q", gotContentType)
	}
	if gotUpsert != "true" {
		t.Errorf("expected upsert header, got %q", gotUpsert)
	}
}

// TestClient_PublicURL は公開URLの組み立てを検証する。
func TestClient_PublicURL(t *testing.T) {
	client := New("https://backend.example.com/", "anon-key", 0, nil)

	got := client.PublicURL("avatars", "user-1_profile_1.png")
	want := "https://backend.example.com/storage/v1/object/public/avatars/user-1_profile_1.png"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

// TestClient_Remove は削除リクエストのペイロードを検証する。
func TestClient_Remove(t *testing.T) {
	var gotBody map[string][]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		fmt.Fprint(w, "[]")
	})

	if err := client.Remove(context.Background(), "avatars", []string{"old.png"}); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if len(gotBody["prefixes"]) != 1 || gotBody["prefixes"][0] != "old.png" {
		t.Errorf("unexpected payload %v", gotBody)
	}
}
