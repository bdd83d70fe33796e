package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// restPrefix は行ストアAPIのパスプレフィックス。
const restPrefix = "/rest/v1/"

// QueryBuilder はコレクションに対する1回のクエリ条件を構築する。
// フィルタは宣言順にクエリ文字列へ展開され、実際の絞り込みは
// プラットフォーム側のクエリエンジンが行う。
type QueryBuilder struct {
	client *Client
	table  string
	params url.Values
	single bool
}

// Collection は指定コレクションへのQueryBuilderを生成する。
func (c *Client) Collection(table string) *QueryBuilder {
	return &QueryBuilder{
		client: c,
		table:  table,
		params: url.Values{},
	}
}

// Select は取得カラムを指定する。埋め込み指定（例: "*, profiles(id,full_name)"）も可。
func (q *QueryBuilder) Select(columns string) *QueryBuilder {
	q.params.Set("select", columns)
	return q
}

// Eq は column = value のフィルタを追加する。
func (q *QueryBuilder) Eq(column, value string) *QueryBuilder {
	q.params.Add(column, "eq."+value)
	return q
}

// Neq は column != value のフィルタを追加する。
func (q *QueryBuilder) Neq(column, value string) *QueryBuilder {
	q.params.Add(column, "neq."+value)
	return q
}

// In は column ∈ values のフィルタを追加する。
func (q *QueryBuilder) In(column string, values []string) *QueryBuilder {
	q.params.Add(column, "in.("+strings.Join(values, ",")+")")
	return q
}

// Or は複数条件のOR結合フィルタを追加する（プラットフォームの論理式構文）。
// 例: Or("sender_id.eq.a,receiver_id.eq.a")
func (q *QueryBuilder) Or(expr string) *QueryBuilder {
	q.params.Add("or", "("+expr+")")
	return q
}

// Order はソート順を指定する。descendingが真なら降順。
func (q *QueryBuilder) Order(column string, descending bool) *QueryBuilder {
	dir := "asc"
	if descending {
		dir = "desc"
	}
	q.params.Add("order", column+"."+dir)
	return q
}

// Limit は最大取得件数を指定する。
func (q *QueryBuilder) Limit(n int) *QueryBuilder {
	q.params.Set("limit", fmt.Sprintf("%d", n))
	return q
}

// Single は結果を単一オブジェクトとして要求する。
// 該当行が1件でない場合、プラットフォームはPGRST116エラーを返す。
func (q *QueryBuilder) Single() *QueryBuilder {
	q.single = true
	return q
}

// path はテーブルとパラメータからリクエストパスを構築する。
func (q *QueryBuilder) path() string {
	p := restPrefix + q.table
	if encoded := q.params.Encode(); encoded != "" {
		p += "?" + encoded
	}
	return p
}

// header は単一オブジェクト要求・表現返却のヘッダを構築する。
func (q *QueryBuilder) header(returning bool) http.Header {
	h := http.Header{}
	if q.single {
		h.Set("Accept", "application/vnd.pgrst.object+json")
	}
	if returning {
		h.Set("Prefer", "return=representation")
	}
	return h
}

// Get はクエリを実行し、結果をdestへデコードする。
func (q *QueryBuilder) Get(ctx context.Context, dest any) error {
	resp, err := q.client.do(ctx, http.MethodGet, q.path(), q.header(false), nil)
	if err != nil {
		return err
	}
	return decodeInto(resp, dest)
}

// Insert は行を挿入する。destがnilでなければ挿入結果の表現をデコードする。
func (q *QueryBuilder) Insert(ctx context.Context, payload any, dest any) error {
	resp, err := q.client.do(ctx, http.MethodPost, q.path(), q.header(dest != nil), payload)
	if err != nil {
		return err
	}
	return decodeInto(resp, dest)
}

// Update はフィルタに一致する行を部分更新する。
// destがnilでなければ更新結果の表現をデコードする。
func (q *QueryBuilder) Update(ctx context.Context, patch any, dest any) error {
	resp, err := q.client.do(ctx, http.MethodPatch, q.path(), q.header(dest != nil), patch)
	if err != nil {
		return err
	}
	return decodeInto(resp, dest)
}

// Delete はフィルタに一致する行を削除する。
func (q *QueryBuilder) Delete(ctx context.Context) error {
	resp, err := q.client.do(ctx, http.MethodDelete, q.path(), q.header(false), nil)
	if err != nil {
		return err
	}
	return decodeInto(resp, nil)
}

// RPC はストアドファンクションを呼び出し、結果をdestへデコードする。
// ユーザー名 → メールアドレスの逆引きなどサーバー側定義の関数に使用する。
func (c *Client) RPC(ctx context.Context, name string, args any, dest any) error {
	resp, err := c.do(ctx, http.MethodPost, restPrefix+"rpc/"+name, nil, args)
	if err != nil {
		return err
	}
	return decodeInto(resp, dest)
}
