// Package http はプロバイダーアダプターが共有する外向きHTTPクライアントと、
// 上流レスポンスを分類するヘルパーを提供します。
package http

import (
	"net"
	"net/http"
	"time"
)

// DefaultUpstreamTimeout は1回のプロバイダー呼び出し全体の既定タイムアウトです。
const DefaultUpstreamTimeout = 10 * time.Second

// NewHTTPClient は上流プロバイダー呼び出し用のHTTPクライアントを作成します。
//
// 設定:
//   - Proxy: 環境変数（HTTP_PROXYなど）が設定されている場合に使用
//   - Dialer.Timeout: TCP接続タイムアウト
//   - MaxIdleConnsPerHost: 同一プロバイダーへの接続を再利用するため既定値より大きくする
//   - Client.Timeout: 1回の呼び出し全体のタイムアウト。0以下なら DefaultUpstreamTimeout
//
// 注意:
//   - タイムアウトは UPSTREAM_UNREACHABLE として扱われるため、リトライは行わない
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultUpstreamTimeout
	}
	t := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &http.Client{Timeout: timeout, Transport: t}
}
