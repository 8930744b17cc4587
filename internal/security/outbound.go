// Package security は外部APIへの送信とチケット本文の取り扱いに関する防御機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// blockedNetworks はエンドポイント検証でブロックするネットワーク範囲。
// 実際の接続時はsafeurlがDNS解決後のIPも検証する。
var blockedNetworks []*net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		// クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, network)
	}
}

// OutboundPolicy はLinearと生成プロバイダーへの送信に使うHTTPクライアントの方針を表す。
type OutboundPolicy struct {
	// Timeout は1リクエストあたりの上限時間。
	Timeout time.Duration
	// AllowPrivate がtrueの場合はプライベートアドレスへの送信を許可する。
	// ローカルのモックサーバーやテスト用。
	AllowPrivate bool
}

// NewClient は方針に従ったHTTPクライアントを生成する。
// AllowPrivateがfalseの場合、safeurlによりプライベートIP、ループバック、
// リンクローカル宛ての接続はDNS解決後に拒否される。
func (p OutboundPolicy) NewClient() *http.Client {
	if p.AllowPrivate {
		return &http.Client{Timeout: p.Timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(p.Timeout).
		SetAllowedSchemes("https").
		SetAllowedPorts(443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateEndpoint は設定されたエンドポイントURLを起動時に静的検証する。
// AllowPrivateがtrueの場合はスキームとホストの存在のみを確認する。
func (p OutboundPolicy) ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty endpoint URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in endpoint URL: %s", rawURL)
	}

	if p.AllowPrivate {
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("disallowed scheme: %s", scheme)
		}
		return nil
	}

	if scheme != "https" {
		return fmt.Errorf("disallowed scheme: %s (https required)", scheme)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil && isBlockedIP(ip) {
		return fmt.Errorf("blocked IP address: %s", ip.String())
	}

	return nil
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
