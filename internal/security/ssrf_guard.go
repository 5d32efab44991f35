// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SSRFGuardService はステータスページ取得時のSSRF防止機能のインターフェース。
// 企業登録時の事前検証と、定期チェック時のHTTPクライアント生成の両方で使用する。
type SSRFGuardService interface {
	// NewSafeClient はプライベートIP等への接続をDialerレベルで拒否するHTTPクライアントを生成する。
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
	// ValidateURL はDNS解決を伴わない静的なURL検証を行う。
	ValidateURL(rawURL string) error
}

// defaultPorts はステータスページ取得で許可するポート。
var defaultPorts = []int{80, 443}

// blockedNetworks はValidateURLで拒否するネットワーク範囲。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",     // RFC 1918
	"172.16.0.0/12",  // RFC 1918
	"192.168.0.0/16", // RFC 1918
	"127.0.0.0/8",    // ループバック
	"169.254.0.0/16", // リンクローカル（クラウドメタデータIPを含む）
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

// blockedHostnames はホスト名の段階で拒否する名前。
var blockedHostnames = map[string]bool{
	"localhost": true,
}

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, n, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		nets = append(nets, n)
	}
	return nets
}

// SSRFGuard はSSRFGuardServiceの実装。
type SSRFGuard struct {
	allowedPorts []int
}

// NewSSRFGuard はSSRFGuardを生成する。portsが空の場合は80/443のみ許可する。
func NewSSRFGuard(ports ...int) *SSRFGuard {
	if len(ports) == 0 {
		ports = defaultPorts
	}
	return &SSRFGuard{allowedPorts: ports}
}

// NewSafeClient はsafeurlでラップしたHTTPクライアントを返す。
// safeurlはDNS解決後のIPをDialerのControlフックで検証するため、DNS再バインディングにも対応する。
// maxResponseSizeはクライアントでは強制せず、呼び出し側がio.LimitReaderで制限する。
func (g *SSRFGuard) NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(g.allowedPorts...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL はスキーム・ホスト・ポート・IPアドレスを静的に検証する。
func (g *SSRFGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if p := parsed.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil || !g.portAllowed(port) {
			return fmt.Errorf("disallowed port: %s", p)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		for _, n := range blockedNetworks {
			if n.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip)
			}
		}
		return nil
	}

	if blockedHostnames[strings.ToLower(host)] {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

func (g *SSRFGuard) portAllowed(port int) bool {
	for _, p := range g.allowedPorts {
		if p == port {
			return true
		}
	}
	return false
}

var _ SSRFGuardService = (*SSRFGuard)(nil)
