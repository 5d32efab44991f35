package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewSafeClient_Timeout(t *testing.T) {
	guard := NewSSRFGuard()
	client := guard.NewSafeClient(7*time.Second, 1024)
	if client == nil {
		t.Fatal("NewSafeClient() returned nil")
	}
	if client.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want %v", client.Timeout, 7*time.Second)
	}
	if client.Transport == nil || client.Transport == http.DefaultTransport {
		t.Error("safeurlのカスタムTransportが設定されているべき")
	}
}

// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewSafeClient_BlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewSSRFGuard().NewSafeClient(5*time.Second, 1024)
	if _, err := client.Get(ts.URL); err == nil {
		t.Fatal("ループバックへのリクエストはエラーになるべき")
	}
}

func TestValidateURL_Allowed(t *testing.T) {
	guard := NewSSRFGuard()

	for _, u := range []string{
		"https://status.example.com",
		"https://status.example.com/history.atom",
		"http://www.githubstatus.com/history.rss",
		"https://status.example.com:443/",
	} {
		t.Run(u, func(t *testing.T) {
			if err := guard.ValidateURL(u); err != nil {
				t.Errorf("ValidateURL(%q) returned error: %v", u, err)
			}
		})
	}
}

func TestValidateURL_Rejected(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name string
		url  string
	}{
		{"空URL", ""},
		{"スキームなし", "not-a-url"},
		{"ftpスキーム", "ftp://example.com/feed"},
		{"fileスキーム", "file:///etc/passwd"},
		{"プライベートIP 10/8", "http://10.0.0.1/feed"},
		{"プライベートIP 172.16/12", "http://172.31.255.255/feed"},
		{"プライベートIP 192.168/16", "http://192.168.1.100/feed"},
		{"ループバック", "http://127.0.0.1/feed"},
		{"localhost", "http://localhost/feed"},
		{"メタデータIP", "http://169.254.169.254/latest/meta-data/"},
		{"IPv6ループバック", "http://[::1]/feed"},
		{"ゼロアドレス", "http://0.0.0.0/feed"},
		{"許可外ポート", "https://status.example.com:8443/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := guard.ValidateURL(tt.url); err == nil {
				t.Errorf("ValidateURL(%q) should have returned error", tt.url)
			}
		})
	}
}

func TestValidateURL_CustomPorts(t *testing.T) {
	guard := NewSSRFGuard(8443)
	if err := guard.ValidateURL("https://status.example.com:8443/"); err != nil {
		t.Errorf("許可したポートは通過するべき: %v", err)
	}
	if err := guard.ValidateURL("https://status.example.com:9000/"); err == nil {
		t.Error("許可外ポートは拒否されるべき")
	}
}
