// ABOUTME: SSH-tunnelled SOCKS5 dialer for reaching APIs behind a jumpbox
// ABOUTME: Parses ssh+socks5://user@host:port?private-key=/path and dials lazily

package transport

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	proxy "github.com/cloudfoundry/socks5-proxy"
)

// DialContextFunc matches http.Transport.DialContext.
type DialContextFunc func(ctx context.Context, network, address string) (net.Conn, error)

// socks5Dialer returns a dialer tunnelling through the SSH jumpbox named in
// allProxy. The SSH connection is established on first dial.
func socks5Dialer(allProxy string) (DialContextFunc, error) {
	// Strip ssh+ prefix if present
	allProxy = strings.TrimPrefix(allProxy, "ssh+")

	proxyURL, err := url.Parse(allProxy)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy URL: %w", err)
	}
	if proxyURL.Host == "" {
		return nil, fmt.Errorf("proxy URL %q has no host", allProxy)
	}

	queryMap, err := url.ParseQuery(proxyURL.RawQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to parse proxy query params: %w", err)
	}

	username := ""
	if proxyURL.User != nil {
		username = proxyURL.User.Username()
	}

	proxySSHKeyPath := queryMap.Get("private-key")
	if proxySSHKeyPath == "" {
		return nil, fmt.Errorf("proxy URL missing required 'private-key' query param")
	}

	proxySSHKey, err := os.ReadFile(proxySSHKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH private key %s: %w", proxySSHKeyPath, err)
	}

	// Create the socks5 proxy with host key callback
	socks5Proxy := proxy.NewSocks5Proxy(proxy.NewHostKey(), log.Default(), 1*time.Minute)

	var (
		dialer proxy.DialFunc
		mut    sync.RWMutex
	)

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mut.RLock()
		d := dialer
		mut.RUnlock()

		if d != nil {
			return d(network, address)
		}

		mut.Lock()
		defer mut.Unlock()
		if dialer == nil {
			proxyDialer, err := socks5Proxy.Dialer(username, string(proxySSHKey), proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
			}
			dialer = proxyDialer
		}
		return dialer(network, address)
	}, nil
}
