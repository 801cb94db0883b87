package geoip

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/version"
)

// ProxyDetector answers whether an address is a known Tor exit node or open
// proxy. The list holds one IP or CIDR per line; '#' starts a comment.
type ProxyDetector struct {
	path   string
	url    string
	client *http.Client

	mu       sync.RWMutex
	addrs    map[netip.Addr]struct{}
	prefixes []netip.Prefix
}

// NewProxyDetector returns a detector backed by the list at path, optionally
// refreshed from url. Either may be empty.
func NewProxyDetector(path, url string) *ProxyDetector {
	return &ProxyDetector{
		path:   path,
		url:    url,
		client: &http.Client{Timeout: 60 * time.Second},
		addrs:  map[netip.Addr]struct{}{},
	}
}

// Load reads the list file. A missing file leaves the detector empty.
func (d *ProxyDetector) Load() error {
	if d.path == "" {
		return nil
	}
	f, err := os.Open(d.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open proxy list: %w", err)
	}
	defer f.Close()

	n, err := d.LoadFrom(f)
	if err != nil {
		return err
	}
	logger.Component("geoip").WithField("entries", n).Info("proxy list loaded")
	return nil
}

// LoadFrom replaces the detector contents with the entries read from r and
// returns how many were accepted. Unparseable lines are skipped.
func (d *ProxyDetector) LoadFrom(r io.Reader) (int, error) {
	addrs := map[netip.Addr]struct{}{}
	var prefixes []netip.Prefix

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "/") {
			if p, err := netip.ParsePrefix(line); err == nil {
				prefixes = append(prefixes, p.Masked())
			}
			continue
		}
		if a, err := netip.ParseAddr(line); err == nil {
			addrs[a.Unmap()] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read proxy list: %w", err)
	}

	d.mu.Lock()
	d.addrs = addrs
	d.prefixes = prefixes
	d.mu.Unlock()
	return len(addrs) + len(prefixes), nil
}

// Refresh downloads the list from the configured URL, stores it at the
// configured path and reloads it. It is a no-op without a URL.
func (d *ProxyDetector) Refresh(ctx context.Context) error {
	if d.url == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", version.UserAgent())
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download proxy list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download proxy list: status %d", resp.StatusCode)
	}

	if d.path == "" {
		_, err := d.LoadFrom(resp.Body)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(d.path), "proxies-*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), d.path); err != nil {
		return err
	}
	return d.Load()
}

// IsTorOrProxy reports whether ip is on the list.
func (d *ProxyDetector) IsTorOrProxy(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	d.mu.RLock()
	defer d.mu.RUnlock()
	if _, ok := d.addrs[addr]; ok {
		return true
	}
	for _, p := range d.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Size returns the number of list entries.
func (d *ProxyDetector) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.addrs) + len(d.prefixes)
}
