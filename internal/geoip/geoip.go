// Package geoip resolves ASN, organisation, country and proxy reputation for
// client addresses.
package geoip

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"time"

	"github.com/oschwald/geoip2-golang"
	cache "github.com/patrickmn/go-cache"

	"github.com/decoyworks/honeypot/internal/logger"
	"github.com/decoyworks/honeypot/internal/metrics"
)

const (
	unknown    = "Unknown"
	asnFile    = "GeoLite2-ASN.mmdb"
	countryDB  = "GeoLite2-Country.mmdb"
	unknownIP  = "unknown_ip"
	loopbackV4 = "127.0.0.1"
)

// Info is the reputation snapshot attached to scan events.
type Info struct {
	ASN          string `json:"asn"`
	Org          string `json:"org"`
	Country      string `json:"country"`
	IsTorOrProxy bool   `json:"is_tor_or_proxy"`
}

// Lookup resolves reputation for an address. Implementations never fail;
// degraded lookups report "Unknown".
type Lookup interface {
	Lookup(ctx context.Context, ip string) Info
}

type asnReader interface {
	ASN(ip net.IP) (*geoip2.ASN, error)
}

type countryReader interface {
	Country(ip net.IP) (*geoip2.Country, error)
}

// Service is the MaxMind-backed Lookup with a TTL cache.
type Service struct {
	asn     asnReader
	country countryReader
	proxies *ProxyDetector
	cache   *cache.Cache
	closers []func() error
}

// NewService builds a Service from already opened readers. Any argument may be nil.
func NewService(asn asnReader, country countryReader, proxies *ProxyDetector, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{
		asn:     asn,
		country: country,
		proxies: proxies,
		cache:   cache.New(ttl, 2*ttl),
	}
}

// Open loads the GeoLite2 ASN and Country databases from dir. Missing files
// are tolerated so the honeypot runs without geo data.
func Open(dir string, proxies *ProxyDetector, ttl time.Duration) (*Service, error) {
	s := NewService(nil, nil, proxies, ttl)
	log := logger.Component("geoip")

	if r, err := openReader(filepath.Join(dir, asnFile)); err != nil {
		return nil, err
	} else if r != nil {
		s.asn = r
		s.closers = append(s.closers, r.Close)
	} else {
		log.WithField("file", asnFile).Warn("ASN database not found, ASN lookups disabled")
	}

	if r, err := openReader(filepath.Join(dir, countryDB)); err != nil {
		s.Close()
		return nil, err
	} else if r != nil {
		s.country = r
		s.closers = append(s.closers, r.Close)
	} else {
		log.WithField("file", countryDB).Warn("Country database not found, country lookups disabled")
	}

	return s, nil
}

func openReader(path string) (*geoip2.Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	return r, nil
}

// Validate checks that path is a readable MaxMind database.
func Validate(path string) error {
	r, err := geoip2.Open(path)
	if err != nil {
		return err
	}
	return r.Close()
}

// Close releases the database readers.
func (s *Service) Close() {
	for _, c := range s.closers {
		_ = c()
	}
	s.closers = nil
}

// Lookup implements Lookup.
func (s *Service) Lookup(ctx context.Context, ip string) Info {
	info := Info{ASN: unknown, Org: unknown, Country: unknown}
	if ip == "" || ip == unknownIP || ip == loopbackV4 {
		return info
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		info.ASN = "Invalid"
		info.Org = "Invalid IP"
		return info
	}
	addr = addr.Unmap()
	if isPrivate(addr) {
		info.ASN = "Private"
		info.Org = "Private Network"
		return info
	}

	if s.proxies != nil {
		info.IsTorOrProxy = s.proxies.IsTorOrProxy(ip)
	}

	if cached, ok := s.cache.Get(addr.String()); ok {
		metrics.IncGeoCacheHit()
		geo := cached.(Info)
		geo.IsTorOrProxy = info.IsTorOrProxy
		return geo
	}
	metrics.IncGeoCacheMiss()

	if ctx.Err() != nil {
		return info
	}

	s.resolve(addr, &info)
	s.cache.Set(addr.String(), info, cache.DefaultExpiration)
	return info
}

func (s *Service) resolve(addr netip.Addr, info *Info) {
	log := logger.Component("geoip").WithField("ip", addr.String())
	netIP := net.IP(addr.AsSlice())

	if s.asn != nil {
		rec, err := s.asn.ASN(netIP)
		switch {
		case err == nil && rec != nil && rec.AutonomousSystemNumber != 0:
			info.ASN = fmt.Sprintf("AS%d", rec.AutonomousSystemNumber)
			if rec.AutonomousSystemOrganization != "" {
				info.Org = rec.AutonomousSystemOrganization
			}
		case err != nil:
			log.WithError(err).Warn("ASN lookup failed")
		}
	}

	if s.country != nil {
		rec, err := s.country.Country(netIP)
		switch {
		case err == nil && rec != nil:
			if name := rec.Country.Names["en"]; name != "" {
				info.Country = name
			}
		case err != nil:
			log.WithError(err).Warn("Country lookup failed")
		}
	}
}

func isPrivate(a netip.Addr) bool {
	return a.IsPrivate() || a.IsLoopback() || a.IsMulticast() ||
		a.IsLinkLocalUnicast() || a.IsLinkLocalMulticast() || a.IsUnspecified()
}
