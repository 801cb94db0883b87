package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Signatures are the substring lists used by the scan heuristics.
// All entries are matched case-insensitively.
type Signatures struct {
	BotStrings              []string `yaml:"bot_strings"`
	ScannerSignatures       []string `yaml:"scanner_signatures"`
	PortScanKeywords        []string `yaml:"port_scan_keywords"`
	SuspiciousParams        []string `yaml:"suspicious_params"`
	SuspiciousQueryKeywords []string `yaml:"suspicious_query_keywords"`
}

// DefaultSignatures returns the built-in signature lists.
func DefaultSignatures() Signatures {
	return Signatures{
		BotStrings:              []string{"bot", "crawl", "spider", "scan", "wget", "curl", "python-requests", "nmap", "nikto"},
		ScannerSignatures:       []string{"nmap", "nikto", "sqlmap", "acunetix", "nessus", "zap", "burp"},
		PortScanKeywords:        []string{"port", "scan", "nmap", "masscan"},
		SuspiciousParams:        []string{"sleep", "benchmark", "exec", "eval", "union", "select", "script"},
		SuspiciousQueryKeywords: []string{"eval", "exec", "select", "union", "sleep", "script", "../"},
	}
}

// LoadSignatures returns the defaults overlaid with any non-empty list from
// the YAML file at path. An empty path returns the defaults.
func LoadSignatures(path string) (Signatures, error) {
	sigs := DefaultSignatures()
	if path == "" {
		return sigs, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Signatures{}, fmt.Errorf("read signatures file: %w", err)
	}

	var override Signatures
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return Signatures{}, fmt.Errorf("parse signatures file: %w", err)
	}

	if len(override.BotStrings) > 0 {
		sigs.BotStrings = override.BotStrings
	}
	if len(override.ScannerSignatures) > 0 {
		sigs.ScannerSignatures = override.ScannerSignatures
	}
	if len(override.PortScanKeywords) > 0 {
		sigs.PortScanKeywords = override.PortScanKeywords
	}
	if len(override.SuspiciousParams) > 0 {
		sigs.SuspiciousParams = override.SuspiciousParams
	}
	if len(override.SuspiciousQueryKeywords) > 0 {
		sigs.SuspiciousQueryKeywords = override.SuspiciousQueryKeywords
	}
	return sigs.normalized(), nil
}

func (s Signatures) normalized() Signatures {
	lower := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, v := range in {
			if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return Signatures{
		BotStrings:              lower(s.BotStrings),
		ScannerSignatures:       lower(s.ScannerSignatures),
		PortScanKeywords:        lower(s.PortScanKeywords),
		SuspiciousParams:        lower(s.SuspiciousParams),
		SuspiciousQueryKeywords: lower(s.SuspiciousQueryKeywords),
	}
}

// MatchAny returns the first entry of list contained in the lower-cased s.
func MatchAny(s string, list []string) (string, bool) {
	s = strings.ToLower(s)
	for _, needle := range list {
		if needle != "" && strings.Contains(s, needle) {
			return needle, true
		}
	}
	return "", false
}
