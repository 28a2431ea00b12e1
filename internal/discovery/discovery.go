// Package discovery finds detectors on the local network through mDNS.
package discovery

import (
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

// Config selects what to query for.
type Config struct {
	Service        string
	InstancePrefix string
	Timeout        time.Duration
}

// Candidate is one detector answering the query.
type Candidate struct {
	Name    string `json:"name" yaml:"name"`
	Host    string `json:"host" yaml:"host"`
	Address string `json:"address" yaml:"address"`
	Port    int    `json:"port" yaml:"port"`
	BaseURL string `json:"base_url" yaml:"base_url"`
}

// candidateFromEntry keeps entries whose instance name starts with prefix
// (case-insensitive) and that carry a usable IPv4 address.
func candidateFromEntry(entry *mdns.ServiceEntry, service, prefix string) (Candidate, bool) {
	if entry == nil {
		return Candidate{}, false
	}
	name := instanceName(entry.Name, service)
	if !strings.HasPrefix(strings.ToLower(name), strings.ToLower(prefix)) {
		return Candidate{}, false
	}
	ip := extractIP(entry)
	if ip == "" {
		return Candidate{}, false
	}
	port := entry.Port
	if port == 0 {
		port = 80
	}

	return Candidate{
		Name:    name,
		Host:    strings.TrimSuffix(entry.Host, "."),
		Address: ip,
		Port:    port,
		BaseURL: "http://" + net.JoinHostPort(ip, strconv.Itoa(port)),
	}, true
}

// instanceName strips the service and domain from a full instance name such
// as "maxdetector-1._http._tcp.local.".
func instanceName(full, service string) string {
	full = strings.TrimSuffix(full, ".")
	if i := strings.Index(full, "."+service); i >= 0 {
		return full[:i]
	}
	return full
}

func extractIP(entry *mdns.ServiceEntry) string {
	if entry.AddrV4 != nil && !entry.AddrV4.IsUnspecified() {
		return entry.AddrV4.String()
	}
	// Older responders only fill the deprecated Addr field.
	if entry.Addr != nil && !entry.Addr.IsUnspecified() && entry.Addr.To4() != nil {
		return entry.Addr.String()
	}
	return ""
}

// dedupe drops repeated answers for the same base URL and sorts by name.
func dedupe(in []Candidate) []Candidate {
	seen := make(map[string]bool, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if seen[c.BaseURL] {
			continue
		}
		seen[c.BaseURL] = true
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].BaseURL < out[j].BaseURL
	})
	return out
}
