package probe

import (
	"context"
	"errors"
	"net"
	"strings"
)

// DNS classes reported by ClassifyDNS.
const (
	DNSResolves      = "RESOLVES"
	DNSNXDomain      = "NXDOMAIN"
	DNSNoARecord     = "NO_A_RECORD"
	DNSServfail      = "SERVFAIL_or_TIMEOUT"
	DNSInvalidName   = "INVALID_NAME"
	DNSLiteralIPAddr = "IP_LITERAL"
)

type DNSStatus struct {
	Name          string
	Class         string
	IPs           []net.IP
	CNAME         string
	Nameservers   []string
	ResolverError string
}

// ClassifyDNS explains why an address might be unreachable. It is only used
// for diagnostics and never changes a probe verdict.
func ClassifyDNS(ctx context.Context, r *net.Resolver, name string) DNSStatus {
	s := DNSStatus{Name: strings.TrimSpace(name)}
	if s.Name == "" || strings.Contains(s.Name, "://") || strings.ContainsAny(s.Name, " /") {
		s.Class = DNSInvalidName
		return s
	}
	if ip := net.ParseIP(s.Name); ip != nil {
		s.IPs = []net.IP{ip}
		s.Class = DNSLiteralIPAddr
		return s
	}
	if r == nil {
		r = net.DefaultResolver
	}

	ips, err := r.LookupIP(ctx, "ip", s.Name)
	switch {
	case err == nil && len(ips) > 0:
		s.IPs = ips
		s.Class = DNSResolves
	case err != nil:
		s.ResolverError = err.Error()
		var de *net.DNSError
		if errors.As(err, &de) {
			if de.IsNotFound {
				s.Class = DNSNXDomain
			} else if de.IsTemporary || de.Timeout() {
				s.Class = DNSServfail
			}
		}
	}

	if cname, err := r.LookupCNAME(ctx, s.Name); err == nil && !strings.EqualFold(cname, s.Name+".") {
		s.CNAME = strings.TrimSuffix(cname, ".")
	}

	if ns, err := r.LookupNS(ctx, s.Name); err == nil && len(ns) > 0 {
		for _, n := range ns {
			s.Nameservers = append(s.Nameservers, strings.TrimSuffix(n.Host, "."))
		}
		if s.Class == DNSNXDomain {
			s.Class = DNSNoARecord
		}
	}

	if s.Class == "" {
		switch {
		case len(s.Nameservers) > 0:
			s.Class = DNSNoARecord
		case s.ResolverError != "":
			s.Class = DNSServfail
		default:
			s.Class = DNSNXDomain
		}
	}
	return s
}
