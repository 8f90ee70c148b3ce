package proxyuri

import (
	"net/url"
	"strconv"
	"strings"
)

// parseHysteria handles both hysteria:// (v1) and hysteria2:///hy2://
// (rewritten to hysteria2:// by the caller, spec §4.A) forms. Neither
// variant is fronted by the relay (spec §4.F step 3) — this parser only
// extracts enough to drive a raw TCP connect check.
func parseHysteria(raw string, proto Protocol) (*ParsedProxy, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errMalformed(string(proto) + ": " + err.Error())
	}
	if u.Hostname() == "" {
		return nil, errMalformed(string(proto) + ": missing host")
	}

	port := 443
	if ps := u.Port(); ps != "" {
		p, err := strconv.Atoi(ps)
		if err != nil {
			return nil, errMalformed(string(proto) + ": bad port")
		}
		port = p
	}

	q := u.Query()

	password := ""
	if u.User != nil {
		password = u.User.Username()
	}
	if password == "" {
		password = firstNonEmpty(q.Get("auth"), q.Get("password"))
	}

	p := &ParsedProxy{
		Protocol: proto,
		Address:  u.Hostname(),
		Port:     port,
		Password: password,
		SNI:      firstNonEmpty(q.Get("sni"), q.Get("peer")),
		Obfs:     q.Get("obfs"),
		ObfsParam: firstNonEmpty(q.Get("obfs-password"), q.Get("obfsParam")),
		Insecure: q.Get("insecure") == "1" || strings.EqualFold(q.Get("insecure"), "true"),
		Name:     decodeName(u.Fragment),
	}
	if alpn := q.Get("alpn"); alpn != "" {
		p.ALPN = strings.Split(alpn, ",")
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
