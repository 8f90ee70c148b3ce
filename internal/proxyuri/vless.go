package proxyuri

import (
	"net/url"
	"strconv"
)

// parseVless decodes vless://UUID@HOST:PORT?QUERY (spec §4.A).
func parseVless(raw string) (*ParsedProxy, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errMalformed("vless: " + err.Error())
	}
	if u.User == nil || u.User.Username() == "" || u.Hostname() == "" {
		return nil, errMalformed("vless: missing uuid or host")
	}

	port := 443
	if ps := u.Port(); ps != "" {
		p, err := strconv.Atoi(ps)
		if err != nil {
			return nil, errMalformed("vless: bad port")
		}
		port = p
	}

	q := u.Query()
	p := &ParsedProxy{
		Protocol: Vless,
		Address:  u.Hostname(),
		Port:     port,
		UUID:     u.User.Username(),
		Network:  queryOr(q, "type", "tcp"),
		Security: queryOr(q, "security", "reality"),
		Flow:     q.Get("flow"),
		Fp:       queryOr(q, "fp", "chrome"),
		PBK:      q.Get("pbk"),
		SID:      q.Get("sid"),
		SNI:      q.Get("sni"),
		Mode:     q.Get("mode"),
		WSPath:   q.Get("path"),
		WSHost:   q.Get("host"),
		GRPCServiceName: q.Get("serviceName"),
		Name:     decodeName(u.Fragment),
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func queryOr(q url.Values, key, fallback string) string {
	if v := q.Get(key); v != "" {
		return v
	}
	return fallback
}

func decodeName(fragment string) string {
	if fragment == "" {
		return ""
	}
	if dec, err := url.QueryUnescape(fragment); err == nil {
		return dec
	}
	return fragment
}
