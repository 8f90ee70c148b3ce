package proxyuri

import (
	"net/url"
	"strconv"
)

// parseTrojan decodes trojan://PASSWORD@HOST:PORT?QUERY (spec §4.A).
// Query handling mirrors vless.
func parseTrojan(raw string) (*ParsedProxy, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errMalformed("trojan: " + err.Error())
	}
	if u.User == nil || u.User.Username() == "" || u.Hostname() == "" {
		return nil, errMalformed("trojan: missing password or host")
	}

	port := 443
	if ps := u.Port(); ps != "" {
		p, err := strconv.Atoi(ps)
		if err != nil {
			return nil, errMalformed("trojan: bad port")
		}
		port = p
	}

	password, err := url.QueryUnescape(u.User.Username())
	if err != nil {
		password = u.User.Username()
	}

	q := u.Query()
	p := &ParsedProxy{
		Protocol: Trojan,
		Address:  u.Hostname(),
		Port:     port,
		Password: password,
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
