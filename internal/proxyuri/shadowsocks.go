package proxyuri

import (
	"net/url"
	"strconv"
	"strings"
)

// parseShadowsocks handles the SIP002 form (ss://BASE64(method:password)@
// HOST:PORT), the plain form (ss://METHOD:PASSWORD@HOST:PORT), and the
// legacy whole-URI base64 form (ss://BASE64(method:password@host:port)).
func parseShadowsocks(raw string) (*ParsedProxy, error) {
	if p, err := parseShadowsocksStandard(raw); err == nil {
		return p, nil
	}
	return parseShadowsocksLegacy(raw)
}

func parseShadowsocksStandard(raw string) (*ParsedProxy, error) {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil || u.Hostname() == "" {
		return nil, errMalformed("ss: missing userinfo or host")
	}

	method, password, err := decodeMethodPassword(u.User)
	if err != nil {
		return nil, err
	}

	port := 8388
	if ps := u.Port(); ps != "" {
		n, err := strconv.Atoi(ps)
		if err != nil {
			return nil, errMalformed("ss: bad port")
		}
		port = n
	}

	p := &ParsedProxy{
		Protocol: Shadowsocks,
		Address:  u.Hostname(),
		Port:     port,
		Method:   method,
		Password: password,
		Name:     decodeName(u.Fragment),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// decodeMethodPassword extracts method:password from userinfo, either
// plain ("method:password") or base64-wrapped (SIP002).
func decodeMethodPassword(user *url.Userinfo) (string, string, error) {
	if pass, ok := user.Password(); ok {
		return user.Username(), pass, nil
	}

	decoded, err := decodeBase64Tolerant(user.Username())
	if err != nil {
		return "", "", errMalformed("ss: userinfo base64: " + err.Error())
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return "", "", errMalformed("ss: userinfo format")
	}
	return parts[0], parts[1], nil
}

// parseShadowsocksLegacy decodes ss://BASE64(method:password@host:port).
func parseShadowsocksLegacy(raw string) (*ParsedProxy, error) {
	body := strings.TrimPrefix(raw, "ss://")
	fragment := ""
	if idx := strings.IndexByte(body, '#'); idx >= 0 {
		fragment = body[idx+1:]
		body = body[:idx]
	}

	decoded, err := decodeBase64Tolerant(body)
	if err != nil {
		return nil, errMalformed("ss: legacy base64: " + err.Error())
	}

	at := strings.LastIndexByte(string(decoded), '@')
	if at < 0 {
		return nil, errMalformed("ss: legacy format")
	}
	cred := string(decoded)[:at]
	hostport := string(decoded)[at+1:]

	parts := strings.SplitN(cred, ":", 2)
	if len(parts) != 2 {
		return nil, errMalformed("ss: legacy credential format")
	}

	host, portStr, err := splitHostPort(hostport)
	if err != nil {
		return nil, errMalformed("ss: legacy host:port: " + err.Error())
	}
	port := 8388
	if portStr != "" {
		if n, err := strconv.Atoi(portStr); err == nil {
			port = n
		}
	}

	p := &ParsedProxy{
		Protocol: Shadowsocks,
		Address:  host,
		Port:     port,
		Method:   parts[0],
		Password: parts[1],
		Name:     decodeName(fragment),
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func splitHostPort(hostport string) (string, string, error) {
	idx := strings.LastIndexByte(hostport, ':')
	if idx < 0 {
		return hostport, "", nil
	}
	return hostport[:idx], hostport[idx+1:], nil
}
