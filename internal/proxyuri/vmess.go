package proxyuri

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// vmessJSON is the payload embedded in the legacy base64-JSON vmess
// link form; aid/port may arrive as either JSON numbers or strings.
type vmessJSON struct {
	Add  string `json:"add"`
	Port any    `json:"port"`
	ID   string `json:"id"`
	Aid  any    `json:"aid"`
	Scy  string `json:"scy"`
	Net  string `json:"net"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni"`
	Path string `json:"path"`
	Host string `json:"host"`
	PS   string `json:"ps"`
	Type string `json:"type"`
}

// parseVmess accepts both documented forms: (i) base64-wrapped JSON and
// (ii) USERINFO@HOST:PORT?QUERY where USERINFO is base64url(id:aid).
func parseVmess(raw string) (*ParsedProxy, error) {
	body := strings.TrimPrefix(raw, "vmess://")
	if frag := strings.IndexByte(body, '#'); frag >= 0 {
		body = body[:frag]
	}

	if strings.Contains(body, "@") {
		return parseVmessURIForm(raw)
	}
	return parseVmessJSONForm(body, raw)
}

func parseVmessJSONForm(b64, raw string) (*ParsedProxy, error) {
	data, err := decodeBase64Tolerant(b64)
	if err != nil {
		return nil, errMalformed("vmess: base64: " + err.Error())
	}

	var v vmessJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, errMalformed("vmess: json: " + err.Error())
	}
	if v.Add == "" || v.ID == "" {
		return nil, errMalformed("vmess: missing add or id")
	}

	port, err := toInt(v.Port, 443)
	if err != nil {
		return nil, errMalformed("vmess: bad port")
	}
	aid, _ := toInt(v.Aid, 0)

	security := v.Scy
	if security == "" {
		security = "auto"
	}
	network := v.Net
	if network == "" {
		network = "tcp"
	}

	name := v.PS
	if name == "" {
		name = fmt.Sprintf("%s:%d", v.Add, port)
	}

	p := &ParsedProxy{
		Protocol: Vmess,
		Address:  v.Add,
		Port:     port,
		UUID:     v.ID,
		AlterID:  aid,
		VmessSec: security,
		Network:  network,
		Security: ifThen(v.TLS == "tls", "tls", "none"),
		SNI:      v.SNI,
		WSPath:   v.Path,
		WSHost:   v.Host,
		GRPCServiceName: v.Path,
		Mode:     v.Type,
		Name:     name,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func parseVmessURIForm(raw string) (*ParsedProxy, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errMalformed("vmess: " + err.Error())
	}
	if u.User == nil || u.Hostname() == "" {
		return nil, errMalformed("vmess: missing userinfo or host")
	}

	decoded, err := decodeBase64Tolerant(u.User.String())
	if err != nil {
		return nil, errMalformed("vmess: userinfo base64: " + err.Error())
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 || parts[0] == "" {
		return nil, errMalformed("vmess: userinfo format")
	}
	uuid := parts[0]
	aid, _ := strconv.Atoi(parts[1])

	port := 443
	if ps := u.Port(); ps != "" {
		if n, err := strconv.Atoi(ps); err == nil {
			port = n
		}
	}

	q := u.Query()
	p := &ParsedProxy{
		Protocol: Vmess,
		Address:  u.Hostname(),
		Port:     port,
		UUID:     uuid,
		AlterID:  aid,
		VmessSec: queryOr(q, "security", "auto"),
		Network:  queryOr(q, "type", "tcp"),
		Security: queryOr(q, "security", "none"),
		SNI:      q.Get("sni"),
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

func toInt(v any, fallback int) (int, error) {
	switch x := v.(type) {
	case nil:
		return fallback, nil
	case float64:
		return int(x), nil
	case string:
		if x == "" {
			return fallback, nil
		}
		return strconv.Atoi(x)
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

func ifThen(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}
