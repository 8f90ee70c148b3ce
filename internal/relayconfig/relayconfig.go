// Package relayconfig projects a proxyuri.ParsedProxy into the JSON
// document the relay child process is launched with (spec §4.B).
//
// The builder follows the same "assemble nested map[string]any, then
// json.Marshal" technique the retrieval pack's own link-to-config
// converters use (see the singbox-launcher node_parser's buildOutbound),
// adapted here to the Xray-style inbound/outbound/routing schema spec.md
// describes rather than sing-box's.
package relayconfig

import (
	"encoding/json"
	"fmt"

	"github.com/komyaka/xraycheck/internal/proxyuri"
)

const (
	inboundTag  = "socks-in"
	outboundTag = "proxy-out"
	freedomTag  = "direct"
)

// Build renders the relay config for p, binding its SOCKS inbound to
// 127.0.0.1:socksPort. It returns an error for any protocol the builder
// does not know how to shape an outbound for (spec §4.B "unsupported
// protocol" — fatal at the call site for that key).
func Build(p *proxyuri.ParsedProxy, socksPort int) (map[string]any, error) {
	outbound, err := buildOutbound(p)
	if err != nil {
		return nil, err
	}
	outbound["tag"] = outboundTag

	cfg := map[string]any{
		"log": map[string]any{
			"loglevel": "error",
		},
		"inbounds": []any{
			map[string]any{
				"tag":      inboundTag,
				"port":     socksPort,
				"listen":   "127.0.0.1",
				"protocol": "socks",
				"settings": map[string]any{
					"udp": false,
				},
			},
		},
		"outbounds": []any{
			outbound,
			map[string]any{
				"tag":      freedomTag,
				"protocol": "freedom",
			},
		},
		"routing": map[string]any{
			"domainStrategy": "IPIfNonMatch",
			"rules": []any{
				map[string]any{
					"type":        "field",
					"inboundTag":  []any{inboundTag},
					"outboundTag": outboundTag,
				},
			},
		},
	}

	return cfg, nil
}

// MarshalIndent renders the relay config as pretty-printed JSON, the
// backing implementation for the --print-config CLI flag (spec §6).
func MarshalIndent(p *proxyuri.ParsedProxy, socksPort int) (string, error) {
	cfg, err := Build(p, socksPort)
	if err != nil {
		return "", err
	}
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func buildOutbound(p *proxyuri.ParsedProxy) (map[string]any, error) {
	switch p.Protocol {
	case proxyuri.Vless:
		return buildVless(p)
	case proxyuri.Vmess:
		return buildVmess(p)
	case proxyuri.Trojan:
		return buildTrojan(p)
	case proxyuri.Shadowsocks:
		return buildShadowsocks(p)
	default:
		return nil, fmt.Errorf("relayconfig: unsupported protocol %q", p.Protocol)
	}
}

func buildVless(p *proxyuri.ParsedProxy) (map[string]any, error) {
	user := map[string]any{
		"id":         p.UUID,
		"encryption": "none",
	}
	if p.Flow != "" {
		user["flow"] = p.Flow
	}

	ob := map[string]any{
		"protocol": "vless",
		"settings": map[string]any{
			"vnext": []any{
				map[string]any{
					"address": p.Address,
					"port":    p.Port,
					"users":   []any{user},
				},
			},
		},
		"streamSettings": streamSettings(p),
	}
	return ob, nil
}

func buildVmess(p *proxyuri.ParsedProxy) (map[string]any, error) {
	user := map[string]any{
		"id":       p.UUID,
		"alterId":  p.AlterID,
		"security": orDefault(p.VmessSec, "auto"),
	}

	ob := map[string]any{
		"protocol": "vmess",
		"settings": map[string]any{
			"vnext": []any{
				map[string]any{
					"address": p.Address,
					"port":    p.Port,
					"users":   []any{user},
				},
			},
		},
		"streamSettings": streamSettings(p),
	}
	return ob, nil
}

func buildTrojan(p *proxyuri.ParsedProxy) (map[string]any, error) {
	ob := map[string]any{
		"protocol": "trojan",
		"settings": map[string]any{
			"servers": []any{
				map[string]any{
					"address":  p.Address,
					"port":     p.Port,
					"password": p.Password,
				},
			},
		},
		"streamSettings": streamSettings(p),
	}
	return ob, nil
}

func buildShadowsocks(p *proxyuri.ParsedProxy) (map[string]any, error) {
	ob := map[string]any{
		"protocol": "shadowsocks",
		"settings": map[string]any{
			"servers": []any{
				map[string]any{
					"address":  p.Address,
					"port":     p.Port,
					"method":   p.Method,
					"password": p.Password,
				},
			},
		},
	}
	return ob, nil
}

// streamSettings projects network/security onto the stream settings
// block shared by vless/vmess/trojan (spec §4.B).
func streamSettings(p *proxyuri.ParsedProxy) map[string]any {
	network := orDefault(p.Network, "tcp")
	ss := map[string]any{
		"network": network,
	}

	switch network {
	case "ws":
		headers := map[string]any{}
		if p.WSHost != "" {
			headers["Host"] = p.WSHost
		}
		ss["wsSettings"] = map[string]any{
			"path":    p.WSPath,
			"headers": headers,
		}
	case "grpc":
		ss["grpcSettings"] = map[string]any{
			"serviceName": p.GRPCServiceName,
		}
	case "h2":
		h2 := map[string]any{
			"path": p.WSPath,
		}
		if p.WSHost != "" {
			h2["host"] = []any{p.WSHost}
		}
		ss["httpSettings"] = h2
	case "xhttp":
		ss["xhttpSettings"] = map[string]any{
			"mode": orDefault(p.Mode, "auto"),
		}
	}

	switch p.Security {
	case "reality":
		ss["security"] = "reality"
		ss["realitySettings"] = map[string]any{
			"fingerprint": orDefault(p.Fp, "chrome"),
			"serverName":  p.SNI,
			"publicKey":   p.PBK,
			"shortId":     p.SID,
		}
	case "tls":
		ss["security"] = "tls"
		ss["tlsSettings"] = map[string]any{
			"serverName":     p.SNI,
			"allowInsecure":  false,
		}
	default:
		ss["security"] = "none"
	}

	return ss
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
