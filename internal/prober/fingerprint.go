package prober

import (
	"context"
	"fmt"
	"net"
	"net/http"

	utls "github.com/refraction-networking/utls"
)

// applyFingerprint swaps the transport's TLS dial for one that opens a
// browser-fingerprinted ClientHello via utls, when TLS_FINGERPRINT names
// one (spec §6 domain stack — gated, off by default).
func applyFingerprint(transport *http.Transport, opts Options) {
	if opts.Fingerprint == "" {
		return
	}
	clientHelloID, ok := fingerprintByName(opts.Fingerprint)
	if !ok {
		return
	}

	transport.DialTLSContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
		rawConn, err := transport.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		uConn := utls.UClient(rawConn, &utls.Config{
			ServerName:         host,
			InsecureSkipVerify: !opts.VerifyTLS,
		}, clientHelloID)
		if err := uConn.HandshakeContext(ctx); err != nil {
			rawConn.Close()
			return nil, fmt.Errorf("prober: utls handshake: %w", err)
		}
		return uConn, nil
	}
}

func fingerprintByName(name string) (utls.ClientHelloID, bool) {
	switch name {
	case "chrome":
		return utls.HelloChrome_Auto, true
	case "firefox":
		return utls.HelloFirefox_Auto, true
	case "safari":
		return utls.HelloSafari_Auto, true
	case "ios":
		return utls.HelloIOS_Auto, true
	case "randomized":
		return utls.HelloRandomized, true
	default:
		return utls.ClientHelloID{}, false
	}
}
