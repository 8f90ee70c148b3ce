package proxyuri

import (
	"encoding/base64"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestProxyuri(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "proxyuri")
}

var _ = Describe("Parse", func() {
	Describe("vless", func() {
		It("decodes host, port and uuid", func() {
			p, err := Parse("vless://11111111-2222-3333-4444-555555555555@example.com:443?type=tcp&security=tls&sni=example.com#myserver")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Protocol).To(Equal(Vless))
			Expect(p.Address).To(Equal("example.com"))
			Expect(p.Port).To(Equal(443))
			Expect(p.UUID).To(Equal("11111111-2222-3333-4444-555555555555"))
			Expect(p.Security).To(Equal("tls"))
			Expect(p.Name).To(Equal("myserver"))
		})

		It("rejects a uri with no uuid", func() {
			_, err := Parse("vless://@example.com:443")
			Expect(err).To(HaveOccurred())
		})

		It("defaults to port 443 when unspecified", func() {
			p, err := Parse("vless://11111111-2222-3333-4444-555555555555@example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Port).To(Equal(443))
		})
	})

	Describe("trojan", func() {
		It("requires a password", func() {
			_, err := Parse("trojan://@example.com:443")
			Expect(err).To(HaveOccurred())
		})

		It("decodes a valid key", func() {
			p, err := Parse("trojan://hunter2@example.com:443?sni=example.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Password).To(Equal("hunter2"))
			Expect(p.SNI).To(Equal("example.com"))
		})
	})

	Describe("shadowsocks", func() {
		It("decodes the SIP002 base64-userinfo form", func() {
			userinfo := base64.RawURLEncoding.EncodeToString([]byte("aes-256-gcm:hunter2"))
			p, err := Parse("ss://" + userinfo + "@example.com:8388#tag")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Protocol).To(Equal(Shadowsocks))
			Expect(p.Method).To(Equal("aes-256-gcm"))
			Expect(p.Password).To(Equal("hunter2"))
		})

		It("decodes the legacy whole-uri base64 form", func() {
			whole := base64.StdEncoding.EncodeToString([]byte("aes-256-gcm:hunter2@example.com:8388"))
			p, err := Parse("ss://" + whole)
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Address).To(Equal("example.com"))
			Expect(p.Port).To(Equal(8388))
		})
	})

	Describe("hysteria", func() {
		It("does not require a password for plain hysteria", func() {
			p, err := Parse("hysteria://example.com:36712?insecure=1")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Protocol).To(Equal(Hysteria))
			Expect(p.Insecure).To(BeTrue())
		})

		It("requires a password for hysteria2", func() {
			_, err := Parse("hysteria2://example.com:36712")
			Expect(err).To(HaveOccurred())
		})

		It("treats hy2 as an alias for hysteria2", func() {
			p, err := Parse("hy2://hunter2@example.com:36712")
			Expect(err).NotTo(HaveOccurred())
			Expect(p.Protocol).To(Equal(Hysteria2))
		})
	})

	It("rejects an unsupported scheme", func() {
		_, err := Parse("ftp://example.com")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Validate", func() {
	It("rejects an out-of-range port", func() {
		p := &ParsedProxy{Protocol: Vless, Address: "x", Port: 70000, UUID: "u"}
		Expect(p.Validate()).To(HaveOccurred())
	})

	It("rejects an empty address", func() {
		p := &ParsedProxy{Protocol: Trojan, Address: "", Port: 443, Password: "x"}
		Expect(p.Validate()).To(HaveOccurred())
	})
})

var _ = Describe("HasKnownScheme", func() {
	It("recognizes every supported scheme prefix", func() {
		for _, scheme := range Schemes {
			Expect(HasKnownScheme(scheme + "://host")).To(BeTrue(), scheme)
		}
	})

	It("rejects plain text", func() {
		Expect(HasKnownScheme("not a proxy link")).To(BeFalse())
	})
})
