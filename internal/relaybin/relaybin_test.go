package relaybin

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestRelaybin(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "relaybin")
}

func writeZip(dir, member string, contents []byte) string {
	path := filepath.Join(dir, "archive.zip")
	f, err := os.Create(path)
	Expect(err).NotTo(HaveOccurred())
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create(member)
	Expect(err).NotTo(HaveOccurred())
	_, err = w.Write(contents)
	Expect(err).NotTo(HaveOccurred())
	Expect(zw.Close()).To(Succeed())
	return path
}

var _ = Describe("extractExecutable", func() {
	It("extracts the named executable to dirName", func() {
		dir := GinkgoT().TempDir()
		zipPath := writeZip(dir, exeName(), []byte("fake binary contents"))

		dest, err := extractExecutable(zipPath, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(dest).To(Equal(filepath.Join(dir, exeName())))

		raw, err := os.ReadFile(dest)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(Equal("fake binary contents"))
	})

	It("extracts a nested archive member matching only by base name", func() {
		dir := GinkgoT().TempDir()
		zipPath := writeZip(dir, "Xray-linux-64/"+exeName(), []byte("nested"))

		dest, err := extractExecutable(zipPath, dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(dest).To(Equal(filepath.Join(dir, exeName())))
	})

	It("errors when the archive has no matching member", func() {
		dir := GinkgoT().TempDir()
		zipPath := writeZip(dir, "README.md", []byte("hello"))

		_, err := extractExecutable(zipPath, dir)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Resolve", func() {
	It("errors when XRAY_PATH is set but not runnable", func() {
		_, err := Resolve(context.Background(), "/nonexistent/not-a-binary", "")
		Expect(err).To(HaveOccurred())
	})
})
