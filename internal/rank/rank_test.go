package rank

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/komyaka/xraycheck/internal/checker"
)

func TestRank(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "rank")
}

func readLines(path string) []string {
	raw, err := os.ReadFile(path)
	Expect(err).NotTo(HaveOccurred())
	var lines []string
	for _, l := range splitLines(string(raw)) {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func splitLines(s string) []string {
	var out []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}

var _ = Describe("FromVerdicts", func() {
	It("keeps only live verdicts and converts seconds to milliseconds", func() {
		verdicts := []checker.Verdict{
			{Key: "a", Full: "a # comment", Alive: true, Metrics: checker.Metrics{AvgResponseTime: 0.2}},
			{Key: "b", Alive: false, Metrics: checker.Metrics{AvgResponseTime: 0.1}},
		}
		entries := FromVerdicts(verdicts)
		Expect(entries).To(HaveLen(1))
		Expect(entries[0].Key).To(Equal("a"))
		Expect(entries[0].Full).To(Equal("a # comment"))
		Expect(entries[0].LatencyMS).To(BeNumerically("~", 200.0, 0.001))
	})
})

var _ = Describe("Sort", func() {
	It("orders ascending by latency", func() {
		entries := []Entry{
			{Key: "slow", LatencyMS: 300},
			{Key: "fast", LatencyMS: 10},
			{Key: "mid", LatencyMS: 100},
		}
		Sort(entries)
		Expect([]string{entries[0].Key, entries[1].Key, entries[2].Key}).To(Equal([]string{"fast", "mid", "slow"}))
	})
})

var _ = Describe("WriteLists", func() {
	It("writes the primary list sorted and a top-100 truncation", func() {
		dir := GinkgoT().TempDir()
		entries := []Entry{
			{Key: "b", LatencyMS: 200},
			{Key: "a", LatencyMS: 100},
		}
		Expect(WriteLists(dir, "out.txt", entries)).To(Succeed())

		primary := readLines(filepath.Join(dir, "out.txt"))
		Expect(primary).To(Equal([]string{"a", "b"}))

		top := readLines(filepath.Join(dir, "out.txt(top100)"))
		Expect(top).To(Equal([]string{"a", "b"}))
	})

	It("prints the full line instead of the bare key when set", func() {
		dir := GinkgoT().TempDir()
		entries := []Entry{{Key: "a", Full: "a # comment", LatencyMS: 100}}
		Expect(WriteLists(dir, "out.txt", entries)).To(Succeed())

		primary := readLines(filepath.Join(dir, "out.txt"))
		Expect(primary).To(Equal([]string{"a # comment"}))
	})

	It("truncates the top list at 100 entries", func() {
		dir := GinkgoT().TempDir()
		entries := make([]Entry, 150)
		for i := range entries {
			entries[i] = Entry{Key: string(rune('a' + i%26)), LatencyMS: float64(150 - i)}
		}
		Expect(WriteLists(dir, "many.txt", entries)).To(Succeed())

		top := readLines(filepath.Join(dir, "many.txt(top100)"))
		Expect(top).To(HaveLen(100))
	})
})

var _ = Describe("WriteOrdered", func() {
	It("preserves caller-supplied order without re-sorting", func() {
		dir := GinkgoT().TempDir()
		entries := []Entry{{Key: "z"}, {Key: "a"}, {Key: "m"}}
		Expect(WriteOrdered(dir, "ordered.txt", entries)).To(Succeed())

		primary := readLines(filepath.Join(dir, "ordered.txt"))
		Expect(primary).To(Equal([]string{"z", "a", "m"}))
	})

	It("prints the full line when present", func() {
		dir := GinkgoT().TempDir()
		entries := []Entry{{Key: "z", Full: "z # comment"}}
		Expect(WriteOrdered(dir, "ordered.txt", entries)).To(Succeed())

		primary := readLines(filepath.Join(dir, "ordered.txt"))
		Expect(primary).To(Equal([]string{"z # comment"}))
	})
})

var _ = Describe("WritePartial", func() {
	It("sorts and writes to a _partial suffixed file", func() {
		dir := GinkgoT().TempDir()
		entries := []Entry{{Key: "b", LatencyMS: 2}, {Key: "a", LatencyMS: 1}}
		Expect(WritePartial(dir, "run.txt", entries)).To(Succeed())

		lines := readLines(filepath.Join(dir, "run.txt_partial"))
		Expect(lines).To(Equal([]string{"a", "b"}))
	})

	It("writes the raw key even when a full line is set", func() {
		dir := GinkgoT().TempDir()
		entries := []Entry{{Key: "a", Full: "a # comment", LatencyMS: 1}}
		Expect(WritePartial(dir, "run.txt", entries)).To(Succeed())

		lines := readLines(filepath.Join(dir, "run.txt_partial"))
		Expect(lines).To(Equal([]string{"a"}))
	})
})
