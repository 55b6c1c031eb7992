package router

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	gomega "github.com/onsi/gomega"
)

func TestRuleConfig(t *testing.T) {
	gomega.RegisterFailHandler(Fail)
	RunSpecs(t, "RuleConfig Suite")
}

// createTempRuleFile creates a temporary rule file with the given content
// and returns its path.
func createTempRuleFile(content, suffix string) string {
	tmpFile, err := os.CreateTemp("", "logrouter_test_*"+suffix)
	gomega.Expect(err).NotTo(gomega.HaveOccurred(), "Failed to create temp file")

	_, err = tmpFile.WriteString(content)
	gomega.Expect(err).NotTo(gomega.HaveOccurred(), "Failed to write to temp file")

	err = tmpFile.Close()
	gomega.Expect(err).NotTo(gomega.HaveOccurred(), "Failed to close temp file")

	DeferCleanup(func() {
		os.Remove(tmpFile.Name())
	})

	return tmpFile.Name()
}

var _ = Describe("NewFromConfig", func() {
	It("normalizes dotted keys and mixed severity values", func() {
		r, err := NewFromConfig(nil, map[string]any{
			"default":  "info",
			"core":     "warn",
			"core.io":  -1000,
			"core.net": "250",
		})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		level, err := r.EffectiveLevel(Path{"core", "io"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(LevelDebug))

		level, err = r.EffectiveLevel(Path{"core", "net"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(Level(250)))

		level, err = r.EffectiveLevel(Path{"unmatched"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(LevelInfo))
	})

	It("guarantees the default entry when the mapping omits it", func() {
		r, err := NewFromConfig(nil, map[string]any{"core": "error"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(r.Rules()).To(gomega.HaveKey(Default.Key()))
	})

	It("rejects malformed path keys", func() {
		_, err := NewFromConfig(nil, map[string]any{"core..io": "warn"})
		gomega.Expect(err).To(gomega.MatchError(ErrInvalidPath))
	})

	It("rejects unrecognized severity values", func() {
		_, err := NewFromConfig(nil, map[string]any{"core": "loud"})
		gomega.Expect(err).To(gomega.MatchError(ErrInvalidLevel))

		_, err = NewFromConfig(nil, map[string]any{"core": 1.5})
		gomega.Expect(err).To(gomega.MatchError(ErrInvalidLevel))
	})

	It("keeps the global minimum in sync with loaded rules", func() {
		r, err := NewFromConfig(nil, map[string]any{
			"core":    "error",
			"core.io": -1000,
		})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(r.GlobalMin()).To(gomega.Equal(LevelDebug))
	})
})

var _ = Describe("NewFromYAMLFile", func() {
	It("loads a valid YAML rule file", func() {
		path := createTempRuleFile(`
rules:
  default: info
  core: warn
  core.io: -1000
`, ".yaml")

		r, err := NewFromYAMLFile(nil, path)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		level, err := r.EffectiveLevel(Path{"core", "io", "reader"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(LevelDebug))
	})

	It("rejects a rule file failing schema validation", func() {
		path := createTempRuleFile(`
rules:
  core: true
`, ".yaml")

		_, err := NewFromYAMLFile(nil, path)
		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(err.Error()).To(gomega.ContainSubstring("schema validation"))
	})

	It("fails on a missing file", func() {
		_, err := NewFromYAMLFile(nil, "/nonexistent/rules.yaml")
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})

var _ = Describe("NewFromCUEFile", func() {
	It("loads a valid CUE rule file", func() {
		path := createTempRuleFile(`
rules: {
	"default": "info"
	"core":    "error"
	"core.io": -1000
}
`, ".cue")

		r, err := NewFromCUEFile(nil, path)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		level, err := r.EffectiveLevel(Path{"core"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(LevelError))
	})

	It("rejects invalid CUE syntax", func() {
		path := createTempRuleFile(`rules: {`, ".cue")

		_, err := NewFromCUEFile(nil, path)
		gomega.Expect(err).To(gomega.HaveOccurred())
	})
})

var _ = Describe("NewFromPath", func() {
	It("prefers CUE over YAML when both exist", func() {
		dir, err := os.MkdirTemp("", "logrouter_dir_*")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		cuePath := filepath.Join(dir, "logrouter.cue")
		gomega.Expect(os.WriteFile(cuePath, []byte(`rules: {"core": "error"}`), 0o600)).To(gomega.Succeed())
		yamlPath := filepath.Join(dir, "logrouter.yaml")
		gomega.Expect(os.WriteFile(yamlPath, []byte("rules:\n  core: debug\n"), 0o600)).To(gomega.Succeed())

		r, err := NewFromPath(nil, dir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())

		level, err := r.EffectiveLevel(Path{"core"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(LevelError))
	})

	It("fails when the directory holds no rule file", func() {
		dir, err := os.MkdirTemp("", "logrouter_empty_*")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		DeferCleanup(func() { os.RemoveAll(dir) })

		_, err = NewFromPath(nil, dir)
		gomega.Expect(err).To(gomega.HaveOccurred())
		gomega.Expect(err.Error()).To(gomega.ContainSubstring("no rule file found"))
	})
})

var _ = Describe("RuleWatcher", func() {
	It("applies the rule file on start and again on rewrite", func() {
		path := createTempRuleFile("rules:\n  core: warn\n", ".yaml")

		r := New(nil)
		watcher, err := NewRuleWatcher(r, path)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		DeferCleanup(watcher.Stop)

		reloads := make(chan error, 8)
		watcher.OnChange(func(reloadErr error) {
			reloads <- reloadErr
		})

		gomega.Expect(watcher.Start(context.Background())).To(gomega.Succeed())

		level, err := r.EffectiveLevel(Path{"core"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(LevelWarn))

		gomega.Expect(os.WriteFile(path, []byte("rules:\n  core: debug\n"), 0o600)).To(gomega.Succeed())

		gomega.Eventually(reloads, 3*time.Second).Should(gomega.Receive(gomega.BeNil()))

		// Stop and let any in-flight reload drain before reading the
		// unsynchronized router from this goroutine.
		watcher.Stop()
		time.Sleep(200 * time.Millisecond)

		level, err = r.EffectiveLevel(Path{"core"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(LevelDebug))
	})

	It("reports reload failures without touching the router", func() {
		path := createTempRuleFile("rules:\n  core: warn\n", ".yaml")

		r := New(nil)
		watcher, err := NewRuleWatcher(r, path)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		DeferCleanup(watcher.Stop)

		reloads := make(chan error, 8)
		watcher.OnChange(func(reloadErr error) {
			reloads <- reloadErr
		})

		gomega.Expect(watcher.Start(context.Background())).To(gomega.Succeed())

		gomega.Expect(os.WriteFile(path, []byte("rules:\n  core: nonsense\n"), 0o600)).To(gomega.Succeed())

		gomega.Eventually(reloads, 3*time.Second).Should(gomega.Receive(gomega.HaveOccurred()))

		watcher.Stop()
		time.Sleep(200 * time.Millisecond)

		level, err := r.EffectiveLevel(Path{"core"})
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(level).To(gomega.Equal(LevelWarn))
	})

	It("refuses a second Start", func() {
		path := createTempRuleFile("rules:\n  core: warn\n", ".yaml")

		watcher, err := NewRuleWatcher(New(nil), path)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		DeferCleanup(watcher.Stop)

		gomega.Expect(watcher.Start(context.Background())).To(gomega.Succeed())
		gomega.Expect(watcher.Start(context.Background())).NotTo(gomega.Succeed())
	})

	It("fails to start when the initial load fails", func() {
		path := createTempRuleFile("rules:\n  core: nonsense\n", ".yaml")

		watcher, err := NewRuleWatcher(New(nil), path)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		DeferCleanup(watcher.Stop)

		gomega.Expect(watcher.Start(context.Background())).NotTo(gomega.Succeed())
	})
})
