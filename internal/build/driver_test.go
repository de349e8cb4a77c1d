package build

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftworks/weft/internal/config"
	"github.com/weftworks/weft/internal/logging"
	"github.com/weftworks/weft/internal/modules"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{}
	cfg.ApplyDefaults()
	cfg.Site.SrcDir = filepath.Join(root, "site")
	cfg.Site.OutDir = filepath.Join(root, "dist")
	cfg.Build.DebounceMs = 20
	require.NoError(t, os.MkdirAll(cfg.Site.SrcDir, 0o755))
	return cfg
}

func writeSiteFile(t *testing.T, cfg *config.Config, rel, content string) string {
	t.Helper()
	path := filepath.Join(cfg.Site.SrcDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readOutput(t *testing.T, cfg *config.Config, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.Site.OutDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return string(data)
}

func TestEntrypointsHonorIncludeAndExcludeGlobs(t *testing.T) {
	cfg := testConfig(t)
	cfg.Build.Exclude = []string{"drafts/**"}

	index := writeSiteFile(t, cfg, "index.html", "<p>x</p>")
	about := writeSiteFile(t, cfg, "pages/about.html", "<p>y</p>")
	writeSiteFile(t, cfg, "drafts/wip.html", "<p>z</p>")
	writeSiteFile(t, cfg, "styles/main.css", "body{}")

	d := NewDriver(logging.NewNop(), cfg, modules.NewLoader(logging.NewNop()))
	defer d.Shutdown()

	entrypoints, err := d.Entrypoints()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{index, about}, entrypoints)
}

func TestBuildAllWritesExpandedOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.Site.Environment = "production"

	writeSiteFile(t, cfg, "partials/footer.html", "<footer>f</footer>")
	writeSiteFile(t, cfg, "index.html",
		`<main><env allow="production">live</env><include src="partials/footer.html"></include></main>`)
	// The partial matches the include glob too; its own build is harmless.

	d := NewDriver(logging.NewNop(), cfg, modules.NewLoader(logging.NewNop()))
	defer d.Shutdown()

	require.NoError(t, d.BuildAll(context.Background()))

	assert.Equal(t, "<main>live<footer>f</footer></main>", readOutput(t, cfg, "index.html"))
}

func TestBuildAllContinuesPastFatalDocument(t *testing.T) {
	cfg := testConfig(t)

	writeSiteFile(t, cfg, "broken.html", "<include></include>")
	writeSiteFile(t, cfg, "ok.html", "<p>fine</p>")

	d := NewDriver(logging.NewNop(), cfg, modules.NewLoader(logging.NewNop()))
	defer d.Shutdown()

	err := d.BuildAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 documents failed")

	assert.Equal(t, "<p>fine</p>", readOutput(t, cfg, "ok.html"))
	_, err = os.Stat(filepath.Join(cfg.Site.OutDir, "broken.html"))
	assert.Error(t, err, "a document with a structural error must not be written")
}

func TestWatchLoopRebuildsAffectedEntrypointOnly(t *testing.T) {
	cfg := testConfig(t)

	dep := writeSiteFile(t, cfg, "partials/header.html", "<h1>v1</h1>")
	writeSiteFile(t, cfg, "index.html", `<include src="partials/header.html"></include>`)
	writeSiteFile(t, cfg, "static.html", "<p>static</p>")

	d := NewDriver(logging.NewNop(), cfg, modules.NewLoader(logging.NewNop()))
	defer d.Shutdown()

	require.NoError(t, d.BuildAll(context.Background()))
	assert.Equal(t, "<h1>v1</h1>", readOutput(t, cfg, "index.html"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.WatchLoop(ctx)

	// Let the loop arm before editing the dependency.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(dep, []byte("<h1>v2</h1>"), 0o644))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(cfg.Site.OutDir, "index.html"))
		return err == nil && string(data) == "<h1>v2</h1>"
	}, 5*time.Second, 50*time.Millisecond, "dependency edit must regenerate the including document")
}

func TestWatchLoopRebuildsOnBundleIndexEdit(t *testing.T) {
	cfg := testConfig(t)
	cfg.Build.Exclude = []string{"widget/**"}

	index := writeSiteFile(t, cfg, "widget/index.html", "<section>v1</section>")
	writeSiteFile(t, cfg, "page.html", `<include src="widget"></include>`)

	d := NewDriver(logging.NewNop(), cfg, modules.NewLoader(logging.NewNop()))
	defer d.Shutdown()

	require.NoError(t, d.BuildAll(context.Background()))
	assert.Equal(t, "<section>v1</section>", readOutput(t, cfg, "page.html"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.WatchLoop(ctx)

	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(index, []byte("<section>v2</section>"), 0o644))

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(filepath.Join(cfg.Site.OutDir, "page.html"))
		return err == nil && string(data) == "<section>v2</section>"
	}, 5*time.Second, 50*time.Millisecond, "a bundle index edit must regenerate the including document")
}
