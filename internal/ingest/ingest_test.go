package ingest_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assetreg/internal/catalog"
	"assetreg/internal/config"
	"assetreg/internal/ingest"
	"assetreg/internal/logging"
	"assetreg/internal/registry"
	"assetreg/internal/testsupport"
)

func newIngester(t *testing.T, opts ...testsupport.ConfigOption) (*ingest.Ingester, *registry.Store, *config.Config) {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	return ingest.New(store, cfg, nil), store, cfg
}

func pak01Batch(t *testing.T) []ingest.File {
	t.Helper()
	texture := testsupport.EncodeDDS(t, testsupport.GradientImage(16, 16, 3))
	// Children are listed before their containers on purpose.
	return []ingest.File{
		{LogicalPath: "pak01/tex01/bart.dds", Content: texture, ContainerPath: "pak01/tex01.txd"},
		{LogicalPath: "pak01/snd01.snu", Content: []byte("sound"), ContainerPath: "pak01.str"},
		{LogicalPath: "pak01/tex01.txd", Content: []byte("txd"), ContainerPath: "pak01.str"},
		{LogicalPath: "pak01.str", Content: []byte("archive")},
	}
}

func TestRunOrdersContainersFirst(t *testing.T) {
	ing, store, _ := newIngester(t)
	ctx := context.Background()

	summary, err := ing.Run(ctx, pak01Batch(t))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.BatchID == "" {
		t.Fatal("expected batch id")
	}
	if summary.Inserted != 4 || summary.Fingerprinted != 1 || len(summary.Failed()) != 0 {
		t.Fatalf("unexpected summary: %s %+v", summary, summary.Failed())
	}
	for _, o := range summary.Outcomes {
		if o.Err != nil {
			t.Fatalf("%s failed: %v", o.LogicalPath, o.Err)
		}
	}
	if summary.Outcomes[3].LogicalPath != "pak01.str" || summary.Outcomes[3].Category != catalog.CategoryArchive {
		t.Fatalf("outcomes not in input order: %+v", summary.Outcomes[3])
	}

	archive, err := store.LookupByPath(ctx, catalog.CategoryArchive, "pak01.str")
	if err != nil {
		t.Fatalf("LookupByPath: %v", err)
	}
	children, err := store.ChildrenOf(ctx, archive.Identity)
	if err != nil {
		t.Fatalf("ChildrenOf: %v", err)
	}
	tags := map[string]string{}
	for _, c := range children {
		tags[c.LogicalPath] = c.CategoryTag
	}
	if len(children) != 2 || tags["pak01/tex01.txd"] != "textures" || tags["pak01/snd01.snu"] != "audio" {
		t.Fatalf("unexpected archive children: %+v", children)
	}

	txd, err := store.LookupByPath(ctx, catalog.CategoryTextureContainer, "pak01/tex01.txd")
	if err != nil {
		t.Fatalf("LookupByPath txd: %v", err)
	}
	images, err := store.ChildrenOf(ctx, txd.Identity)
	if err != nil {
		t.Fatalf("ChildrenOf txd: %v", err)
	}
	if len(images) != 1 || images[0].Kind != registry.EdgeComposition || images[0].Identity != summary.Outcomes[0].Identity {
		t.Fatalf("unexpected composition children: %+v", images)
	}

	again, err := ing.Run(ctx, pak01Batch(t))
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if again.Unchanged != 4 || again.Inserted != 0 || again.BatchID == summary.BatchID {
		t.Fatalf("re-ingest should be a no-op with a new batch: %s", again)
	}
	for _, o := range again.Outcomes {
		if o.Linked {
			t.Fatalf("%s relinked on unchanged re-ingest", o.LogicalPath)
		}
	}
}

func TestRunRecordsLocalFailures(t *testing.T) {
	ing, store, _ := newIngester(t)
	ctx := context.Background()

	files := []ingest.File{
		{LogicalPath: "orphans/snd.snu", Content: []byte("x"), ContainerPath: "missing.str"},
		{LogicalPath: "tex/broken.dds", Content: []byte("garbage")},
		{LogicalPath: "scripts/main.lua", Content: []byte("print(1)")},
		{LogicalPath: "", Content: []byte("nameless")},
	}
	summary, err := ing.Run(ctx, files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if o := summary.Outcomes[0]; !errors.Is(o.Err, registry.ErrDanglingReference) || o.Severity != registry.SeverityRejected || o.Committed() {
		t.Fatalf("unexpected orphan outcome %+v", o)
	}
	if o := summary.Outcomes[1]; o.Severity != registry.SeverityDegraded || !o.Committed() || o.Fingerprinted {
		t.Fatalf("unexpected broken image outcome %+v", o)
	}
	if o := summary.Outcomes[2]; o.Err != nil || o.Result != catalog.Inserted {
		t.Fatalf("unexpected script outcome %+v", o)
	}
	if o := summary.Outcomes[3]; !errors.Is(o.Err, registry.ErrInvalidEntry) {
		t.Fatalf("unexpected empty path outcome %+v", o)
	}
	if summary.Rejected != 2 || summary.Degraded != 1 || summary.Inserted != 2 {
		t.Fatalf("unexpected counters: %s", summary)
	}
	if _, err := store.LookupByPath(ctx, catalog.CategoryAudio, "orphans/snd.snu"); !errors.Is(err, registry.ErrNotFound) {
		t.Fatalf("orphan must not be committed: %v", err)
	}
}

func TestRunStripsExtractionRoot(t *testing.T) {
	ing, store, cfg := newIngester(t)
	ctx := context.Background()

	root := cfg.Paths.ExtractionRoot
	files := []ingest.File{
		{LogicalPath: filepath.Join(root, "pak02.str"), Content: []byte("pak02")},
		{LogicalPath: filepath.Join(root, "pak02", "a.lua"), Content: []byte("a"), ContainerPath: filepath.Join(root, "pak02.str")},
		{LogicalPath: filepath.Join(filepath.Dir(root), "elsewhere", "b.lua"), Content: []byte("b")},
	}
	summary, err := ing.Run(ctx, files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o := summary.Outcomes[1]; o.Err != nil || o.LogicalPath != "pak02/a.lua" || !o.Linked {
		t.Fatalf("unexpected outcome %+v", o)
	}
	if o := summary.Outcomes[2]; !errors.Is(o.Err, registry.ErrInvalidEntry) {
		t.Fatalf("path outside root should be rejected, got %+v", o)
	}
	if _, err := store.LookupByPath(ctx, catalog.CategoryArchive, "pak02.str"); err != nil {
		t.Fatalf("archive stored under relative path: %v", err)
	}
}

func TestRunHonorsCancellation(t *testing.T) {
	ing, store, _ := newIngester(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := ing.Run(ctx, pak01Batch(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Transient != 4 {
		t.Fatalf("expected every file transient, got %s", summary)
	}
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total() != 0 {
		t.Fatalf("cancelled pass wrote %d entries", stats.Total())
	}
}

func TestRunLogsIdentityCollision(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	logPath := filepath.Join(t.TempDir(), "ingest.log")
	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg, registry.WithLogger(logger))
	ing := ingest.New(store, cfg, logger)

	files := []ingest.File{
		{LogicalPath: "shared/track.bin", Content: []byte("same"), Category: catalog.CategoryAudio},
		{LogicalPath: "shared/track.bin", Content: []byte("same"), Category: catalog.CategoryMusic},
	}
	summary, err := ing.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Fatal != 1 || summary.Inserted != 1 {
		t.Fatalf("unexpected summary %s", summary)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, `"level":"error"`) || !strings.Contains(content, `"alert":"identity_collision"`) {
		t.Fatalf("collision not logged as alert:\n%s", content)
	}
	if !strings.Contains(content, `"batch_id":"`+summary.BatchID+`"`) {
		t.Fatalf("batch id missing from logs:\n%s", content)
	}
}

func TestRunUsesSingleWorker(t *testing.T) {
	ing, _, _ := newIngester(t, testsupport.WithWorkers(1))
	files := make([]ingest.File, 0, 6)
	for i := 0; i < 6; i++ {
		img := testsupport.SolidImage(8, 8, color.NRGBA{R: uint8(i * 40), G: 10, B: 10, A: 255})
		files = append(files, ingest.File{
			LogicalPath: filepath.ToSlash(filepath.Join("tex", string(rune('a'+i))+".png")),
			Content:     testsupport.EncodePNG(t, img),
		})
	}
	summary, err := ing.Run(context.Background(), files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Fingerprinted != 6 {
		t.Fatalf("expected 6 fingerprinted images, got %s", summary)
	}
}

func TestRunCommitsDeclaredContainerFirst(t *testing.T) {
	ing, store, _ := newIngester(t)
	ctx := context.Background()

	// The nested archive sits at a shallower path than the archive holding it.
	files := []ingest.File{
		{LogicalPath: "inner.str", Content: []byte("inner"), ContainerPath: "packs/outer.str"},
		{LogicalPath: "inner/snd.snu", Content: []byte("snd"), ContainerPath: "inner.str"},
		{LogicalPath: "packs/outer.str", Content: []byte("outer")},
	}
	summary, err := ing.Run(ctx, files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, o := range summary.Outcomes {
		if o.Err != nil || o.Result != catalog.Inserted {
			t.Fatalf("%s: %s %v", o.LogicalPath, o.Result, o.Err)
		}
	}
	if !summary.Outcomes[0].Linked || !summary.Outcomes[1].Linked {
		t.Fatalf("nested entries not linked: %+v", summary.Outcomes)
	}

	parents, err := store.ParentOf(ctx, summary.Outcomes[0].Identity)
	if err != nil {
		t.Fatalf("ParentOf: %v", err)
	}
	if len(parents) != 1 || parents[0].LogicalPath != "packs/outer.str" {
		t.Fatalf("unexpected parents of inner.str: %+v", parents)
	}
}

func TestRunParsesLinkKinds(t *testing.T) {
	ing, store, _ := newIngester(t)
	ctx := context.Background()

	files := []ingest.File{
		{LogicalPath: "pak03.str", Content: []byte("pak03"), Link: "none"},
		{LogicalPath: "pak03/a.lua", Content: []byte("a"), ContainerPath: "pak03.str", Link: "Containment"},
		{LogicalPath: "pak03/b.lua", Content: []byte("b"), ContainerPath: "pak03.str", Link: "parent"},
		{LogicalPath: "pak03/c.lua", Content: []byte("c"), Link: registry.EdgeContainment},
	}
	summary, err := ing.Run(ctx, files)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if o := summary.Outcomes[0]; o.Err != nil || o.Result != catalog.Inserted {
		t.Fatalf("unexpected archive outcome %+v", o)
	}
	if o := summary.Outcomes[1]; o.Err != nil || !o.Linked {
		t.Fatalf("mixed-case link kind not accepted: %+v", o)
	}
	for _, o := range summary.Outcomes[2:] {
		if !errors.Is(o.Err, registry.ErrInvalidEntry) || o.Committed() {
			t.Fatalf("%s: expected ErrInvalidEntry, got %+v", o.LogicalPath, o)
		}
	}
	archive, err := store.LookupByPath(ctx, catalog.CategoryArchive, "pak03.str")
	if err != nil {
		t.Fatalf("LookupByPath: %v", err)
	}
	children, err := store.ChildrenOf(ctx, archive.Identity)
	if err != nil || len(children) != 1 {
		t.Fatalf("ChildrenOf = %+v, %v", children, err)
	}
}

func TestRunRejectsPathsAboveRoot(t *testing.T) {
	ing, store, _ := newIngester(t)
	ctx := context.Background()

	summary, err := ing.Run(ctx, []ingest.File{
		{LogicalPath: "../outside/x.lua", Content: []byte("x")},
		{LogicalPath: `sub\..\..\y.lua`, Content: []byte("y")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, o := range summary.Outcomes {
		if !errors.Is(o.Err, registry.ErrInvalidEntry) || o.Severity != registry.SeverityRejected {
			t.Fatalf("%s: expected rejection, got %+v", o.LogicalPath, o)
		}
	}
	stats, err := store.Stats(ctx)
	if err != nil || stats.Total() != 0 {
		t.Fatalf("escaping paths were stored: %d, %v", stats.Total(), err)
	}
}
