package assetreg_test

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"assetreg"
	"assetreg/internal/config"
	"assetreg/internal/testsupport"
)

func TestRegistryEndToEnd(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithClustering("gray_difference", 0))
	reg, err := assetreg.Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { reg.Close() })
	ctx := context.Background()

	pixels := testsupport.GradientImage(24, 24, 9)
	files := []assetreg.File{
		{LogicalPath: "pak01.str", Content: []byte("pak01")},
		{LogicalPath: "pak01/tex01.txd", Content: []byte("txd"), ContainerPath: "pak01.str"},
		{LogicalPath: "pak01/tex01/A.dds", Content: testsupport.EncodeDDS(t, pixels), ContainerPath: "pak01/tex01.txd"},
		{LogicalPath: "pak01/tex01/B.png", Content: testsupport.EncodePNG(t, pixels), ContainerPath: "pak01/tex01.txd"},
		{LogicalPath: "pak01/C.png", Content: testsupport.SolidPNG(t, 24, 24, color.NRGBA{B: 90, A: 255})},
	}
	summary, err := reg.Ingest(ctx, files)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if summary.Inserted != len(files) || summary.Fingerprinted != 3 {
		t.Fatalf("unexpected summary %s", summary)
	}

	dupes, err := reg.Duplicates(ctx, nil)
	if err != nil {
		t.Fatalf("Duplicates: %v", err)
	}
	if len(dupes) != 1 || dupes[0].Size() != 2 {
		t.Fatalf("expected one pair, got %+v", dupes)
	}
	if dupes[0].Members[0].Identity != summary.Outcomes[2].Identity || dupes[0].Members[1].Identity != summary.Outcomes[3].Identity {
		t.Fatalf("unexpected pair %v", dupes[0].Identities())
	}

	matches, err := reg.SimilarTo(ctx, summary.Outcomes[2].Identity, 0)
	if err != nil || len(matches) != 1 {
		t.Fatalf("SimilarTo = %+v, %v", matches, err)
	}

	report, err := reg.Report(ctx)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	for _, want := range []string{"extracted_image", "pak01/tex01/A.dds", "reclaimable"} {
		if !strings.Contains(strings.ToLower(report), strings.ToLower(want)) {
			t.Fatalf("report missing %q:\n%s", want, report)
		}
	}

	archive := summary.Outcomes[0].Identity
	removed, err := reg.Remove(ctx, archive)
	if err != nil || removed != 1 {
		t.Fatalf("Remove = %d, %v", removed, err)
	}
	if _, err := reg.Lookup(ctx, archive); !errors.Is(err, assetreg.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	parents, err := reg.ParentOf(ctx, summary.Outcomes[1].Identity)
	if err != nil || len(parents) != 0 {
		t.Fatalf("texture container still has a parent: %+v, %v", parents, err)
	}
}

func TestOpenPath(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "assetreg.toml")
	if err := config.CreateSample(cfgPath); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	t.Setenv(config.DataDirEnv, filepath.Join(dir, "data"))
	data, err := os.ReadFile(cfgPath)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	// Drop the sample's data_dir so the environment override applies.
	var kept []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "data_dir") {
			continue
		}
		kept = append(kept, line)
	}
	if err := os.WriteFile(cfgPath, []byte(strings.Join(kept, "\n")), 0o644); err != nil {
		t.Fatalf("rewrite sample: %v", err)
	}

	reg, err := assetreg.OpenPath(cfgPath)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	defer reg.Close()
	if !strings.HasPrefix(reg.Store().Path(), filepath.Join(dir, "data")) {
		t.Fatalf("database outside data dir: %s", reg.Store().Path())
	}
}
