package librarycmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func newRoot() *cobra.Command {
	root := &cobra.Command{Use: "gamebrowser", SilenceUsage: true, SilenceErrors: true}
	AddGlobalFlags(root)
	root.AddCommand(NewScan(), NewLayouts(), NewGame(), NewFolders(), NewConfig())
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRoot()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func setup(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	root := filepath.Join(base, "games")
	for _, f := range []string{"Hero/RPG_RT.ldb", "Hero/RPG_RT.lmt", "Wolf/Data.wolf"} {
		p := filepath.Join(root, f)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	cfg := "data_dir: " + filepath.Join(base, "data") + "\n" +
		"library:\n  roots: [" + root + "]\n" +
		"log:\n  level: error\n"
	path := filepath.Join(base, "gamebrowser.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestScanJSON(t *testing.T) {
	cfg := setup(t)
	out, err := run(t, "--config", cfg, "scan", "--json", "--force")
	if err != nil {
		t.Fatal(err)
	}
	var view scanView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("%v\n%s", err, out)
	}
	if len(view.Games) != 2 || len(view.Errors) != 0 {
		t.Fatalf("view = %+v", view)
	}
}

func TestGameCommands(t *testing.T) {
	cfg := setup(t)
	if _, err := run(t, "--config", cfg, "game", "favorite", "hero"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--config", cfg, "game", "encoding", "Hero", "932"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--config", cfg, "game", "encoding", "Hero", "klingon"); err == nil {
		t.Fatalf("unknown encoding accepted")
	}
	out, err := run(t, "--config", cfg, "game", "launch-args", "Hero")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "--encoding 932") || !strings.Contains(out, "--input-layout 0") {
		t.Fatalf("launch args = %s", out)
	}
	if _, err := run(t, "--config", cfg, "game", "launch-args", "Wolf"); err == nil {
		t.Fatalf("unsupported game must not launch")
	}
	if _, err := run(t, "--config", cfg, "game", "show", "Heor"); err == nil || !strings.Contains(err.Error(), "Hero") {
		t.Fatalf("expected suggestion, got %v", err)
	}
	out, err = run(t, "--config", cfg, "scan")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "* Hero") {
		t.Fatalf("favorite not listed first:\n%s", out)
	}
}

func TestLayoutCommands(t *testing.T) {
	cfg := setup(t)
	out, err := run(t, "--config", cfg, "layouts", "add", "Portrait", "--preset", "vertical")
	if err != nil {
		t.Fatal(err)
	}
	id := strings.TrimSpace(strings.TrimPrefix(out, "added layout "))
	if _, err := run(t, "--config", cfg, "layouts", "set-default", id); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "--config", cfg, "layouts", "set-default", "424242"); err == nil {
		t.Fatalf("unknown default accepted")
	}
	out, err = run(t, "--config", cfg, "layouts", "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "* "+id) || !strings.Contains(out, "RPG Maker 2000") {
		t.Fatalf("list:\n%s", out)
	}
	if _, err := run(t, "--config", cfg, "layouts", "delete", id); err != nil {
		t.Fatal(err)
	}
	out, _ = run(t, "--config", cfg, "layouts", "list")
	if !strings.Contains(out, "* 0 ") {
		t.Fatalf("default not promoted:\n%s", out)
	}
}

func TestConfigTest(t *testing.T) {
	cfg := setup(t)
	out, err := run(t, "--config", cfg, "config", "test")
	if err != nil || !strings.HasPrefix(out, "config OK") {
		t.Fatalf("out=%s err=%v", out, err)
	}
}
