package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRootHelp(t *testing.T) {
	out, _, err := runCLI(t, []string{"--help"}, "")
	if err != nil {
		t.Fatalf("help: %v", err)
	}
	for _, name := range []string{"import", "queue", "systems", "identify", "library", "config"} {
		requireContains(t, out, name)
	}
}

func TestImportWaitPlacesGame(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeInput(t, "Game (USA).col", "coleco rom data")

	out := env.mustRun(t, "import", "--wait", path)
	requireContains(t, out, "added")
	requireContains(t, out, "success")
	requireContains(t, out, "imported as colecovision")

	placed := filepath.Join(env.cfg.Paths.LibraryDir, "colecovision", "Game (USA).col")
	if _, err := os.Stat(placed); err != nil {
		t.Fatalf("expected placed file at %s: %v", placed, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected source to stay in place when copying: %v", err)
	}

	out = env.mustRun(t, "library", "list")
	requireContains(t, out, "colecovision")
	requireContains(t, out, "Game (USA)")
	requireContains(t, out, "1 game(s)")

	out = env.mustRun(t, "library", "summary")
	requireContains(t, out, "colecovision")

	out = env.mustRun(t, "queue", "status")
	requireContains(t, out, "success")
}

func TestImportWithoutWaitOnlyQueues(t *testing.T) {
	env := setupCLITestEnv(t)
	first := env.writeInput(t, "First.col", "first")
	second := env.writeInput(t, "Second.col", "second")

	out := env.mustRun(t, "import", first, second)
	requireContains(t, out, "Queued 2 item(s)")

	out = env.mustRun(t, "queue", "list")
	requireContains(t, out, "First.col")
	requireContains(t, out, "Second.col")
	requireContains(t, out, "queued")

	out = env.mustRun(t, "queue", "remove", "0")
	requireContains(t, out, "Removed 1 item(s)")

	out = env.mustRun(t, "queue", "list")
	requireNotContains(t, out, "First.col")
	requireContains(t, out, "Second.col")

	if _, _, err := env.run(t, "queue", "remove", "5"); err == nil {
		t.Fatal("expected out of range index to fail")
	}
}

func TestImportRequiresPathOrWait(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := env.run(t, "import"); err == nil {
		t.Fatal("expected import without paths to fail")
	}
	if _, _, err := env.run(t, "import", filepath.Join(env.inputDir, "missing.col")); err == nil {
		t.Fatal("expected missing path to fail")
	}
}

func TestConflictResolvedByChoose(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeInput(t, "Mystery.bin", "ambiguous bytes")

	out := env.mustRun(t, "import", "--wait", path)
	requireContains(t, out, "conflict")
	requireContains(t, out, "atari2600")
	requireContains(t, out, "genesis")

	if _, _, err := env.run(t, "queue", "choose", "1", "nes64"); err == nil {
		t.Fatal("expected unknown system to be rejected")
	}

	out = env.mustRun(t, "queue", "choose", "1", "genesis")
	requireContains(t, out, "requeued as genesis")

	out = env.mustRun(t, "import", "--wait")
	requireContains(t, out, "imported as genesis")

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.LibraryDir, "genesis", "Mystery.bin")); err != nil {
		t.Fatalf("expected genesis placement: %v", err)
	}

	out = env.mustRun(t, "queue", "history", "1")
	requireContains(t, out, "system chosen: genesis")

	if _, _, err := env.run(t, "queue", "choose", "1", "genesis"); err == nil {
		t.Fatal("expected choose on a settled item to fail")
	}
}

func TestFailedItemsRetryAndClear(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeInput(t, "notes.txt", "not a rom")

	out := env.mustRun(t, "import", "--wait", path)
	requireContains(t, out, "failure")

	out = env.mustRun(t, "queue", "list", "--status", "failure")
	requireContains(t, out, "no_system_matched")

	out = env.mustRun(t, "queue", "retry", "1")
	requireContains(t, out, "Requeued 1 item(s)")

	env.mustRun(t, "import", "--wait")
	out = env.mustRun(t, "queue", "clear-failed")
	requireContains(t, out, "Cleared 1 failed item(s)")

	out = env.mustRun(t, "queue", "list")
	requireContains(t, out, "Queue is empty")
}

func TestIdentifyHasNoSideEffects(t *testing.T) {
	env := setupCLITestEnv(t)
	path := env.writeInput(t, "Mystery.bin", "ambiguous bytes")

	out := env.mustRun(t, "identify", path)
	requireContains(t, out, "Kind: rom")
	requireContains(t, out, "MD5:")
	requireContains(t, out, "atari2600")
	requireContains(t, out, "genesis")
	requireContains(t, out, "Multiple systems match")

	out = env.mustRun(t, "identify", "--json", path)
	requireContains(t, out, `"kind": "rom"`)

	out = env.mustRun(t, "queue", "list")
	requireContains(t, out, "Queue is empty")
	out = env.mustRun(t, "library", "list")
	requireContains(t, out, "Library is empty")
}

func TestSystemsListFiltersByExtension(t *testing.T) {
	env := setupCLITestEnv(t)

	out := env.mustRun(t, "systems", "list", "--extension", ".bin")
	requireContains(t, out, "atari2600")
	requireContains(t, out, "genesis")
	requireNotContains(t, out, "colecovision")

	out = env.mustRun(t, "systems", "list")
	requireContains(t, out, "colecovision")
	requireContains(t, out, "psx")

	out = env.mustRun(t, "systems", "list", "--extension", "zzz")
	requireContains(t, out, "No systems found")
}
