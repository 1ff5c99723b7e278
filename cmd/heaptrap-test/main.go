// Command heaptrap-test wraps `go test -json` across this module's
// packages with retry-based flakiness detection and JUnit/summary
// output, and exposes the shared snapshot manager's cleanup and report
// operations. It verifies no snapshot itself: the fault-classification
// golden file is checked by internal/fault's own test under go test. It
// is the project's own test entry point, mirrored on the teacher's
// orizon-test tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/orizon-lang/heaptrap/internal/testrunner"
)

func main() {
	var (
		pkgs             string
		runPat           string
		par              int
		jsonOut          bool
		short            bool
		race             bool
		timeout          time.Duration
		envList          string
		color            bool
		extra            string
		junit            string
		retries          int
		failFast         bool
		pkgRegex         string
		summaryJSON      string
		fileRegex        string
		listOnly         bool
		failOnFlaky      bool
		snapshotDir      string
		updateSnapshots  bool
		cleanupSnapshots bool
		snapshotReport   bool
	)

	flag.StringVar(&pkgs, "packages", "./...", "comma-separated package patterns to test")
	flag.StringVar(&runPat, "run", "", "-run regex forwarded to go test")
	flag.IntVar(&par, "parallel", 0, "concurrent packages (0 = NumCPU)")
	flag.BoolVar(&jsonOut, "json", false, "stream raw go test -json events")
	flag.BoolVar(&short, "short", false, "pass -short to go test")
	flag.BoolVar(&race, "race", false, "pass -race to go test")
	flag.DurationVar(&timeout, "timeout", 10*time.Minute, "go test timeout")
	flag.StringVar(&envList, "env", "", "extra env KEY=VAL;KEY2=VAL2")
	flag.BoolVar(&color, "color", true, "colorize output")
	flag.StringVar(&extra, "args", "", "extra args to append to go test (space-separated)")
	flag.StringVar(&junit, "junit", "", "optional JUnit XML output path")
	flag.IntVar(&retries, "retries", 0, "re-run failing tests up to N times to detect flakiness")
	flag.BoolVar(&failFast, "fail-fast", false, "stop at first failing package")
	flag.StringVar(&pkgRegex, "pkg-regex", "", "optional regex to filter package names after expansion")
	flag.StringVar(&summaryJSON, "json-summary", "", "optional path to write a machine-readable summary")
	flag.StringVar(&fileRegex, "file-regex", "", "optional regex to include only packages with matching files")
	flag.BoolVar(&listOnly, "list", false, "list tests without executing (dry run)")
	flag.BoolVar(&failOnFlaky, "fail-on-flaky", false, "exit non-zero if any test recovered after retries")
	flag.StringVar(&snapshotDir, "snapshot-dir", "testdata/snapshots", "directory of golden snapshots scanned by -cleanup-snapshots")
	flag.BoolVar(&updateSnapshots, "update-snapshots", false, "set the snapshot manager's update mode (this command compares and writes no snapshot)")
	flag.BoolVar(&cleanupSnapshots, "cleanup-snapshots", false, "remove orphaned snapshot files and exit")
	flag.BoolVar(&snapshotReport, "snapshot-report", false, "print the snapshot manager's report and exit (counts only snapshots verified by this command, which verifies none)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Test runner for the heaptrap module: retries, flakiness detection, golden snapshots.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	snap := testrunner.NewSnapshotManager(testrunner.SnapshotOptions{
		BaseDir: snapshotDir,
		Format:  "text",
		Update:  updateSnapshots,
		Cleanup: cleanupSnapshots,
	})

	if cleanupSnapshots {
		if err := snap.CleanupOrphanedSnapshots(); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}

	if snapshotReport {
		fmt.Print(snap.GenerateReport())
		return
	}

	runner := testrunner.New(testrunner.Options{
		Packages:     splitNonEmpty(pkgs, ","),
		RunPattern:   runPat,
		Parallel:     par,
		JSON:         jsonOut,
		Short:        short,
		Race:         race,
		Timeout:      timeout,
		Env:          splitNonEmpty(envList, ";"),
		Color:        color,
		ExtraArgs:    splitNonEmpty(extra, " "),
		JUnitPath:    junit,
		Retries:      retries,
		FailFast:     failFast,
		PackageRegex: pkgRegex,
		SummaryJSON:  summaryJSON,
		FileRegex:    fileRegex,
		ListOnly:     listOnly,
		FailOnFlaky:  failOnFlaky,
	})

	res, err := runner.Run(context.Background(), os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if res.Failed > 0 {
		os.Exit(1)
	}
}

func splitNonEmpty(s, sep string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(s, sep) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
