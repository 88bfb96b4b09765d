// spltest compiles every test program in process and compares the result
// with a golden .json file stored next to the source.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"tlog.app/go/tlog"

	"github.com/xplshn/splc/pkg/compiler"
	"github.com/xplshn/splc/pkg/config"
	"github.com/xplshn/splc/pkg/diag"
)

// Golden is the recorded outcome of compiling one test program.
type Golden struct {
	Hash        string `json:"hash"`
	Asm         string `json:"asm,omitempty"`
	ErrorKind   string `json:"error_kind,omitempty"`
	ExitCode    int    `json:"exit_code"`
	Diagnostics string `json:"diagnostics,omitempty"`
}

type FileTestResult struct {
	File     string        `json:"file"`
	Status   string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Duration time.Duration `json:"duration"`
}

var (
	testFiles  = flag.String("test-files", "tests/*.spl", "Glob pattern(s) for files to test (space-separated).")
	skipFiles  = flag.String("skip-files", "", "Files to skip (space-separated).")
	target     = flag.String("target", "eco32", "Backend to compile with: eco32 or qbe.")
	qbeTarget  = flag.String("qbe-target", "", "QBE target ABI, defaults to the host.")
	flagString = flag.String("flags", "", "Extra -W/-F flags for the compiler (space-separated).")
	outputJSON = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	jsonDir    = flag.String("dir", "", "Directory to store/read golden JSON files (defaults to source file dir).")
	jobs       = flag.Int("j", runtime.NumCPU(), "Number of parallel test jobs.")
	update     = flag.Bool("update", false, "Rewrite golden files with the current output.")
	useCache   = flag.Bool("cached", false, "Skip files whose source and compiler options match the golden file.")
	verbose    = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	cfg := config.NewConfig()
	if err := cfg.SetBackend(*target); err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}
	cfg.SetTarget(runtime.GOOS, runtime.GOARCH, *qbeTarget, *verbose)
	cfg.ProcessFlagString(*flagString)

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	ctx := context.Background()
	if *verbose {
		ctx = tlog.ContextWithSpan(ctx, tlog.Root())
	}

	results := runSuite(ctx, cfg, files)
	printSummary(results)
	writeJSONReport(results)
	if hasFailures(results) {
		os.Exit(1)
	}
}

func runSuite(ctx context.Context, cfg *config.Config, files []string) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < max(*jobs, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(ctx, cfg, file)
			}
		}()
	}

	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var all []*FileTestResult
	for result := range resultsChan {
		all = append(all, result)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })
	return all
}

func getJSONPath(sourceFile string) string {
	jsonFileName := "." + filepath.Base(sourceFile) + ".json"
	if *jsonDir != "" {
		return filepath.Join(*jsonDir, jsonFileName)
	}
	return filepath.Join(filepath.Dir(sourceFile), jsonFileName)
}

// sourceHash keys a golden file on the program text and on every compiler
// option that can change the output.
func sourceHash(source []byte, cfg *config.Config) string {
	h := xxhash.New()
	h.Write(source)
	h.WriteString("\x00" + cfg.Fingerprint())
	return fmt.Sprintf("%x", h.Sum64())
}

// compile runs the whole pipeline and records its outcome.
func compile(ctx context.Context, cfg *config.Config, file string, source []byte) *Golden {
	var diags bytes.Buffer
	rep := diag.NewReporter(&diags)
	rep.Color = false

	g := &Golden{Hash: sourceHash(source, cfg)}
	res, err := compiler.Compile(ctx, cfg, rep, filepath.Base(file), source, compiler.PhaseCodegen)
	if err != nil {
		rep.Error(err)
		g.ErrorKind = diag.KindOf(err).String()
		g.ExitCode = diag.ExitCode(err)
	} else {
		g.Asm = string(res.Asm)
	}
	g.Diagnostics = diags.String()
	return g
}

func testFile(ctx context.Context, cfg *config.Config, file string) *FileTestResult {
	start := time.Now()
	result := &FileTestResult{File: file}
	defer func() { result.Duration = time.Since(start) }()

	source, err := os.ReadFile(file)
	if err != nil {
		result.Status, result.Message = "ERROR", fmt.Sprintf("Could not read source: %v", err)
		return result
	}

	goldenFile := getJSONPath(file)
	var golden Golden
	goldenData, err := os.ReadFile(goldenFile)
	hasGolden := err == nil
	if hasGolden {
		if err := json.Unmarshal(goldenData, &golden); err != nil {
			result.Status, result.Message = "ERROR", fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)
			return result
		}
	}

	if *useCache && hasGolden && !*update && golden.Hash == sourceHash(source, cfg) {
		result.Status, result.Message = "SKIP", "Unchanged since the golden file was written"
		return result
	}

	got := compile(ctx, cfg, file, source)

	if !*update && !hasGolden {
		result.Status, result.Message = "FAIL", "No golden file at "+goldenFile+", run with --update to create it"
		return result
	}

	if *update {
		if err := writeGolden(goldenFile, got); err != nil {
			result.Status, result.Message = "ERROR", err.Error()
			return result
		}
		result.Status, result.Message = "PASS", "Golden file written to "+goldenFile
		return result
	}

	want := golden
	want.Hash, got.Hash = "", ""
	if diff := cmp.Diff(&want, got); diff != "" {
		result.Status, result.Message, result.Diff = "FAIL", "Output differs from the golden file", diff
		return result
	}
	result.Status = "PASS"
	if got.ErrorKind != "" {
		result.Message = "Rejected with '" + got.ErrorKind + "' as expected"
	} else {
		result.Message = "Assembly matches the golden file"
	}
	return result
}

func writeGolden(path string, g *Golden) error {
	data, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal golden data to JSON: %w", err)
	}
	if dir := filepath.Dir(path); *jsonDir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write golden file %s: %w", path, err)
	}
	return nil
}

func printSummary(results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration

	for _, result := range results {
		fmt.Println("----------------------------------------------------------------------")
		fmt.Printf("Testing %s%s%s...\n", cCyan, result.File, cNone)
		total += result.Duration

		switch result.Status {
		case "PASS":
			passed++
			fmt.Printf("  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Printf("  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
			fmt.Println(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			fmt.Printf("  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Printf("  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}
		if *verbose && result.Status != "SKIP" {
			fmt.Printf("  compile: %s\n", formatDuration(result.Duration))
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%sTest Summary:%s %s%d Passed%s, %s%d Failed%s, %s%d Skipped%s, %s%d Errored%s, %d Total (%s)\n",
		cBold, cNone, cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, cRed, errored, cNone, len(results), formatDuration(total))
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.2fms", float64(d.Microseconds())/1000)
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "-"):
			builder.WriteString(cRed)
		case strings.HasPrefix(trimmed, "+"):
			builder.WriteString(cGreen)
		}
		builder.WriteString("    " + line + cNone + "\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) {
	resultsMap := make(map[string]*FileTestResult, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return
	}

	outputFile := *outputJSON
	if *jsonDir != "" {
		if err := os.MkdirAll(*jsonDir, 0755); err != nil {
			log.Printf("%s[ERROR]%s Failed to create dir %s: %v\n", cRed, cNone, *jsonDir, err)
		}
		outputFile = filepath.Join(*jsonDir, *outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, outputFile, err)
		return
	}
	fmt.Printf("Full test report saved to %s\n", outputFile)
}

func hasFailures(results []*FileTestResult) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if seen[absFile] {
				continue
			}
			if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, absFile)
				seen[absFile] = true
			}
		}
	}
	return allFiles, nil
}
