package problems

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// SimfileTest is one test entry inside a Simfile test group.
type SimfileTest struct {
	Name      string
	TimeLimit time.Duration
}

// SimfileGroup is an ordered collection of tests sharing a leading-digit tag.
// Groups tagged "0", or with any test name containing "ocen", are sample groups and
// always carry MaxScore 0, regardless of any declared points.
type SimfileGroup struct {
	Tag      string
	MaxScore int
	Tests    []SimfileTest
}

// Simfile is the parsed problem package manifest.
type Simfile struct {
	Name         string
	Label        string
	Statement    string
	Checker      string
	Solutions    []string // Solutions[0] is the model solution.
	MemoryLimit  int64    // bytes
	Groups       []SimfileGroup
}

// ModelSolution is Solutions[0], the declared reference implementation.
func (s Simfile) ModelSolution() string {
	if len(s.Solutions) == 0 {
		return ""
	}
	return s.Solutions[0]
}

const memoryLimitUnitBytes = 1 << 20 // Simfile memory_limit is in MiB.

// ParseSimfile parses the plain-text manifest format described by spec.md
// §6: top-level `key = value` pairs plus a sequence of `test` lines. It is a
// hand-written scanner, not built on a general config-file library, because
// the grammar (group membership derived from a test name's leading digits,
// 2-decimal time limits inline with the test name) has no compatible
// general-purpose grammar.
func ParseSimfile(r io.Reader) (Simfile, error) {
	var sf Simfile
	solutionsSet := false

	groupIndex := map[string]int{}
	groupSample := map[string]bool{}
	groupPoints := map[string]int{}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "test ") {
			test, points, tag, err := parseTestLine(line)
			if err != nil {
				return Simfile{}, fmt.Errorf("problems: simfile line %d: %w", lineNo, err)
			}
			idx, ok := groupIndex[tag]
			if !ok {
				idx = len(sf.Groups)
				groupIndex[tag] = idx
				sf.Groups = append(sf.Groups, SimfileGroup{Tag: tag})
			}
			g := &sf.Groups[idx]
			g.Tests = append(g.Tests, test)
			if isSampleTag(tag) || strings.Contains(test.Name, "ocen") {
				groupSample[tag] = true
			}
			if points > groupPoints[tag] {
				groupPoints[tag] = points
			}
			continue
		}

		key, value, err := parseKeyValue(line)
		if err != nil {
			return Simfile{}, fmt.Errorf("problems: simfile line %d: %w", lineNo, err)
		}
		switch key {
		case "name":
			sf.Name = value
		case "label":
			sf.Label = value
		case "statement":
			sf.Statement = value
		case "checker":
			sf.Checker = value
		case "solutions":
			for _, part := range strings.Split(value, ",") {
				part = strings.TrimSpace(part)
				if part != "" {
					sf.Solutions = append(sf.Solutions, part)
				}
			}
			solutionsSet = len(sf.Solutions) > 0
		case "memory_limit":
			mib, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return Simfile{}, fmt.Errorf("problems: simfile line %d: memory_limit: %w", lineNo, err)
			}
			sf.MemoryLimit = mib * memoryLimitUnitBytes
		default:
			return Simfile{}, fmt.Errorf("problems: simfile line %d: unknown key %q", lineNo, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return Simfile{}, fmt.Errorf("problems: simfile: %w", err)
	}

	for i := range sf.Groups {
		tag := sf.Groups[i].Tag
		if groupSample[tag] {
			sf.Groups[i].MaxScore = 0
		} else {
			sf.Groups[i].MaxScore = groupPoints[tag]
		}
	}

	if err := validateSimfile(sf, solutionsSet); err != nil {
		return Simfile{}, err
	}
	return sf, nil
}

// Dump renders sf back into the plain-text manifest format ParseSimfile
// reads, preserving group order and each group's declared points (sample
// groups dump with points=0, matching MaxScore). Used by handlers that
// rewrite a problem's Simfile in place (RESET_PROBLEM_TIME_LIMITS_USING_MODEL_SOLUTION).
func Dump(sf Simfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "name = %s\n", sf.Name)
	fmt.Fprintf(&b, "label = %s\n", sf.Label)
	fmt.Fprintf(&b, "statement = %s\n", sf.Statement)
	fmt.Fprintf(&b, "checker = %s\n", sf.Checker)
	fmt.Fprintf(&b, "solutions = %s\n", strings.Join(sf.Solutions, ","))
	fmt.Fprintf(&b, "memory_limit = %d\n", sf.MemoryLimit/memoryLimitUnitBytes)
	for _, g := range sf.Groups {
		for _, t := range g.Tests {
			fmt.Fprintf(&b, "test %s time_limit=%.2f points=%d\n", t.Name, t.TimeLimit.Seconds(), g.MaxScore)
		}
	}
	return b.String()
}

func validateSimfile(sf Simfile, solutionsSet bool) error {
	missing := []string{}
	if sf.Name == "" {
		missing = append(missing, "name")
	}
	if sf.Label == "" {
		missing = append(missing, "label")
	}
	if sf.Statement == "" {
		missing = append(missing, "statement")
	}
	if sf.Checker == "" {
		missing = append(missing, "checker")
	}
	if !solutionsSet {
		missing = append(missing, "solutions")
	}
	if sf.MemoryLimit == 0 {
		missing = append(missing, "memory_limit")
	}
	if len(missing) > 0 {
		return fmt.Errorf("problems: simfile: missing required field(s): %s", strings.Join(missing, ", "))
	}
	if len(sf.Groups) == 0 {
		return fmt.Errorf("problems: simfile: no test groups declared")
	}
	for _, g := range sf.Groups {
		if len(g.Tests) == 0 {
			return fmt.Errorf("problems: simfile: group %q has an empty test list", g.Tag)
		}
	}
	return nil
}

// parseKeyValue splits "key = value".
func parseKeyValue(line string) (key, value string, err error) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("expected key = value, got %q", line)
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), nil
}

// parseTestLine parses `test <name> time_limit=<seconds> [points=<int>]` and
// derives the group tag from name's leading run of digits.
func parseTestLine(line string) (test SimfileTest, points int, tag string, err error) {
	fields := strings.Fields(strings.TrimPrefix(line, "test"))
	if len(fields) < 2 {
		return SimfileTest{}, 0, "", fmt.Errorf("malformed test line %q", line)
	}
	name := fields[0]
	var timeLimitSet bool
	for _, f := range fields[1:] {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return SimfileTest{}, 0, "", fmt.Errorf("malformed test attribute %q", f)
		}
		switch kv[0] {
		case "time_limit":
			secs, perr := strconv.ParseFloat(kv[1], 64)
			if perr != nil {
				return SimfileTest{}, 0, "", fmt.Errorf("bad time_limit %q: %w", kv[1], perr)
			}
			test.TimeLimit = time.Duration(secs * float64(time.Second))
			timeLimitSet = true
		case "points":
			p, perr := strconv.Atoi(kv[1])
			if perr != nil {
				return SimfileTest{}, 0, "", fmt.Errorf("bad points %q: %w", kv[1], perr)
			}
			points = p
		default:
			return SimfileTest{}, 0, "", fmt.Errorf("unknown test attribute %q", kv[0])
		}
	}
	if !timeLimitSet {
		return SimfileTest{}, 0, "", fmt.Errorf("test %q missing time_limit", name)
	}
	test.Name = name
	tag = leadingDigitTag(name)
	return test, points, tag, nil
}

// leadingDigitTag extracts the run of leading ASCII digits from name; this
// is the group-grouping rule of spec.md §6 ("digits preceding letters start
// a new group", e.g. "7" in "7ocen").
func leadingDigitTag(name string) string {
	i := 0
	for i < len(name) && name[i] >= '0' && name[i] <= '9' {
		i++
	}
	return name[:i]
}

// isSampleTag reports whether a group tag denotes the always-zero-score
// sample/example group by tag alone: tag "0". Test names containing "ocen"
// are checked separately by ParseSimfile.
func isSampleTag(tag string) bool {
	return tag == "0"
}
