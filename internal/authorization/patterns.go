// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package authorization

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gebl/onedrive-mcp-server/internal/graph"
	"github.com/gebl/onedrive-mcp-server/internal/logging"
)

// CompiledPattern is a validated path pattern with its precedence.
type CompiledPattern struct {
	Original      string          // Pattern as configured
	Normalized    string          // Pattern with a single leading slash
	Permission    PermissionLevel // Permission level for this pattern
	Precedence    int             // Lower = higher precedence (0 = highest)
	IsExact       bool            // No glob syntax at all
	IsRecursive   bool            // Contains **
	Wildcards     int             // Count of *, ? and [ outside **
	LiteralPrefix int             // Characters before the first glob character
}

// PatternEngine matches drive item paths against doublestar glob patterns.
// Exact patterns win over patterns with fewer wildcards, which win over
// patterns containing **. Ties go to the longer literal prefix.
type PatternEngine struct {
	compiledPatterns []CompiledPattern
}

// NewPatternEngine creates a new pattern engine
func NewPatternEngine() *PatternEngine {
	return &PatternEngine{
		compiledPatterns: make([]CompiledPattern, 0),
	}
}

// CompilePatterns validates the patterns and sorts them by precedence.
func (pe *PatternEngine) CompilePatterns(patterns map[string]PermissionLevel) error {
	compiled := make([]CompiledPattern, 0, len(patterns))
	for pattern, permission := range patterns {
		c, err := compilePattern(pattern, permission)
		if err != nil {
			return fmt.Errorf("failed to compile pattern '%s': %w", pattern, err)
		}
		compiled = append(compiled, c)
	}

	sort.Slice(compiled, func(i, j int) bool {
		if compiled[i].Precedence != compiled[j].Precedence {
			return compiled[i].Precedence < compiled[j].Precedence
		}
		return compiled[i].Normalized < compiled[j].Normalized
	})
	pe.compiledPatterns = compiled

	logging.AuthorizationLogger.Debug("Compiled and sorted patterns by precedence",
		"pattern_count", len(pe.compiledPatterns),
		"patterns", pe.getPatternSummary())
	return nil
}

func compilePattern(pattern string, permission PermissionLevel) (CompiledPattern, error) {
	normalized := strings.TrimSpace(pattern)
	if normalized == "" {
		return CompiledPattern{}, fmt.Errorf("pattern cannot be empty")
	}
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if len(normalized) > 1 {
		normalized = strings.TrimRight(normalized, "/")
	}
	if !doublestar.ValidatePattern(normalized) {
		return CompiledPattern{}, fmt.Errorf("invalid glob syntax")
	}

	c := CompiledPattern{
		Original:   pattern,
		Normalized: normalized,
		Permission: permission,
	}

	c.IsRecursive = strings.Contains(normalized, "**")
	rest := strings.ReplaceAll(normalized, "**", "")
	c.Wildcards = strings.Count(rest, "*") + strings.Count(rest, "?") + strings.Count(rest, "[") + strings.Count(rest, "{")

	c.LiteralPrefix = len(normalized)
	if i := strings.IndexAny(normalized, "*?[{\\"); i >= 0 {
		c.LiteralPrefix = i
	}
	c.IsExact = !c.IsRecursive && c.Wildcards == 0 && !strings.Contains(normalized, "\\")

	prefixRank := 99 - min(c.LiteralPrefix, 99)
	switch {
	case c.IsExact:
		c.Precedence = prefixRank
	case !c.IsRecursive:
		c.Precedence = 100*min(c.Wildcards, 9) + prefixRank
	default:
		c.Precedence = 1000 + 100*min(c.Wildcards, 9) + prefixRank
	}

	logging.AuthorizationLogger.Debug("Compiled pattern",
		"pattern", pattern,
		"normalized", normalized,
		"permission", permission,
		"precedence", c.Precedence,
		"wildcards", c.Wildcards,
		"recursive", c.IsRecursive)
	return c, nil
}

// Match finds the highest precedence pattern matching path.
func (pe *PatternEngine) Match(path string) (PermissionLevel, string, bool) {
	if len(pe.compiledPatterns) == 0 {
		return "", "", false
	}

	normalized := graph.NormalizePath(path)
	for _, pattern := range pe.compiledPatterns {
		if matchesPattern(normalized, pattern) {
			logging.AuthorizationLogger.Debug("Pattern matched",
				"path", normalized,
				"pattern", pattern.Original,
				"permission", pattern.Permission,
				"precedence", pattern.Precedence,
				"match_type", getMatchType(pattern))
			return pattern.Permission, pattern.Original, true
		}
	}

	logging.AuthorizationLogger.Debug("No pattern matched", "path", normalized)
	return "", "", false
}

func matchesPattern(path string, pattern CompiledPattern) bool {
	if pattern.IsExact {
		return path == pattern.Normalized
	}
	// "/Documents/**" also covers the folder itself.
	if base, ok := strings.CutSuffix(pattern.Normalized, "/**"); ok && (path == base || base == "") {
		return true
	}
	ok, err := doublestar.Match(pattern.Normalized, path)
	return err == nil && ok
}

func getMatchType(pattern CompiledPattern) string {
	switch {
	case pattern.IsExact:
		return "exact"
	case pattern.IsRecursive:
		return "recursive"
	}
	return "wildcard"
}

func (pe *PatternEngine) getPatternSummary() []map[string]interface{} {
	summary := make([]map[string]interface{}, len(pe.compiledPatterns))
	for i, pattern := range pe.compiledPatterns {
		summary[i] = map[string]interface{}{
			"pattern":    pattern.Original,
			"permission": pattern.Permission,
			"precedence": pattern.Precedence,
			"type":       getMatchType(pattern),
		}
	}
	return summary
}

// GetAllPatterns returns all compiled patterns in precedence order.
func (pe *PatternEngine) GetAllPatterns() []CompiledPattern {
	return pe.compiledPatterns
}
