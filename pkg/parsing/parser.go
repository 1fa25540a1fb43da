package parsing

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/run-bigpig/llm-guardrails/pkg/logging"
)

// ErrAllStrategiesFailed is the fixed message carried by the ParseError when
// every parsing strategy has been exhausted. Callers only need "it parsed"
// vs "it didn't"; they never need to know which strategy almost worked.
const ErrAllStrategiesFailed = "all parsing strategies failed (direct JSON, fenced block, flat tags)"

// ParseError is returned when a raw model response cannot be turned into a
// structured record. It carries the original raw text for diagnostics.
type ParseError struct {
	Message     string
	RawResponse string
}

func (e *ParseError) Error() string {
	return e.Message
}

// fencedBlockRe matches the first fenced code block, optionally tagged as
// json, non-greedy so trailing prose after the block is ignored.
var fencedBlockRe = regexp.MustCompile("(?is)```(?:json)?\\s*(.+?)\\s*```")

// ResponseParser turns an LLM's unstructured text output into a string-keyed
// record using ordered fallback strategies:
//
//  1. Direct JSON: the whole string is a JSON object.
//  2. Fenced block: the first ``` block decodes to a JSON object.
//  3. Flat tags: the text is a sequence of <tag>value</tag> pairs.
//
// Each strategy is attempted only if the previous one failed. Parse is a pure
// function; identical input yields identical output or identical failure.
type ResponseParser struct {
	logger logging.Logger
}

// NewResponseParser creates a parser. A nil logger disables logging.
func NewResponseParser(logger logging.Logger) *ResponseParser {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ResponseParser{logger: logger}
}

// Parse parses a raw model response into a string-keyed record. On failure it
// returns a *ParseError carrying the original raw text.
func (p *ResponseParser) Parse(raw string) (map[string]interface{}, error) {
	ctx := context.Background()

	if strings.TrimSpace(raw) == "" {
		return nil, &ParseError{Message: "response is empty", RawResponse: raw}
	}

	// Strategy 1: the whole response is a JSON object
	if record, ok := decodeJSONObject(raw); ok {
		p.logger.Debug(ctx, "Parsed response as direct JSON", nil)
		return record, nil
	}
	p.logger.Debug(ctx, "Direct JSON parse failed, trying fenced block", nil)

	// Strategy 2: JSON object inside the first fenced code block
	if match := fencedBlockRe.FindStringSubmatch(raw); match != nil {
		if record, ok := decodeJSONObject(match[1]); ok {
			p.logger.Debug(ctx, "Parsed JSON from fenced code block", nil)
			return record, nil
		}
	}
	p.logger.Debug(ctx, "Fenced block parse failed, trying flat tags", nil)

	// Strategy 3: flat <tag>value</tag> pairs
	if record, ok := parseFlatTags(raw); ok {
		p.logger.Debug(ctx, "Parsed response as flat tag-value pairs", nil)
		return record, nil
	}

	p.logger.Debug(ctx, "All parsing strategies exhausted", map[string]interface{}{
		"response_length": len(raw),
	})
	return nil, &ParseError{Message: ErrAllStrategiesFailed, RawResponse: raw}
}

// decodeJSONObject decodes s as JSON and succeeds only if the decoded value
// is itself an object. Arrays and scalars are strategy failures, not results.
func decodeJSONObject(s string) (map[string]interface{}, bool) {
	var decoded interface{}
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil, false
	}

	record, ok := decoded.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return record, true
}

// xmlNode is the minimal recursive shape needed to inspect flat tag input
type xmlNode struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Content string     `xml:",chardata"`
	Nodes   []xmlNode  `xml:",any"`
}

// parseFlatTags parses a bare sequence of <tag>value</tag> pairs by wrapping
// the text in an implicit root element. Elements with attributes or nested
// children are not supported and fail the strategy, as does a parse that
// yields no pairs at all.
func parseFlatTags(raw string) (map[string]interface{}, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "<") {
		return nil, false
	}

	var root xmlNode
	if err := xml.Unmarshal([]byte(fmt.Sprintf("<wrap>%s</wrap>", trimmed)), &root); err != nil {
		return nil, false
	}

	nodes := root.Nodes
	// Input that already carried its own single <root> wrapper is unwrapped
	// one level; any other container element means nested structure.
	if len(nodes) == 1 && nodes[0].XMLName.Local == "root" && len(nodes[0].Nodes) > 0 && len(nodes[0].Attrs) == 0 {
		nodes = nodes[0].Nodes
	}

	record := make(map[string]interface{}, len(nodes))
	for _, node := range nodes {
		if len(node.Attrs) > 0 || len(node.Nodes) > 0 {
			return nil, false
		}
		record[node.XMLName.Local] = strings.TrimSpace(node.Content)
	}

	if len(record) == 0 {
		return nil, false
	}
	return record, true
}
