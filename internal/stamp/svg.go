// SVG rendering of the SRC-20 token JSON (spec.md §4.3 step 6, §6's
// canonical serialization rules). This output is consensus-bearing: it
// becomes the decoded bytes a stamp's file_hash is computed over, so its
// key order, separators, and whitespace must be bit-exact, not merely
// visually equivalent. Grounded directly on
// original_source/indexer/src/index_core/src20.py's
// generate_srcbackground_svg/build_src20_svg_string — reproduced byte for
// byte, not merely in spirit.
package stamp

import (
	"strings"

	"github.com/btcstamps/stampindexer/internal/format"
)

// svgFieldOrder lists, per op, the exact whitelist and order
// generate_srcbackground_svg builds dict_to_use from. Any op outside this
// set produces an empty dict_to_use, matching the original's
// "dict_to_use is empty" branch.
var svgFieldOrder = map[string][]string{
	"DEPLOY":   {"p", "op", "tick", "max", "lim"},
	"MINT":     {"p", "op", "tick", "amt"},
	"TRANSFER": {"p", "op", "tick", "amt"},
}

// CanonicalTokenJSON renders the op-specific whitelisted field set as
// generate_srcbackground_svg's pretty_json: json.dumps(..., indent=1,
// separators=(",", ": "), sort_keys=False, ensure_ascii=False, default=str)
// over a dict built with sort_keys's priority_keys ordering (p, op, tick,
// then the rest in insertion order). p/op/tick are uppercased (the
// original's .upper() calls); max/lim/amt come from result.Numeric, whose
// Decimal values json.dumps re-encodes as quoted strings via default=str.
// An op outside DEPLOY/MINT/TRANSFER yields "{}", matching dict_to_use's
// empty-dict fallback.
func CanonicalTokenJSON(result *format.Result) string {
	op, _ := result.Fields["op"].(string)
	op = strings.ToUpper(op)

	keys, ok := svgFieldOrder[op]
	if !ok {
		return "{}"
	}

	p, _ := result.Fields["p"].(string)
	tick, _ := result.Fields["tick"].(string)
	values := map[string]string{
		"p":    strings.ToUpper(p),
		"op":   op,
		"tick": strings.ToUpper(tick),
	}
	for _, numKey := range []string{"max", "lim", "amt"} {
		if d, ok := result.Numeric[numKey]; ok {
			values[numKey] = d.String()
		}
	}

	var present []string
	for _, k := range keys {
		if _, ok := values[k]; ok {
			present = append(present, k)
		}
	}
	if len(present) == 0 {
		return "{}"
	}

	var b strings.Builder
	b.WriteString("{\n")
	for i, k := range present {
		b.WriteString(" ")
		encodeString(&b, k)
		b.WriteString(": ")
		encodeString(&b, values[k])
		if i < len(present)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String()
}

// encodeString writes a JSON string literal without escaping non-ASCII
// runes, matching json.dumps(..., ensure_ascii=False).
func encodeString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}

const svgViewBox = "0 0 420 420"

// WrapSVG reproduces generate_srcbackground_svg's two f-string branches
// exactly. When hasBackground is false (base64 is None in the original),
// the output uses the fixed purple-to-blue gradient and a hard-coded
// "30px" font-size, matching the original's literal else-branch string —
// not a parameterized fallback. When true, fontSize/textColor/backgroundB64
// are spliced in verbatim, exactly as the original's f-string does with
// font_size/text_color/base64.
func WrapSVG(tokenJSON string, backgroundB64 string, fontSize string, textColor string, hasBackground bool) string {
	if hasBackground {
		return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="` + svgViewBox + `">` +
			`<foreignObject font-size="` + fontSize + `" width="100%" height="100%">` +
			`<p xmlns="http://www.w3.org/1999/xhtml" style="background-image: url(data:` + backgroundB64 + `);color:` + textColor + `;padding:20px;margin:0px;width:1000px;height:1000px;">` +
			`<pre>` + tokenJSON + `</pre></p></foreignObject></svg>`
	}
	return `<svg xmlns="http://www.w3.org/2000/svg" viewBox="` + svgViewBox + `">` +
		`<foreignObject font-size="30px" width="100%" height="100%">` +
		`<p xmlns="http://www.w3.org/1999/xhtml" style="background: rgb(149,56,182); background: linear-gradient(138deg, rgba(149,56,182,1) 23%, rgba(0,56,255,1) 100%);padding:20px;margin:0px;width:1000px;height:1000px;">` +
		`<pre>` + tokenJSON + `</pre></p></foreignObject></svg>`
}
