package doc

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
)

func sample() *Node {
	return Map(
		Field("zeta", Int(1)),
		Field("alpha", List(Float(1.5), Str("two"), Null(), Bool(true))),
		Field("mid", Map(Field("b", Int(-7)), Field("a", Str("")))),
	)
}

// ============================================================
// Node Tests
// ============================================================

func TestNode_NilIsNull(t *testing.T) {
	var n *Node
	if n.Kind() != KindNull || !n.IsNull() {
		t.Error("nil node is not null")
	}
	if n.Len() != 0 || n.Get("x") != nil || n.Has("x") {
		t.Error("nil node has content")
	}
	if _, err := n.AsStr(); err == nil {
		t.Error("AsStr on nil node succeeded")
	}
}

func TestNode_SetReplacesInPlace(t *testing.T) {
	n := Map(Field("a", Int(1)), Field("b", Int(2)))
	n.Set("a", Int(3))
	n.Set("c", nil)

	if got := strings.Join(n.Keys(), ","); got != "a,b,c" {
		t.Errorf("Keys = %s", got)
	}
	if v, _ := n.Get("a").AsInt(); v != 3 {
		t.Errorf("a = %d, want 3", v)
	}
	if c, ok := n.Lookup("c"); !ok || !c.IsNull() {
		t.Error("nil value not stored as null")
	}
	if !n.Delete("b") || n.Delete("b") {
		t.Error("Delete reported wrong presence")
	}
}

func TestNode_CloneIsDeep(t *testing.T) {
	orig := sample()
	c := orig.Clone()
	if !Equal(orig, c) {
		t.Fatal("clone differs")
	}
	c.Get("mid").Set("b", Int(100))
	if v, _ := orig.Get("mid").Get("b").AsInt(); v != -7 {
		t.Error("mutating the clone changed the original")
	}
}

func TestEqual_IgnoresMapOrder(t *testing.T) {
	a := Map(Field("x", Int(1)), Field("y", Float(math.NaN())))
	b := Map(Field("y", Float(math.NaN())), Field("x", Int(1)))
	if !Equal(a, b) {
		t.Error("maps with reordered keys differ")
	}
	if Equal(List(Int(1), Int(2)), List(Int(2), Int(1))) {
		t.Error("list order ignored")
	}
	if Equal(Int(1), Float(1)) {
		t.Error("int equals float")
	}
}

// ============================================================
// JSON Tests
// ============================================================

func TestJSON_KeepsKeyOrder(t *testing.T) {
	out, err := MarshalJSON(sample())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"zeta":1,"alpha":[1.5,"two",null,true],"mid":{"b":-7,"a":""}}`
	if string(out) != want {
		t.Errorf("got  %s\nwant %s", out, want)
	}

	back, err := ParseJSON(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(back.Keys(), ","); got != "zeta,alpha,mid" {
		t.Errorf("parsed key order = %s", got)
	}
}

func TestJSON_Numbers(t *testing.T) {
	n, err := ParseJSON([]byte(`[9223372036854775807, 1.0, 1e3, 18446744073709551616]`))
	if err != nil {
		t.Fatal(err)
	}
	items, _ := n.AsList()
	if v, _ := items[0].AsInt(); items[0].Kind() != KindInt || v != math.MaxInt64 {
		t.Errorf("max int64 parsed as %s", items[0].Kind())
	}
	if items[1].Kind() != KindFloat || items[2].Kind() != KindFloat {
		t.Error("decimal and exponent forms must stay floats")
	}
	if items[3].Kind() != KindFloat {
		t.Error("integer beyond int64 must become a float")
	}

	out, _ := MarshalJSON(List(Float(2), Float(0.1), Float(-0.0)))
	if string(out) != "[2.0,0.1,0.0]" {
		t.Errorf("float text = %s", out)
	}
	if _, err := MarshalJSON(Float(math.Inf(1))); err == nil {
		t.Error("infinity marshaled to JSON")
	}
}

func TestJSON_Errors(t *testing.T) {
	for _, input := range []string{``, `{`, `{"a":1} {"b":2}`, `[1,]`} {
		if _, err := ParseJSON([]byte(input)); err == nil {
			t.Errorf("ParseJSON(%q) succeeded", input)
		}
	}
}

func TestJSONC(t *testing.T) {
	input := []byte(`{
		// comment
		"a": [1, 2,],
		/* block */ "b": "x",
	}`)
	n, err := ParseJSONC(input)
	if err != nil {
		t.Fatal(err)
	}
	if n.Get("a").Len() != 2 {
		t.Errorf("a = %v", n.Get("a"))
	}
}

func TestJSON_Pretty(t *testing.T) {
	out, err := MarshalJSONWithOptions(Map(Field("a", List(Int(1))), Field("b", Map())), PrettyJSONOptions())
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n  \"a\": [\n    1\n  ],\n  \"b\": {}\n}\n"
	if string(out) != want {
		t.Errorf("got %q\nwant %q", out, want)
	}
}

// ============================================================
// YAML and CBOR Tests
// ============================================================

func TestYAML_RoundTrip(t *testing.T) {
	orig := Map(
		Field("name", Str("true")),
		Field("empty", Str("")),
		Field("when", Str("2024-03-01T12:30:00Z")),
		Field("n", Int(3)),
		Field("f", Float(2)),
		Field("list", List(Int(1), Int(2))),
		Field("nested", List(Map(Field("k", Null())))),
	)
	out, err := MarshalYAML(orig)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseYAML(out)
	if err != nil {
		t.Fatalf("ParseYAML: %v\n%s", err, out)
	}
	if !Equal(orig, back) {
		t.Errorf("YAML round trip changed the tree:\n%s", out)
	}
	if got := strings.Join(back.Keys(), ","); got != "name,empty,when,n,f,list,nested" {
		t.Errorf("YAML key order = %s", got)
	}
}

func TestYAML_Aliases(t *testing.T) {
	n, err := ParseYAML([]byte("base: &b {x: 1}\ncopy: *b\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(n.Get("base"), n.Get("copy")) {
		t.Error("alias not expanded")
	}
}

func TestCBOR_RoundTrip(t *testing.T) {
	orig := sample()
	data, err := MarshalCBOR(orig)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseCBOR(data)
	if err != nil {
		t.Fatal(err)
	}
	if !Equal(orig, back) {
		t.Error("CBOR round trip changed the tree")
	}
	// Deterministic encoding sorts keys.
	if got := strings.Join(back.Keys(), ","); got != "alpha,mid,zeta" {
		t.Errorf("CBOR key order = %s", got)
	}

	again, _ := MarshalCBOR(back)
	if !bytes.Equal(data, again) {
		t.Error("CBOR encoding is not deterministic")
	}
}

// ============================================================
// Format Tests
// ============================================================

func TestSniff(t *testing.T) {
	cbor, _ := MarshalCBOR(Map(Field("a", Int(1))))
	tests := []struct {
		in   []byte
		want Format
	}{
		{[]byte(`{"a":1}`), FormatJSON},
		{[]byte("  \n[1]"), FormatJSON},
		{[]byte("\xef\xbb\xbf{}"), FormatJSON},
		{[]byte("// c\n{}"), FormatJSON},
		{[]byte("a: 1\n"), FormatYAML},
		{[]byte("---\na: 1\n"), FormatYAML},
		{cbor, FormatCBOR},
		{nil, FormatJSON},
	}
	for _, tt := range tests {
		if got := Sniff(tt.in); got != tt.want {
			t.Errorf("Sniff(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestFormatByName(t *testing.T) {
	for name, want := range map[string]Format{"json": FormatJSON, "YAML": FormatYAML, "yml": FormatYAML, "cbor": FormatCBOR, "": FormatAuto} {
		got, ok := FormatByName(name)
		if !ok || got != want {
			t.Errorf("FormatByName(%q) = %s, %v", name, got, ok)
		}
	}
	if _, ok := FormatByName("xml"); ok {
		t.Error("xml accepted")
	}
}

func TestParseAndWrite_AllFormats(t *testing.T) {
	orig := sample()
	for _, f := range []Format{FormatJSON, FormatYAML, FormatCBOR} {
		var buf bytes.Buffer
		if err := Write(&buf, orig, f, DefaultJSONOptions()); err != nil {
			t.Fatalf("%s: Write: %v", f, err)
		}
		back, err := ParseReader(&buf, ParseOptions{})
		if err != nil {
			t.Fatalf("%s: ParseReader: %v", f, err)
		}
		if !Equal(orig, back) {
			t.Errorf("%s: round trip changed the tree", f)
		}
	}
	if err := Write(&bytes.Buffer{}, orig, Format(99), JSONOptions{}); err == nil {
		t.Error("unknown format accepted")
	}
}

// ============================================================
// Fingerprint Tests
// ============================================================

func TestFingerprint_IgnoresKeyOrder(t *testing.T) {
	a := Map(Field("x", Int(1)), Field("y", List(Str("a"))))
	b := Map(Field("y", List(Str("a"))), Field("x", Int(1)))

	fa, err := ComputeFingerprint(a)
	if err != nil {
		t.Fatal(err)
	}
	fb, _ := ComputeFingerprint(b)
	if fa != fb {
		t.Error("fingerprint depends on key order")
	}

	canon, _ := Canonical(b)
	if string(canon) != `{"x":1,"y":["a"]}` {
		t.Errorf("canonical = %s", canon)
	}

	parsed, err := ParseFingerprint(fa.String())
	if err != nil || parsed != fa {
		t.Errorf("ParseFingerprint round trip: %v", err)
	}
	if _, err := ParseFingerprint("abc"); err == nil {
		t.Error("short fingerprint accepted")
	}

	fc, _ := ComputeFingerprint(Map(Field("x", Int(2))))
	if fc == fa {
		t.Error("different trees share a fingerprint")
	}
}

// ============================================================
// Limit Tests
// ============================================================

func nestedList(depth int) *Node {
	n := Int(1)
	for range depth {
		n = List(n)
	}
	return n
}

func TestJSON_NestingLimit(t *testing.T) {
	atLimit := strings.Repeat("[", MaxDepth) + strings.Repeat("]", MaxDepth)
	if _, err := ParseJSON([]byte(atLimit)); err != nil {
		t.Fatalf("%d levels rejected: %v", MaxDepth, err)
	}

	over := strings.Repeat("[", MaxDepth+1) + strings.Repeat("]", MaxDepth+1)
	_, err := ParseJSON([]byte(over))
	if err == nil || !strings.Contains(err.Error(), "nesting exceeds") {
		t.Fatalf("ParseJSON over the limit: %v", err)
	}
	var pe *PathError
	if !errors.As(err, &pe) || len(pe.Path()) != MaxDepth {
		t.Errorf("error path not recorded: %T", err)
	}
	if !strings.HasPrefix(err.Error(), "array[0]: array[0]: ") {
		t.Errorf("error text = %.60s", err.Error())
	}
}

func TestCBOR_DeepAndLarge(t *testing.T) {
	deep := nestedList(2000)
	data, err := MarshalCBOR(deep)
	if err != nil {
		t.Fatal(err)
	}
	back, err := ParseCBOR(data)
	if err != nil {
		t.Fatalf("ParseCBOR of 2000 levels: %v", err)
	}
	if !Equal(deep, back) {
		t.Error("deep CBOR round trip changed the tree")
	}

	big := List()
	for i := range 200_000 {
		big.Append(Float(float64(i) / 2))
	}
	data, err = MarshalCBOR(Map(Field("values", big)))
	if err != nil {
		t.Fatal(err)
	}
	back, err = ParseCBOR(data)
	if err != nil {
		t.Fatalf("ParseCBOR of 200000 elements: %v", err)
	}
	if back.Get("values").Len() != 200_000 {
		t.Errorf("decoded %d elements", back.Get("values").Len())
	}
}

func TestYAML_AliasExpansionBudget(t *testing.T) {
	var b strings.Builder
	b.WriteString("a0: &a0 [x, x, x, x, x, x, x, x, x, x]\n")
	for i := 1; i <= 8; i++ {
		refs := strings.TrimSuffix(strings.Repeat(fmt.Sprintf("*a%d, ", i-1), 10), ", ")
		fmt.Fprintf(&b, "a%d: &a%d [%s]\n", i, i, refs)
	}
	input := []byte(b.String())

	if got := Sniff(input); got != FormatYAML {
		t.Fatalf("Sniff = %s", got)
	}
	_, err := Parse(input, ParseOptions{})
	if err == nil || !strings.Contains(err.Error(), "expand to more than") {
		t.Fatalf("alias bomb accepted: %v", err)
	}

	// Modest reuse stays within budget.
	n, err := ParseYAML([]byte("a0: &a0 [1, 2]\na1: &a1 [*a0, *a0]\na2: [*a1, *a1]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if n.Get("a2").Len() != 2 {
		t.Errorf("a2 = %v", n.Get("a2"))
	}
}
