// Tests the lexer by verifying token classification, the string sentinel,
// comment handling and the bounded error buffer. The numeric classification
// table follows the narrowest-fit contract of the language.

package frontend

import (
	"strings"
	"testing"

	"thrushc/src/frontend/token"
	"thrushc/src/util"
)

// TestLexerNumericClassification verifies that numeric literals land in the
// narrowest fitting type.
func TestLexerNumericClassification(t *testing.T) {
	tests := []struct {
		src  string
		kind token.Kind
		typ  token.DataTypes
	}{
		{"0", token.Integer, token.U8},
		{"255", token.Integer, token.U8},
		{"256", token.Integer, token.U16},
		{"65535", token.Integer, token.U16},
		{"65536", token.Integer, token.U32},
		{"4294967295", token.Integer, token.U32},
		{"4294967296", token.Integer, token.U64},
		{"18446744073709551615", token.Integer, token.U64},
		{"1_000", token.Integer, token.U16},
		{"1.0", token.Float, token.F64},
		{"3.14159", token.Float, token.F64},
	}

	for _, e1 := range tests {
		tokens, errs := Lex([]byte(e1.src))
		if len(errs) > 0 {
			t.Errorf("%q: unexpected errors: %v", e1.src, errs)
			continue
		}
		if len(tokens) != 2 {
			t.Errorf("%q: expected literal and EOF, got %d tokens", e1.src, len(tokens))
			continue
		}
		if tokens[0].Kind != e1.kind || tokens[0].DataType != e1.typ {
			t.Errorf("%q: expected %s %s, got %s %s",
				e1.src, e1.kind, e1.typ, tokens[0].Kind, tokens[0].DataType)
		}
	}
}

// TestLexerSignedClassification verifies that a literal preceded by a minus
// classifies into the narrowest signed type.
func TestLexerSignedClassification(t *testing.T) {
	tests := []struct {
		src string
		typ token.DataTypes
	}{
		{"-1", token.I8},
		{"-128", token.I8},
		{"-129", token.I16},
		{"-32769", token.I32},
		{"-2147483649", token.I64},
	}

	for _, e1 := range tests {
		tokens, errs := Lex([]byte(e1.src))
		if len(errs) > 0 {
			t.Errorf("%q: unexpected errors: %v", e1.src, errs)
			continue
		}
		if len(tokens) != 3 {
			t.Errorf("%q: expected minus, literal and EOF, got %d tokens", e1.src, len(tokens))
			continue
		}
		if tokens[0].Kind != token.Minus {
			t.Errorf("%q: expected leading minus, got %s", e1.src, tokens[0].Kind)
		}
		if tokens[1].DataType != e1.typ {
			t.Errorf("%q: expected %s, got %s", e1.src, e1.typ, tokens[1].DataType)
		}
	}
}

// TestLexerNumberOutOfRange verifies the overflow diagnostic.
func TestLexerNumberOutOfRange(t *testing.T) {
	_, errs := Lex([]byte("18446744073709551616"))
	if len(errs) != 1 {
		t.Fatalf("expected one error, got %d", len(errs))
	}
	if errs[0].Kind != util.UnreachableNumber {
		t.Errorf("expected UnreachableNumber, got %s", errs[0].Kind)
	}
}

// TestLexerStringSentinel verifies escape translation and the appended
// newline and zero sentinel: "a\nb" lexes to five bytes.
func TestLexerStringSentinel(t *testing.T) {
	tokens, errs := Lex([]byte(`"a\nb"`))
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if tokens[0].Kind != token.Str {
		t.Fatalf("expected string token, got %s", tokens[0].Kind)
	}
	if len(tokens[0].Lexeme) != 5 {
		t.Errorf("expected lexeme of length 5, got %d (%q)", len(tokens[0].Lexeme), tokens[0].Lexeme)
	}
	if tokens[0].Lexeme != "a\nb\n\x00" {
		t.Errorf("unexpected lexeme %q", tokens[0].Lexeme)
	}
}

// TestLexerRoundTrip re-lexes the concatenated lexemes of a representative
// token sequence and expects the same kinds back.
func TestLexerRoundTrip(t *testing.T) {
	src := "fn main ( ) { var x : i32 = 5 ; x ++ ; }"

	first, errs := Lex([]byte(src))
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	lexemes := make([]string, 0, len(first))
	for _, e1 := range first[:len(first)-1] {
		lexemes = append(lexemes, e1.Lexeme)
	}
	second, errs := Lex([]byte(strings.Join(lexemes, " ")))
	if len(errs) > 0 {
		t.Fatalf("unexpected errors on round trip: %v", errs)
	}

	if len(first) != len(second) {
		t.Fatalf("expected %d tokens, got %d", len(first), len(second))
	}
	for i1 := range first {
		if first[i1].Kind != second[i1].Kind {
			t.Errorf("token %d: expected %s, got %s", i1, first[i1].Kind, second[i1].Kind)
		}
	}
}

// TestLexerComments verifies both comment forms vanish and that an
// unterminated block comment is a hard error.
func TestLexerComments(t *testing.T) {
	tokens, errs := Lex([]byte("// line comment\n5 /* block\ncomment */ 6"))
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(tokens) != 3 {
		t.Fatalf("expected two literals and EOF, got %d tokens", len(tokens))
	}
	if tokens[1].Line != 3 {
		t.Errorf("expected second literal on line 3, got %d", tokens[1].Line)
	}

	_, errs = Lex([]byte("/* never closed"))
	if len(errs) != 1 || errs[0].Kind != util.SyntaxError {
		t.Errorf("expected one SyntaxError for the unterminated comment, got %v", errs)
	}
}

// TestLexerChar verifies char literals hold exactly one byte.
func TestLexerChar(t *testing.T) {
	tokens, errs := Lex([]byte("'x'"))
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if tokens[0].Kind != token.CharLit || tokens[0].Lexeme != "x" {
		t.Errorf("expected char 'x', got %s %q", tokens[0].Kind, tokens[0].Lexeme)
	}

	if _, errs := Lex([]byte("''")); len(errs) != 1 {
		t.Errorf("expected an error for the empty char literal, got %v", errs)
	}
	if _, errs := Lex([]byte("'ab'")); len(errs) == 0 {
		t.Error("expected an error for the multi byte char literal")
	}
}

// TestLexerKeywordsAndTypes verifies keyword and type token resolution.
func TestLexerKeywordsAndTypes(t *testing.T) {
	tokens, errs := Lex([]byte("fn pub external var return for pass u8 i64 f32 bool string void ident"))
	if len(errs) > 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	exp := []token.Kind{
		token.Fn, token.Public, token.External, token.Var, token.Return, token.For,
		token.Pass, token.DataType, token.DataType, token.DataType, token.DataType,
		token.DataType, token.DataType, token.Identifier, token.Eof,
	}
	if len(tokens) != len(exp) {
		t.Fatalf("expected %d tokens, got %d", len(exp), len(tokens))
	}
	for i1, e1 := range exp {
		if tokens[i1].Kind != e1 {
			t.Errorf("token %d: expected %s, got %s", i1, e1, tokens[i1].Kind)
		}
	}
	if tokens[7].DataType != token.U8 || tokens[8].DataType != token.I64 {
		t.Error("primitive type keywords resolved to the wrong data types")
	}
}

// TestLexerErrorCap verifies the bounded error buffer.
func TestLexerErrorCap(t *testing.T) {
	_, errs := Lex([]byte("@@@@@@@@@@@@@@@"))
	if len(errs) != 10 {
		t.Errorf("expected the error cap of 10, got %d", len(errs))
	}
}

// TestLexerUnterminatedString verifies the unterminated string diagnostic.
func TestLexerUnterminatedString(t *testing.T) {
	_, errs := Lex([]byte(`"never closed`))
	if len(errs) != 1 || errs[0].Kind != util.SyntaxError {
		t.Errorf("expected one SyntaxError, got %v", errs)
	}
}
