// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{"plain words", "give bob 5", []string{"give", "bob", "5"}},
		{"double and single quotes", `say "hello world" 'ok'`, []string{"say", "hello world", "ok"}},
		{"unterminated quote runs to end", `say "unterminated`, []string{"say", "unterminated"}},
		{"unterminated multi word", `say 'one two three`, []string{"say", "one two three"}},
		{"inner whitespace collapses", "say \"a   b\tc\"", []string{"say", "a b c"}},
		{"mismatched quote keeps going", `say "it's fine" x`, []string{"say", "it's fine", "x"}},
		{"empty quotes", `say ""`, []string{"say", ""}},
		{"lone quote then words", `say " spaced "`, []string{"say", "spaced"}},
		{"quote inside token is literal", `say don"t`, []string{"say", `don"t`}},
		{"empty line", "   ", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.line))
		})
	}
}

func TestTokenize_UnquotedWordsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOf(rapid.StringMatching(`[a-zA-Z0-9_!?.-]{1,8}`)).Draw(t, "words")
		sep := rapid.SampledFrom([]string{" ", "  ", "\t"}).Draw(t, "sep")

		got := Tokenize(strings.Join(words, sep))
		if len(got) != len(words) {
			t.Fatalf("got %d tokens, want %d", len(got), len(words))
		}
		for i := range words {
			if got[i] != words[i] {
				t.Fatalf("token %d: got %q, want %q", i, got[i], words[i])
			}
		}
	})
}

func TestTokenize_QuotedPhraseIsOneToken(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		phrase := rapid.SliceOfN(rapid.StringMatching(`[a-z]{1,6}`), 1, 6).Draw(t, "phrase")
		quote := rapid.SampledFrom([]string{`"`, `'`}).Draw(t, "quote")

		got := Tokenize("cmd " + quote + strings.Join(phrase, " ") + quote + " tail")
		want := []string{"cmd", strings.Join(phrase, " "), "tail"}
		if len(got) != len(want) {
			t.Fatalf("got %q, want %q", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("got %q, want %q", got, want)
			}
		}
	})
}
