//go:build gofuzz
// +build gofuzz

package fuzz

import "github.com/tdewolff/varfont"

// Fuzz is a fuzz test.
func Fuzz(data []byte) int {
	f, err := varfont.ParseWOFF2(data)
	if err != nil {
		return 0
	}
	_, _ = f.Serialize()
	return 1
}
