package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsArabic(t *testing.T) {
	assert.True(t, IsArabic("كم عدد الاصابات في المباراة؟"))
	assert.True(t, IsArabic("injuries في"))
	assert.False(t, IsArabic("how many injuries"))
	assert.False(t, IsArabic(""))
}

func TestContainsDigit(t *testing.T) {
	assert.True(t, ContainsDigit("42 injuries"))
	assert.True(t, ContainsDigit("٤٢ اصابة"))
	assert.False(t, ContainsDigit("no numbers here"))
}

func TestSentences(t *testing.T) {
	got := Sentences(" First one.  Second one . . Third")
	assert.Equal(t, []string{"First one", "Second one", "Third"}, got)
	assert.Empty(t, Sentences(" . . "))
}

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"كم", "عدد", "الاصابات", "في", "المباراة"}, Words("كم عدد الاصابات، في المباراة؟"))
	assert.Equal(t, []string{"hello", "world"}, Words("hello, world!"))
}
